package providers

import (
	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/metrics"
)

// ProvideClassifier provides the genre classifier adapter. A missing or
// broken artifact leaves the adapter empty; prediction then reports the
// model as unavailable while the rest of the server keeps working.
func ProvideClassifier(i do.Injector) (*classifier.Adapter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	adapter := classifier.NewAdapter(cfg.Model.Concurrency)
	metrics.ModelLoaded.Set(0)

	if cfg.Model.Path == "" {
		log.Warn("No model path configured - genre prediction disabled")
		return adapter, nil
	}

	forest, err := classifier.LoadForest(cfg.Model.Path)
	if err != nil {
		log.Error("Failed to load genre model", "path", cfg.Model.Path, "error", err)
		return adapter, nil
	}
	if err := adapter.Load(forest, classifier.Info{
		Kind:   forest.Format,
		Source: cfg.Model.Path,
		Trees:  len(forest.Trees),
	}); err != nil {
		log.Error("Genre model rejected", "path", cfg.Model.Path, "error", err)
		return adapter, nil
	}

	metrics.ModelLoaded.Set(1)
	log.Info("Genre model loaded", "path", cfg.Model.Path, "trees", len(forest.Trees))
	return adapter, nil
}
