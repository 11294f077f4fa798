package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/search"
)

// SearchIndexHandle wraps the track index with shutdown capability.
type SearchIndexHandle struct {
	*search.TrackIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the on-disk track search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	indexPath := filepath.Join(cfg.Storage.DataPath, "search")
	idx, err := search.NewTrackIndex(search.Options{
		DataPath: indexPath,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	log.Info("Search index opened", "path", indexPath)
	return &SearchIndexHandle{TrackIndex: idx}, nil
}
