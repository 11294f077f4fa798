package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/service"
	"github.com/neurotunes/neurotunes-server/internal/validation"
)

// ProvideValidator provides the shared request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvidePatientService provides the patient service.
func ProvidePatientService(i do.Injector) (*service.PatientService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	model := do.MustInvoke[*classifier.Adapter](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewPatientService(storeHandle.Store, model, log.Logger), nil
}

// ProvideRecommendationService provides the recommendation service.
func ProvideRecommendationService(i do.Injector) (*service.RecommendationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewRecommendationService(storeHandle.Store, v, log.Logger), nil
}

// ProvideActivityService provides the activity service.
func ProvideActivityService(i do.Injector) (*service.ActivityService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewActivityService(storeHandle.Store, log.Logger), nil
}

// ProvideCatalogService provides the catalog service, seeding the track
// catalog on first start and rebuilding the search index from the store.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewCatalogService(storeHandle.Store, indexHandle.TrackIndex, log.Logger)

	ctx := context.Background()
	seeded, err := svc.SeedIfEmpty(ctx)
	if err != nil {
		return nil, err
	}
	if seeded > 0 {
		log.Info("Track catalog seeded", "tracks", seeded)
	}
	if err := svc.Reindex(ctx); err != nil {
		return nil, err
	}

	return svc, nil
}
