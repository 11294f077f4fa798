// Package di provides dependency injection configuration for the NeuroTunes server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/auth"
	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/di/providers"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideIdentityKey)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Model
	do.Provide(injector, providers.ProvideClassifier)

	// Auth layer
	do.Provide(injector, providers.ProvideVerifier)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvidePatientService)
	do.Provide(injector, providers.ProvideRecommendationService)
	do.Provide(injector, providers.ProvideActivityService)
	do.Provide(injector, providers.ProvideCatalogService)

	// Workers
	do.Provide(injector, providers.ProvideInbox)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.IdentityKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*classifier.Adapter](injector)
	_ = do.MustInvoke[*auth.Verifier](injector)

	// Business services
	_ = do.MustInvoke[*service.PatientService](injector)
	_ = do.MustInvoke[*service.RecommendationService](injector)
	_ = do.MustInvoke[*service.ActivityService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)

	// Workers
	_ = do.MustInvoke[*providers.InboxHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
