// Package main seeds the melody catalog into the configured store and
// rebuilds the track search index.
//
// Usage:
//
//	DATA_PATH=~/.neurotunes go run ./cmd/seed
//	DATA_PATH=~/.neurotunes go run ./cmd/seed --force  # overwrite existing tracks
package main

import (
	"context"
	"flag"
	"log"

	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/di/providers"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

var force = flag.Bool("force", false, "Rewrite every catalog track even if the catalog is populated")

func main() {
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	}))
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
	indexHandle := do.MustInvoke[*providers.SearchIndexHandle](injector)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	ctx := context.Background()
	appLog := do.MustInvoke[*logger.Logger](injector)
	catalog := service.NewCatalogService(storeHandle.Store, indexHandle.TrackIndex, appLog.Logger)

	var n int
	if *force {
		n, err = catalog.Seed(ctx)
	} else {
		n, err = catalog.SeedIfEmpty(ctx)
	}
	if err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}
	if err := catalog.Reindex(ctx); err != nil {
		log.Fatalf("Failed to rebuild search index: %v", err)
	}

	log.Printf("Seeded %d tracks into %s (%s)", n, cfg.Storage.DataPath, cfg.Storage.Backend)
}
