package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/store"
	"github.com/neurotunes/neurotunes-server/internal/store/resilient"
	"github.com/neurotunes/neurotunes-server/internal/store/sqlite"
)

// StoreHandle wraps the breaker-protected store with shutdown capability.
type StoreHandle struct {
	*resilient.Store
	backend store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.backend.Close()
}

// ProvideStore opens the configured backend and wraps it in a circuit breaker.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o750); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}

	var (
		backend store.Store
		path    string
		err     error
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		path = filepath.Join(cfg.Storage.DataPath, "neurotunes.db")
		backend, err = sqlite.Open(path, log.Component("sqlite"))
	default:
		path = filepath.Join(cfg.Storage.DataPath, "db")
		backend, err = store.New(path, log.Component("badger"))
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "backend", cfg.Storage.Backend, "path", path)

	wrapped := resilient.New(backend, resilient.Config{
		Name:             cfg.Storage.Backend,
		FailureThreshold: uint32(max(cfg.Storage.BreakerFailures, 0)), //#nosec G115 -- clamped to non-negative
		Timeout:          cfg.Storage.BreakerTimeout,
	}, log.Component("store"))

	return &StoreHandle{Store: wrapped, backend: backend}, nil
}
