package providers

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

func newTestInjector(t *testing.T, cfg *config.Config) *do.RootScope {
	t.Helper()
	if cfg.Storage.DataPath == "" {
		cfg.Storage.DataPath = t.TempDir()
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = config.BackendBadger
	}

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger.New(logger.Config{Writer: io.Discard}))
	do.Provide(injector, ProvideIdentityKey)
	do.Provide(injector, ProvideStore)
	do.Provide(injector, ProvideSearchIndex)
	do.Provide(injector, ProvideClassifier)
	do.Provide(injector, ProvideValidator)
	do.Provide(injector, ProvidePatientService)
	do.Provide(injector, ProvideCatalogService)
	do.Provide(injector, ProvideInbox)
	return injector
}

func TestProvideStore_Backends(t *testing.T) {
	for _, backend := range []string{config.BackendBadger, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			injector := newTestInjector(t, &config.Config{
				Storage: config.StorageConfig{Backend: backend, BreakerFailures: 3, BreakerTimeout: time.Second},
			})

			h, err := do.Invoke[*StoreHandle](injector)
			require.NoError(t, err)
			t.Cleanup(func() { _ = h.Shutdown() })

			require.NoError(t, h.Ping(t.Context()))
			n, err := h.CountTracks(t.Context())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestProvideCatalogService_SeedsAndIndexes(t *testing.T) {
	injector := newTestInjector(t, &config.Config{})

	svc, err := do.Invoke[*service.CatalogService](injector)
	require.NoError(t, err)
	require.NotNil(t, svc)

	storeHandle := do.MustInvoke[*StoreHandle](injector)
	indexHandle := do.MustInvoke[*SearchIndexHandle](injector)
	t.Cleanup(func() {
		_ = indexHandle.Shutdown()
		_ = storeHandle.Shutdown()
	})

	n, err := storeHandle.CountTracks(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 45, n)

	docs, err := indexHandle.DocumentCount()
	require.NoError(t, err)
	assert.EqualValues(t, 45, docs)
}

func TestProvideClassifier_MissingArtifactLeavesModelUnavailable(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0o600))

	for name, path := range map[string]string{"unset": "", "missing": filepath.Join(dir, "nope.json"), "garbage": garbage} {
		t.Run(name, func(t *testing.T) {
			injector := newTestInjector(t, &config.Config{Model: config.ModelConfig{Path: path, Concurrency: 2}})

			adapter, err := do.Invoke[*classifier.Adapter](injector)
			require.NoError(t, err)
			assert.False(t, adapter.Available())
		})
	}
}

func TestProvideIdentityKey_PersistsGeneratedKey(t *testing.T) {
	dataPath := t.TempDir()

	first, err := do.Invoke[IdentityKey](newTestInjector(t, &config.Config{Storage: config.StorageConfig{DataPath: dataPath}}))
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := do.Invoke[IdentityKey](newTestInjector(t, &config.Config{Storage: config.StorageConfig{DataPath: dataPath}}))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	configured := make([]byte, 32)
	configured[0] = 7
	key, err := do.Invoke[IdentityKey](newTestInjector(t, &config.Config{Identity: config.IdentityConfig{Key: configured}}))
	require.NoError(t, err)
	assert.Equal(t, IdentityKey(configured), key)
}

func TestProvideInbox_DisabledWithoutPath(t *testing.T) {
	injector := newTestInjector(t, &config.Config{})

	h, err := do.Invoke[*InboxHandle](injector)
	require.NoError(t, err)
	assert.Nil(t, h.Inbox)
	assert.NoError(t, h.Shutdown())
}
