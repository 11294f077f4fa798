package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/api"
	"github.com/neurotunes/neurotunes-server/internal/auth"
	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	verifier := do.MustInvoke[*auth.Verifier](i)

	services := &api.Services{
		Patients:        do.MustInvoke[*service.PatientService](i),
		Recommendations: do.MustInvoke[*service.RecommendationService](i),
		Catalog:         do.MustInvoke[*service.CatalogService](i),
		Activity:        do.MustInvoke[*service.ActivityService](i),
	}

	handler := api.NewServer(storeHandle.Store, services, verifier, indexHandle.TrackIndex, api.Options{
		CORSOrigins:         cfg.Server.CORSOrigins,
		UploadRatePerMinute: cfg.Server.UploadRatePerMinute,
		MaxUploadBytes:      cfg.Server.MaxUploadBytes,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
