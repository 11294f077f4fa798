package providers

import (
	"context"
	"errors"

	"github.com/samber/do/v2"

	"github.com/neurotunes/neurotunes-server/internal/config"
	"github.com/neurotunes/neurotunes-server/internal/inbox"
	"github.com/neurotunes/neurotunes-server/internal/logger"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

// InboxHandle wraps the drop-folder importer with its context for lifecycle management.
// Inbox is nil when no folder is configured.
type InboxHandle struct {
	*inbox.Inbox
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *InboxHandle) Shutdown() error {
	if h.Inbox == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideInbox starts the drop-folder importer when INBOX_PATH is set.
func ProvideInbox(i do.Injector) (*InboxHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Inbox.Path == "" {
		log.Info("Inbox importer disabled by configuration")
		return &InboxHandle{}, nil
	}

	patients := do.MustInvoke[*service.PatientService](i)
	in, err := inbox.New(patients, inbox.Options{
		Path:         cfg.Inbox.Path,
		Caregiver:    cfg.Inbox.Caregiver,
		IgnoreHidden: true,
	}, log.Component("inbox"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// Start in background
	go func() {
		defer close(done)
		if err := in.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Inbox importer stopped", "error", err)
		}
	}()

	log.Info("Inbox importer started", "path", cfg.Inbox.Path, "caregiver", cfg.Inbox.Caregiver)

	return &InboxHandle{Inbox: in, cancel: cancel, done: done}, nil
}
