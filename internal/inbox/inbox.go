// Package inbox imports measurement files dropped into a watched folder.
// A settled "<patient-id>.csv" is appended to that patient's history and
// moved to processed/ or, with a sidecar error note, to failed/.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/eeg"
	"github.com/neurotunes/neurotunes-server/internal/metrics"
	"github.com/neurotunes/neurotunes-server/internal/service"
)

// Importer appends a validated upload to a patient.
type Importer interface {
	AppendBatch(ctx context.Context, caregiver, patientID string, table *eeg.Table) (*domain.Batch, error)
}

// Inbox watches a folder and imports completed files one at a time.
type Inbox struct {
	opts     Options
	importer Importer
	logger   *slog.Logger
}

// New creates an inbox. Path and Caregiver are required.
func New(importer Importer, opts Options, logger *slog.Logger) (*Inbox, error) {
	if opts.Path == "" {
		return nil, errors.New("inbox path is required")
	}
	if opts.Caregiver == "" {
		return nil, errors.New("inbox caregiver is required")
	}
	opts.setDefaults()
	opts.Caregiver = domain.NormalizeEmail(opts.Caregiver)
	return &Inbox{opts: opts, importer: importer, logger: logger}, nil
}

// Run imports files already waiting, then watches for new ones until ctx
// is done.
func (in *Inbox) Run(ctx context.Context) error {
	for _, dir := range []string{in.opts.Path, in.dir(ProcessedDir), in.dir(FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create inbox directory: %w", err)
		}
	}

	w, err := newWatcher(in.logger, in.opts)
	if err != nil {
		return err
	}
	defer w.stop()
	w.start(ctx)

	in.logger.Info("inbox watching", "path", in.opts.Path, "caregiver", in.opts.Caregiver)
	if err := in.sweep(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-w.settled:
			in.ProcessFile(ctx, path)
		}
	}
}

// sweep imports files that arrived while the server was down.
func (in *Inbox) sweep(ctx context.Context) error {
	entries, err := os.ReadDir(in.opts.Path)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil
		}
		path := filepath.Join(in.opts.Path, e.Name())
		if e.IsDir() || in.opts.shouldIgnore(path) {
			continue
		}
		in.ProcessFile(ctx, path)
	}
	return nil
}

// ProcessFile imports one file and moves it out of the inbox. The returned
// error is the import failure, if any; the file has been moved either way.
func (in *Inbox) ProcessFile(ctx context.Context, path string) error {
	log := in.logger.With("file", filepath.Base(path))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// Already handled by the sweep or an earlier event.
		return nil
	}

	batch, importErr := in.importFile(ctx, path)
	if importErr != nil && ctx.Err() != nil {
		// Shutting down; leave the file for the next sweep.
		return importErr
	}

	if importErr != nil {
		dest, err := in.move(path, FailedDir)
		if err != nil {
			log.Error("failed to move rejected file", "error", err)
			return importErr
		}
		note := dest + ".error.txt"
		if err := os.WriteFile(note, []byte(importErr.Error()+"\n"), 0o644); err != nil {
			log.Warn("failed to write error note", "error", err)
		}
		metrics.InboxFiles.WithLabelValues("failed").Inc()
		log.Warn("inbox file rejected", "error", importErr)
		return importErr
	}

	if _, err := in.move(path, ProcessedDir); err != nil {
		log.Error("failed to move imported file", "error", err)
		return err
	}
	metrics.InboxFiles.WithLabelValues("processed").Inc()
	log.Info("inbox file imported", "patient_id", batch.PatientID, "batch_id", batch.ID, "rows", batch.Rows)
	return nil
}

func (in *Inbox) importFile(ctx context.Context, path string) (*domain.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	table, err := eeg.ReadCSV(f)
	if err != nil {
		return nil, err
	}
	ctx = service.WithBatchSource(ctx, service.SourceInbox)
	return in.importer.AppendBatch(ctx, in.opts.Caregiver, patientID(path), table)
}

// move renames path into sub, adding a timestamp when the name is taken.
func (in *Inbox) move(path, sub string) (string, error) {
	dest := filepath.Join(in.dir(sub), filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = fmt.Sprintf("%s.%s%s", dest[:len(dest)-len(ext)], time.Now().UTC().Format("20060102T150405.000000000"), ext)
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (in *Inbox) dir(sub string) string {
	return filepath.Join(in.opts.Path, sub)
}
