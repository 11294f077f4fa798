package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/neurotunes/neurotunes-server/internal/domain"
)

// Key prefixes.
const (
	patientPrefix = "patient:"
	obsPrefix     = "obs:"
	recPrefix     = "rec:"
	trackPrefix   = "track:"
	userPrefix    = "user:"
	eventPrefix   = "event:"
)

// BadgerStore implements Store on an embedded Badger database.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	patients        *Entity[domain.Patient]
	recommendations *Entity[domain.Recommendation]
	tracks          *Entity[domain.Track]
	users           *Entity[domain.User]
	events          *Entity[domain.Event]
}

var _ Store = (*BadgerStore)(nil)

// New opens (or creates) a Badger database at path.
func New(path string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // slog handles our logging
	opts.SyncWrites = true       // an acknowledged batch survives a crash
	opts.CompactL0OnClose = true // faster startup

	return open(opts, logger)
}

// NewInMemory opens a Badger database that lives only in memory.
func NewInMemory(logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &BadgerStore{db: db, logger: logger}
	s.initEntities()

	if logger != nil {
		logger.Info("Badger database opened", "path", opts.Dir, "in_memory", opts.InMemory)
	}
	return s, nil
}

func (s *BadgerStore) initEntities() {
	s.patients = NewEntity[domain.Patient](s, patientPrefix).
		WithMultiIndex("caregiver", func(p *domain.Patient) []string {
			return []string{p.Caregiver}
		})

	s.recommendations = NewEntity[domain.Recommendation](s, recPrefix).
		WithMultiIndex("recipient", func(r *domain.Recommendation) []string {
			return []string{r.RecipientEmail}
		})

	s.tracks = NewEntity[domain.Track](s, trackPrefix).
		WithMultiIndex("genre", func(t *domain.Track) []string {
			return []string{t.Genre.Slug()}
		})

	s.users = NewEntity[domain.User](s, userPrefix)

	s.events = NewEntity[domain.Event](s, eventPrefix).
		WithMultiIndex("user", func(e *domain.Event) []string {
			return []string{e.Email}
		})
}

// Close gracefully closes the database.
func (s *BadgerStore) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Ping reports whether the database can serve reads.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}
