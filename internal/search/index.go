package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/neurotunes/neurotunes-server/internal/domain"
)

// TrackIndex wraps a Bleve index of the melody catalog.
//
// All public methods are safe for concurrent use. The mutex guards the
// index handle across Rebuild.
type TrackIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	// DataPath holds the on-disk index. Empty keeps the index in memory,
	// which suits a catalog rebuilt from the store at startup.
	DataPath string
	Logger   *slog.Logger
}

// mappingVersion is bumped whenever the mapping changes; an on-disk index
// with another version is rebuilt.
const mappingVersion = "1"

// NewTrackIndex creates or opens a track index.
func NewTrackIndex(opts Options) (*TrackIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		return &TrackIndex{index: index, logger: logger}, nil
	}

	indexPath := filepath.Join(opts.DataPath, "tracks.bleve")
	versionPath := filepath.Join(opts.DataPath, "tracks.version")

	var index bleve.Index
	if _, err := os.Stat(indexPath); err == nil {
		existing, readErr := os.ReadFile(versionPath)
		if readErr == nil && string(existing) == mappingVersion {
			index, err = bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
				index = nil
			}
		} else {
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
		}
		if index == nil {
			if err := os.RemoveAll(indexPath); err != nil {
				return nil, fmt.Errorf("remove old index: %w", err)
			}
		}
	}

	if index == nil {
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &TrackIndex{index: index, path: indexPath, logger: logger}, nil
}

// Close closes the index and releases resources.
func (s *TrackIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexTrack indexes a single track.
func (s *TrackIndex) IndexTrack(t *domain.Track) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := TrackToDocument(t)
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexTracks indexes tracks in batches of 500.
func (s *TrackIndex) IndexTracks(tracks []*domain.Track) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(tracks); i += batchSize {
		end := min(i+batchSize, len(tracks))

		batch := s.index.NewBatch()
		for _, t := range tracks[i:end] {
			doc := TrackToDocument(t)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteTrack removes a track from the index.
func (s *TrackIndex) DeleteTrack(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the number of indexed tracks.
func (s *TrackIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild replaces the index contents with tracks.
func (s *TrackIndex) Rebuild(tracks []*domain.Track) error {
	s.mu.Lock()
	if err := s.index.Close(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err = os.RemoveAll(s.path); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index
	s.mu.Unlock()

	if err := s.IndexTracks(tracks); err != nil {
		return err
	}
	s.logger.Info("rebuilt search index", "tracks", len(tracks))
	return nil
}
