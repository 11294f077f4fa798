// Package search provides full-text melody catalog search using Bleve.
package search

import (
	"github.com/neurotunes/neurotunes-server/internal/domain"
)

// TrackDocument is the indexed form of a catalog entry.
type TrackDocument struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Genre       string `json:"genre"` // slug, e.g. "r-b"
	Key         string `json:"key"`
	BPM         int    `json:"bpm"`
	DurationSec int    `json:"duration_sec"`
}

// TrackToDocument converts a catalog entry for indexing.
func TrackToDocument(t *domain.Track) *TrackDocument {
	return &TrackDocument{
		ID:          t.ID,
		Name:        t.Name,
		Genre:       t.Genre.Slug(),
		Key:         t.Key,
		BPM:         t.BPM,
		DurationSec: t.DurationSec,
	}
}

// ToMap converts the document so field names match the mapping.
// Numbers are float64 because Bleve indexes numeric fields that way.
func (d *TrackDocument) ToMap() map[string]any {
	return map[string]any{
		"id":           d.ID,
		"name":         d.Name,
		"genre":        d.Genre,
		"key":          d.Key,
		"bpm":          float64(d.BPM),
		"duration_sec": float64(d.DurationSec),
	}
}
