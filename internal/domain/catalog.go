package domain

import "github.com/neurotunes/neurotunes-server/internal/genre"

// Track is a melody catalog entry. The catalog is reference data: seeded
// once and read-only afterwards.
type Track struct {
	ID          string      `json:"id"`
	Genre       genre.Genre `json:"genre"`
	Name        string      `json:"name"`
	DurationSec int         `json:"duration_sec"`
	BPM         int         `json:"bpm"`
	Key         string      `json:"key"`
	AudioURL    string      `json:"audio_url"`
}
