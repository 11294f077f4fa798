// Package catalog holds the built-in melody catalog: nine tracks per genre.
package catalog

import (
	"strconv"

	"github.com/neurotunes/neurotunes-server/internal/domain"
	"github.com/neurotunes/neurotunes-server/internal/genre"
)

type entry struct {
	name     string
	duration int
	bpm      int
	key      string
}

var entries = map[genre.Genre][]entry{
	genre.Classical: {
		{"Bach's Prelude", 240, 72, "C Major"},
		{"Mozart's Sonata", 280, 68, "G Major"},
		{"Beethoven's Symphony", 320, 76, "F Major"},
		{"Chopin's Nocturne", 200, 65, "D Major"},
		{"Vivaldi's Spring", 260, 80, "A Major"},
		{"Debussy's Clair de Lune", 220, 62, "E Major"},
		{"Pachelbel's Canon", 300, 70, "B♭ Major"},
		{"Schubert's Ave Maria", 180, 60, "C Major"},
		{"Brahms' Lullaby", 160, 58, "G Major"},
	},
	genre.Rock: {
		{"Thunder Strike", 210, 140, "E Minor"},
		{"Electric Storm", 195, 145, "A Minor"},
		{"Power Chord", 180, 135, "D Minor"},
		{"Rock Anthem", 240, 130, "G Minor"},
		{"Guitar Hero", 220, 138, "C Minor"},
		{"Metal Fusion", 200, 142, "F Minor"},
		{"Drum Solo", 160, 150, "B Minor"},
		{"Bass Drop", 185, 136, "E Minor"},
		{"Amplified", 205, 144, "A Minor"},
	},
	genre.Pop: {
		{"Catchy Beat", 180, 120, "C Major"},
		{"Dance Floor", 200, 125, "G Major"},
		{"Radio Hit", 190, 118, "F Major"},
		{"Upbeat Melody", 175, 122, "D Major"},
		{"Feel Good", 185, 115, "A Major"},
		{"Summer Vibes", 195, 128, "E Major"},
		{"Chart Topper", 170, 120, "B♭ Major"},
		{"Mainstream", 188, 124, "C Major"},
		{"Pop Anthem", 205, 116, "G Major"},
	},
	genre.Rap: {
		{"Street Beats", 200, 95, "E Minor"},
		{"Urban Flow", 180, 88, "A Minor"},
		{"Hip Hop Classic", 220, 92, "D Minor"},
		{"Freestyle", 160, 100, "G Minor"},
		{"Boom Bap", 195, 85, "C Minor"},
		{"Trap Beat", 175, 105, "F Minor"},
		{"Conscious Rap", 240, 90, "B Minor"},
		{"Underground", 210, 87, "E Minor"},
		{"Lyrical Flow", 185, 93, "A Minor"},
	},
	genre.RnB: {
		{"Smooth Soul", 220, 75, "C Major"},
		{"Velvet Voice", 240, 70, "G Major"},
		{"Groove Master", 200, 78, "F Major"},
		{"Soulful Nights", 260, 68, "D Major"},
		{"Love Ballad", 210, 72, "A Major"},
		{"Midnight Groove", 195, 76, "E Major"},
		{"Neo Soul", 225, 74, "B♭ Major"},
		{"Rhythm & Blues", 250, 65, "C Major"},
		{"Smooth Operator", 180, 80, "G Major"},
	},
}

// AudioURL is the placeholder stream for every track of g.
func AudioURL(g genre.Genre) string {
	return "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-" + strconv.Itoa(g.Label()) + ".mp3"
}

// Tracks returns the catalog with ids 1..45, genres in canonical order.
func Tracks() []*domain.Track {
	out := make([]*domain.Track, 0, 45)
	next := 1
	for _, g := range genre.All {
		for _, e := range entries[g] {
			out = append(out, &domain.Track{
				ID:          strconv.Itoa(next),
				Genre:       g,
				Name:        e.name,
				DurationSec: e.duration,
				BPM:         e.bpm,
				Key:         e.key,
				AudioURL:    AudioURL(g),
			})
			next++
		}
	}
	return out
}
