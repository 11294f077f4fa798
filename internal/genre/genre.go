// Package genre defines the closed set of therapeutic music genres and
// their label, name, and slug forms.
package genre

import (
	"fmt"
	"strconv"
	"strings"
)

// Genre is one of the five therapeutic categories. The numeric value is
// the `Melody #` label the classifier was trained on.
type Genre int

// Genres in label order.
const (
	Classical Genre = iota + 1
	Rock
	Pop
	Rap
	RnB
)

// All lists every genre in canonical (label) order.
var All = []Genre{Classical, Rock, Pop, Rap, RnB}

var names = [...]string{"", "Classical", "Rock", "Pop", "Rap", "R&B"}

// FromLabel decodes a numeric class label.
func FromLabel(label int) (Genre, error) {
	g := Genre(label)
	if !g.Valid() {
		return 0, fmt.Errorf("genre label %d out of range 1-%d", label, len(All))
	}
	return g, nil
}

// Parse accepts a display name, slug, known alias, or numeric label.
func Parse(s string) (Genre, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return FromLabel(n)
	}
	slug := Slugify(s)
	for _, g := range All {
		if g.Slug() == slug {
			return g, nil
		}
	}
	if g, ok := aliases[slug]; ok {
		return g, nil
	}
	return 0, fmt.Errorf("unknown genre %q", s)
}

// Valid reports whether g is one of the five genres.
func (g Genre) Valid() bool {
	return g >= Classical && g <= RnB
}

// Label returns the numeric class label.
func (g Genre) Label() int {
	return int(g)
}

func (g Genre) String() string {
	if !g.Valid() {
		return "Genre(" + strconv.Itoa(int(g)) + ")"
	}
	return names[g]
}

// Slug returns the URL form, e.g. "r-b".
func (g Genre) Slug() string {
	return Slugify(g.String())
}

// MarshalText encodes the display name.
func (g Genre) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid genre %d", int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText accepts anything Parse does.
func (g *Genre) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
