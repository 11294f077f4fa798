package genre

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"R&B":                        "r-b",
		"Hip Hop":                    "hip-hop",
		"  Debussy's Clair de Lune ": "debussy-s-clair-de-lune",
		"Café":                       "cafe",
		"B♭ Major":                   "b-major",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestFromLabel(t *testing.T) {
	for i, g := range All {
		got, err := FromLabel(i + 1)
		require.NoError(t, err)
		assert.Equal(t, g, got)
	}

	_, err := FromLabel(0)
	assert.Error(t, err)
	_, err = FromLabel(6)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Genre
	}{
		{"Classical", Classical},
		{"rock", Rock},
		{"POP", Pop},
		{"Hip-Hop", Rap},
		{"R&B", RnB},
		{"r-b", RnB},
		{"rnb", RnB},
		{"4", Rap},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := Parse("jazz")
	assert.Error(t, err)
	_, err = Parse("9")
	assert.Error(t, err)
}

func TestGenre_StringAndSlug(t *testing.T) {
	assert.Equal(t, "R&B", RnB.String())
	assert.Equal(t, "r-b", RnB.Slug())
	assert.Equal(t, "Genre(0)", Genre(0).String())
}

func TestGenre_JSON(t *testing.T) {
	b, err := json.Marshal(map[string]Genre{"top": RnB})
	require.NoError(t, err)
	assert.JSONEq(t, `{"top":"R&B"}`, string(b))

	var out []Genre
	require.NoError(t, json.Unmarshal([]byte(`["Rap","classical","r-b"]`), &out))
	assert.Equal(t, []Genre{Rap, Classical, RnB}, out)

	_, err = json.Marshal(Genre(7))
	assert.Error(t, err)
}
