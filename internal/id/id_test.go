package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		v, err := Generate(Recommendation)
		require.NoError(t, err)
		assert.False(t, seen[v], "duplicate id %s", v)
		seen[v] = true
	}
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{Recommendation, Event, Token} {
		t.Run(prefix, func(t *testing.T) {
			v, err := Generate(prefix)
			require.NoError(t, err)

			assert.True(t, HasPrefix(v, prefix))
			body := strings.TrimPrefix(v, prefix+"-")
			assert.Len(t, body, 21)
			for _, c := range body {
				ok := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-'
				assert.True(t, ok, "character %c is not URL-safe", c)
			}
		})
	}
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("rec-abc", "rec"))
	assert.False(t, HasPrefix("rec-", "rec"))
	assert.False(t, HasPrefix("evt-abc", "rec"))
	assert.False(t, HasPrefix("record", "rec"))
}

func TestMustGenerate(t *testing.T) {
	assert.True(t, HasPrefix(MustGenerate(Event), Event))
}
