// Package id generates prefixed identifiers for stored records.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Record prefixes.
const (
	Recommendation = "rec"
	Event          = "evt"
	Token          = "tok"
)

// Generate returns prefix-<21 char nanoid>, e.g. "rec-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is like Generate but panics when the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// HasPrefix reports whether v was generated with prefix.
func HasPrefix(v, prefix string) bool {
	return strings.HasPrefix(v, prefix+"-") && len(v) > len(prefix)+1
}
