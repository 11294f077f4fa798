package domain

import (
	"strings"
	"time"

	"github.com/neurotunes/neurotunes-server/internal/genre"
)

// Role is derived from the caregiver allow-list on every request.
type Role string

const (
	// RoleCaregiver may manage patients and author recommendations.
	RoleCaregiver Role = "caregiver"
	// RoleListener reads recommendations addressed to their email.
	RoleListener Role = "listener"
)

// User is the last-seen record of an authenticated identity, keyed by email.
type User struct {
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// EventType classifies activity events.
type EventType string

const (
	// EventLogin is recorded the first time a session is seen.
	EventLogin EventType = "login"
	// EventPlay is recorded when a listener starts a track.
	EventPlay EventType = "play"
)

// Event is an append-only activity record.
type Event struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Type      EventType   `json:"type"`
	TrackID   string      `json:"track_id,omitempty"`
	Genre     genre.Genre `json:"genre,omitzero"`
	CreatedAt time.Time   `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an address. Recipients, caregivers
// and users are all keyed by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
