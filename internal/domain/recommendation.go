package domain

import (
	"time"

	"github.com/neurotunes/neurotunes-server/internal/scoring"
)

// Recommendation links caregiver output to a recipient email. The recipient
// does not need to exist as a user; records are found by the normalized email.
type Recommendation struct {
	ID             string        `json:"id"`
	Caregiver      string        `json:"caregiver"`
	RecipientEmail string        `json:"recipient_email"`
	Genres         []GenreWeight `json:"genres"`
	TrackIDs       []string      `json:"track_ids,omitempty"`
	// PatientID and Snapshot are set when derived from a patient profile.
	PatientID string         `json:"patient_id,omitempty"`
	Snapshot  *scoring.Means `json:"snapshot,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
