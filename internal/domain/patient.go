// Package domain holds the records the server stores and serves.
package domain

import (
	"time"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/eeg"
	"github.com/neurotunes/neurotunes-server/internal/scoring"
)

// Patient is a caregiver-assigned profile. Observations are stored
// separately and only ever appended.
type Patient struct {
	ID string `json:"id"`
	// Caregiver is the normalized email of the caregiver who created the profile.
	Caregiver string    `json:"caregiver"`
	Summary   Summary   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Observation is one ingested row with everything derived from it.
// Seq is the 0-based position in the patient's history.
type Observation struct {
	PatientID  string                `json:"patient_id"`
	Seq        int                   `json:"seq"`
	BatchID    string                `json:"batch_id"`
	Row        eeg.Row               `json:"row"`
	Scores     scoring.ScoreSet      `json:"scores"`
	Prediction classifier.Prediction `json:"prediction"`
	RecordedAt time.Time             `json:"recorded_at"`
}

// Batch is the result of one successful upload.
type Batch struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Rows      int       `json:"rows"`
	FirstSeq  int       `json:"first_seq"`
	Created   bool      `json:"created"`
	Summary   Summary   `json:"summary"`
	StoredAt  time.Time `json:"stored_at"`
}
