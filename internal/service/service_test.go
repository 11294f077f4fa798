package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/classifier"
	"github.com/neurotunes/neurotunes-server/internal/eeg"
	"github.com/neurotunes/neurotunes-server/internal/search"
	"github.com/neurotunes/neurotunes-server/internal/store"
	"github.com/neurotunes/neurotunes-server/internal/validation"
)

const (
	caregiver = "doc@clinic.test"
	listener  = "bob@example.test"
)

// gammaModel predicts the class written in the last Gamma electrode.
type gammaModel struct{}

func (gammaModel) FeatureNames() []string { return nil }

func (gammaModel) Predict(features []float64) (classifier.Output, error) {
	return classifier.Output{Class: int(features[len(features)-1])}, nil
}

type services struct {
	store    store.Store
	model    *classifier.Adapter
	patients *PatientService
	recs     *RecommendationService
	catalog  *CatalogService
	activity *ActivityService
}

func newServices(t *testing.T) *services {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	s, err := store.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	idx, err := search.NewTrackIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	model := classifier.NewAdapter(4)
	require.NoError(t, model.Load(gammaModel{}, classifier.Info{Kind: "stub"}))

	clock := newTickClock()
	svc := &services{
		store:    s,
		model:    model,
		patients: NewPatientService(s, model, logger),
		recs:     NewRecommendationService(s, validation.New(), logger),
		catalog:  NewCatalogService(s, idx, logger),
		activity: NewActivityService(s, logger),
	}
	svc.patients.now = clock
	svc.recs.now = clock
	svc.activity.now = clock
	return svc
}

// newTickClock returns a clock that advances one second per call.
func newTickClock() Clock {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func (s *services) seed(t *testing.T) {
	t.Helper()
	_, err := s.catalog.SeedIfEmpty(context.Background())
	require.NoError(t, err)
}

// uploadOf builds an upload whose rows are classified as the given labels.
func uploadOf(labels ...int) *eeg.Table {
	header := eeg.Columns()
	t := &eeg.Table{Header: header}
	for i, l := range labels {
		rec := make([]string, len(header))
		for c := range rec {
			rec[c] = "1"
		}
		rec[len(rec)-5] = strconv.Itoa(2 + i) // a Beta electrode, so rows differ
		rec[len(rec)-1] = strconv.Itoa(l)
		t.Records = append(t.Records, rec)
	}
	return t
}
