package classifier

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neurotunes/neurotunes-server/internal/eeg"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
)

// Info describes the loaded model.
type Info struct {
	Kind     string    `json:"kind"`
	Source   string    `json:"source,omitempty"`
	Features []string  `json:"features"`
	Trees    int       `json:"trees,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

type loaded struct {
	model Model
	// order[i] is the canonical feature index fed at model position i.
	order []int
	info  Info
}

// Adapter builds feature vectors in the model's order and shapes results.
// The loaded model is read through an atomic pointer, so Predict takes no locks.
type Adapter struct {
	current     atomic.Pointer[loaded]
	concurrency int
}

// NewAdapter creates an adapter with no model. concurrency bounds PredictBatch.
func NewAdapter(concurrency int) *Adapter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Adapter{concurrency: concurrency}
}

// Load installs m. The model's feature names must be exactly the
// measurement columns in some order.
func (a *Adapter) Load(m Model, info Info) error {
	names := m.FeatureNames()
	if names == nil {
		names = eeg.Columns()
	}
	if len(names) != eeg.FeatureCount {
		return fmt.Errorf("model expects %d features, want %d", len(names), eeg.FeatureCount)
	}

	order := make([]int, len(names))
	seen := make(map[int]bool, len(names))
	for i, name := range names {
		idx, ok := eeg.FeatureIndex(name)
		if !ok {
			return fmt.Errorf("model feature %q is not a measurement column", name)
		}
		if seen[idx] {
			return fmt.Errorf("model feature %q listed twice", name)
		}
		seen[idx] = true
		order[i] = idx
	}

	info.Features = names
	if info.LoadedAt.IsZero() {
		info.LoadedAt = time.Now().UTC()
	}
	a.current.Store(&loaded{model: m, order: order, info: info})
	return nil
}

// Available reports whether a model is loaded.
func (a *Adapter) Available() bool {
	return a.current.Load() != nil
}

// Info returns metadata for the loaded model.
func (a *Adapter) Info() (Info, bool) {
	l := a.current.Load()
	if l == nil {
		return Info{}, false
	}
	return l.info, true
}

// Predict classifies one row. It returns ErrModelUnavailable when no
// model is loaded.
func (a *Adapter) Predict(row eeg.Row) (Prediction, error) {
	l := a.current.Load()
	if l == nil {
		return Prediction{}, domainerrors.ErrModelUnavailable
	}
	return l.predict(row)
}

// PredictBatch classifies rows concurrently and returns predictions in
// row order. The first failure cancels the rest.
func (a *Adapter) PredictBatch(ctx context.Context, rows []eeg.Row) ([]Prediction, error) {
	l := a.current.Load()
	if l == nil {
		return nil, domainerrors.ErrModelUnavailable
	}

	out := make([]Prediction, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := l.predict(row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *loaded) predict(row eeg.Row) (Prediction, error) {
	canonical := row.Features()
	features := make([]float64, len(l.order))
	for i, idx := range l.order {
		features[i] = canonical[idx]
	}

	out, err := l.model.Predict(features)
	if err != nil {
		return Prediction{}, fmt.Errorf("model predict: %w", err)
	}
	return shape(out)
}
