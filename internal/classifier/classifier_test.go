package classifier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/eeg"
	"github.com/neurotunes/neurotunes-server/internal/eeg/eegtest"
	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/genre"
)

type stubModel struct {
	names []string
	fn    func(features []float64) (Output, error)
	calls atomic.Int64
}

func (m *stubModel) FeatureNames() []string { return m.names }

func (m *stubModel) Predict(features []float64) (Output, error) {
	m.calls.Add(1)
	return m.fn(features)
}

func constant(out Output) *stubModel {
	return &stubModel{fn: func([]float64) (Output, error) { return out, nil }}
}

func TestAdapter_Unavailable(t *testing.T) {
	a := NewAdapter(2)
	assert.False(t, a.Available())

	_, err := a.Predict(eegtest.Uniform(1, 1, 1, 1, 1))
	assert.ErrorIs(t, err, domainerrors.ErrModelUnavailable)

	_, err = a.PredictBatch(context.Background(), []eeg.Row{eegtest.Uniform(1, 1, 1, 1, 1)})
	assert.ErrorIs(t, err, domainerrors.ErrModelUnavailable)

	_, ok := a.Info()
	assert.False(t, ok)
}

func TestAdapter_DecodesLabels(t *testing.T) {
	for _, g := range genre.All {
		t.Run(g.String(), func(t *testing.T) {
			a := NewAdapter(1)
			require.NoError(t, a.Load(constant(Output{Class: g.Label()}), Info{Kind: "stub"}))

			p, err := a.Predict(eegtest.Uniform(1, 1, 1, 1, 1))
			require.NoError(t, err)
			assert.Equal(t, g, p.Genre)
			assert.Equal(t, 1.0, p.Confidence)
			assert.Empty(t, p.Probabilities)
		})
	}
}

func TestAdapter_ConfidenceIsMaxProbability(t *testing.T) {
	a := NewAdapter(1)
	require.NoError(t, a.Load(constant(Output{
		Class:         3,
		Probabilities: map[int]float64{1: 0.1, 3: 0.6, 5: 0.3},
	}), Info{}))

	p, err := a.Predict(eegtest.Uniform(1, 1, 1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, genre.Pop, p.Genre)
	assert.Equal(t, 0.6, p.Confidence)
	assert.Equal(t, []Probability{
		{Genre: genre.Classical, Probability: 0.1},
		{Genre: genre.Pop, Probability: 0.6},
		{Genre: genre.RnB, Probability: 0.3},
	}, p.Probabilities)
	assert.Equal(t, 0.3, p.Probability(genre.RnB))
	assert.Equal(t, 0.0, p.Probability(genre.Rock))
}

func TestAdapter_InvalidOutput(t *testing.T) {
	tests := []struct {
		name string
		out  Output
	}{
		{"class zero", Output{Class: 0}},
		{"class six", Output{Class: 6}},
		{"probability above one", Output{Class: 1, Probabilities: map[int]float64{1: 1.5}}},
		{"unknown class probability", Output{Class: 1, Probabilities: map[int]float64{1: 0.5, 9: 0.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(1)
			require.NoError(t, a.Load(constant(tt.out), Info{}))
			_, err := a.Predict(eegtest.Uniform(1, 1, 1, 1, 1))
			assert.ErrorIs(t, err, ErrInvalidOutput)
		})
	}
}

func TestAdapter_FeatureOrderFollowsModel(t *testing.T) {
	names := eeg.Columns()
	slices.Reverse(names)

	var got []float64
	m := &stubModel{names: names, fn: func(f []float64) (Output, error) {
		got = slices.Clone(f)
		return Output{Class: 1}, nil
	}}
	a := NewAdapter(1)
	require.NoError(t, a.Load(m, Info{}))

	row := eegtest.Uniform(1, 2, 3, 4, 5)
	row.Values[eeg.Gamma][eeg.TP10] = 99
	_, err := a.Predict(row)
	require.NoError(t, err)

	require.Len(t, got, eeg.FeatureCount)
	assert.Equal(t, 99.0, got[0])
	assert.Equal(t, 1.0, got[eeg.FeatureCount-1])
}

func TestAdapter_LoadRejectsBadFeatureNames(t *testing.T) {
	a := NewAdapter(1)

	short := &stubModel{names: eeg.Columns()[:eeg.FeatureCount-1]}
	assert.Error(t, a.Load(short, Info{}))

	unknown := eeg.Columns()
	unknown[3] = "Delta_FP1_mean"
	assert.Error(t, a.Load(&stubModel{names: unknown}, Info{}))

	dup := eeg.Columns()
	dup[1] = dup[0]
	assert.Error(t, a.Load(&stubModel{names: dup}, Info{}))

	assert.False(t, a.Available())
}

func TestAdapter_PredictBatchKeepsOrder(t *testing.T) {
	// Class follows the Delta value so order is observable.
	m := &stubModel{fn: func(f []float64) (Output, error) {
		return Output{Class: int(f[0])}, nil
	}}
	a := NewAdapter(4)
	require.NoError(t, a.Load(m, Info{}))

	var rows []eeg.Row
	for i := range 200 {
		rows = append(rows, eegtest.Uniform(float64(i%5+1), 1, 1, 1, 1))
	}

	preds, err := a.PredictBatch(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, preds, len(rows))
	for i, p := range preds {
		assert.Equal(t, genre.All[i%5], p.Genre, "row %d", i)
	}
	assert.EqualValues(t, len(rows), m.calls.Load())
}

func TestAdapter_PredictBatchFailsWhole(t *testing.T) {
	boom := errors.New("boom")
	m := &stubModel{fn: func(f []float64) (Output, error) {
		if f[0] == 7 {
			return Output{}, boom
		}
		return Output{Class: 1}, nil
	}}
	a := NewAdapter(2)
	require.NoError(t, a.Load(m, Info{}))

	rows := []eeg.Row{eegtest.Uniform(1, 1, 1, 1, 1), eegtest.Uniform(7, 1, 1, 1, 1), eegtest.Uniform(1, 1, 1, 1, 1)}
	preds, err := a.PredictBatch(context.Background(), rows)
	assert.Nil(t, preds)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "row 1")
}

func TestAdapter_PredictBatchCancelled(t *testing.T) {
	a := NewAdapter(1)
	require.NoError(t, a.Load(constant(Output{Class: 1}), Info{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.PredictBatch(ctx, []eeg.Row{eegtest.Uniform(1, 1, 1, 1, 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForest_Predict(t *testing.T) {
	f, err := LoadForest("testdata/forest.json")
	require.NoError(t, err)

	a := NewAdapter(2)
	require.NoError(t, a.Load(f, Info{Kind: FormatRandomForest, Trees: len(f.Trees)}))

	low, err := a.Predict(eegtest.Uniform(1, 1, 1, 1, 0.5))
	require.NoError(t, err)
	assert.Equal(t, genre.Classical, low.Genre)
	assert.InDelta(t, 0.5, low.Confidence, 1e-12)
	assert.InDelta(t, 0.3, low.Probability(genre.RnB), 1e-12)

	high, err := a.Predict(eegtest.Uniform(1, 1, 1, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, genre.RnB, high.Genre)
	assert.InDelta(t, 0.75, high.Confidence, 1e-12)

	var total float64
	for _, p := range high.Probabilities {
		total += p.Probability
	}
	assert.InDelta(t, 1.0, total, 1e-12)

	info, ok := a.Info()
	require.True(t, ok)
	assert.Equal(t, 2, info.Trees)
	assert.Equal(t, "Gamma_TP10_mean", info.Features[0])
}

func TestLoadForest_Rejects(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	_, err := LoadForest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = LoadForest(write("garbage.json", "{not json"))
	assert.Error(t, err)

	_, err = LoadForest(write("format.json", `{"format":"svm","classes":[1],"trees":[{"nodes":[{"left":-1,"value":[1]}]}]}`))
	assert.ErrorContains(t, err, "unsupported model format")

	_, err = LoadForest(write("class.json", `{"format":"random_forest","classes":[0],"trees":[{"nodes":[{"left":-1,"value":[1]}]}]}`))
	assert.ErrorContains(t, err, "model class")

	_, err = LoadForest(write("cycle.json", `{"format":"random_forest","feature_names":["Delta_TP9_mean"],"classes":[1],
		"trees":[{"nodes":[{"feature":0,"threshold":1,"left":0,"right":0}]}]}`))
	assert.ErrorContains(t, err, "invalid children")

	_, err = LoadForest(write("leaf.json", `{"format":"random_forest","classes":[1,2],"trees":[{"nodes":[{"left":-1,"value":[1]}]}]}`))
	assert.ErrorContains(t, err, "values")
}
