package scoring

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurotunes/neurotunes-server/internal/eeg"
	"github.com/neurotunes/neurotunes-server/internal/eeg/eegtest"
)

func randomRow(r *rand.Rand) eeg.Row {
	var row eeg.Row
	for b := range eeg.NumBands {
		for e := range eeg.NumElectrodes {
			row.Values[b][e] = r.NormFloat64() * 10
		}
	}
	return row
}

func TestCompute_WorkedExample(t *testing.T) {
	s := Compute(eegtest.Uniform(0, 3, 1, 2, 4))

	assert.Equal(t, 1.0, s.Engagement)
	assert.Equal(t, -1.0, s.Relaxation)
	focus, ok := s.Focus.Value()
	require.True(t, ok)
	assert.InDelta(t, 1.5, focus, 1e-9)
	assert.Equal(t, BandMeans{Delta: 0, Theta: 3, Alpha: 1, Beta: 2, Gamma: 4}, s.Bands)
}

func TestCompute_UsesElectrodeMeans(t *testing.T) {
	row := eegtest.Uniform(0, 0, 0, 0, 0)
	row.Values[eeg.Beta] = [4]float64{1, 2, 3, 6}  // mean 3
	row.Values[eeg.Theta] = [4]float64{0, 0, 4, 8} // mean 3

	s := Compute(row)
	assert.Equal(t, 3.0, s.Bands.Beta)
	assert.InDelta(t, 1.0, s.Focus.Or(math.NaN()), 1e-9)
	assert.InDelta(t, 0.0, s.Engagement, 1e-12)
}

func TestCompute_ZeroBetaFocusUndefined(t *testing.T) {
	row := eegtest.Uniform(1, 3, 1, 0, 4)
	row.Values[eeg.Beta] = [4]float64{-1, 1, -2, 2}

	s := Compute(row)
	assert.False(t, s.Focus.IsDefined())
	assert.Equal(t, Undefined, s.Focus)
	assert.Equal(t, -s.Relaxation, s.Engagement)
}

func TestCompute_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))
	for range 500 {
		row := randomRow(r)
		s := Compute(row)

		assert.Equal(t, s.Engagement, -s.Relaxation)
		assert.Equal(t, s, Compute(row), "scores must be deterministic")

		beta := row.BandMean(eeg.Beta)
		if beta != 0 {
			focus, ok := s.Focus.Value()
			require.True(t, ok)
			assert.InDelta(t, row.BandMean(eeg.Theta)/beta, focus, 1e-9)
		}
	}
}

func TestCompute_NonFiniteRatioIsUndefined(t *testing.T) {
	row := eegtest.Uniform(0, math.MaxFloat64, 0, 1e-300, 0)
	assert.False(t, Compute(row).Focus.IsDefined())
}

func TestAggregate_SkipsUndefined(t *testing.T) {
	sets := []ScoreSet{
		{Engagement: 1, Relaxation: -1, Focus: Defined(2)},
		{Engagement: 3, Relaxation: -3, Focus: Undefined},
		{Engagement: 2, Relaxation: -2, Focus: Defined(4)},
	}

	m := Aggregate(sets)
	assert.Equal(t, Defined(2), m.Engagement)
	assert.Equal(t, Defined(-2), m.Relaxation)
	assert.Equal(t, Defined(3), m.Focus)
}

func TestAggregate_Empty(t *testing.T) {
	m := Aggregate(nil)
	assert.False(t, m.Engagement.IsDefined())
	assert.False(t, m.Focus.IsDefined())
	assert.False(t, m.Relaxation.IsDefined())

	m = Aggregate([]ScoreSet{{Engagement: 1, Relaxation: -1}})
	assert.False(t, m.Focus.IsDefined())
}

func TestAggregate_SingleRowEqualsRow(t *testing.T) {
	s := Compute(eegtest.Uniform(0.3, 0.7, 0.2, 0.9, 1.1))
	m := Aggregate([]ScoreSet{s})

	assert.Equal(t, Defined(s.Engagement), m.Engagement)
	assert.Equal(t, s.Focus, m.Focus)
	assert.Equal(t, Defined(s.Relaxation), m.Relaxation)
}

func TestNormalize(t *testing.T) {
	got := Normalize([]Metric{Defined(2), Undefined, Defined(4), Defined(3)})
	assert.Equal(t, []Metric{Defined(0), Undefined, Defined(10), Defined(5)}, got)

	flat := Normalize([]Metric{Defined(7), Defined(7)})
	assert.Equal(t, []Metric{Defined(5), Defined(5)}, flat)

	assert.Empty(t, Normalize(nil))
}

func TestDashboard(t *testing.T) {
	sets := []ScoreSet{
		{Engagement: 0, Relaxation: 0, Focus: Defined(1)},
		{Engagement: 1, Relaxation: -1, Focus: Defined(3)},
		{Engagement: 3, Relaxation: -3, Focus: Undefined},
	}

	d := Dashboard(sets)
	// engagement normalized: 0, 3.333, 10 -> mean 4.44
	assert.Equal(t, Defined(4.44), d.Engagement)
	// relaxation normalized: 10, 6.667, 0 -> mean 5.56
	assert.Equal(t, Defined(5.56), d.Relaxation)
	// focus normalized: 0, 10 -> mean 5 -> inverted 5
	assert.Equal(t, Defined(5), d.Focus)
}

func TestDashboard_NoFocus(t *testing.T) {
	d := Dashboard([]ScoreSet{{Engagement: 1, Relaxation: -1}})
	assert.Equal(t, Defined(5), d.Engagement)
	assert.False(t, d.Focus.IsDefined())
}

func TestMetric(t *testing.T) {
	assert.False(t, Defined(math.Inf(1)).IsDefined())
	assert.False(t, Defined(math.NaN()).IsDefined())
	assert.Equal(t, 9.0, Undefined.Or(9))
	assert.Nil(t, Undefined.Ptr())
	assert.Equal(t, 1.5, *Defined(1.5).Ptr())
	assert.Equal(t, "undefined", Undefined.String())

	b, err := json.Marshal(Means{Engagement: Defined(1.25), Relaxation: Defined(-1.25)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"engagement":1.25,"focus":null,"relaxation":-1.25}`, string(b))

	var m Means
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, Undefined, m.Focus)
	assert.Equal(t, Defined(1.25), m.Engagement)
}
