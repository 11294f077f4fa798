// Package scoring derives cognitive indices from band measurements.
//
//	engagement = mean(Beta, Gamma) - mean(Alpha, Theta)
//	relaxation = -engagement
//	focus      = mean(Theta) / mean(Beta)
//
// where each band mean is taken over the four electrodes and
// mean(X, Y) = (mean(X) + mean(Y)) / 2.
package scoring

import (
	"math"

	"github.com/neurotunes/neurotunes-server/internal/eeg"
)

// Scale is the upper bound of normalized scores.
const Scale = 10.0

// BandMeans holds the per-band electrode means a score set was built from.
type BandMeans struct {
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// ScoreSet is the immutable result of scoring one row.
type ScoreSet struct {
	Engagement float64   `json:"engagement"`
	Focus      Metric    `json:"focus"`
	Relaxation float64   `json:"relaxation"`
	Bands      BandMeans `json:"bands"`
}

// Compute scores a validated row. It is pure and deterministic.
func Compute(row eeg.Row) ScoreSet {
	bands := BandMeans{
		Delta: row.BandMean(eeg.Delta),
		Theta: row.BandMean(eeg.Theta),
		Alpha: row.BandMean(eeg.Alpha),
		Beta:  row.BandMean(eeg.Beta),
		Gamma: row.BandMean(eeg.Gamma),
	}

	engagement := (bands.Beta+bands.Gamma)/2 - (bands.Alpha+bands.Theta)/2

	focus := Undefined
	if bands.Beta != 0 {
		focus = Defined(bands.Theta / bands.Beta)
	}

	return ScoreSet{
		Engagement: engagement,
		Focus:      focus,
		Relaxation: -engagement,
		Bands:      bands,
	}
}

// Means are aggregate index means. Each is undefined when no defined
// values contributed.
type Means struct {
	Engagement Metric `json:"engagement"`
	Focus      Metric `json:"focus"`
	Relaxation Metric `json:"relaxation"`
}

// Aggregate averages each index over its defined values only.
func Aggregate(sets []ScoreSet) Means {
	var eng, rel, foc accumulator
	for _, s := range sets {
		eng.add(Defined(s.Engagement))
		rel.add(Defined(s.Relaxation))
		foc.add(s.Focus)
	}
	return Means{Engagement: eng.mean(), Focus: foc.mean(), Relaxation: rel.mean()}
}

// Normalize min-max scales values into [0, Scale]. Undefined inputs stay
// undefined. A flat or empty set maps every defined value to Scale/2.
func Normalize(values []Metric) []Metric {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range values {
		if v, ok := m.Value(); ok {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	out := make([]Metric, len(values))
	span := hi - lo
	for i, m := range values {
		v, ok := m.Value()
		switch {
		case !ok:
			out[i] = Undefined
		case span == 0 || math.IsInf(span, 0):
			out[i] = Defined(Scale / 2)
		default:
			out[i] = Defined((v - lo) / span * Scale)
		}
	}
	return out
}

// Dashboard returns the 0-10 view of a collection: normalized engagement and
// relaxation means, and the inverted normalized focus mean so that higher
// reads as more focused. Values are rounded to two decimals.
func Dashboard(sets []ScoreSet) Means {
	eng := make([]Metric, len(sets))
	rel := make([]Metric, len(sets))
	foc := make([]Metric, len(sets))
	for i, s := range sets {
		eng[i] = Defined(s.Engagement)
		rel[i] = Defined(s.Relaxation)
		foc[i] = s.Focus
	}

	focus := meanOf(Normalize(foc))
	if v, ok := focus.Value(); ok {
		focus = Defined(Scale - v)
	}
	return Means{
		Engagement: round2(meanOf(Normalize(eng))),
		Focus:      round2(focus),
		Relaxation: round2(meanOf(Normalize(rel))),
	}
}

type accumulator struct {
	sum float64
	n   int
}

func (a *accumulator) add(m Metric) {
	if v, ok := m.Value(); ok {
		a.sum += v
		a.n++
	}
}

func (a *accumulator) mean() Metric {
	if a.n == 0 {
		return Undefined
	}
	return Defined(a.sum / float64(a.n))
}

func meanOf(ms []Metric) Metric {
	var a accumulator
	for _, m := range ms {
		a.add(m)
	}
	return a.mean()
}

func round2(m Metric) Metric {
	v, ok := m.Value()
	if !ok {
		return m
	}
	return Defined(math.Round(v*100) / 100)
}
