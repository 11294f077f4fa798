// Package classifier wraps the pre-trained genre model behind a narrow
// interface: a feature vector goes in, a genre and confidence come out.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/neurotunes/neurotunes-server/internal/genre"
)

// ErrInvalidOutput is returned when a model produces a class or probability
// outside the contract.
var ErrInvalidOutput = errors.New("model returned invalid output")

// Output is a raw model result.
type Output struct {
	// Class is the predicted label, 1-5.
	Class int
	// Probabilities maps class label to probability. Nil when the model
	// does not estimate probabilities.
	Probabilities map[int]float64
}

// Model is an opaque pre-trained classifier. Implementations must be safe
// for concurrent Predict calls.
type Model interface {
	Predict(features []float64) (Output, error)
	// FeatureNames lists the training column order. Nil means canonical order.
	FeatureNames() []string
}

// Probability is one entry of a prediction's class distribution.
type Probability struct {
	Genre       genre.Genre `json:"genre"`
	Probability float64     `json:"probability"`
}

// Prediction is the shaped result for one row.
type Prediction struct {
	Genre      genre.Genre `json:"genre"`
	Confidence float64     `json:"confidence"`
	// Probabilities is in canonical genre order; empty when the model gives none.
	Probabilities []Probability `json:"probabilities,omitempty"`
}

// Probability returns the estimated probability for g, or 0.
func (p Prediction) Probability(g genre.Genre) float64 {
	for _, pr := range p.Probabilities {
		if pr.Genre == g {
			return pr.Probability
		}
	}
	return 0
}

func shape(out Output) (Prediction, error) {
	g, err := genre.FromLabel(out.Class)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(out.Probabilities) == 0 {
		return Prediction{Genre: g, Confidence: 1}, nil
	}

	p := Prediction{Genre: g}
	for _, cand := range genre.All {
		v, ok := out.Probabilities[cand.Label()]
		if !ok {
			continue
		}
		if math.IsNaN(v) || v < 0 || v > 1 {
			return Prediction{}, fmt.Errorf("%w: probability %v for class %d", ErrInvalidOutput, v, cand.Label())
		}
		p.Probabilities = append(p.Probabilities, Probability{Genre: cand, Probability: v})
		p.Confidence = math.Max(p.Confidence, v)
	}
	if len(p.Probabilities) != len(out.Probabilities) {
		return Prediction{}, fmt.Errorf("%w: probability for unknown class", ErrInvalidOutput)
	}
	return p, nil
}
