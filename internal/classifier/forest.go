package classifier

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"os"

	"github.com/neurotunes/neurotunes-server/internal/genre"
)

// FormatRandomForest identifies the exported forest artifact.
const FormatRandomForest = "random_forest"

// Node is one node of an exported decision tree. Leaves have Left == -1 and
// carry per-class sample counts in Value, aligned with Forest.Classes.
// Samples go left when features[Feature] <= Threshold.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flattened decision tree rooted at node 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a random forest exported from the training pipeline. Prediction
// averages each tree's normalized leaf distribution and picks the first
// class with the highest mean probability.
type Forest struct {
	Format   string   `json:"format"`
	Features []string `json:"feature_names"`
	Classes  []int    `json:"classes"`
	Trees    []Tree   `json:"trees"`
}

// LoadForest reads and validates a forest artifact.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- operator-supplied model path
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the artifact's structure: node references move strictly
// forward, so walking a tree always terminates.
func (f *Forest) Validate() error {
	if f.Format != FormatRandomForest {
		return fmt.Errorf("unsupported model format %q", f.Format)
	}
	if len(f.Classes) == 0 {
		return errors.New("model has no classes")
	}
	seen := make(map[int]bool, len(f.Classes))
	for _, c := range f.Classes {
		if _, err := genre.FromLabel(c); err != nil {
			return fmt.Errorf("model class: %w", err)
		}
		if seen[c] {
			return fmt.Errorf("model class %d listed twice", c)
		}
		seen[c] = true
	}
	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}

	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for i, n := range tree.Nodes {
			if n.Left == -1 {
				if len(n.Value) != len(f.Classes) {
					return fmt.Errorf("tree %d leaf %d has %d values, want %d", t, i, len(n.Value), len(f.Classes))
				}
				var total float64
				for _, v := range n.Value {
					if v < 0 {
						return fmt.Errorf("tree %d leaf %d has a negative count", t, i)
					}
					total += v
				}
				if total == 0 {
					return fmt.Errorf("tree %d leaf %d is empty", t, i)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= len(f.Features) {
				return fmt.Errorf("tree %d node %d splits on unknown feature %d", t, i, n.Feature)
			}
			if n.Left <= i || n.Right <= i || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children", t, i)
			}
		}
	}
	return nil
}

// FeatureNames returns the training column order.
func (f *Forest) FeatureNames() []string {
	return f.Features
}

// Predict implements Model.
func (f *Forest) Predict(features []float64) (Output, error) {
	if len(features) != len(f.Features) {
		return Output{}, fmt.Errorf("got %d features, model expects %d", len(features), len(f.Features))
	}

	sums := make([]float64, len(f.Classes))
	for _, tree := range f.Trees {
		leaf := tree.leaf(features)
		var total float64
		for _, v := range leaf.Value {
			total += v
		}
		for c, v := range leaf.Value {
			sums[c] += v / total
		}
	}

	best := 0
	probs := make(map[int]float64, len(f.Classes))
	for c, s := range sums {
		p := s / float64(len(f.Trees))
		probs[f.Classes[c]] = p
		if s > sums[best] {
			best = c
		}
	}
	return Output{Class: f.Classes[best], Probabilities: probs}, nil
}

func (t Tree) leaf(features []float64) Node {
	n := t.Nodes[0]
	for n.Left != -1 {
		if features[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n
}
