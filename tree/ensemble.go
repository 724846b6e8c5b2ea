package tree

import (
	"math"

	"github.com/ezoic/tabml/pkg/errors"
)

// Tree is one regression tree in flat form. Internal node i tests
// x[Feature[i]] <= Threshold[i] and continues at Left[i] or Right[i]; a
// negative child c refers to leaf ^c. A tree with no internal nodes is a
// single leaf.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	LeafValue []float64 `json:"leaf_value"`
}

// NumLeaves returns the leaf count.
func (t *Tree) NumLeaves() int { return len(t.LeafValue) }

// Predict returns the leaf value x falls into. NaN values go left.
func (t *Tree) Predict(x []float64) float64 {
	if len(t.Feature) == 0 {
		return t.LeafValue[0]
	}
	node := 0
	for {
		v := x[t.Feature[node]]
		next := t.Right[node]
		if v <= t.Threshold[node] || math.IsNaN(v) {
			next = t.Left[node]
		}
		if next < 0 {
			return t.LeafValue[^next]
		}
		node = next
	}
}

// Ensemble is an additive tree model: raw = Init + sum of tree outputs.
// Leaf values already include the learning rate.
type Ensemble struct {
	Init     float64 `json:"init"`
	Trees    []Tree  `json:"trees"`
	Features int     `json:"features"`
}

// Raw returns the untransformed ensemble output for x.
func (e *Ensemble) Raw(x []float64) (float64, error) {
	if len(x) != e.Features {
		return 0, errors.NewDimensionError("Ensemble.Predict", e.Features, len(x), 1)
	}
	s := e.Init
	for i := range e.Trees {
		s += e.Trees[i].Predict(x)
	}
	return s, nil
}

// FeatureSplits counts how many internal nodes split on each feature.
func (e *Ensemble) FeatureSplits() []int {
	out := make([]int, e.Features)
	for _, t := range e.Trees {
		for _, f := range t.Feature {
			out[f]++
		}
	}
	return out
}

// RegressionModel is a boosted ensemble trained with squared loss.
type RegressionModel struct {
	Ensemble
}

func (m *RegressionModel) Kind() string        { return RegressionKind }
func (m *RegressionModel) NumFeatures() int    { return m.Features }
func (m *RegressionModel) Params() interface{} { return &m.Ensemble }

// Predict returns the ensemble estimate.
func (m *RegressionModel) Predict(x []float64) (float64, error) {
	return m.Raw(x)
}

// BinaryModel is a boosted ensemble trained with logistic loss. Its raw
// output is a log-odds.
type BinaryModel struct {
	Ensemble
}

func (m *BinaryModel) Kind() string        { return BinaryKind }
func (m *BinaryModel) NumFeatures() int    { return m.Features }
func (m *BinaryModel) Params() interface{} { return &m.Ensemble }

// Predict returns sigmoid(raw) and whether it is >= 0.5.
func (m *BinaryModel) Predict(x []float64) (bool, float64, error) {
	raw, err := m.Raw(x)
	if err != nil {
		return false, 0, err
	}
	p := sigmoid(raw)
	return p >= 0.5, p, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}
