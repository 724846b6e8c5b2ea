// Package tree provides the FastTree gradient-boosted regression tree
// backend.
//
// Trees are grown leaf-wise: at every step the leaf whose best split gains
// the most is split, until the leaf budget is used or no split satisfies the
// minimum examples per leaf. Split search runs over per-feature histograms
// of pre-binned feature values. Regression minimises squared loss; binary
// classification minimises logistic loss with Newton leaf values, and its
// score is the sigmoid of the ensemble output.
//
// Parameters (names as accepted in configuration):
//
//	leaves          maximum leaves per tree (default 20)
//	trees           number of boosting rounds (default 100)
//	min_per_leaf    minimum training examples in a leaf (default 10)
//	learning_rate   shrinkage applied to every leaf value (default 0.2)
//	subsample       fraction of rows drawn per tree, seeded (default 1)
//	lambda_l2       L2 penalty on leaf values (default 0)
//	max_bins        histogram bins per feature (default 255)
package tree

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
)

// Backend and model kind names.
const (
	Name           = "fasttree"
	RegressionKind = "fasttree_regression"
	BinaryKind     = "fasttree_binary"
)

// Params are the boosting hyperparameters.
type Params struct {
	NumLeaves     int     `json:"num_leaves"`
	NumTrees      int     `json:"num_trees"`
	MinDataInLeaf int     `json:"min_data_in_leaf"`
	LearningRate  float64 `json:"learning_rate"`
	Subsample     float64 `json:"subsample"`
	LambdaL2      float64 `json:"lambda_l2"`
	MaxBins       int     `json:"max_bins"`
}

// DefaultParams returns the FastTree defaults.
func DefaultParams() Params {
	return Params{
		NumLeaves:     20,
		NumTrees:      100,
		MinDataInLeaf: 10,
		LearningRate:  0.2,
		Subsample:     1,
		MaxBins:       255,
	}
}

// ParseParams reads Params from a hyperparameter bag, starting from the
// defaults.
func ParseParams(h model.Hyperparameters) (Params, error) {
	p := DefaultParams()
	if unknown := h.Unknown("leaves", "trees", "min_per_leaf", "learning_rate", "subsample", "lambda_l2", "max_bins"); len(unknown) > 0 {
		return p, errors.NewValidationError(unknown[0], "unknown fasttree parameter", h[unknown[0]])
	}
	var err error
	if p.NumLeaves, err = h.Int("leaves", p.NumLeaves); err != nil {
		return p, err
	}
	if p.NumTrees, err = h.Int("trees", p.NumTrees); err != nil {
		return p, err
	}
	if p.MinDataInLeaf, err = h.Int("min_per_leaf", p.MinDataInLeaf); err != nil {
		return p, err
	}
	if p.LearningRate, err = h.Float("learning_rate", p.LearningRate); err != nil {
		return p, err
	}
	if p.Subsample, err = h.Float("subsample", p.Subsample); err != nil {
		return p, err
	}
	if p.LambdaL2, err = h.Float("lambda_l2", p.LambdaL2); err != nil {
		return p, err
	}
	if p.MaxBins, err = h.Int("max_bins", p.MaxBins); err != nil {
		return p, err
	}
	return p, p.Validate()
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.NumLeaves < 2:
		return errors.NewValidationError("leaves", "must be at least 2", p.NumLeaves)
	case p.NumTrees < 1:
		return errors.NewValidationError("trees", "must be positive", p.NumTrees)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_per_leaf", "must be positive", p.MinDataInLeaf)
	case !(p.LearningRate > 0):
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case !(p.Subsample > 0 && p.Subsample <= 1):
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	case p.LambdaL2 < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.LambdaL2)
	case p.MaxBins < 2 || p.MaxBins > math.MaxUint16:
		return errors.NewValidationError("max_bins", "must be in [2, 65535]", p.MaxBins)
	}
	return nil
}

// FastTree is the boosted tree backend for one task.
type FastTree struct {
	params Params
	task   model.Task
	logger log.Logger
}

// New creates a FastTree backend.
func New(task model.Task, params Params) (*FastTree, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if task != model.TaskRegression && task != model.TaskBinaryClassification {
		return nil, errors.NewValidationError("task", "unsupported task", task.String())
	}
	return &FastTree{
		params: params,
		task:   task,
		logger: log.GetLoggerWithName("tree").With(log.ModelNameKey, "FastTree"),
	}, nil
}

func (t *FastTree) Name() string     { return Name }
func (t *FastTree) Task() model.Task { return t.task }

// Params returns the hyperparameters.
func (t *FastTree) Params() Params { return t.params }

// TrainRegression boosts trees on squared loss. The ensemble starts from
// the label mean.
func (t *FastTree) TrainRegression(ctx context.Context, X mat.Matrix, y []float64, seed uint64) (_ model.RegressionModel, err error) {
	defer errors.Recover(&err, "FastTree.TrainRegression")
	n, c := X.Dims()
	if err := checkShape(n, c, len(y)); err != nil {
		return nil, err
	}
	mean := 0.0
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewTrainingError(Name, "labels must be finite", errors.ErrDegenerateLabels)
		}
		mean += v
	}
	mean /= float64(n)

	ens, err := t.boost(ctx, X, mean, seed, func(score []float64, grad, hess []float64) {
		for i := range score {
			grad[i] = score[i] - y[i]
			hess[i] = 1
		}
	})
	if err != nil {
		return nil, err
	}
	return &RegressionModel{Ensemble: *ens}, nil
}

// TrainBinary boosts trees on logistic loss. The ensemble starts from the
// prior log-odds of the positive class.
func (t *FastTree) TrainBinary(ctx context.Context, X mat.Matrix, y []bool, seed uint64) (_ model.BinaryModel, err error) {
	defer errors.Recover(&err, "FastTree.TrainBinary")
	n, c := X.Dims()
	if err := checkShape(n, c, len(y)); err != nil {
		return nil, err
	}
	target := make([]float64, n)
	pos := 0
	for i, v := range y {
		if v {
			target[i] = 1
			pos++
		}
	}
	if pos == 0 || pos == n {
		return nil, errors.NewTrainingError(Name, "labels contain a single class", errors.ErrDegenerateLabels)
	}
	prior := math.Log(float64(pos) / float64(n-pos))

	ens, err := t.boost(ctx, X, prior, seed, func(score []float64, grad, hess []float64) {
		for i := range score {
			p := sigmoid(score[i])
			grad[i] = p - target[i]
			hess[i] = math.Max(p*(1-p), 1e-16)
		}
	})
	if err != nil {
		return nil, err
	}
	return &BinaryModel{Ensemble: *ens}, nil
}

func checkShape(n, c, labels int) error {
	if n == 0 || c == 0 {
		return errors.NewTrainingError(Name, "no training data", errors.ErrEmptyData)
	}
	if labels != n {
		return errors.NewTrainingError(Name, "feature and label counts differ",
			errors.NewDimensionError("FastTree.Train", n, labels, 0))
	}
	return nil
}

type gradFunc func(score, grad, hess []float64)

func (t *FastTree) boost(ctx context.Context, X mat.Matrix, base float64, seed uint64, gradients gradFunc) (*Ensemble, error) {
	start := time.Now()
	n, c := X.Dims()
	t.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, c,
		"trees", t.params.NumTrees,
		"leaves", t.params.NumLeaves,
	)

	xd := mat.DenseCopyOf(X)
	bn := newBinner(xd, t.params.MaxBins)
	bins := bn.binAll(xd)

	score := make([]float64, n)
	for i := range score {
		score[i] = base
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	g := &grower{params: t.params, bn: bn, bins: bins, grad: grad, hess: hess}

	ens := &Ensemble{Init: base, Features: c, Trees: make([]Tree, 0, t.params.NumTrees)}
	for it := 0; it < t.params.NumTrees; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gradients(score, grad, hess)
		rows := sampleRows(n, t.params.Subsample, rng)
		tr := g.grow(rows)
		ens.Trees = append(ens.Trees, tr)
		for i := 0; i < n; i++ {
			score[i] += tr.Predict(xd.RawRowView(i))
		}
		if (it+1)%50 == 0 {
			t.logger.Debug("Boosting progress", "tree", it+1, "leaves", tr.NumLeaves())
		}
	}

	t.logger.Info("Training completed",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		"trees", len(ens.Trees),
	)
	return ens, nil
}

// sampleRows draws round(fraction*n) distinct rows, at least one, in
// ascending order. fraction 1 returns every row.
func sampleRows(n int, fraction float64, rng *rand.Rand) []int {
	if fraction >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := int(math.Round(fraction * float64(n)))
	if k < 1 {
		k = 1
	}
	keep := make([]bool, n)
	for _, i := range rng.Perm(n)[:k] {
		keep[i] = true
	}
	rows := make([]int, 0, k)
	for i, ok := range keep {
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}
