// Package linear provides linear model backends.
//
//   - Regression: least squares with a small ridge penalty, solved through
//     the normal equations with a Cholesky factorisation
//   - Logistic: L2-regularised logistic regression fitted with L-BFGS
//
// Both satisfy the core/model backend contracts and are deterministic: the
// seed is accepted but unused.
//
// Example usage:
//
//	b, err := linear.NewRegression(model.Hyperparameters{"l2": 1e-4})
//	m, err := b.TrainRegression(ctx, X, y, 0)
//	estimate, err := m.Predict(x)
package linear

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/core/parallel"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
)

// Backend and model kind names.
const (
	RegressionName = "linear"
	LogisticName   = "logistic"
)

// Rows at or above this count build the design matrix concurrently.
const parallelThreshold = 1000

// Regression is the least-squares regression backend.
type Regression struct {
	// L2 is the ridge penalty added to the diagonal of X^T X. It keeps the
	// system solvable when one-hot segments make columns collinear with the
	// intercept. The intercept is not penalised.
	L2     float64
	logger log.Logger
}

// NewRegression creates a Regression backend from params ("l2").
func NewRegression(params model.Hyperparameters) (*Regression, error) {
	if unknown := params.Unknown("l2"); len(unknown) > 0 {
		return nil, errors.NewValidationError(unknown[0], "unknown linear parameter", params[unknown[0]])
	}
	l2, err := params.Float("l2", 1e-6)
	if err != nil {
		return nil, err
	}
	if l2 < 0 {
		return nil, errors.NewValidationError("l2", "must be non-negative", l2)
	}
	return &Regression{
		L2:     l2,
		logger: log.GetLoggerWithName("linear").With(log.ModelNameKey, "Regression"),
	}, nil
}

func (r *Regression) Name() string     { return RegressionName }
func (r *Regression) Task() model.Task { return model.TaskRegression }

// TrainRegression fits coefficients and intercept.
//
// Errors:
//   - *errors.TrainingError wrapping ErrEmptyData when X has no rows
//   - *errors.TrainingError wrapping ErrDimensionMismatch when len(y) differs from the row count
//   - *errors.TrainingError wrapping ErrDegenerateLabels when a label is not finite
//   - *errors.TrainingError wrapping ErrSingularMatrix when the system cannot be solved
func (r *Regression) TrainRegression(ctx context.Context, X mat.Matrix, y []float64, _ uint64) (_ model.RegressionModel, err error) {
	defer errors.Recover(&err, "Regression.TrainRegression")
	start := time.Now()

	n, c := X.Dims()
	if err := checkShape(RegressionName, n, c, len(y)); err != nil {
		return nil, err
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewTrainingError(RegressionName, "labels must be finite", errors.ErrDegenerateLabels)
		}
	}
	r.logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, c,
	)

	// Column 0 of the design matrix is the intercept.
	A := mat.NewDense(n, c+1, nil)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			A.Set(i, 0, 1)
			for j := 0; j < c; j++ {
				A.Set(i, j+1, X.At(i, j))
			}
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ata mat.SymDense
	ata.SymOuterK(1, A.T())
	for j := 1; j <= c; j++ {
		ata.SetSym(j, j, ata.At(j, j)+r.L2*float64(n))
	}

	var aty mat.VecDense
	aty.MulVec(A.T(), mat.NewVecDense(n, append([]float64(nil), y...)))

	var chol mat.Cholesky
	if ok := chol.Factorize(&ata); !ok {
		return nil, errors.NewTrainingError(RegressionName, "normal equations are not positive definite", errors.ErrSingularMatrix)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &aty); err != nil {
		return nil, errors.NewTrainingError(RegressionName, "solve normal equations", errors.ErrSingularMatrix)
	}

	m := &RegressionModel{Intercept: w.AtVec(0), Coefficients: make([]float64, c)}
	for j := 0; j < c; j++ {
		m.Coefficients[j] = w.AtVec(j + 1)
	}

	r.logger.Debug("Training completed",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.SamplesKey, n,
	)
	return m, nil
}

func checkShape(backend string, n, c, labels int) error {
	if n == 0 || c == 0 {
		return errors.NewTrainingError(backend, "no training data", errors.ErrEmptyData)
	}
	if labels != n {
		return errors.NewTrainingError(backend, "feature and label counts differ",
			errors.NewDimensionError(backend+".Train", n, labels, 0))
	}
	return nil
}

// RegressionModel is a fitted linear regression.
type RegressionModel struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func (m *RegressionModel) Kind() string        { return RegressionName }
func (m *RegressionModel) NumFeatures() int    { return len(m.Coefficients) }
func (m *RegressionModel) Params() interface{} { return m }

// Predict returns intercept + coefficients · x.
func (m *RegressionModel) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, errors.NewDimensionError("RegressionModel.Predict", len(m.Coefficients), len(x), 1)
	}
	return m.Intercept + dot(m.Coefficients, x), nil
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
