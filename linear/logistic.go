package linear

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
)

const epsilonSmall = 1e-15

// Logistic is the L2-regularised binary logistic regression backend.
type Logistic struct {
	L2      float64
	MaxIter int
	Tol     float64
	logger  log.Logger
}

// NewLogistic creates a Logistic backend from params ("l2", "max_iter", "tol").
func NewLogistic(params model.Hyperparameters) (*Logistic, error) {
	if unknown := params.Unknown("l2", "max_iter", "tol"); len(unknown) > 0 {
		return nil, errors.NewValidationError(unknown[0], "unknown logistic parameter", params[unknown[0]])
	}
	l2, err := params.Float("l2", 1e-4)
	if err != nil {
		return nil, err
	}
	maxIter, err := params.Int("max_iter", 200)
	if err != nil {
		return nil, err
	}
	tol, err := params.Float("tol", 1e-6)
	if err != nil {
		return nil, err
	}
	if l2 < 0 {
		return nil, errors.NewValidationError("l2", "must be non-negative", l2)
	}
	if maxIter < 1 {
		return nil, errors.NewValidationError("max_iter", "must be positive", maxIter)
	}
	return &Logistic{
		L2:      l2,
		MaxIter: maxIter,
		Tol:     tol,
		logger:  log.GetLoggerWithName("linear").With(log.ModelNameKey, "Logistic"),
	}, nil
}

func (l *Logistic) Name() string     { return LogisticName }
func (l *Logistic) Task() model.Task { return model.TaskBinaryClassification }

// TrainBinary minimises mean log-loss plus 0.5*L2*||w||^2 with L-BFGS.
// Labels containing a single class are rejected with ErrDegenerateLabels.
func (l *Logistic) TrainBinary(ctx context.Context, X mat.Matrix, y []bool, _ uint64) (_ model.BinaryModel, err error) {
	defer errors.Recover(&err, "Logistic.TrainBinary")
	start := time.Now()

	n, c := X.Dims()
	if err := checkShape(LogisticName, n, c, len(y)); err != nil {
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
		return nil, errors.NewTrainingError(LogisticName, "labels contain a single class", errors.ErrDegenerateLabels)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	xD := mat.DenseCopyOf(X)
	invN := 1.0 / float64(n)
	lambda := l.L2

	prob := optimize.Problem{
		Func: func(theta []float64) float64 {
			w, b := theta[:c], theta[c]
			loss := 0.0
			for i := 0; i < n; i++ {
				p := clampProbability(stableSigmoid(b + dot(w, xD.RawRowView(i))))
				loss -= target[i]*math.Log(p) + (1-target[i])*math.Log(1-p)
			}
			loss *= invN
			if lambda > 0 {
				loss += 0.5 * lambda * dot(w, w)
			}
			return loss
		},
		Grad: func(grad, theta []float64) {
			w, b := theta[:c], theta[c]
			for j := range grad {
				grad[j] = 0
			}
			for i := 0; i < n; i++ {
				row := xD.RawRowView(i)
				diff := stableSigmoid(b+dot(w, row)) - target[i]
				for j, x := range row {
					grad[j] += diff * x
				}
				grad[c] += diff
			}
			for j := range grad {
				grad[j] *= invN
			}
			for j := 0; j < c; j++ {
				grad[j] += lambda * w[j]
			}
		},
	}

	settings := optimize.Settings{
		GradientThreshold: l.Tol,
		MajorIterations:   l.MaxIter,
	}
	result, err := optimize.Minimize(prob, make([]float64, c+1), &settings, &optimize.LBFGS{})
	if err != nil && result == nil {
		return nil, errors.NewTrainingError(LogisticName, "lbfgs optimization failed", err)
	}

	m := &LogisticModel{
		Coefficients: append([]float64(nil), result.X[:c]...),
		Intercept:    result.X[c],
	}
	l.logger.Debug("Training completed",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.SamplesKey, n,
		"iterations", result.Stats.MajorIterations,
	)
	return m, nil
}

func stableSigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

func clampProbability(p float64) float64 {
	return math.Min(math.Max(p, epsilonSmall), 1-epsilonSmall)
}

// LogisticModel is a fitted logistic regression.
type LogisticModel struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func (m *LogisticModel) Kind() string        { return LogisticName }
func (m *LogisticModel) NumFeatures() int    { return len(m.Coefficients) }
func (m *LogisticModel) Params() interface{} { return m }

// Predict returns the positive-class probability and whether it is >= 0.5.
func (m *LogisticModel) Predict(x []float64) (bool, float64, error) {
	if len(x) != len(m.Coefficients) {
		return false, 0, errors.NewDimensionError("LogisticModel.Predict", len(m.Coefficients), len(x), 1)
	}
	p := stableSigmoid(m.Intercept + dot(m.Coefficients, x))
	return p >= 0.5, p, nil
}
