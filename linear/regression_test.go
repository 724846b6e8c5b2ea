package linear

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

func TestRegressionRecoversLine(t *testing.T) {
	// y = 2*x0 - 3*x1 + 1
	X := mat.NewDense(6, 2, []float64{
		1, 2,
		2, 1,
		3, 4,
		4, 3,
		5, 0,
		0, 5,
	})
	y := make([]float64, 6)
	for i := range y {
		y[i] = 2*X.At(i, 0) - 3*X.At(i, 1) + 1
	}

	b, err := NewRegression(nil)
	require.NoError(t, err)
	m, err := b.TrainRegression(context.Background(), X, y, 0)
	require.NoError(t, err)

	lm := m.(*RegressionModel)
	assert.InDelta(t, 2, lm.Coefficients[0], 1e-3)
	assert.InDelta(t, -3, lm.Coefficients[1], 1e-3)
	assert.InDelta(t, 1, lm.Intercept, 1e-3)

	got, err := m.Predict([]float64{10, 10})
	require.NoError(t, err)
	assert.InDelta(t, -9, got, 1e-2)
}

func TestRegressionCollinearOneHot(t *testing.T) {
	// two one-hot slots always sum to one, collinear with the intercept
	X := mat.NewDense(4, 2, []float64{1, 0, 0, 1, 1, 0, 0, 1})
	y := []float64{10, 20, 10, 20}

	b, err := NewRegression(model.Hyperparameters{"l2": 1e-3})
	require.NoError(t, err)
	m, err := b.TrainRegression(context.Background(), X, y, 0)
	require.NoError(t, err)

	p, _ := m.Predict([]float64{1, 0})
	assert.InDelta(t, 10, p, 0.1)
	p, _ = m.Predict([]float64{0, 1})
	assert.InDelta(t, 20, p, 0.1)
}

func TestRegressionErrors(t *testing.T) {
	b, err := NewRegression(nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.TrainRegression(ctx, mat.NewDense(2, 1, []float64{1, 2}), []float64{1}, 0)
	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, RegressionName, te.Backend)
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))

	_, err = b.TrainRegression(ctx, mat.NewDense(2, 1, []float64{1, 2}), []float64{1, math.NaN()}, 0)
	assert.True(t, errors.Is(err, errors.ErrDegenerateLabels))

	_, err = NewRegression(model.Hyperparameters{"alpha": 1})
	assert.Error(t, err)
}

func TestRegressionPredictDimension(t *testing.T) {
	m := &RegressionModel{Coefficients: []float64{1, 2}}
	_, err := m.Predict([]float64{1})
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestLogisticSeparable(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{-4, -3, -2, -1, 1, 2, 3, 4})
	y := []bool{false, false, false, false, true, true, true, true}

	b, err := NewLogistic(nil)
	require.NoError(t, err)
	m, err := b.TrainBinary(context.Background(), X, y, 0)
	require.NoError(t, err)

	for i, want := range y {
		label, score, err := m.Predict([]float64{X.At(i, 0)})
		require.NoError(t, err)
		assert.Equal(t, want, label)
		assert.Equal(t, score >= 0.5, label)
		assert.True(t, score > 0 && score < 1)
	}
}

func TestLogisticDegenerateLabels(t *testing.T) {
	b, err := NewLogistic(nil)
	require.NoError(t, err)
	_, err = b.TrainBinary(context.Background(), mat.NewDense(2, 1, []float64{1, 2}), []bool{true, true}, 0)
	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, errors.ErrDegenerateLabels))
}

func TestStableSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, stableSigmoid(0), 1e-15)
	assert.InDelta(t, 1, stableSigmoid(800), 1e-15)
	assert.InDelta(t, 0, stableSigmoid(-800), 1e-15)
	assert.False(t, math.IsNaN(stableSigmoid(-800)))
}
