package evaluation

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/tabml/backend"
	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/internal/fixture"
	"github.com/ezoic/tabml/metrics"
	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
	"github.com/ezoic/tabml/schema"
)

func taxiPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	b, err := backend.New("linear", model.TaskRegression, nil)
	require.NoError(t, err)
	return pipeline.New(fixture.TaxiSchema(), b, fixture.TaxiStages(), pipeline.WithLogger(log.NewNopLogger()))
}

func TestFoldsPartition(t *testing.T) {
	folds, err := Folds(100, 5, 42)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := make(map[int]bool)
	for _, f := range folds {
		assert.Len(t, f, 20)
		for _, i := range f {
			assert.False(t, seen[i], "index %d in two folds", i)
			seen[i] = true
		}
	}
	assert.Len(t, seen, 100)

	again, err := Folds(100, 5, 42)
	require.NoError(t, err)
	assert.Equal(t, folds, again)
}

func TestFoldsUneven(t *testing.T) {
	folds, err := Folds(103, 5, 1)
	require.NoError(t, err)
	lo, hi := len(folds[0]), len(folds[0])
	total := 0
	for _, f := range folds {
		lo, hi = min(lo, len(f)), max(hi, len(f))
		total += len(f)
	}
	assert.LessOrEqual(t, hi-lo, 1)
	assert.Equal(t, 103, total)
}

// The fold layout is pinned so it stays reproducible outside this module.
func TestFoldsFixedLayout(t *testing.T) {
	folds, err := Folds(10, 3, 42)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2, 4, 6}, {0, 5, 9}, {3, 7, 8}}, folds)
}

func TestFoldsInvalid(t *testing.T) {
	_, err := Folds(10, 1, 0)
	assert.Error(t, err)
	_, err = Folds(3, 5, 0)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestEvaluateExactPredictions(t *testing.T) {
	records := fixture.TaxiRecords(200, 1)
	fp, err := taxiPipeline(t).Fit(context.Background(), records)
	require.NoError(t, err)

	r, err := Evaluate(fp, records)
	require.NoError(t, err)
	rr := r.(*metrics.RegressionReport)
	assert.InDelta(t, 1.0, rr.RSquared, 1e-3)
	assert.Equal(t, 200, rr.Samples())
}

func TestEvaluateRMSEContribution(t *testing.T) {
	records := fixture.TaxiRecords(100, 2)
	fp, err := taxiPipeline(t).Fit(context.Background(), records)
	require.NoError(t, err)

	rec, err := fixture.TaxiSchema().Validate([]string{"VTS", "1", "1", "3.75", "CRD", "15.5"}, 0)
	require.NoError(t, err)
	pred, err := fp.Predict(rec)
	require.NoError(t, err)

	r, err := Evaluate(fp, records[:1])
	require.NoError(t, err)
	base := r.(*metrics.RegressionReport)

	pair, err := Evaluate(fp, append(records[:1:1], rec))
	require.NoError(t, err)
	got := pair.(*metrics.RegressionReport)

	d := 15.5 - pred.Score
	assert.InDelta(t, (base.MSE+d*d)/2, got.MSE, 1e-9)
}

func TestEvaluateMissingLabel(t *testing.T) {
	fp, err := taxiPipeline(t).Fit(context.Background(), fixture.TaxiRecords(50, 3))
	require.NoError(t, err)

	rec, err := fixture.TaxiSchema().ValidateMap(map[string]string{
		"VendorId": "VTS", "RateCode": "1", "PassengerCount": "1",
		"TripDistance": "1", "PaymentType": "CRD",
	})
	require.NoError(t, err)
	_, err = Evaluate(fp, []schema.Record{rec})
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestEvaluateBinary(t *testing.T) {
	b, err := backend.New("fasttree", model.TaskBinaryClassification,
		model.Hyperparameters{"trees": 20, "leaves": 4, "min_per_leaf": 5})
	require.NoError(t, err)
	p := pipeline.New(fixture.FraudSchema(), b, fixture.FraudStages(), pipeline.WithLabelColumn("Class"))
	records := fixture.FraudRecords(300, 4)
	fp, err := p.Fit(context.Background(), records)
	require.NoError(t, err)

	r, err := Evaluate(fp, records)
	require.NoError(t, err)
	br := r.(*metrics.BinaryClassificationReport)
	assert.Greater(t, br.Accuracy, 0.95)
	assert.Greater(t, br.AUC, 0.95)
	assert.Equal(t, 300, br.Confusion.Total())
}

func TestCrossValidate(t *testing.T) {
	records := fixture.TaxiRecords(100, 5)
	var done atomic.Int32
	res, err := CrossValidate(context.Background(), taxiPipeline(t), records, 5, 7,
		WithWorkers(3),
		WithCVLogger(log.NewNopLogger()),
		OnFoldDone(func(FoldResult) { done.Add(1) }),
	)
	require.NoError(t, err)
	require.Len(t, res.Folds, 5)
	assert.EqualValues(t, 5, done.Load())

	for i, f := range res.Folds {
		assert.Equal(t, i, f.Fold)
		assert.Equal(t, 20, f.Test)
		assert.Equal(t, 80, f.Train)
	}
	mean := res.Mean.(*metrics.RegressionReport)
	assert.Greater(t, mean.RSquared, 0.99)
	assert.Equal(t, 100, mean.Count)
}

func TestCrossValidateDeterministic(t *testing.T) {
	records := fixture.TaxiRecords(60, 6)
	a, err := CrossValidate(context.Background(), taxiPipeline(t), records, 3, 1, WithWorkers(3))
	require.NoError(t, err)
	b, err := CrossValidate(context.Background(), taxiPipeline(t), records, 3, 1, WithWorkers(1))
	require.NoError(t, err)
	for i := range a.Folds {
		assert.Equal(t, a.Folds[i].Report, b.Folds[i].Report)
	}
}

func TestCrossValidateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CrossValidate(ctx, taxiPipeline(t), fixture.TaxiRecords(50, 1), 5, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrossValidateStructuralError(t *testing.T) {
	b, err := backend.New("linear", model.TaskRegression, nil)
	require.NoError(t, err)
	p := pipeline.New(fixture.TaxiSchema(), b, fixture.TaxiStages(), pipeline.WithFeatureColumn("Nope"))
	_, err = CrossValidate(context.Background(), p, fixture.TaxiRecords(20, 1), 2, 0)
	var ufe *errors.UnknownFieldError
	assert.True(t, errors.As(err, &ufe))
}
