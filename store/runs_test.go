package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/tabml/metrics"
	"github.com/ezoic/tabml/pkg/errors"
)

func openRuns(t *testing.T) *Runs {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRecordAndGet(t *testing.T) {
	r := openRuns(t)
	ctx := context.Background()

	report := &metrics.RegressionReport{RSquared: 0.9, RMSE: 1.5, MSE: 2.25, MAE: 1, Count: 40}
	run := NewRun(KindEvaluate, "fasttree", "test.csv", 1<<63+5, report)
	id, err := r.Record(ctx, run)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "regression", got.Task)
	assert.Equal(t, uint64(1<<63+5), got.Seed)
	assert.Equal(t, 40, got.Samples)
	assert.Equal(t, report.Metrics(), got.Metrics)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestGetMissing(t *testing.T) {
	r := openRuns(t)
	_, err := r.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestListNewestFirst(t *testing.T) {
	r := openRuns(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	report := &metrics.BinaryClassificationReport{Accuracy: 0.8}
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run := NewRun(KindCrossValidate, "logistic", "fraud.csv", 0, report)
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		id, err := r.Record(ctx, run)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := r.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)
	assert.Equal(t, "binary", all[0].Task)
	assert.Len(t, all[0].Metrics, len(report.Metrics()))

	two, err := r.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestDuplicateIDRollsBack(t *testing.T) {
	r := openRuns(t)
	ctx := context.Background()
	report := &metrics.RegressionReport{}
	run := NewRun(KindEvaluate, "linear", "a.csv", 0, report)
	run.ID = uuid.New()

	_, err := r.Record(ctx, run)
	require.NoError(t, err)
	_, err = r.Record(ctx, run)
	assert.Error(t, err)

	all, err := r.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
