package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/tabml/backend"
	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/internal/fixture"
	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/pkg/errors"
)

func fitTaxi(t *testing.T) *pipeline.FittedPipeline {
	t.Helper()
	b, err := backend.New("linear", model.TaskRegression, nil)
	require.NoError(t, err)
	fp, err := pipeline.New(fixture.TaxiSchema(), b, fixture.TaxiStages()).
		Fit(context.Background(), fixture.TaxiRecords(60, 1))
	require.NoError(t, err)
	return fp
}

func TestPutGet(t *testing.T) {
	s := Open(t.TempDir())
	fp := fitTaxi(t)

	require.NoError(t, s.Put("TaxiFarePredictionModel", fp))
	assert.True(t, s.Has("TaxiFarePredictionModel"))
	assert.Equal(t, []string{"TaxiFarePredictionModel"}, s.Names())

	loaded, err := s.Get("TaxiFarePredictionModel", backend.DecodeModel)
	require.NoError(t, err)

	rec := fixture.TaxiRecords(1, 99)[0]
	want, err := fp.Predict(rec)
	require.NoError(t, err)
	got, err := loaded.Predict(rec)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Open(dir).Put("a", fitTaxi(t)))

	s := Open(dir)
	assert.True(t, s.Has("a"))
	_, err := s.Get("a", backend.DecodeModel)
	assert.NoError(t, err)
}

func TestMissingAndDelete(t *testing.T) {
	s := Open(t.TempDir())
	_, err := s.Get("nope", backend.DecodeModel)
	var pe *errors.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "get", pe.Op)

	require.NoError(t, s.Put("m", fitTaxi(t)))
	require.NoError(t, s.Delete("m"))
	assert.False(t, s.Has("m"))
	assert.Error(t, s.Delete("m"))
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("taxi-fare_v1.2"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName(".hidden"))
	assert.False(t, ValidName("../escape"))
	assert.False(t, ValidName("a/b"))

	s := Open(t.TempDir())
	assert.Error(t, s.Put("a/b", fitTaxi(t)))
	assert.False(t, s.Has("a/b"))
}
