package dataset_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/dataset"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/schema"
)

func tripSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Field{Name: "VendorId", Kind: model.KindString, Column: 0},
		schema.Field{Name: "TripDistance", Kind: model.KindFloat, Column: 1},
		schema.Field{Name: "FareAmount", Kind: model.KindFloat, Column: 2, Role: schema.RoleLabel},
	)
	require.NoError(t, err)
	return s
}

func TestReadCSV(t *testing.T) {
	data := "vendor_id,trip_distance,fare_amount\nVTS,3.75,15.5\nCMT,1.0,6\n\nDDS,2.5,9.5\n"
	records, err := dataset.ReadCSV(strings.NewReader(data), tripSchema(t), dataset.DefaultCSVOptions())
	require.NoError(t, err)
	require.Len(t, records, 3)

	v, _ := records[1].Text("VendorId")
	assert.Equal(t, "CMT", v)
	assert.Equal(t, 1, records[1].RowIndex())
}

func TestReadCSVSeparatorNoHeader(t *testing.T) {
	data := "VTS;3.75;15.5\nCMT;1.0;6\n"
	opts := dataset.CSVOptions{Separator: ';'}
	records, err := dataset.ReadCSV(strings.NewReader(data), tripSchema(t), opts)
	require.NoError(t, err)
	require.Len(t, records, 2)
	fare, _ := records[0].Float("FareAmount")
	assert.InDelta(t, 15.5, fare, 1e-6)
}

func TestReadCSVReportsRow(t *testing.T) {
	data := "h1,h2,h3\nVTS,3.75,15.5\nCMT,far,6\n"
	_, err := dataset.ReadCSV(strings.NewReader(data), tripSchema(t), dataset.DefaultCSVOptions())
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Row)
	assert.Equal(t, "TripDistance", se.Field)
}

func TestReadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE trips (fareamount REAL, vendorid TEXT, tripdistance REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO trips VALUES (15.5, 'VTS', 3.75), (6, 'CMT', 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	records, err := dataset.ReadSQLite(context.Background(), path, "SELECT * FROM trips ORDER BY rowid", tripSchema(t))
	require.NoError(t, err)
	require.Len(t, records, 2)
	v, _ := records[0].Text("VendorId")
	assert.Equal(t, "VTS", v)
	d, _ := records[1].Float("TripDistance")
	assert.InDelta(t, 1.0, d, 1e-6)
}

func TestReadSQLiteMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE trips (vendorid TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = dataset.ReadSQLite(context.Background(), path, "SELECT * FROM trips", tripSchema(t))
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "TripDistance", se.Field)
}

func makeRecords(n int) []schema.Record {
	out := make([]schema.Record, n)
	for i := range out {
		out[i] = schema.NewRecord(i, map[string]model.Value{"x": model.FloatValue(float64(i))})
	}
	return out
}

func TestTrainTestSplit(t *testing.T) {
	records := makeRecords(100)
	train, test, err := dataset.TrainTestSplit(records, 0.2, 7)
	require.NoError(t, err)
	assert.Len(t, train, 80)
	assert.Len(t, test, 20)

	seen := make(map[int]bool)
	for _, part := range [][]schema.Record{train, test} {
		last := -1
		for _, r := range part {
			assert.Greater(t, r.RowIndex(), last)
			last = r.RowIndex()
			assert.False(t, seen[r.RowIndex()])
			seen[r.RowIndex()] = true
		}
	}
	assert.Len(t, seen, 100)

	train2, test2, err := dataset.TrainTestSplit(records, 0.2, 7)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestPermutationFixedSequence(t *testing.T) {
	assert.Equal(t, []int{6, 0, 3, 1, 9, 7, 2, 5, 8, 4}, dataset.Permutation(10, 42))
	assert.Equal(t, []int{0, 9, 2, 5, 1, 8, 3, 7, 6, 4}, dataset.Permutation(10, 0))
	assert.Equal(t, []int{0, 5, 2, 4, 1, 3}, dataset.Permutation(6, 7))
	assert.Empty(t, dataset.Permutation(0, 1))
}

func TestTrainTestSplitInvalid(t *testing.T) {
	_, _, err := dataset.TrainTestSplit(makeRecords(10), 1.5, 0)
	assert.Error(t, err)
	_, _, err = dataset.TrainTestSplit(makeRecords(1), 0.5, 0)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}
