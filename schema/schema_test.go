package schema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/schema"
)

func taxiSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Field{Name: "VendorId", Kind: model.KindString, Column: 0},
		schema.Field{Name: "RateCode", Kind: model.KindString, Column: 1},
		schema.Field{Name: "PassengerCount", Kind: model.KindFloat, Column: 2},
		schema.Field{Name: "TripTime", Kind: model.KindFloat, Column: 3, Role: schema.RoleIgnore},
		schema.Field{Name: "TripDistance", Kind: model.KindFloat, Column: 4},
		schema.Field{Name: "PaymentType", Kind: model.KindString, Column: 5},
		schema.Field{Name: "FareAmount", Kind: model.KindFloat, Column: 6, Role: schema.RoleLabel},
	)
	require.NoError(t, err)
	return s
}

func TestValidateRow(t *testing.T) {
	s := taxiSchema(t)
	rec, err := s.Validate([]string{"VTS", "1", "1", "1140", "3.75", "CRD", "15.5"}, 0)
	require.NoError(t, err)

	vendor, ok := rec.Text("VendorId")
	require.True(t, ok)
	assert.Equal(t, "VTS", vendor)

	dist, ok := rec.Float("TripDistance")
	require.True(t, ok)
	assert.InDelta(t, 3.75, dist, 1e-6)

	_, ok = rec.Float("VendorId")
	assert.False(t, ok)
	assert.Equal(t, 0, rec.RowIndex())
	assert.Equal(t, 7, rec.Len())
}

func TestValidateFloat32Precision(t *testing.T) {
	s := taxiSchema(t)
	rec, err := s.Validate([]string{"VTS", "1", "1", "1", "0.1", "CRD", "1"}, 0)
	require.NoError(t, err)
	d, _ := rec.Float("TripDistance")
	assert.Equal(t, float64(float32(0.1)), d)
}

func TestValidateBadValue(t *testing.T) {
	s := taxiSchema(t)
	_, err := s.Validate([]string{"VTS", "1", "one", "1140", "3.75", "CRD", "15.5"}, 41)
	require.Error(t, err)

	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "PassengerCount", se.Field)
	assert.Equal(t, 2, se.Column)
	assert.Equal(t, 41, se.Row)
	assert.Equal(t, "one", se.Value)
	assert.Contains(t, err.Error(), "row 41")
}

func TestValidateRejectsNonFinite(t *testing.T) {
	s := taxiSchema(t)
	for _, raw := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "1e40"} {
		_, err := s.Validate([]string{"VTS", "1", "1", "1140", raw, "CRD", "15.5"}, 7)
		var se *errors.SchemaError
		require.True(t, errors.As(err, &se), raw)
		assert.Equal(t, "TripDistance", se.Field, raw)
		assert.Equal(t, 7, se.Row, raw)
		assert.Equal(t, raw, se.Value, raw)
	}

	_, err := s.ValidateMap(map[string]string{
		"VendorId": "VTS", "RateCode": "1", "PassengerCount": "1",
		"TripDistance": "3", "PaymentType": "CRD", "FareAmount": "NaN",
	})
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "FareAmount", se.Field)
	assert.Contains(t, err.Error(), "not a finite float32")
}

func TestValidateMissingColumn(t *testing.T) {
	s := taxiSchema(t)
	_, err := s.Validate([]string{"VTS", "1", "1"}, 3)
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "TripDistance", se.Field)
	assert.Equal(t, 4, se.Column)
}

func TestValidateMapLabelOptional(t *testing.T) {
	s := taxiSchema(t)
	rec, err := s.ValidateMap(map[string]string{
		"VendorId": "VTS", "RateCode": "1", "PassengerCount": "1",
		"TripDistance": "3.75", "PaymentType": "CRD",
	})
	require.NoError(t, err)
	_, ok := rec.Get("FareAmount")
	assert.False(t, ok)
	assert.Equal(t, -1, rec.RowIndex())

	_, err = s.ValidateMap(map[string]string{"VendorId": "VTS"})
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "RateCode", se.Field)

	_, err = s.ValidateMap(map[string]string{
		"VendorId": "VTS", "RateCode": "1", "PassengerCount": "1",
		"TripDistance": "3.75", "PaymentType": "CRD", "Tip": "2",
	})
	assert.Error(t, err)
}

func TestValidateBool(t *testing.T) {
	s, err := schema.New(schema.Field{Name: "Class", Kind: model.KindBool, Column: 0, Role: schema.RoleLabel})
	require.NoError(t, err)

	for raw, want := range map[string]bool{"1": true, "0": false, "TRUE": true, " false ": false} {
		rec, err := s.Validate([]string{raw}, 0)
		require.NoError(t, err, raw)
		got, _ := rec.Bool("Class")
		assert.Equal(t, want, got, raw)
	}
	_, err = s.Validate([]string{"2"}, 0)
	assert.Error(t, err)
}

func TestStringNormalisedToNFC(t *testing.T) {
	s, err := schema.New(schema.Field{Name: "City", Kind: model.KindString, Column: 0})
	require.NoError(t, err)
	rec, err := s.Validate([]string{"Cafe\u0301"}, 0)
	require.NoError(t, err)
	v, _ := rec.Text("City")
	assert.Equal(t, "Caf\u00e9", v)
}

func TestNewRejectsBadColumns(t *testing.T) {
	_, err := schema.New(
		schema.Field{Name: "a", Kind: model.KindFloat, Column: 0},
		schema.Field{Name: "b", Kind: model.KindFloat, Column: 0},
	)
	assert.Error(t, err)

	_, err = schema.New(
		schema.Field{Name: "a", Kind: model.KindFloat, Column: 0},
		schema.Field{Name: "b", Kind: model.KindFloat, Column: 2},
	)
	assert.Error(t, err)

	_, err = schema.New(
		schema.Field{Name: "a", Kind: model.KindFloat, Column: 0},
		schema.Field{Name: "a", Kind: model.KindFloat, Column: 1},
	)
	assert.Error(t, err)

	_, err = schema.New(schema.Field{Name: "v", Kind: model.KindVector, Column: 0})
	assert.Error(t, err)
}

func TestHeaderOrderedByColumn(t *testing.T) {
	s, err := schema.New(
		schema.Field{Name: "b", Kind: model.KindFloat, Column: 1},
		schema.Field{Name: "a", Kind: model.KindFloat, Column: 0},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Header())
	assert.Equal(t, []string{"b", "a"}, s.Names())
}

func TestLoadYAML(t *testing.T) {
	doc := `fields:
  - {name: VendorId, kind: string, column: 0}
  - {name: FareAmount, kind: float32, column: 1, role: label}
`
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := schema.Load(path)
	require.NoError(t, err)
	f, ok := s.Field("FareAmount")
	require.True(t, ok)
	assert.Equal(t, model.KindFloat, f.Kind)
	assert.Equal(t, schema.RoleLabel, f.Role)

	out, err := s.Marshal()
	require.NoError(t, err)
	again, err := schema.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, s.Fields(), again.Fields())
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := schema.Parse([]byte("fields:\n  - {name: x, kind: decimal, column: 0}\n"))
	assert.Error(t, err)
}
