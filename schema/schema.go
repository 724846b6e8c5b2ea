// Package schema binds raw delimited rows to typed, named records.
//
// A Schema is an explicit, ordered list of fields. Each field maps a source
// column index to a name, a scalar kind (string, float32 or bool) and a role.
// Validate coerces one raw row into an immutable Record or fails with a
// *errors.SchemaError naming the field, column and row.
package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

// Role says how a field takes part in training and inference.
type Role string

const (
	// RoleFeature fields are required everywhere.
	RoleFeature Role = "feature"
	// RoleLabel fields are required for training and evaluation only.
	RoleLabel Role = "label"
	// RoleIgnore fields are parsed when present but never required.
	RoleIgnore Role = "ignore"
)

// Field declares one source column.
type Field struct {
	Name   string
	Kind   model.Kind
	Column int
	Role   Role
}

// Schema is an immutable, validated field list.
type Schema struct {
	fields []Field
	byName map[string]int
	width  int
}

// New validates fields and returns a Schema. Names must be unique and
// non-empty, kinds scalar, and column indices a permutation of 0..n-1.
func New(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, errors.NewValueError("schema.New", "at least one field is required")
	}
	s := &Schema{
		fields: make([]Field, len(fields)),
		byName: make(map[string]int, len(fields)),
		width:  len(fields),
	}
	seenCol := make(map[int]string, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, errors.NewValidationError("name", "field name must not be empty", i)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, errors.NewValidationError("name", "duplicate field name", f.Name)
		}
		switch f.Kind {
		case model.KindString, model.KindFloat, model.KindBool:
		default:
			return nil, errors.NewValidationError("kind", fmt.Sprintf("field %q must be string, float32 or bool", f.Name), f.Kind)
		}
		if f.Role == "" {
			f.Role = RoleFeature
		}
		switch f.Role {
		case RoleFeature, RoleLabel, RoleIgnore:
		default:
			return nil, errors.NewValidationError("role", fmt.Sprintf("field %q has unknown role", f.Name), f.Role)
		}
		if f.Column < 0 || f.Column >= len(fields) {
			return nil, errors.NewValidationError("column",
				fmt.Sprintf("field %q column must be in [0, %d)", f.Name, len(fields)), f.Column)
		}
		if other, dup := seenCol[f.Column]; dup {
			return nil, errors.NewValidationError("column",
				fmt.Sprintf("fields %q and %q share a column", other, f.Name), f.Column)
		}
		seenCol[f.Column] = f.Name
		s.fields[i] = f
		s.byName[f.Name] = i
	}
	return s, nil
}

// Fields returns a copy of the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Width is the number of source columns a row must provide.
func (s *Schema) Width() int { return s.width }

// Header returns the field names ordered by column index.
func (s *Schema) Header() []string {
	fields := s.Fields()
	sort.Slice(fields, func(i, j int) bool { return fields[i].Column < fields[j].Column })
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// ColumnTypes returns the column type of every field, keyed by name. It is
// the set of columns available to the first pipeline stage.
func (s *Schema) ColumnTypes() map[string]model.ColumnType {
	out := make(map[string]model.ColumnType, len(s.fields))
	for _, f := range s.fields {
		out[f.Name] = model.Scalar(f.Kind)
	}
	return out
}

// Validate coerces a raw row into a Record. rowIndex is reported in errors.
func (s *Schema) Validate(row []string, rowIndex int) (Record, error) {
	values := make(map[string]model.Value, len(s.fields))
	for _, f := range s.fields {
		if f.Column >= len(row) {
			if f.Role == RoleIgnore {
				continue
			}
			return Record{}, errors.NewSchemaError(f.Name, f.Column, rowIndex, "",
				fmt.Sprintf("missing column (row has %d columns)", len(row)))
		}
		v, err := coerce(f, row[f.Column], rowIndex)
		if err != nil {
			return Record{}, err
		}
		values[f.Name] = v
	}
	return Record{values: values, row: rowIndex}, nil
}

// ValidateMap coerces a name-keyed raw record, as received for a single
// prediction. Label and ignore fields may be absent; feature fields may not.
func (s *Schema) ValidateMap(raw map[string]string) (Record, error) {
	values := make(map[string]model.Value, len(s.fields))
	for _, f := range s.fields {
		text, ok := raw[f.Name]
		if !ok {
			if f.Role != RoleFeature {
				continue
			}
			return Record{}, errors.NewSchemaError(f.Name, f.Column, -1, "", "missing required field")
		}
		v, err := coerce(f, text, -1)
		if err != nil {
			return Record{}, err
		}
		values[f.Name] = v
	}
	for name := range raw {
		if _, ok := s.byName[name]; !ok {
			return Record{}, errors.NewSchemaError(name, -1, -1, "", "field not declared in schema")
		}
	}
	return Record{values: values, row: -1}, nil
}

func coerce(f Field, raw string, rowIndex int) (model.Value, error) {
	text := strings.TrimSpace(raw)
	switch f.Kind {
	case model.KindString:
		return model.StringValue(norm.NFC.String(text)), nil
	case model.KindFloat:
		if text == "" {
			return model.Value{}, errors.NewSchemaError(f.Name, f.Column, rowIndex, raw, "empty numeric value")
		}
		x, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return model.Value{}, errors.NewSchemaError(f.Name, f.Column, rowIndex, raw, "not a float32")
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return model.Value{}, errors.NewSchemaError(f.Name, f.Column, rowIndex, raw, "not a finite float32")
		}
		return model.FloatValue(x), nil
	case model.KindBool:
		b, ok := parseBool(text)
		if !ok {
			return model.Value{}, errors.NewSchemaError(f.Name, f.Column, rowIndex, raw, "not a bool")
		}
		return model.BoolValue(b), nil
	default:
		return model.Value{}, errors.NewSchemaError(f.Name, f.Column, rowIndex, raw, "unsupported kind")
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y":
		return true, true
	case "0", "false", "f", "no", "n":
		return false, true
	default:
		return false, false
	}
}
