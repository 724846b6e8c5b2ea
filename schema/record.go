package schema

import (
	"sort"

	"github.com/ezoic/tabml/core/model"
)

// Record is one validated data row. It is immutable: accessors never expose
// the underlying map.
type Record struct {
	values map[string]model.Value
	row    int
}

// NewRecord builds a record from already typed values. row is the source
// row index, -1 when there is none.
func NewRecord(row int, values map[string]model.Value) Record {
	cp := make(map[string]model.Value, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Record{values: cp, row: row}
}

// RowIndex is the zero-based source row, or -1.
func (r Record) RowIndex() int { return r.row }

// Len is the number of fields present.
func (r Record) Len() int { return len(r.values) }

// Get returns the value of a field.
func (r Record) Get(name string) (model.Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Float returns a float32 field widened to float64.
func (r Record) Float(name string) (float64, bool) {
	v, ok := r.values[name]
	if !ok || v.Kind != model.KindFloat {
		return 0, false
	}
	return v.Num, true
}

// Text returns a string field.
func (r Record) Text(name string) (string, bool) {
	v, ok := r.values[name]
	if !ok || v.Kind != model.KindString {
		return "", false
	}
	return v.Str, true
}

// Bool returns a bool field.
func (r Record) Bool(name string) (bool, bool) {
	v, ok := r.values[name]
	if !ok || v.Kind != model.KindBool {
		return false, false
	}
	return v.Bool, true
}

// Names returns the present field names, sorted.
func (r Record) Names() []string {
	out := make([]string, 0, len(r.values))
	for k := range r.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Row returns a fresh working row seeded with the record's fields.
func (r Record) Row() model.Row {
	row := make(model.Row, len(r.values)+4)
	for k, v := range r.values {
		row[k] = v
	}
	return row
}
