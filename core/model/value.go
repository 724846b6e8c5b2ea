package model

import (
	"fmt"
	"strconv"
)

// Kind is the type of a column value.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindBool
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat:
		return "float32"
	case KindBool:
		return "bool"
	case KindVector:
		return "vector"
	default:
		return "unknown"
	}
}

// ColumnType describes a column flowing between stages. Width is 1 for
// scalars and the slot count for vectors.
type ColumnType struct {
	Kind  Kind `json:"kind"`
	Width int  `json:"width"`
}

// Scalar returns the width-1 column type of kind k.
func Scalar(k Kind) ColumnType { return ColumnType{Kind: k, Width: 1} }

// Vector returns a numeric vector column type of width n.
func Vector(n int) ColumnType { return ColumnType{Kind: KindVector, Width: n} }

// Numeric reports whether the column can be flattened into a feature vector.
func (t ColumnType) Numeric() bool { return t.Kind != KindString }

func (t ColumnType) String() string {
	if t.Kind == KindVector {
		return fmt.Sprintf("vector[%d]", t.Width)
	}
	return t.Kind.String()
}

// Value is a single column value. Only the field matching Kind is set.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Vec  []float64
}

// StringValue wraps s.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// FloatValue wraps f.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Num: f} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// VectorValue wraps v without copying.
func VectorValue(v []float64) Value { return Value{Kind: KindVector, Vec: v} }

// Type returns the column type of v.
func (v Value) Type() ColumnType {
	if v.Kind == KindVector {
		return Vector(len(v.Vec))
	}
	return Scalar(v.Kind)
}

// AppendFloats appends the numeric representation of v to dst. Booleans map
// to 0 and 1. String values cannot be represented and return ok=false.
func (v Value) AppendFloats(dst []float64) ([]float64, bool) {
	switch v.Kind {
	case KindFloat:
		return append(dst, v.Num), true
	case KindBool:
		if v.Bool {
			return append(dst, 1), true
		}
		return append(dst, 0), true
	case KindVector:
		return append(dst, v.Vec...), true
	default:
		return dst, false
	}
}

// Float returns the scalar numeric value of v.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.Num, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindFloat:
		return strconv.FormatFloat(v.Num, 'g', -1, 32)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return fmt.Sprint(v.Vec)
	}
}

// Row is the working set of named columns for one record while it flows
// through a pipeline.
type Row map[string]Value
