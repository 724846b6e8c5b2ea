// Package errors provides the error types used throughout tabml.
//
// It is built on github.com/cockroachdb/errors so every constructed error
// carries a stack trace (printed with "%+v") while remaining compatible with
// the standard errors.Is / errors.As machinery.
//
// Two families live here:
//
//   - generic numeric errors shared by estimators and metrics
//     (ModelError, DimensionError, ValueError, ValidationError, NotFittedError)
//   - the pipeline taxonomy (SchemaError, UnknownFieldError,
//     EmptyVocabularyError, TrainingError, PersistenceError)
//
// Example:
//
//	err := errors.NewModelError("OneHot.Fit", "no records", errors.ErrEmptyData)
//	if errors.Is(err, errors.ErrEmptyData) {
//		// ...
//	}
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Sentinel errors. Match them with Is.
var (
	ErrEmptyData         = crdb.New("empty data")
	ErrNotFitted         = crdb.New("not fitted")
	ErrNotImplemented    = crdb.New("not implemented")
	ErrSingularMatrix    = crdb.New("singular matrix")
	ErrDimensionMismatch = crdb.New("dimension mismatch")
	ErrDegenerateLabels  = crdb.New("degenerate labels")
	ErrDigestMismatch    = crdb.New("digest mismatch")
)

// Re-exported helpers so callers need a single errors import.
var (
	New    = crdb.New
	Newf   = crdb.Newf
	Wrap   = crdb.Wrap
	Wrapf  = crdb.Wrapf
	Is     = crdb.Is
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// ModelError is a failure inside a named operation with an underlying cause.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("goml: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("goml: %s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError creates a ModelError wrapping err.
func NewModelError(op, message string, err error) error {
	return crdb.WithStackDepth(&ModelError{Op: op, Message: message, Err: err}, 1)
}

// DimensionError reports a size mismatch along an axis.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("goml: %s: dimension mismatch on axis %d: expected %d, got %d",
		e.Op, e.Axis, e.Expected, e.Got)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) error {
	return crdb.WithStackDepth(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}, 1)
}

// ValueError reports an invalid input value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("goml: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) error {
	return crdb.WithStackDepth(&ValueError{Op: op, Message: message}, 1)
}

// ValidationError reports an invalid parameter.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("goml: invalid %s: %s (got %v)", e.ParamName, e.Reason, e.Value)
}

// NewValidationError creates a ValidationError.
func NewValidationError(param, reason string, value interface{}) error {
	return crdb.WithStackDepth(&ValidationError{ParamName: param, Reason: reason, Value: value}, 1)
}

// NotFittedError is returned when an unfitted component is used.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("goml: %s: %s called before Fit", e.ModelName, e.Method)
}

// Is reports whether target is ErrNotFitted.
func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) error {
	return crdb.WithStackDepth(&NotFittedError{ModelName: modelName, Method: method}, 1)
}

// Recover converts a panic in the calling function into an error stored in
// *err. Use it as the first deferred call of exported methods:
//
//	func (e *Encoder) Fit(...) (err error) {
//		defer errors.Recover(&err, "Encoder.Fit")
//		...
//	}
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = crdb.Wrapf(e, "goml: %s: panic", op)
		return
	}
	*err = crdb.Newf("goml: %s: panic: %v", op, r)
}
