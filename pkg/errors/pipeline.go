package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// SchemaError reports a raw value that could not be bound to its declared
// field. Row is the zero-based data row (header excluded), -1 when unknown.
type SchemaError struct {
	Field  string
	Column int
	Row    int
	Value  string
	Reason string
}

func (e *SchemaError) Error() string {
	loc := fmt.Sprintf("field %q (column %d)", e.Field, e.Column)
	if e.Row >= 0 {
		loc = fmt.Sprintf("row %d, %s", e.Row, loc)
	}
	if e.Value != "" {
		return fmt.Sprintf("goml: schema: %s: %s: %q", loc, e.Reason, e.Value)
	}
	return fmt.Sprintf("goml: schema: %s: %s", loc, e.Reason)
}

// NewSchemaError creates a SchemaError.
func NewSchemaError(field string, column, row int, value, reason string) error {
	return crdb.WithStackDepth(&SchemaError{
		Field: field, Column: column, Row: row, Value: value, Reason: reason,
	}, 1)
}

// UnknownFieldError is returned when a stage (or the pipeline's feature or
// label binding) references a column nothing upstream produces.
type UnknownFieldError struct {
	Stage string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("goml: stage %q: unknown field %q", e.Stage, e.Field)
}

// NewUnknownFieldError creates an UnknownFieldError.
func NewUnknownFieldError(stage, field string) error {
	return crdb.WithStackDepth(&UnknownFieldError{Stage: stage, Field: field}, 1)
}

// EmptyVocabularyError is returned when a categorical stage is fit on no data.
type EmptyVocabularyError struct {
	Stage string
	Field string
}

func (e *EmptyVocabularyError) Error() string {
	return fmt.Sprintf("goml: stage %q: empty vocabulary for field %q", e.Stage, e.Field)
}

// Is reports whether target is ErrEmptyData.
func (e *EmptyVocabularyError) Is(target error) bool { return target == ErrEmptyData }

// NewEmptyVocabularyError creates an EmptyVocabularyError.
func NewEmptyVocabularyError(stage, field string) error {
	return crdb.WithStackDepth(&EmptyVocabularyError{Stage: stage, Field: field}, 1)
}

// TrainingError is a backend fit failure.
type TrainingError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *TrainingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("goml: backend %q: training failed: %s", e.Backend, e.Reason)
	}
	return fmt.Sprintf("goml: backend %q: training failed: %s: %v", e.Backend, e.Reason, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// NewTrainingError creates a TrainingError. err may be nil.
func NewTrainingError(backend, reason string, err error) error {
	return crdb.WithStackDepth(&TrainingError{Backend: backend, Reason: reason, Err: err}, 1)
}

// PersistenceError is a save or load failure of a fitted pipeline.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("goml: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("goml: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError creates a PersistenceError.
func NewPersistenceError(op, path string, err error) error {
	return crdb.WithStackDepth(&PersistenceError{Op: op, Path: path, Err: err}, 1)
}
