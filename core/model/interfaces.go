package model

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Stage is an unfitted, stateless feature transformation. It reads one or
// more named input columns and produces exactly one output column named
// Name().
type Stage interface {
	// Name is the output column produced by the stage.
	Name() string
	// Kind identifies the stage implementation ("copy", "onehot", ...).
	Kind() string
	// Inputs lists the columns the stage reads.
	Inputs() []string
	// Plan derives the output column type from the input column types
	// without looking at data. A Width of 0 means the width is learned at
	// fit time.
	Plan(inputs []ColumnType) (ColumnType, error)
	// Fit learns the stage parameters from every row. inputs holds the
	// exact input column types, widths included.
	Fit(inputs []ColumnType, rows []Row) (FittedStage, error)
}

// FittedStage is a Stage plus learned parameters. Apply must only read the
// row it is given.
type FittedStage interface {
	Name() string
	Kind() string
	Inputs() []string
	// OutputType is the exact output column type, width included.
	OutputType() ColumnType
	// Apply computes the output column for a single row.
	Apply(row Row) (Value, error)
	// Params returns the JSON-serialisable learned parameters.
	Params() interface{}
}

// Task is the prediction task a backend solves.
type Task int

const (
	// TaskRegression predicts a continuous value.
	TaskRegression Task = iota
	// TaskBinaryClassification predicts a boolean label with a score.
	TaskBinaryClassification
)

func (t Task) String() string {
	switch t {
	case TaskRegression:
		return "regression"
	case TaskBinaryClassification:
		return "binary"
	default:
		return "unknown"
	}
}

// Backend is a pluggable learning algorithm.
type Backend interface {
	Name() string
	Task() Task
}

// Regressor trains regression models. Training must be deterministic for a
// given seed.
type Regressor interface {
	Backend
	TrainRegression(ctx context.Context, X mat.Matrix, y []float64, seed uint64) (RegressionModel, error)
}

// BinaryClassifier trains binary classification models. Training must be
// deterministic for a given seed.
type BinaryClassifier interface {
	Backend
	TrainBinary(ctx context.Context, X mat.Matrix, y []bool, seed uint64) (BinaryModel, error)
}

// FittedModel is the opaque result of training.
type FittedModel interface {
	// Kind is the registered model kind used for persistence.
	Kind() string
	// NumFeatures is the feature vector length the model was trained on.
	NumFeatures() int
	// Params returns the JSON-serialisable learned parameters.
	Params() interface{}
}

// ModelDecoder rebuilds a fitted model from its kind and persisted params.
type ModelDecoder func(kind string, params []byte) (FittedModel, error)

// RegressionModel predicts a continuous estimate.
type RegressionModel interface {
	FittedModel
	Predict(x []float64) (float64, error)
}

// BinaryModel predicts a label and a score in [0, 1] for the positive class.
type BinaryModel interface {
	FittedModel
	Predict(x []float64) (label bool, score float64, err error)
}
