package preprocessing

import (
	"fmt"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

// OneHotEncoder encodes a categorical column as a one-hot vector.
//
// The vocabulary is the set of distinct input values in the order they are
// first seen during Fit, so the first distinct value owns slot 0. A value not
// in the vocabulary encodes as an all-zero vector.
type OneHotEncoder struct {
	output string
	input  string
}

// NewOneHotEncoder creates a one-hot stage reading input and writing output.
//
// Example:
//
//	enc := preprocessing.NewOneHotEncoder("VendorIdEncoded", "VendorId")
//	fitted, err := enc.Fit([]model.ColumnType{model.Scalar(model.KindString)}, rows)
func NewOneHotEncoder(output, input string) *OneHotEncoder {
	return &OneHotEncoder{output: output, input: input}
}

func (e *OneHotEncoder) Name() string     { return e.output }
func (e *OneHotEncoder) Kind() string     { return KindOneHot }
func (e *OneHotEncoder) Inputs() []string { return []string{e.input} }

// Plan accepts any scalar input. The output width is only known after Fit.
func (e *OneHotEncoder) Plan(inputs []model.ColumnType) (model.ColumnType, error) {
	if inputs[0].Kind == model.KindVector {
		return model.ColumnType{}, errors.NewValidationError(e.input,
			fmt.Sprintf("onehot stage %q needs a scalar input", e.output), inputs[0].String())
	}
	return model.Vector(0), nil
}

// Fit learns the first-occurrence vocabulary of the input column.
//
// Errors:
//   - *errors.EmptyVocabularyError when rows is empty
//   - *errors.UnknownFieldError when a row lacks the input column
func (e *OneHotEncoder) Fit(inputs []model.ColumnType, rows []model.Row) (_ model.FittedStage, err error) {
	defer errors.Recover(&err, "OneHotEncoder.Fit")
	if _, err := e.Plan(inputs); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewEmptyVocabularyError(e.output, e.input)
	}

	seen := make(map[string]struct{})
	var categories []string
	for _, row := range rows {
		v, err := input(e.output, row, e.input)
		if err != nil {
			return nil, err
		}
		key := v.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		categories = append(categories, key)
	}
	return newFittedOneHot(e.output, e.input, categories), nil
}

type oneHotParams struct {
	Categories []string `json:"categories"`
}

// FittedOneHot is a OneHotEncoder with a learned vocabulary.
type FittedOneHot struct {
	output     string
	input      string
	categories []string
	index      map[string]int
}

func newFittedOneHot(output, input string, categories []string) *FittedOneHot {
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		index[c] = i
	}
	return &FittedOneHot{
		output:     output,
		input:      input,
		categories: append([]string(nil), categories...),
		index:      index,
	}
}

func (e *FittedOneHot) Name() string     { return e.output }
func (e *FittedOneHot) Kind() string     { return KindOneHot }
func (e *FittedOneHot) Inputs() []string { return []string{e.input} }

func (e *FittedOneHot) OutputType() model.ColumnType { return model.Vector(len(e.categories)) }
func (e *FittedOneHot) Params() interface{}          { return oneHotParams{Categories: e.Categories()} }

// Categories returns the vocabulary in slot order.
func (e *FittedOneHot) Categories() []string {
	return append([]string(nil), e.categories...)
}

// Index returns the slot of category, or false when it is unseen.
func (e *FittedOneHot) Index(category string) (int, bool) {
	i, ok := e.index[category]
	return i, ok
}

func (e *FittedOneHot) Apply(row model.Row) (model.Value, error) {
	v, err := input(e.output, row, e.input)
	if err != nil {
		return model.Value{}, err
	}
	out := make([]float64, len(e.categories))
	if i, ok := e.index[v.String()]; ok {
		out[i] = 1
	}
	return model.VectorValue(out), nil
}

// FeatureNames returns one name per output slot, "<input>_<category>".
func (e *FittedOneHot) FeatureNames() []string {
	names := make([]string, len(e.categories))
	for i, c := range e.categories {
		names[i] = fmt.Sprintf("%s_%s", e.input, c)
	}
	return names
}
