// Package preprocessing implements the pipeline's feature transformation
// stages.
//
// Every stage follows the two-phase contract of core/model: an unfitted
// model.Stage learns its parameters from the whole training set in Fit and
// returns an immutable model.FittedStage whose Apply only looks at one row.
//
// Stage kinds:
//
//   - copy: forwards one column under a new name
//   - onehot: encodes a categorical column as a one-hot vector, with the
//     vocabulary ordered by first occurrence
//   - concat: concatenates numeric columns into one feature vector
//   - normalize: mean-variance or min-max scaling of a numeric column
//
// Stages are built from a declarative Spec with NewStage, and fitted stages
// are rebuilt from persisted parameters with DecodeFitted.
package preprocessing

import (
	"encoding/json"
	"fmt"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

// Stage kinds.
const (
	KindCopy      = "copy"
	KindOneHot    = "onehot"
	KindConcat    = "concat"
	KindNormalize = "normalize"
)

// Spec is the declarative form of a stage.
type Spec struct {
	Kind   string                `yaml:"kind" json:"kind"`
	Output string                `yaml:"output" json:"output"`
	Inputs []string              `yaml:"inputs" json:"inputs"`
	Params model.Hyperparameters `yaml:"params,omitempty" json:"params,omitempty"`
}

// NewStage builds an unfitted stage from spec.
func NewStage(spec Spec) (model.Stage, error) {
	if spec.Output == "" {
		return nil, errors.NewValidationError("output", "stage output must not be empty", spec.Kind)
	}
	if len(spec.Inputs) == 0 {
		return nil, errors.NewValidationError("inputs", fmt.Sprintf("stage %q needs at least one input", spec.Output), nil)
	}
	switch spec.Kind {
	case KindCopy:
		if len(spec.Inputs) != 1 {
			return nil, errors.NewValidationError("inputs", fmt.Sprintf("copy stage %q takes one input", spec.Output), spec.Inputs)
		}
		return NewCopy(spec.Output, spec.Inputs[0]), nil
	case KindOneHot:
		if len(spec.Inputs) != 1 {
			return nil, errors.NewValidationError("inputs", fmt.Sprintf("onehot stage %q takes one input", spec.Output), spec.Inputs)
		}
		return NewOneHotEncoder(spec.Output, spec.Inputs[0]), nil
	case KindConcat:
		return NewConcat(spec.Output, spec.Inputs...), nil
	case KindNormalize:
		if len(spec.Inputs) != 1 {
			return nil, errors.NewValidationError("inputs", fmt.Sprintf("normalize stage %q takes one input", spec.Output), spec.Inputs)
		}
		mode := NormalizeMode(spec.Params.String("mode", string(MeanVariance)))
		return NewNormalizer(spec.Output, spec.Inputs[0], mode)
	default:
		return nil, errors.NewValidationError("kind", "unknown stage kind", spec.Kind)
	}
}

// DecodeFitted rebuilds a fitted stage from its persisted parameters.
func DecodeFitted(kind, output string, inputs []string, params json.RawMessage) (model.FittedStage, error) {
	switch kind {
	case KindCopy:
		var p copyParams
		if err := unmarshalParams(kind, params, &p); err != nil {
			return nil, err
		}
		if len(inputs) != 1 {
			return nil, errors.NewValueError("DecodeFitted", "copy stage takes one input")
		}
		return &fittedCopy{output: output, input: inputs[0], typ: p.Type}, nil
	case KindOneHot:
		var p oneHotParams
		if err := unmarshalParams(kind, params, &p); err != nil {
			return nil, err
		}
		if len(inputs) != 1 {
			return nil, errors.NewValueError("DecodeFitted", "onehot stage takes one input")
		}
		return newFittedOneHot(output, inputs[0], p.Categories), nil
	case KindConcat:
		var p concatParams
		if err := unmarshalParams(kind, params, &p); err != nil {
			return nil, err
		}
		if len(p.Widths) != len(inputs) {
			return nil, errors.NewDimensionError("DecodeFitted", len(inputs), len(p.Widths), 0)
		}
		return &fittedConcat{output: output, inputs: append([]string(nil), inputs...), widths: p.Widths}, nil
	case KindNormalize:
		var p normalizeParams
		if err := unmarshalParams(kind, params, &p); err != nil {
			return nil, err
		}
		if len(inputs) != 1 {
			return nil, errors.NewValueError("DecodeFitted", "normalize stage takes one input")
		}
		if len(p.Offset) != len(p.Scale) {
			return nil, errors.NewDimensionError("DecodeFitted", len(p.Offset), len(p.Scale), 0)
		}
		return &fittedNormalizer{output: output, input: inputs[0], params: p}, nil
	default:
		return nil, errors.NewValueError("DecodeFitted", fmt.Sprintf("unknown stage kind %q", kind))
	}
}

func unmarshalParams(kind string, raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "decode %s stage params", kind)
	}
	return nil
}

func input(stage string, row model.Row, name string) (model.Value, error) {
	v, ok := row[name]
	if !ok {
		return model.Value{}, errors.NewUnknownFieldError(stage, name)
	}
	return v, nil
}
