package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

// NormalizeMode selects the scaling rule of a Normalizer.
type NormalizeMode string

const (
	// MeanVariance maps each slot to (x - mean) / std.
	MeanVariance NormalizeMode = "meanvar"
	// MinMax maps each slot to (x - min) / (max - min).
	MinMax NormalizeMode = "minmax"
)

// Normalizer rescales every slot of a numeric column using statistics
// learned from the training rows. Slots with zero spread are only shifted.
type Normalizer struct {
	output string
	input  string
	mode   NormalizeMode
}

// NewNormalizer creates a normalize stage.
//
// Parameters:
//   - output: name of the produced column
//   - input: numeric column to scale (float, bool or vector)
//   - mode: MeanVariance or MinMax
func NewNormalizer(output, input string, mode NormalizeMode) (*Normalizer, error) {
	switch mode {
	case MeanVariance, MinMax:
	default:
		return nil, errors.NewValidationError("mode", "must be meanvar or minmax", string(mode))
	}
	return &Normalizer{output: output, input: input, mode: mode}, nil
}

func (n *Normalizer) Name() string     { return n.output }
func (n *Normalizer) Kind() string     { return KindNormalize }
func (n *Normalizer) Inputs() []string { return []string{n.input} }

func (n *Normalizer) Plan(inputs []model.ColumnType) (model.ColumnType, error) {
	t := inputs[0]
	if !t.Numeric() {
		return model.ColumnType{}, errors.NewValidationError(n.input,
			fmt.Sprintf("normalize stage %q needs a numeric input", n.output), t.String())
	}
	if t.Kind == model.KindVector {
		return t, nil
	}
	return model.Scalar(model.KindFloat), nil
}

// Fit computes per-slot offset and scale over every row.
func (n *Normalizer) Fit(inputs []model.ColumnType, rows []model.Row) (_ model.FittedStage, err error) {
	defer errors.Recover(&err, "Normalizer.Fit")
	if _, err := n.Plan(inputs); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewModelError(fmt.Sprintf("Normalizer(%s).Fit", n.output), "no rows", errors.ErrEmptyData)
	}

	width := inputs[0].Width
	cols := make([][]float64, width)
	for j := range cols {
		cols[j] = make([]float64, len(rows))
	}
	buf := make([]float64, 0, width)
	for i, row := range rows {
		v, err := input(n.output, row, n.input)
		if err != nil {
			return nil, err
		}
		buf, _ = v.AppendFloats(buf[:0])
		if len(buf) != width {
			return nil, errors.NewDimensionError(fmt.Sprintf("Normalizer(%s).Fit", n.output), width, len(buf), i)
		}
		for j, x := range buf {
			cols[j][i] = x
		}
	}

	p := normalizeParams{
		Mode:   n.mode,
		Vector: inputs[0].Kind == model.KindVector,
		Offset: make([]float64, width),
		Scale:  make([]float64, width),
	}
	for j, col := range cols {
		switch n.mode {
		case MeanVariance:
			mean, std := stat.PopMeanStdDev(col, nil)
			p.Offset[j] = mean
			p.Scale[j] = std
		case MinMax:
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, x := range col {
				lo = math.Min(lo, x)
				hi = math.Max(hi, x)
			}
			p.Offset[j] = lo
			p.Scale[j] = hi - lo
		}
		if math.Abs(p.Scale[j]) < 1e-8 {
			p.Scale[j] = 1
		}
	}
	return &fittedNormalizer{output: n.output, input: n.input, params: p}, nil
}

type normalizeParams struct {
	Mode   NormalizeMode `json:"mode"`
	Vector bool          `json:"vector"`
	Offset []float64     `json:"offset"`
	Scale  []float64     `json:"scale"`
}

type fittedNormalizer struct {
	output string
	input  string
	params normalizeParams
}

func (n *fittedNormalizer) Name() string        { return n.output }
func (n *fittedNormalizer) Kind() string        { return KindNormalize }
func (n *fittedNormalizer) Inputs() []string    { return []string{n.input} }
func (n *fittedNormalizer) Params() interface{} { return n.params }

func (n *fittedNormalizer) OutputType() model.ColumnType {
	if n.params.Vector {
		return model.Vector(len(n.params.Offset))
	}
	return model.Scalar(model.KindFloat)
}

func (n *fittedNormalizer) Apply(row model.Row) (model.Value, error) {
	v, err := input(n.output, row, n.input)
	if err != nil {
		return model.Value{}, err
	}
	xs, ok := v.AppendFloats(make([]float64, 0, len(n.params.Offset)))
	if !ok {
		return model.Value{}, errors.NewValueError(fmt.Sprintf("Normalizer(%s).Apply", n.output),
			fmt.Sprintf("input %q is not numeric", n.input))
	}
	if len(xs) != len(n.params.Offset) {
		return model.Value{}, errors.NewDimensionError(fmt.Sprintf("Normalizer(%s).Apply", n.output), len(n.params.Offset), len(xs), 1)
	}
	for j := range xs {
		xs[j] = (xs[j] - n.params.Offset[j]) / n.params.Scale[j]
	}
	if n.params.Vector {
		return model.VectorValue(xs), nil
	}
	return model.FloatValue(xs[0]), nil
}
