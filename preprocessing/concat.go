package preprocessing

import (
	"fmt"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

// Concat joins numeric columns, in input order, into one vector. Floats and
// booleans contribute one slot, vectors their full width.
type Concat struct {
	output string
	inputs []string
}

// NewConcat creates a concat stage.
func NewConcat(output string, inputs ...string) *Concat {
	return &Concat{output: output, inputs: append([]string(nil), inputs...)}
}

func (c *Concat) Name() string     { return c.output }
func (c *Concat) Kind() string     { return KindConcat }
func (c *Concat) Inputs() []string { return append([]string(nil), c.inputs...) }

// Plan rejects string inputs. The output width is 0 when any input width is
// still unknown.
func (c *Concat) Plan(inputs []model.ColumnType) (model.ColumnType, error) {
	width := 0
	known := true
	for i, t := range inputs {
		if !t.Numeric() {
			return model.ColumnType{}, errors.NewValidationError(c.inputs[i],
				fmt.Sprintf("concat stage %q needs numeric inputs", c.output), t.String())
		}
		if t.Kind == model.KindVector && t.Width == 0 {
			known = false
		}
		width += t.Width
	}
	if !known {
		return model.Vector(0), nil
	}
	return model.Vector(width), nil
}

// Fit records the width of every input.
func (c *Concat) Fit(inputs []model.ColumnType, _ []model.Row) (model.FittedStage, error) {
	if _, err := c.Plan(inputs); err != nil {
		return nil, err
	}
	widths := make([]int, len(inputs))
	for i, t := range inputs {
		widths[i] = t.Width
	}
	return &fittedConcat{output: c.output, inputs: c.Inputs(), widths: widths}, nil
}

type concatParams struct {
	Widths []int `json:"widths"`
}

type fittedConcat struct {
	output string
	inputs []string
	widths []int
}

func (c *fittedConcat) Name() string        { return c.output }
func (c *fittedConcat) Kind() string        { return KindConcat }
func (c *fittedConcat) Inputs() []string    { return append([]string(nil), c.inputs...) }
func (c *fittedConcat) Params() interface{} { return concatParams{Widths: c.widths} }

func (c *fittedConcat) OutputType() model.ColumnType {
	n := 0
	for _, w := range c.widths {
		n += w
	}
	return model.Vector(n)
}

func (c *fittedConcat) Apply(row model.Row) (model.Value, error) {
	out := make([]float64, 0, c.OutputType().Width)
	for i, name := range c.inputs {
		v, err := input(c.output, row, name)
		if err != nil {
			return model.Value{}, err
		}
		if w := v.Type().Width; w != c.widths[i] {
			return model.Value{}, errors.NewDimensionError(fmt.Sprintf("Concat(%s).Apply", c.output), c.widths[i], w, i)
		}
		var ok bool
		out, ok = v.AppendFloats(out)
		if !ok {
			return model.Value{}, errors.NewValueError(fmt.Sprintf("Concat(%s).Apply", c.output),
				fmt.Sprintf("input %q is not numeric", name))
		}
	}
	return model.VectorValue(out), nil
}
