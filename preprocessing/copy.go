package preprocessing

import (
	"github.com/ezoic/tabml/core/model"
)

// Copy forwards its input column unchanged under a new name.
type Copy struct {
	output string
	input  string
}

// NewCopy creates a copy stage writing input to output.
func NewCopy(output, input string) *Copy {
	return &Copy{output: output, input: input}
}

func (c *Copy) Name() string     { return c.output }
func (c *Copy) Kind() string     { return KindCopy }
func (c *Copy) Inputs() []string { return []string{c.input} }

func (c *Copy) Plan(inputs []model.ColumnType) (model.ColumnType, error) {
	return inputs[0], nil
}

func (c *Copy) Fit(inputs []model.ColumnType, _ []model.Row) (model.FittedStage, error) {
	return &fittedCopy{output: c.output, input: c.input, typ: inputs[0]}, nil
}

type copyParams struct {
	Type model.ColumnType `json:"type"`
}

type fittedCopy struct {
	output string
	input  string
	typ    model.ColumnType
}

func (c *fittedCopy) Name() string                 { return c.output }
func (c *fittedCopy) Kind() string                 { return KindCopy }
func (c *fittedCopy) Inputs() []string             { return []string{c.input} }
func (c *fittedCopy) OutputType() model.ColumnType { return c.typ }
func (c *fittedCopy) Params() interface{}          { return copyParams{Type: c.typ} }

func (c *fittedCopy) Apply(row model.Row) (model.Value, error) {
	return input(c.output, row, c.input)
}
