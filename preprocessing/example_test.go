package preprocessing_test

import (
	"fmt"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/preprocessing"
)

func rowsOf(name string, values ...model.Value) []model.Row {
	rows := make([]model.Row, len(values))
	for i, v := range values {
		rows[i] = model.Row{name: v}
	}
	return rows
}

// ExampleOneHotEncoder shows the first-occurrence vocabulary and the
// all-zero encoding of an unseen value.
func ExampleOneHotEncoder() {
	rows := rowsOf("VendorId",
		model.StringValue("VTS"), model.StringValue("CMT"),
		model.StringValue("VTS"), model.StringValue("DDS"))

	enc := preprocessing.NewOneHotEncoder("VendorIdEncoded", "VendorId")
	fitted, err := enc.Fit([]model.ColumnType{model.Scalar(model.KindString)}, rows)
	if err != nil {
		return
	}
	fmt.Println(fitted.(*preprocessing.FittedOneHot).Categories())

	for _, v := range []string{"CMT", "XYZ"} {
		out, _ := fitted.Apply(model.Row{"VendorId": model.StringValue(v)})
		fmt.Println(v, out.Vec)
	}

	// Output: [VTS CMT DDS]
	// CMT [0 1 0]
	// XYZ [0 0 0]
}

// ExampleNormalizer scales a column to zero mean and unit variance.
func ExampleNormalizer() {
	rows := rowsOf("x", model.FloatValue(1), model.FloatValue(3), model.FloatValue(5), model.FloatValue(7))

	norm, _ := preprocessing.NewNormalizer("xs", "x", preprocessing.MeanVariance)
	fitted, err := norm.Fit([]model.ColumnType{model.Scalar(model.KindFloat)}, rows)
	if err != nil {
		return
	}
	out, _ := fitted.Apply(rows[0])
	fmt.Printf("Scaled first value: %.2f\n", out.Num)

	// Output: Scaled first value: -1.34
}

// ExampleConcat builds a feature vector from a one-hot segment and scalars.
func ExampleConcat() {
	c := preprocessing.NewConcat("Features", "VendorIdEncoded", "PassengerCount", "Night")
	types := []model.ColumnType{model.Vector(3), model.Scalar(model.KindFloat), model.Scalar(model.KindBool)}
	fitted, err := c.Fit(types, nil)
	if err != nil {
		return
	}
	out, _ := fitted.Apply(model.Row{
		"VendorIdEncoded": model.VectorValue([]float64{0, 1, 0}),
		"PassengerCount":  model.FloatValue(2),
		"Night":           model.BoolValue(true),
	})
	fmt.Println(fitted.OutputType(), out.Vec)

	// Output: vector[5] [0 1 0 2 1]
}
