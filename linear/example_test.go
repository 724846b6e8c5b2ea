package linear_test

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/tabml/linear"
)

func ExampleRegression() {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{3, 5, 7, 9}

	b, err := linear.NewRegression(nil)
	if err != nil {
		return
	}
	m, err := b.TrainRegression(context.Background(), X, y, 0)
	if err != nil {
		return
	}
	pred, _ := m.Predict([]float64{5})
	fmt.Printf("prediction: %.2f\n", pred)

	// Output: prediction: 11.00
}
