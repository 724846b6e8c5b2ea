// Package metrics computes evaluation metrics and the reports the evaluator
// returns.
//
// Regression metrics:
//   - MSE, RMSE and MAE
//   - R², which is 0 when the labels have no variance
//
// Binary classification metrics, from a confusion matrix of predicted
// labels and from positive-class scores:
//   - accuracy, precision and recall for both classes, F1 on the positive class
//   - AUC computed as the Mann-Whitney U statistic with average ranks for ties
//   - area under the precision-recall curve (average precision) and log-loss
//
// Vector inputs use gonum/mat, as elsewhere in the module.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "input vectors cannot be nil")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE returns the mean squared error.
//
// Example:
//
//	mse, err := metrics.MSE(yTrue, yPred)
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += d * d
	}
	return sum / float64(n), nil
}

// RMSE returns the root mean squared error, in label units.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE returns the mean absolute error.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score returns the coefficient of determination 1 - RSS/TSS. It is 1 for
// exact predictions and may be negative. When every label is identical the
// score is 0.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	mean := stat.Mean(mat.Col(nil, 0, yTrue), nil)
	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		d := t - yPred.AtVec(i)
		tss += (t - mean) * (t - mean)
		rss += d * d
	}
	if tss == 0 {
		return 0, nil
	}
	return 1 - rss/tss, nil
}

// RegressionReport holds the regression evaluation metrics.
type RegressionReport struct {
	RSquared float64 `json:"r_squared"`
	RMSE     float64 `json:"rmse"`
	MSE      float64 `json:"mse"`
	MAE      float64 `json:"mae"`
	Count    int     `json:"count"`
}

// NewRegressionReport computes a report from labels and predictions.
func NewRegressionReport(labels, predictions []float64) (*RegressionReport, error) {
	if len(labels) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewRegressionReport")
	}
	if len(labels) != len(predictions) {
		return nil, errors.NewDimensionError("NewRegressionReport", len(labels), len(predictions), 0)
	}
	yTrue := mat.NewVecDense(len(labels), labels)
	yPred := mat.NewVecDense(len(predictions), predictions)

	r := &RegressionReport{Count: len(labels)}
	var err error
	if r.RSquared, err = R2Score(yTrue, yPred); err != nil {
		return nil, err
	}
	if r.MSE, err = MSE(yTrue, yPred); err != nil {
		return nil, err
	}
	r.RMSE = math.Sqrt(r.MSE)
	if r.MAE, err = MAE(yTrue, yPred); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RegressionReport) Task() model.Task { return model.TaskRegression }

// Metrics returns the named values in display order.
func (r *RegressionReport) Metrics() []Metric {
	return []Metric{
		{"RSquared", r.RSquared},
		{"RMSE", r.RMSE},
		{"MSE", r.MSE},
		{"MAE", r.MAE},
	}
}

// Samples returns the number of evaluated records.
func (r *RegressionReport) Samples() int { return r.Count }
