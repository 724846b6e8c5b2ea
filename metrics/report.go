package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

// Metric is one named report value.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Report is an evaluation result for one task.
type Report interface {
	Task() model.Task
	// Metrics returns the named values in display order.
	Metrics() []Metric
	// Samples is the number of evaluated records.
	Samples() int
}

var (
	_ Report = (*RegressionReport)(nil)
	_ Report = (*BinaryClassificationReport)(nil)
)

// Mean returns the element-wise mean of reports of the same task. For
// binary reports the confusion matrix holds the summed counts; for
// regression reports Count is the summed sample count.
func Mean(reports []Report) (Report, error) {
	if len(reports) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "metrics.Mean")
	}
	switch reports[0].(type) {
	case *RegressionReport:
		rs := make([]*RegressionReport, len(reports))
		for i, r := range reports {
			rr, ok := r.(*RegressionReport)
			if !ok {
				return nil, errors.NewValueError("metrics.Mean", "reports mix tasks")
			}
			rs[i] = rr
		}
		return meanRegression(rs), nil
	case *BinaryClassificationReport:
		bs := make([]*BinaryClassificationReport, len(reports))
		for i, r := range reports {
			br, ok := r.(*BinaryClassificationReport)
			if !ok {
				return nil, errors.NewValueError("metrics.Mean", "reports mix tasks")
			}
			bs[i] = br
		}
		return meanBinary(bs), nil
	default:
		return nil, errors.NewValueError("metrics.Mean", "unsupported report type")
	}
}

func meanOf[R any](rs []R, field func(R) float64) float64 {
	xs := make([]float64, len(rs))
	for i, r := range rs {
		xs[i] = field(r)
	}
	return stat.Mean(xs, nil)
}

func meanRegression(rs []*RegressionReport) *RegressionReport {
	out := &RegressionReport{
		RSquared: meanOf(rs, func(r *RegressionReport) float64 { return r.RSquared }),
		RMSE:     meanOf(rs, func(r *RegressionReport) float64 { return r.RMSE }),
		MSE:      meanOf(rs, func(r *RegressionReport) float64 { return r.MSE }),
		MAE:      meanOf(rs, func(r *RegressionReport) float64 { return r.MAE }),
	}
	for _, r := range rs {
		out.Count += r.Count
	}
	return out
}

func meanBinary(bs []*BinaryClassificationReport) *BinaryClassificationReport {
	out := &BinaryClassificationReport{
		Accuracy:          meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.Accuracy }),
		AUC:               meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.AUC }),
		AUPRC:             meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.AUPRC }),
		F1:                meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.F1 }),
		PositivePrecision: meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.PositivePrecision }),
		PositiveRecall:    meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.PositiveRecall }),
		NegativePrecision: meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.NegativePrecision }),
		NegativeRecall:    meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.NegativeRecall }),
		LogLoss:           meanOf(bs, func(r *BinaryClassificationReport) float64 { return r.LogLoss }),
	}
	for _, b := range bs {
		out.Confusion = out.Confusion.Add(b.Confusion)
	}
	return out
}
