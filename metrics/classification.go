package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
)

const logLossEpsilon = 1e-15

// ConfusionMatrix counts binary outcomes. Rows are the true class, columns
// the predicted class.
type ConfusionMatrix struct {
	TruePositive  int `json:"tp"`
	FalsePositive int `json:"fp"`
	TrueNegative  int `json:"tn"`
	FalseNegative int `json:"fn"`
}

// NewConfusionMatrix tallies predicted labels against true labels.
func NewConfusionMatrix(labels, predicted []bool) (ConfusionMatrix, error) {
	var cm ConfusionMatrix
	if len(labels) != len(predicted) {
		return cm, errors.NewDimensionError("NewConfusionMatrix", len(labels), len(predicted), 0)
	}
	for i, y := range labels {
		switch {
		case y && predicted[i]:
			cm.TruePositive++
		case y:
			cm.FalseNegative++
		case predicted[i]:
			cm.FalsePositive++
		default:
			cm.TrueNegative++
		}
	}
	return cm, nil
}

// Total returns the number of tallied records.
func (c ConfusionMatrix) Total() int {
	return c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative
}

// Add returns the element-wise sum of c and o.
func (c ConfusionMatrix) Add(o ConfusionMatrix) ConfusionMatrix {
	return ConfusionMatrix{
		TruePositive:  c.TruePositive + o.TruePositive,
		FalsePositive: c.FalsePositive + o.FalsePositive,
		TrueNegative:  c.TrueNegative + o.TrueNegative,
		FalseNegative: c.FalseNegative + o.FalseNegative,
	}
}

// Accuracy is the fraction of correct predictions.
func (c ConfusionMatrix) Accuracy() float64 {
	return ratio(c.TruePositive+c.TrueNegative, c.Total())
}

// PositivePrecision is TP / (TP + FP).
func (c ConfusionMatrix) PositivePrecision() float64 {
	return ratio(c.TruePositive, c.TruePositive+c.FalsePositive)
}

// PositiveRecall is TP / (TP + FN).
func (c ConfusionMatrix) PositiveRecall() float64 {
	return ratio(c.TruePositive, c.TruePositive+c.FalseNegative)
}

// NegativePrecision is TN / (TN + FN).
func (c ConfusionMatrix) NegativePrecision() float64 {
	return ratio(c.TrueNegative, c.TrueNegative+c.FalseNegative)
}

// NegativeRecall is TN / (TN + FP).
func (c ConfusionMatrix) NegativeRecall() float64 {
	return ratio(c.TrueNegative, c.TrueNegative+c.FalsePositive)
}

// F1 is the harmonic mean of positive precision and recall.
func (c ConfusionMatrix) F1() float64 {
	p, r := c.PositivePrecision(), c.PositiveRecall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (c ConfusionMatrix) String() string {
	return fmt.Sprintf("          pred+  pred-\ntrue+  %6d %6d\ntrue-  %6d %6d",
		c.TruePositive, c.FalseNegative, c.FalsePositive, c.TrueNegative)
}

// ratio returns num/den, or 0 when den is 0.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func checkBinary(op string, yTrue *mat.VecDense) (pos, neg int, err error) {
	for i := 0; i < yTrue.Len(); i++ {
		switch v := yTrue.AtVec(i); v {
		case 1:
			pos++
		case 0:
			neg++
		default:
			return 0, 0, errors.NewValidationError("yTrue",
				fmt.Sprintf("%s: must contain only 0 or 1, found %g at index %d", op, v, i), v)
		}
	}
	return pos, neg, nil
}

// AUC returns the area under the ROC curve, computed as the Mann-Whitney U
// statistic of the positive scores with average ranks for tied scores.
// When only one class is present the result is 0.5.
//
// Example:
//
//	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
//	yPred := mat.NewVecDense(4, []float64{0.1, 0.4, 0.35, 0.8})
//	auc, _ := metrics.AUC(yTrue, yPred) // 0.75
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	pos, neg, err := checkBinary("AUC", yTrue)
	if err != nil {
		return 0, err
	}
	if pos == 0 || neg == 0 {
		return 0.5, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	// Sum of 1-based ranks of the positives; ties share their mean rank.
	var rankSum float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSum += rank
			}
		}
		i = j + 1
	}
	p, q := float64(pos), float64(neg)
	u := rankSum - p*(p+1)/2
	return u / (p * q), nil
}

// AveragePrecision returns the area under the precision-recall curve as the
// mean of the precision at each positive, ranking by descending score. It is
// 0 when there are no positives.
func AveragePrecision(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AveragePrecision", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	pos, _, err := checkBinary("AveragePrecision", yTrue)
	if err != nil {
		return 0, err
	}
	if pos == 0 {
		return 0, nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) > yPred.AtVec(idx[b]) })

	var sum float64
	hits := 0
	for rank, i := range idx {
		if yTrue.AtVec(i) == 1 {
			hits++
			sum += float64(hits) / float64(rank+1)
		}
	}
	return sum / float64(pos), nil
}

// BinaryLogLoss returns the mean binary cross-entropy of positive-class
// probabilities, clipped to [1e-15, 1-1e-15].
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if _, _, err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	var loss float64
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), logLossEpsilon), 1-logLossEpsilon)
		if yTrue.AtVec(i) == 1 {
			loss -= math.Log(p)
		} else {
			loss -= math.Log(1 - p)
		}
	}
	return loss / float64(n), nil
}

// BinaryClassificationReport holds the binary classification metrics.
type BinaryClassificationReport struct {
	Accuracy          float64         `json:"accuracy"`
	AUC               float64         `json:"auc"`
	AUPRC             float64         `json:"auprc"`
	F1                float64         `json:"f1"`
	PositivePrecision float64         `json:"positive_precision"`
	PositiveRecall    float64         `json:"positive_recall"`
	NegativePrecision float64         `json:"negative_precision"`
	NegativeRecall    float64         `json:"negative_recall"`
	LogLoss           float64         `json:"log_loss"`
	Confusion         ConfusionMatrix `json:"confusion"`
}

// NewBinaryClassificationReport computes a report from true labels,
// predicted labels and positive-class scores.
func NewBinaryClassificationReport(labels, predicted []bool, scores []float64) (*BinaryClassificationReport, error) {
	n := len(labels)
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewBinaryClassificationReport")
	}
	if len(scores) != n {
		return nil, errors.NewDimensionError("NewBinaryClassificationReport", n, len(scores), 0)
	}
	cm, err := NewConfusionMatrix(labels, predicted)
	if err != nil {
		return nil, err
	}

	truth := mat.NewVecDense(n, nil)
	for i, y := range labels {
		if y {
			truth.SetVec(i, 1)
		}
	}
	score := mat.NewVecDense(n, scores)

	r := reportFromConfusion(cm)
	if r.AUC, err = AUC(truth, score); err != nil {
		return nil, err
	}
	if r.AUPRC, err = AveragePrecision(truth, score); err != nil {
		return nil, err
	}
	if r.LogLoss, err = BinaryLogLoss(truth, score); err != nil {
		return nil, err
	}
	return r, nil
}

func reportFromConfusion(cm ConfusionMatrix) *BinaryClassificationReport {
	return &BinaryClassificationReport{
		Accuracy:          cm.Accuracy(),
		F1:                cm.F1(),
		PositivePrecision: cm.PositivePrecision(),
		PositiveRecall:    cm.PositiveRecall(),
		NegativePrecision: cm.NegativePrecision(),
		NegativeRecall:    cm.NegativeRecall(),
		Confusion:         cm,
	}
}

func (r *BinaryClassificationReport) Task() model.Task { return model.TaskBinaryClassification }

// Metrics returns the named values in display order.
func (r *BinaryClassificationReport) Metrics() []Metric {
	return []Metric{
		{"Accuracy", r.Accuracy},
		{"AUC", r.AUC},
		{"AUPRC", r.AUPRC},
		{"F1Score", r.F1},
		{"PositivePrecision", r.PositivePrecision},
		{"PositiveRecall", r.PositiveRecall},
		{"NegativePrecision", r.NegativePrecision},
		{"NegativeRecall", r.NegativeRecall},
		{"LogLoss", r.LogLoss},
	}
}

// Samples returns the number of evaluated records.
func (r *BinaryClassificationReport) Samples() int { return r.Confusion.Total() }
