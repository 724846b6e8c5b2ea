package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/evaluation"
	"github.com/ezoic/tabml/metrics"
	"github.com/ezoic/tabml/pipeline"
)

func TestFprintRegression(t *testing.T) {
	var buf bytes.Buffer
	r := &metrics.RegressionReport{RSquared: 0.9412, RMSE: 2.671, MAE: 1.2, Count: 12345}
	require.NoError(t, Fprint(&buf, "Metrics for fasttree", r))

	out := buf.String()
	assert.Contains(t, out, "Metrics for fasttree")
	assert.Contains(t, out, "RSquared Score:           0.94")
	assert.Contains(t, out, "Root Mean Squared Error:  2.67")
	assert.Contains(t, out, "12,345")
}

func TestFprintBinary(t *testing.T) {
	r, err := metrics.NewBinaryClassificationReport(
		[]bool{true, true, false, false},
		[]bool{true, false, false, false},
		[]float64{0.9, 0.4, 0.2, 0.1},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, "fraud", r))
	out := buf.String()
	assert.Contains(t, out, "Accuracy:             0.75")
	assert.Contains(t, out, "AUC:                  1.00")
	assert.Contains(t, out, "Positive Recall:      0.50")
	assert.Contains(t, out, "Confusion table")
	assert.Contains(t, out, " positive ||          1 |          1 | 0.5000")
	assert.Contains(t, out, " negative ||          0 |          2 | 1.0000")
}

func TestFprintLocale(t *testing.T) {
	var buf bytes.Buffer
	r := &metrics.RegressionReport{RSquared: 0.5, Count: 1000}
	require.NoError(t, NewPrinter(language.German).Fprint(&buf, "de", r))
	assert.Contains(t, buf.String(), "0,50")
	assert.Contains(t, buf.String(), "1.000")
}

func TestFprintNil(t *testing.T) {
	assert.Error(t, Fprint(&bytes.Buffer{}, "x", nil))
}

func TestFprintCV(t *testing.T) {
	fold := func(i int, r2 float64) evaluation.FoldResult {
		return evaluation.FoldResult{
			Fold: i, Train: 80, Test: 20,
			Report:   &metrics.RegressionReport{RSquared: r2, Count: 20},
			Duration: 1500 * time.Microsecond,
		}
	}
	res := &evaluation.CVResult{
		Folds: []evaluation.FoldResult{fold(0, 0.9), fold(1, 0.8)},
		Mean:  &metrics.RegressionReport{RSquared: 0.85, Count: 40},
	}
	var buf bytes.Buffer
	require.NoError(t, FprintCV(&buf, "cv", res))
	out := buf.String()
	assert.Contains(t, out, "Fold 0: train=80 test=20 RSquared=0.9000 (2ms)")
	assert.Contains(t, out, "Fold 1: train=80 test=20 RSquared=0.8000")
	assert.Contains(t, out, "RSquared Score:           0.85")

	assert.Error(t, FprintCV(&buf, "cv", &evaluation.CVResult{}))
}

func outcomes() []evaluation.Outcome {
	var out []evaluation.Outcome
	for i := 0; i < 10; i++ {
		out = append(out, evaluation.Outcome{
			Row:        i,
			Label:      model.FloatValue(float64(i)),
			Prediction: pipeline.Prediction{Score: float64(i) + 0.5, Task: model.TaskRegression},
		})
	}
	return out
}

func TestPlotPredictions(t *testing.T) {
	p, err := PlotPredictions("taxi", outcomes())
	require.NoError(t, err)
	assert.Equal(t, "Actual", p.X.Label.Text)

	w, err := p.WriterTo(PlotWidth, PlotHeight, "svg")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<svg")
}

func TestSavePredictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pred.png")
	require.NoError(t, SavePredictions(path, "taxi", outcomes()))
	assert.FileExists(t, path)

	_, err := PlotPredictions("x", nil)
	assert.Error(t, err)
	_, err = PlotPredictions("x", []evaluation.Outcome{{Label: model.StringValue("a")}})
	assert.Error(t, err)
}
