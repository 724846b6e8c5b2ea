package report

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/tabml/evaluation"
	"github.com/ezoic/tabml/pkg/errors"
)

// Default plot size.
const (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 6 * vg.Inch
)

// PlotPredictions builds a scatter of predicted against actual values with
// the identity line for reference. Outcomes must carry numeric labels.
func PlotPredictions(title string, outcomes []evaluation.Outcome) (*plot.Plot, error) {
	if len(outcomes) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "report.PlotPredictions")
	}
	pts := make(plotter.XYs, len(outcomes))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, o := range outcomes {
		y, ok := o.Label.Float()
		if !ok {
			return nil, errors.NewValueError("report.PlotPredictions", "label is not numeric")
		}
		pts[i].X = y
		pts[i].Y = o.Prediction.Score
		lo = math.Min(lo, math.Min(y, o.Prediction.Score))
		hi = math.Max(hi, math.Max(y, o.Prediction.Score))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Predicted"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "create scatter")
	}
	scatter.Color = plotter.DefaultLineStyle.Color
	p.Add(scatter)
	p.Legend.Add("Predictions", scatter)

	ident, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, errors.Wrap(err, "create identity line")
	}
	ident.Width = vg.Points(1)
	ident.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(ident)
	p.Legend.Add("Perfect", ident)
	return p, nil
}

// SavePredictions plots outcomes and writes the image to path. The format
// follows the file extension.
func SavePredictions(path, title string, outcomes []evaluation.Outcome) error {
	p, err := PlotPredictions(title, outcomes)
	if err != nil {
		return err
	}
	if err := p.Save(PlotWidth, PlotHeight, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
