// Package report renders evaluation reports for people: fixed-width text
// blocks for the terminal and a predicted-versus-actual plot for regression.
package report

import (
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ezoic/tabml/evaluation"
	"github.com/ezoic/tabml/metrics"
	"github.com/ezoic/tabml/pkg/errors"
)

const rule = "*************************************************"

// Printer formats numbers for one locale.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a Printer for tag.
func NewPrinter(tag language.Tag) *Printer {
	return &Printer{p: message.NewPrinter(tag)}
}

var defaultPrinter = NewPrinter(language.English)

// Fprint writes r to w under title using English number formatting.
func Fprint(w io.Writer, title string, r metrics.Report) error {
	return defaultPrinter.Fprint(w, title, r)
}

// FprintCV writes the per-fold summary and the mean report of res.
func FprintCV(w io.Writer, title string, res *evaluation.CVResult) error {
	return defaultPrinter.FprintCV(w, title, res)
}

// Fprint writes r to w under title.
func (pr *Printer) Fprint(w io.Writer, title string, r metrics.Report) error {
	var b strings.Builder
	pr.p.Fprintf(&b, "%s\n*       %s\n*------------------------------------------------\n", rule, title)
	switch r := r.(type) {
	case *metrics.RegressionReport:
		pr.p.Fprintf(&b, "*       RSquared Score:           %.2f\n", r.RSquared)
		pr.p.Fprintf(&b, "*       Root Mean Squared Error:  %.2f\n", r.RMSE)
		pr.p.Fprintf(&b, "*       Mean Absolute Error:      %.2f\n", r.MAE)
		pr.p.Fprintf(&b, "*       Samples:                  %d\n", r.Count)
		b.WriteString(rule + "\n")
	case *metrics.BinaryClassificationReport:
		pr.p.Fprintf(&b, "*       Accuracy:             %.2f\n", r.Accuracy)
		pr.p.Fprintf(&b, "*       AUC:                  %.2f\n", r.AUC)
		pr.p.Fprintf(&b, "*       AUPRC:                %.2f\n", r.AUPRC)
		pr.p.Fprintf(&b, "*       F1 Score:             %.2f\n", r.F1)
		pr.p.Fprintf(&b, "*       Log Loss:             %.4f\n", r.LogLoss)
		pr.p.Fprintf(&b, "*       Negative Precision:   %.2f\n", r.NegativePrecision)
		pr.p.Fprintf(&b, "*       Negative Recall:      %.2f\n", r.NegativeRecall)
		pr.p.Fprintf(&b, "*       Positive Precision:   %.2f\n", r.PositivePrecision)
		pr.p.Fprintf(&b, "*       Positive Recall:      %.2f\n", r.PositiveRecall)
		b.WriteString(rule + "\n")
		pr.confusion(&b, r.Confusion)
	case nil:
		return errors.NewValueError("report.Fprint", "nil report")
	default:
		pr.p.Fprintf(&b, "*       Samples: %d\n", r.Samples())
		for _, m := range r.Metrics() {
			pr.p.Fprintf(&b, "*       %-24s %.4f\n", m.Name+":", m.Value)
		}
		b.WriteString(rule + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write report")
}

func (pr *Printer) confusion(b *strings.Builder, c metrics.ConfusionMatrix) {
	b.WriteString("\nConfusion table\n")
	b.WriteString("          ||========================\n")
	b.WriteString("PREDICTED ||  positive  |  negative  | Recall\n")
	b.WriteString("TRUTH     ||========================\n")
	pr.p.Fprintf(b, " positive || %10d | %10d | %.4f\n", c.TruePositive, c.FalseNegative, c.PositiveRecall())
	pr.p.Fprintf(b, " negative || %10d | %10d | %.4f\n", c.FalsePositive, c.TrueNegative, c.NegativeRecall())
	b.WriteString("          ||========================\n")
	pr.p.Fprintf(b, "Precision ||     %.4f |     %.4f |\n", c.PositivePrecision(), c.NegativePrecision())
}

// FprintCV writes one line per fold with its headline metric, then the mean
// report.
func (pr *Printer) FprintCV(w io.Writer, title string, res *evaluation.CVResult) error {
	if res == nil || len(res.Folds) == 0 {
		return errors.NewValueError("report.FprintCV", "no folds")
	}
	var b strings.Builder
	for _, f := range res.Folds {
		head := f.Report.Metrics()[0]
		pr.p.Fprintf(&b, "Fold %d: train=%d test=%d %s=%.4f (%v)\n",
			f.Fold, f.Train, f.Test, head.Name, head.Value, f.Duration.Round(time.Millisecond))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, "write report")
	}
	return pr.Fprint(w, title, res.Mean)
}
