// Package evaluation scores fitted pipelines on labelled records and runs
// k-fold cross-validation.
package evaluation

import (
	"sync"
	"time"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/core/parallel"
	"github.com/ezoic/tabml/metrics"
	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
	"github.com/ezoic/tabml/schema"
)

const parallelThreshold = 1024

// Outcome pairs the true label of one record with its prediction.
type Outcome struct {
	Row        int
	Label      model.Value
	Prediction pipeline.Prediction
}

// Score predicts every record and reads its label through the fitted label
// stages. The first failing record, in input order, aborts scoring.
func Score(fp *pipeline.FittedPipeline, records []schema.Record) ([]Outcome, error) {
	if len(records) == 0 {
		return nil, errors.NewModelError("evaluation.Score", "no records", errors.ErrEmptyData)
	}
	out := make([]Outcome, len(records))
	var (
		mu       sync.Mutex
		firstErr error
		firstIdx = -1
	)
	parallel.ParallelizeWithThreshold(len(records), parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			o, err := score(fp, records[i])
			if err != nil {
				mu.Lock()
				if firstIdx < 0 || i < firstIdx {
					firstIdx, firstErr = i, err
				}
				mu.Unlock()
				return
			}
			out[i] = o
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func score(fp *pipeline.FittedPipeline, rec schema.Record) (Outcome, error) {
	label, err := fp.Label(rec)
	if err != nil {
		return Outcome{}, err
	}
	pred, err := fp.Predict(rec)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Row: rec.RowIndex(), Label: label, Prediction: pred}, nil
}

// NewReport computes the report for task from scored outcomes.
func NewReport(task model.Task, outcomes []Outcome) (metrics.Report, error) {
	switch task {
	case model.TaskRegression:
		labels := make([]float64, len(outcomes))
		preds := make([]float64, len(outcomes))
		for i, o := range outcomes {
			labels[i], _ = o.Label.Float()
			preds[i] = o.Prediction.Score
		}
		return metrics.NewRegressionReport(labels, preds)
	case model.TaskBinaryClassification:
		labels := make([]bool, len(outcomes))
		predicted := make([]bool, len(outcomes))
		scores := make([]float64, len(outcomes))
		for i, o := range outcomes {
			labels[i] = o.Label.Bool
			predicted[i] = o.Prediction.PredictedLabel
			scores[i] = o.Prediction.Score
		}
		return metrics.NewBinaryClassificationReport(labels, predicted, scores)
	default:
		return nil, errors.NewValidationError("task", "unsupported task", task.String())
	}
}

// Evaluate scores fp on records and returns the report for its task.
func Evaluate(fp *pipeline.FittedPipeline, records []schema.Record) (metrics.Report, error) {
	start := time.Now()
	outcomes, err := Score(fp, records)
	if err != nil {
		return nil, err
	}
	r, err := NewReport(fp.Task(), outcomes)
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("Evaluator").Info("Evaluation completed",
		log.OperationKey, log.OperationEvaluate,
		log.PhaseKey, log.PhaseEvaluation,
		log.ModelNameKey, fp.Backend(),
		log.SamplesKey, len(records),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return r, nil
}
