package evaluation

import (
	"context"
	"sort"
	"time"

	"github.com/ezoic/tabml/core/parallel"
	"github.com/ezoic/tabml/dataset"
	"github.com/ezoic/tabml/metrics"
	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
	"github.com/ezoic/tabml/schema"
)

// FoldResult is the outcome of one cross-validation fold.
type FoldResult struct {
	Fold     int            `json:"fold"`
	Train    int            `json:"train"`
	Test     int            `json:"test"`
	Report   metrics.Report `json:"report"`
	Duration time.Duration  `json:"duration"`
}

// CVResult holds the per-fold reports, in fold order, and their
// element-wise mean.
type CVResult struct {
	Folds []FoldResult   `json:"folds"`
	Mean  metrics.Report `json:"mean"`
}

type cvConfig struct {
	workers    int
	onFoldDone func(FoldResult)
	logger     log.Logger
}

// CVOption configures CrossValidate.
type CVOption func(*cvConfig)

// WithWorkers bounds the number of folds fitted concurrently. Values below
// 1 mean GOMAXPROCS; 1 runs folds sequentially.
func WithWorkers(n int) CVOption { return func(c *cvConfig) { c.workers = n } }

// OnFoldDone registers a callback invoked after each fold is evaluated. It
// may be called from several goroutines at once.
func OnFoldDone(fn func(FoldResult)) CVOption { return func(c *cvConfig) { c.onFoldDone = fn } }

// WithCVLogger replaces the component logger.
func WithCVLogger(l log.Logger) CVOption { return func(c *cvConfig) { c.logger = l } }

// Folds assigns n records to k folds: position p of
// dataset.Permutation(n, seed) goes to fold p mod k. The permutation is a
// Fisher-Yates shuffle over a PCG-DXSM stream with a fixed bounded-draw
// rule, so folds are reproducible from (n, k, seed) alone. It returns the
// record indices of each fold in ascending order; fold sizes differ by at
// most one.
func Folds(n, k int, seed uint64) ([][]int, error) {
	if k < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", k)
	}
	if n < k {
		return nil, errors.NewModelError("evaluation.Folds", "fewer records than folds", errors.ErrEmptyData)
	}
	folds := make([][]int, k)
	for p, idx := range dataset.Permutation(n, seed) {
		folds[p%k] = append(folds[p%k], idx)
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds, nil
}

// CrossValidate runs k-fold cross-validation of p over records. Each fold
// fits p on the other k-1 folds and evaluates on its own; folds own their
// record slices and fitted pipelines, records is only read. Cancelling ctx
// stops folds that have not started and is observed between stages of
// running ones.
func CrossValidate(ctx context.Context, p *pipeline.Pipeline, records []schema.Record, k int, seed uint64, opts ...CVOption) (*CVResult, error) {
	cfg := cvConfig{workers: 1, logger: log.GetLoggerWithName("CrossValidator")}
	for _, opt := range opts {
		opt(&cfg)
	}
	folds, err := Folds(len(records), k, seed)
	if err != nil {
		return nil, err
	}
	if _, err := p.Plan(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := cfg.logger.With(log.ModelNameKey, p.Backend().Name())
	logger.Info("Cross-validation started",
		log.SamplesKey, len(records),
		"folds", k,
		"workers", cfg.workers,
	)

	results := make([]FoldResult, k)
	err = parallel.ForEach(ctx, k, cfg.workers, func(ctx context.Context, f int) error {
		res, err := runFold(ctx, p, records, folds, f)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		results[f] = res
		logger.Info("Fold completed",
			log.FoldKey, f,
			log.SamplesKey, res.Test,
			log.DurationMsKey, res.Duration.Milliseconds(),
		)
		if cfg.onFoldDone != nil {
			cfg.onFoldDone(res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reports := make([]metrics.Report, k)
	for i, r := range results {
		reports[i] = r.Report
	}
	mean, err := metrics.Mean(reports)
	if err != nil {
		return nil, err
	}
	logger.Info("Cross-validation completed", log.DurationMsKey, time.Since(start).Milliseconds())
	return &CVResult{Folds: results, Mean: mean}, nil
}

func runFold(ctx context.Context, p *pipeline.Pipeline, records []schema.Record, folds [][]int, f int) (FoldResult, error) {
	start := time.Now()
	test := pick(records, folds[f])
	trainIdx := make([]int, 0, len(records)-len(test))
	for g, idx := range folds {
		if g != f {
			trainIdx = append(trainIdx, idx...)
		}
	}
	sort.Ints(trainIdx)
	train := pick(records, trainIdx)

	fp, err := p.Fit(ctx, train)
	if err != nil {
		return FoldResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return FoldResult{}, err
	}
	report, err := Evaluate(fp, test)
	if err != nil {
		return FoldResult{}, err
	}
	return FoldResult{
		Fold:     f,
		Train:    len(train),
		Test:     len(test),
		Report:   report,
		Duration: time.Since(start),
	}, nil
}

func pick(records []schema.Record, idx []int) []schema.Record {
	out := make([]schema.Record, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}
