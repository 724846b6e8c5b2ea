// Package pipeline chains feature transformation stages and a model backend
// into a single trainable unit.
//
// A Pipeline is an immutable description: the input schema, an ordered list
// of unfitted stages, the feature and label column names, a backend and a
// seed. Fit runs a static plan first, so a stage reading a column nothing
// upstream produces fails before any data is touched, then fits each stage
// in declared order over every record and finally trains the backend on the
// feature matrix. The result is a FittedPipeline that transforms and
// predicts single records through exactly the same stage chain.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/core/parallel"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
	"github.com/ezoic/tabml/schema"
)

// Default column names bound to the backend.
const (
	DefaultFeatureColumn = "Features"
	DefaultLabelColumn   = "Label"
)

// Rows at or above this count are transformed concurrently during Fit.
const parallelThreshold = 2048

// Pipeline is an unfitted stage chain plus backend.
type Pipeline struct {
	schema   *schema.Schema
	stages   []model.Stage
	features string
	label    string
	backend  model.Backend
	seed     uint64
	logger   log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFeatureColumn overrides the feature column name.
func WithFeatureColumn(name string) Option { return func(p *Pipeline) { p.features = name } }

// WithLabelColumn overrides the label column name.
func WithLabelColumn(name string) Option { return func(p *Pipeline) { p.label = name } }

// WithSeed sets the seed handed to the backend.
func WithSeed(seed uint64) Option { return func(p *Pipeline) { p.seed = seed } }

// WithLogger replaces the component logger.
func WithLogger(l log.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// New creates a pipeline over s. The stage slice is copied.
func New(s *schema.Schema, backend model.Backend, stages []model.Stage, opts ...Option) *Pipeline {
	p := &Pipeline{
		schema:   s,
		stages:   append([]model.Stage(nil), stages...),
		features: DefaultFeatureColumn,
		label:    DefaultLabelColumn,
		backend:  backend,
		logger:   log.GetLoggerWithName("Pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema returns the input schema.
func (p *Pipeline) Schema() *schema.Schema { return p.schema }

// Stages returns a copy of the stage list.
func (p *Pipeline) Stages() []model.Stage { return append([]model.Stage(nil), p.stages...) }

// Backend returns the configured backend.
func (p *Pipeline) Backend() model.Backend { return p.backend }

// Seed returns the training seed.
func (p *Pipeline) Seed() uint64 { return p.seed }

// FeatureColumn returns the name of the column the backend trains on.
func (p *Pipeline) FeatureColumn() string { return p.features }

// LabelColumn returns the name of the label column.
func (p *Pipeline) LabelColumn() string { return p.label }

// WithSeed returns a copy of p using seed.
func (p *Pipeline) WithSeed(seed uint64) *Pipeline {
	cp := *p
	cp.seed = seed
	return &cp
}

// Plan checks the pipeline statically and returns the planned type of every
// column available after the last stage. Vector widths learned at fit time
// are reported as 0.
func (p *Pipeline) Plan() (map[string]model.ColumnType, error) {
	if p.schema == nil {
		return nil, errors.NewValueError("Pipeline.Plan", "schema is required")
	}
	if p.backend == nil {
		return nil, errors.NewValueError("Pipeline.Plan", "backend is required")
	}
	avail := p.schema.ColumnTypes()
	for _, st := range p.stages {
		in, err := inputTypes(st.Name(), st.Inputs(), avail)
		if err != nil {
			return nil, err
		}
		if _, dup := avail[st.Name()]; dup {
			return nil, errors.NewValidationError("output",
				fmt.Sprintf("stage %q overwrites an existing column", st.Name()), st.Name())
		}
		out, err := st.Plan(in)
		if err != nil {
			return nil, err
		}
		avail[st.Name()] = out
	}
	if err := p.checkBindings(avail); err != nil {
		return nil, err
	}
	return avail, nil
}

func (p *Pipeline) checkBindings(avail map[string]model.ColumnType) error {
	ft, ok := avail[p.features]
	if !ok {
		return errors.NewUnknownFieldError("features", p.features)
	}
	if !ft.Numeric() {
		return errors.NewValidationError(p.features, "feature column must be numeric", ft.String())
	}
	lt, ok := avail[p.label]
	if !ok {
		return errors.NewUnknownFieldError("label", p.label)
	}
	switch p.backend.Task() {
	case model.TaskRegression:
		if lt.Kind != model.KindFloat && lt.Kind != model.KindBool {
			return errors.NewValidationError(p.label, "regression label must be float32 or bool", lt.String())
		}
	case model.TaskBinaryClassification:
		if lt.Kind != model.KindBool {
			return errors.NewValidationError(p.label, "binary classification label must be bool", lt.String())
		}
	default:
		return errors.NewValidationError("task", "unsupported task", p.backend.Task().String())
	}
	return nil
}

func inputTypes(stage string, inputs []string, avail map[string]model.ColumnType) ([]model.ColumnType, error) {
	out := make([]model.ColumnType, len(inputs))
	for i, name := range inputs {
		t, ok := avail[name]
		if !ok {
			return nil, errors.NewUnknownFieldError(stage, name)
		}
		out[i] = t
	}
	return out, nil
}

// Fit trains the pipeline on records and returns a new FittedPipeline.
//
// Structural errors (UnknownFieldError, type mismatches) are returned before
// any stage is fit. ctx is checked between stages and before training.
// Backend failures are returned as the backend reported them.
func (p *Pipeline) Fit(ctx context.Context, records []schema.Record) (*FittedPipeline, error) {
	if _, err := p.Plan(); err != nil {
		return nil, err
	}
	start := time.Now()
	logger := p.logger.With(log.ModelNameKey, p.backend.Name())
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, len(records),
	)

	rows := make([]model.Row, len(records))
	for i, rec := range records {
		rows[i] = rec.Row()
	}

	types := p.schema.ColumnTypes()
	fitted := make([]model.FittedStage, len(p.stages))
	for i, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in, err := inputTypes(st.Name(), st.Inputs(), types)
		if err != nil {
			return nil, err
		}
		fs, err := st.Fit(in, rows)
		if err != nil {
			return nil, errors.Wrapf(err, "fit stage %q", st.Name())
		}
		if err := applyAll(fs, rows, records); err != nil {
			return nil, err
		}
		fitted[i] = fs
		types[st.Name()] = fs.OutputType()
		logger.Debug("Stage fitted", log.StageKey, st.Name(), "kind", st.Kind(), "output", fs.OutputType().String())
	}

	// Stateful stages report empty input themselves, naming stage and field.
	if len(records) == 0 {
		return nil, errors.NewModelError("Pipeline.Fit", "no records", errors.ErrEmptyData)
	}

	X, err := featureMatrix(rows, records, p.features)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fm, err := p.train(ctx, X, rows, records)
	if err != nil {
		return nil, err
	}

	fp := newFittedPipeline(p.schema, fitted, p.features, p.label, p.backend.Name(), p.backend.Task(), p.seed, fm)
	_, nFeatures := X.Dims()
	logger.Info("Training completed",
		log.SamplesKey, len(records),
		log.FeaturesKey, nFeatures,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return fp, nil
}

func (p *Pipeline) train(ctx context.Context, X *mat.Dense, rows []model.Row, records []schema.Record) (model.FittedModel, error) {
	switch p.backend.Task() {
	case model.TaskRegression:
		b, ok := p.backend.(model.Regressor)
		if !ok {
			break
		}
		y := make([]float64, len(rows))
		for i, row := range rows {
			v, err := labelValue(row, records[i], p.label)
			if err != nil {
				return nil, err
			}
			y[i], _ = v.Float()
		}
		return b.TrainRegression(ctx, X, y, p.seed)
	case model.TaskBinaryClassification:
		b, ok := p.backend.(model.BinaryClassifier)
		if !ok {
			break
		}
		y := make([]bool, len(rows))
		for i, row := range rows {
			v, err := labelValue(row, records[i], p.label)
			if err != nil {
				return nil, err
			}
			y[i] = v.Bool
		}
		return b.TrainBinary(ctx, X, y, p.seed)
	}
	return nil, errors.NewValidationError("backend",
		fmt.Sprintf("backend %q cannot train %s models", p.backend.Name(), p.backend.Task()), p.backend.Name())
}

// applyAll writes the output of fs into every row.
func applyAll(fs model.FittedStage, rows []model.Row, records []schema.Record) error {
	var (
		mu       sync.Mutex
		firstErr error
		firstRow = -1
	)
	parallel.ParallelizeWithThreshold(len(rows), parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			v, err := fs.Apply(rows[i])
			if err != nil {
				mu.Lock()
				if firstRow < 0 || i < firstRow {
					firstRow, firstErr = i, err
				}
				mu.Unlock()
				return
			}
			rows[i][fs.Name()] = v
		}
	})
	if firstErr != nil {
		return errors.Wrapf(firstErr, "stage %q at row %d", fs.Name(), records[firstRow].RowIndex())
	}
	return nil
}

func featureMatrix(rows []model.Row, records []schema.Record, features string) (*mat.Dense, error) {
	var width int
	var data []float64
	for i, row := range rows {
		v, ok := row[features]
		if !ok {
			return nil, errors.NewUnknownFieldError("features", features)
		}
		before := len(data)
		var numeric bool
		data, numeric = v.AppendFloats(data)
		if !numeric {
			return nil, errors.NewValueError("Pipeline.Fit", fmt.Sprintf("feature column %q is not numeric", features))
		}
		w := len(data) - before
		if i == 0 {
			width = w
		} else if w != width {
			return nil, errors.NewDimensionError("Pipeline.Fit", width, w, records[i].RowIndex())
		}
	}
	if width == 0 {
		return nil, errors.NewModelError("Pipeline.Fit", "feature vector is empty", errors.ErrEmptyData)
	}
	return mat.NewDense(len(rows), width, data), nil
}

func labelValue(row model.Row, rec schema.Record, label string) (model.Value, error) {
	v, ok := row[label]
	if !ok {
		return model.Value{}, errors.NewSchemaError(label, -1, rec.RowIndex(), "", "label is missing")
	}
	return v, nil
}
