package pipeline

import (
	"fmt"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/schema"
)

// Prediction is the result of predicting one record. For regression Score
// is the estimate and PredictedLabel is false. For binary classification
// Score is the positive-class probability and PredictedLabel is Score >= 0.5
// as decided by the backend.
type Prediction struct {
	Score          float64    `json:"score"`
	PredictedLabel bool       `json:"predicted_label"`
	Task           model.Task `json:"-"`
}

// FittedPipeline is a trained stage chain plus model. It is immutable and
// safe for concurrent use.
type FittedPipeline struct {
	schema   *schema.Schema
	stages   []model.FittedStage
	features string
	label    string
	backend  string
	task     model.Task
	seed     uint64
	model    model.FittedModel

	featureStages []int
	labelStages   []int
	featureFields []string
}

func newFittedPipeline(s *schema.Schema, stages []model.FittedStage, features, label, backend string,
	task model.Task, seed uint64, m model.FittedModel) *FittedPipeline {
	fp := &FittedPipeline{
		schema:   s,
		stages:   stages,
		features: features,
		label:    label,
		backend:  backend,
		task:     task,
		seed:     seed,
		model:    m,
	}
	fp.featureStages = closure(stages, features)
	fp.labelStages = closure(stages, label)
	fp.featureFields = sourceFields(s, stages, fp.featureStages, features)
	return fp
}

// sourceFields returns, in schema order, the schema fields read by the
// stages in order or named by column directly.
func sourceFields(s *schema.Schema, stages []model.FittedStage, order []int, column string) []string {
	read := map[string]bool{column: true}
	for _, i := range order {
		for _, in := range stages[i].Inputs() {
			read[in] = true
		}
	}
	var out []string
	for _, f := range s.Fields() {
		if read[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

// closure returns, in declared order, the indices of the stages column
// transitively depends on.
func closure(stages []model.FittedStage, column string) []int {
	needed := map[string]bool{column: true}
	var idx []int
	for i := len(stages) - 1; i >= 0; i-- {
		st := stages[i]
		if !needed[st.Name()] {
			continue
		}
		idx = append(idx, i)
		for _, in := range st.Inputs() {
			needed[in] = true
		}
	}
	for l, r := 0, len(idx)-1; l < r; l, r = l+1, r-1 {
		idx[l], idx[r] = idx[r], idx[l]
	}
	return idx
}

// Schema returns the input schema.
func (fp *FittedPipeline) Schema() *schema.Schema { return fp.schema }

// Stages returns the fitted stages in declared order.
func (fp *FittedPipeline) Stages() []model.FittedStage {
	return append([]model.FittedStage(nil), fp.stages...)
}

// Model returns the trained model.
func (fp *FittedPipeline) Model() model.FittedModel { return fp.model }

// Task returns the prediction task.
func (fp *FittedPipeline) Task() model.Task { return fp.task }

// Backend returns the name of the backend that trained the model.
func (fp *FittedPipeline) Backend() string { return fp.backend }

// Seed returns the seed the model was trained with.
func (fp *FittedPipeline) Seed() uint64 { return fp.seed }

// FeatureFields returns the schema fields the feature vector is computed
// from, whatever their role.
func (fp *FittedPipeline) FeatureFields() []string {
	return append([]string(nil), fp.featureFields...)
}

// FeatureColumn returns the feature column name.
func (fp *FittedPipeline) FeatureColumn() string { return fp.features }

// LabelColumn returns the label column name.
func (fp *FittedPipeline) LabelColumn() string { return fp.label }

// NumFeatures returns the feature vector length.
func (fp *FittedPipeline) NumFeatures() int { return fp.model.NumFeatures() }

func (fp *FittedPipeline) run(rec schema.Record, order []int) (model.Row, error) {
	row := rec.Row()
	for _, i := range order {
		st := fp.stages[i]
		v, err := st.Apply(row)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", st.Name())
		}
		row[st.Name()] = v
	}
	return row, nil
}

// Transform returns the feature vector of rec. Only the stages the feature
// column depends on run, so label fields may be absent.
func (fp *FittedPipeline) Transform(rec schema.Record) ([]float64, error) {
	row, err := fp.run(rec, fp.featureStages)
	if err != nil {
		return nil, err
	}
	v, ok := row[fp.features]
	if !ok {
		return nil, errors.NewUnknownFieldError("features", fp.features)
	}
	x, ok := v.AppendFloats(make([]float64, 0, fp.model.NumFeatures()))
	if !ok {
		return nil, errors.NewValueError("FittedPipeline.Transform", fmt.Sprintf("feature column %q is not numeric", fp.features))
	}
	if len(x) != fp.model.NumFeatures() {
		return nil, errors.NewDimensionError("FittedPipeline.Transform", fp.model.NumFeatures(), len(x), 1)
	}
	return x, nil
}

// Label returns the label column of rec after the stages it depends on.
func (fp *FittedPipeline) Label(rec schema.Record) (model.Value, error) {
	row, err := fp.run(rec, fp.labelStages)
	if err != nil {
		return model.Value{}, err
	}
	return labelValue(row, rec, fp.label)
}

// Predict transforms rec and runs the model on it.
func (fp *FittedPipeline) Predict(rec schema.Record) (Prediction, error) {
	x, err := fp.Transform(rec)
	if err != nil {
		return Prediction{}, err
	}
	return fp.PredictVector(x)
}

// PredictVector runs the model on an already transformed feature vector.
func (fp *FittedPipeline) PredictVector(x []float64) (Prediction, error) {
	switch m := fp.model.(type) {
	case model.BinaryModel:
		label, score, err := m.Predict(x)
		if err != nil {
			return Prediction{}, err
		}
		return Prediction{Score: score, PredictedLabel: label, Task: model.TaskBinaryClassification}, nil
	case model.RegressionModel:
		score, err := m.Predict(x)
		if err != nil {
			return Prediction{}, err
		}
		return Prediction{Score: score, Task: model.TaskRegression}, nil
	default:
		return Prediction{}, errors.NewValueError("FittedPipeline.Predict",
			fmt.Sprintf("model kind %q cannot predict", fp.model.Kind()))
	}
}

// PredictMap validates a name-keyed raw record against the schema and
// predicts it.
func (fp *FittedPipeline) PredictMap(raw map[string]string) (Prediction, error) {
	rec, err := fp.schema.ValidateMap(raw)
	if err != nil {
		return Prediction{}, err
	}
	return fp.Predict(rec)
}
