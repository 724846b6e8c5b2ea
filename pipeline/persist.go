package pipeline

import (
	"encoding/json"
	"io"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/preprocessing"
	"github.com/ezoic/tabml/schema"
)

// EnvelopeName names fitted pipeline payloads.
const EnvelopeName = "FittedPipeline"

type persistedStage struct {
	Kind   string          `json:"kind"`
	Output string          `json:"output"`
	Inputs []string        `json:"inputs"`
	Params json.RawMessage `json:"params"`
}

type persistedModel struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

type persistedPipeline struct {
	Schema   []schema.FieldSpec `json:"schema"`
	Features string             `json:"features"`
	Label    string             `json:"label"`
	Backend  string             `json:"backend"`
	Task     string             `json:"task"`
	Seed     uint64             `json:"seed"`
	Stages   []persistedStage   `json:"stages"`
	Model    persistedModel     `json:"model"`
}

func (fp *FittedPipeline) persisted() (*persistedPipeline, error) {
	pp := &persistedPipeline{
		Schema:   fp.schema.Specs(),
		Features: fp.features,
		Label:    fp.label,
		Backend:  fp.backend,
		Task:     fp.task.String(),
		Seed:     fp.seed,
		Stages:   make([]persistedStage, len(fp.stages)),
	}
	for i, st := range fp.stages {
		raw, err := json.Marshal(st.Params())
		if err != nil {
			return nil, errors.Wrapf(err, "marshal stage %q", st.Name())
		}
		pp.Stages[i] = persistedStage{Kind: st.Kind(), Output: st.Name(), Inputs: st.Inputs(), Params: raw}
	}
	raw, err := json.Marshal(fp.model.Params())
	if err != nil {
		return nil, errors.Wrap(err, "marshal model")
	}
	pp.Model = persistedModel{Kind: fp.model.Kind(), Params: raw}
	return pp, nil
}

// Save writes fp to w as a digest-protected envelope.
func (fp *FittedPipeline) Save(w io.Writer) error {
	pp, err := fp.persisted()
	if err != nil {
		return errors.NewPersistenceError("save", "", err)
	}
	return model.Export(w, EnvelopeName, pp)
}

// SaveFile writes fp to path.
func (fp *FittedPipeline) SaveFile(path string) error {
	pp, err := fp.persisted()
	if err != nil {
		return errors.NewPersistenceError("save", path, err)
	}
	return model.SaveFile(path, EnvelopeName, pp)
}

// Load reads a fitted pipeline saved with Save. decode rebuilds the model
// from its persisted kind and params.
func Load(r io.Reader, decode model.ModelDecoder) (*FittedPipeline, error) {
	env, err := model.Import(r)
	if err != nil {
		return nil, err
	}
	fp, err := fromEnvelope(env, decode)
	if err != nil {
		return nil, errors.NewPersistenceError("load", "", err)
	}
	return fp, nil
}

// LoadFile reads a fitted pipeline from path.
func LoadFile(path string, decode model.ModelDecoder) (*FittedPipeline, error) {
	env, err := model.LoadFile(path)
	if err != nil {
		return nil, err
	}
	fp, err := fromEnvelope(env, decode)
	if err != nil {
		return nil, errors.NewPersistenceError("load", path, err)
	}
	return fp, nil
}

func fromEnvelope(env *model.Envelope, decode model.ModelDecoder) (*FittedPipeline, error) {
	var pp persistedPipeline
	if err := env.Open(EnvelopeName, &pp); err != nil {
		return nil, err
	}
	s, err := schema.FromSpecs(pp.Schema)
	if err != nil {
		return nil, err
	}
	stages := make([]model.FittedStage, len(pp.Stages))
	for i, ps := range pp.Stages {
		st, err := preprocessing.DecodeFitted(ps.Kind, ps.Output, ps.Inputs, ps.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", ps.Output)
		}
		stages[i] = st
	}
	m, err := decode(pp.Model.Kind, pp.Model.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "model %q", pp.Model.Kind)
	}
	var task model.Task
	switch pp.Task {
	case model.TaskRegression.String():
		task = model.TaskRegression
	case model.TaskBinaryClassification.String():
		task = model.TaskBinaryClassification
	default:
		return nil, errors.NewValueError("pipeline.Load", "unknown task "+pp.Task)
	}
	return newFittedPipeline(s, stages, pp.Features, pp.Label, pp.Backend, task, pp.Seed, m), nil
}
