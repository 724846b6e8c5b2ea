// Package config loads experiment definitions from YAML.
//
// An experiment names everything a run needs: the input schema, the stage
// chain, the feature and label columns, the backend and its parameters, the
// seed, and how the data files are read. A minimal file:
//
//	task: regression
//	schema:
//	  - {name: VendorId, kind: string, column: 0}
//	  - {name: TripDistance, kind: float32, column: 1}
//	  - {name: FareAmount, kind: float32, column: 2, role: label}
//	stages:
//	  - {kind: copy, output: Label, inputs: [FareAmount]}
//	  - {kind: onehot, output: VendorIdEncoded, inputs: [VendorId]}
//	  - {kind: concat, output: Features, inputs: [VendorIdEncoded, TripDistance]}
//	backend:
//	  name: fasttree
//	  params: {leaves: 50, trees: 200, min_per_leaf: 30, learning_rate: 0.2}
package config

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v2"

	"github.com/ezoic/tabml/backend"
	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/dataset"
	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/preprocessing"
	"github.com/ezoic/tabml/schema"
)

// Defaults applied by Parse and Load.
const (
	DefaultFolds     = 5
	DefaultSeparator = ","
	DefaultLogLevel  = "info"
)

// BackendConfig selects a backend and its hyperparameters.
type BackendConfig struct {
	Name   string                `yaml:"name"`
	Params model.Hyperparameters `yaml:"params,omitempty"`
}

// CSVConfig controls how data files are read.
type CSVConfig struct {
	Separator string `yaml:"separator,omitempty"`
	Header    *bool  `yaml:"header,omitempty"`
}

// Config is one experiment definition.
type Config struct {
	Name         string               `yaml:"name,omitempty"`
	Task         string               `yaml:"task"`
	Schema       []schema.FieldSpec   `yaml:"schema"`
	Stages       []preprocessing.Spec `yaml:"stages"`
	Features     string               `yaml:"features,omitempty"`
	Label        string               `yaml:"label,omitempty"`
	Backend      BackendConfig        `yaml:"backend"`
	Seed         uint64               `yaml:"seed"`
	Folds        int                  `yaml:"folds,omitempty"`
	Workers      int                  `yaml:"workers,omitempty"`
	TestFraction float64              `yaml:"test_fraction,omitempty"`
	CSV          CSVConfig            `yaml:"csv,omitempty"`
	LogLevel     string               `yaml:"log_level,omitempty"`
}

// Parse decodes a YAML experiment, applies defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses the experiment file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Features == "" {
		c.Features = pipeline.DefaultFeatureColumn
	}
	if c.Label == "" {
		c.Label = pipeline.DefaultLabelColumn
	}
	if c.Folds == 0 {
		c.Folds = DefaultFolds
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.CSV.Separator == "" {
		c.CSV.Separator = DefaultSeparator
	}
	if c.CSV.Header == nil {
		header := true
		c.CSV.Header = &header
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks everything that can be checked without data: the schema,
// every stage, the backend for the task, and that the stage chain plans.
func (c *Config) Validate() error {
	if _, err := backend.ParseTask(c.Task); err != nil {
		return err
	}
	if c.Folds < 2 {
		return errors.NewValidationError("folds", "must be at least 2", c.Folds)
	}
	if c.Workers < 0 {
		return errors.NewValidationError("workers", "must not be negative", c.Workers)
	}
	if c.TestFraction < 0 || c.TestFraction >= 1 {
		return errors.NewValidationError("test_fraction", "must be in [0, 1)", c.TestFraction)
	}
	if utf8.RuneCountInString(c.CSV.Separator) != 1 {
		return errors.NewValidationError("csv.separator", "must be a single character", c.CSV.Separator)
	}
	if _, err := c.Pipeline(); err != nil {
		return err
	}
	return nil
}

// TaskValue returns the parsed task.
func (c *Config) TaskValue() (model.Task, error) {
	return backend.ParseTask(c.Task)
}

// BuildSchema builds the input schema.
func (c *Config) BuildSchema() (*schema.Schema, error) {
	return schema.FromSpecs(c.Schema)
}

// BuildStages builds the unfitted stage chain.
func (c *Config) BuildStages() ([]model.Stage, error) {
	stages := make([]model.Stage, len(c.Stages))
	for i, spec := range c.Stages {
		st, err := preprocessing.NewStage(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %d", i)
		}
		stages[i] = st
	}
	return stages, nil
}

// BuildBackend builds the configured backend for the task.
func (c *Config) BuildBackend() (model.Backend, error) {
	task, err := c.TaskValue()
	if err != nil {
		return nil, err
	}
	return backend.New(c.Backend.Name, task, c.Backend.Params)
}

// Pipeline builds the unfitted pipeline and checks that it plans.
func (c *Config) Pipeline() (*pipeline.Pipeline, error) {
	s, err := c.BuildSchema()
	if err != nil {
		return nil, err
	}
	stages, err := c.BuildStages()
	if err != nil {
		return nil, err
	}
	b, err := c.BuildBackend()
	if err != nil {
		return nil, err
	}
	p := pipeline.New(s, b, stages,
		pipeline.WithFeatureColumn(c.Features),
		pipeline.WithLabelColumn(c.Label),
		pipeline.WithSeed(c.Seed),
	)
	if _, err := p.Plan(); err != nil {
		return nil, err
	}
	return p, nil
}

// CSVOptions returns the reader options for data files.
func (c *Config) CSVOptions() dataset.CSVOptions {
	opts := dataset.DefaultCSVOptions()
	if r, _ := utf8.DecodeRuneInString(c.CSV.Separator); r != utf8.RuneError {
		opts.Separator = r
	}
	if c.CSV.Header != nil {
		opts.HasHeader = *c.CSV.Header
	}
	return opts
}

func (c *Config) String() string {
	name := c.Name
	if name == "" {
		name = "experiment"
	}
	return fmt.Sprintf("%s (%s, %s)", name, c.Task, c.Backend.Name)
}
