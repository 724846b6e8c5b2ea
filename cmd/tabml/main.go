// Command tabml trains, evaluates and applies tabular prediction pipelines
// described by an experiment file or a bundled preset.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alexflint/go-arg"

	"github.com/ezoic/tabml/config"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
)

var version = "0.3.0"

type trainCmd struct {
	Data  string `arg:"positional,required" help:"training data file"`
	Query string `arg:"-q" help:"read records from SQLite database DATA with this query"`
	Out   string `arg:"-o" help:"write the fitted pipeline to this file"`
	Name  string `arg:"-n" help:"store the fitted pipeline in the registry under this name"`
}

type evaluateCmd struct {
	Data         string  `arg:"positional,required" help:"labelled test data file, or training data with --split"`
	Query        string  `arg:"-q" help:"read records from SQLite database DATA with this query"`
	Model        string  `arg:"-m" help:"fitted pipeline file to evaluate; needs no experiment"`
	Name         string  `arg:"-n" help:"registry name of the pipeline to evaluate; needs no experiment"`
	Train        string  `arg:"-t" help:"train on this file first, then evaluate on DATA"`
	Split        bool    `help:"train on part of DATA and evaluate on the held-out rest"`
	TestFraction float64 `arg:"--test-fraction" help:"held-out fraction for --split (default from config)"`
	Plot         string  `help:"save a predicted-versus-actual plot (regression only)"`
}

// trains reports whether the command fits a pipeline from an experiment
// before evaluating.
func (c *evaluateCmd) trains() bool { return c.Split || c.Train != "" }

type predictCmd struct {
	Model  string   `arg:"positional" help:"fitted pipeline file; with --name the first positional is the record"`
	Record string   `arg:"positional" help:"one record as a JSON object or a CSV row in schema column order"`
	Name   string   `arg:"-n" help:"registry name of the pipeline"`
	Data   string   `arg:"-d" help:"delimited file with a header row; - reads stdin"`
	Set    []string `arg:"-s,separate" help:"predict one record given as field=value pairs"`
	Cache  int      `help:"prediction cache size" default:"4096"`
}

type crossvalidateCmd struct {
	Data       string `arg:"positional,required" help:"labelled data file"`
	Query      string `arg:"-q" help:"read records from SQLite database DATA with this query"`
	Folds      int    `arg:"-k" help:"number of folds (default from config)"`
	Workers    int    `arg:"-w" help:"folds fitted concurrently (default from config)"`
	NoProgress bool   `arg:"--no-progress" help:"hide the fold progress bar"`
}

type runsCmd struct {
	Limit int `help:"most recent runs to list, 0 for all" default:"20"`
}

type modelsCmd struct{}

type args struct {
	Train         *trainCmd         `arg:"subcommand:train" help:"fit a pipeline"`
	Evaluate      *evaluateCmd      `arg:"subcommand:evaluate" help:"score a pipeline on labelled data"`
	Predict       *predictCmd       `arg:"subcommand:predict" help:"predict records with a fitted pipeline"`
	CrossValidate *crossvalidateCmd `arg:"subcommand:crossvalidate" help:"k-fold cross-validation"`
	Runs          *runsCmd          `arg:"subcommand:runs" help:"list recorded evaluations"`
	Models        *modelsCmd        `arg:"subcommand:models" help:"list registered pipelines"`

	Config   string  `arg:"-c,env:TABML_CONFIG" help:"experiment file"`
	Preset   string  `arg:"-p" help:"bundled experiment: taxi-fare or credit-card-fraud"`
	Seed     *uint64 `help:"override the experiment seed"`
	Registry string  `arg:"env:TABML_REGISTRY" help:"pipeline registry directory" default:"models"`
	History  string  `arg:"env:TABML_HISTORY" help:"SQLite run history; empty disables recording"`
	LogLevel string  `arg:"--log-level" help:"debug, info, warn or error (default from config)"`
	LogFile  string  `arg:"--log-file" help:"also write logs to this rotated file"`
}

func (args) Version() string { return "tabml " + version }

func (args) Description() string {
	return "tabml fits and evaluates tabular prediction pipelines."
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, &a, os.Stdout); err != nil {
		log.LogError(err, "Command failed")
		fmt.Fprintf(os.Stderr, "tabml: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *args, stdout io.Writer) error {
	switch {
	case a.Models != nil:
		return listModels(a, stdout)
	case a.Runs != nil:
		return listRuns(ctx, a, stdout)
	case a.Predict != nil:
		log.Setup(log.Options{Level: firstNonEmpty(a.LogLevel, config.DefaultLogLevel), File: a.LogFile})
		return predict(a, stdout)
	case a.Evaluate != nil && !a.Evaluate.trains():
		var cfg *config.Config
		if a.Config != "" || a.Preset != "" {
			c, err := loadConfig(a)
			if err != nil {
				return err
			}
			cfg = c
		}
		level := a.LogLevel
		if cfg != nil {
			level = firstNonEmpty(level, cfg.LogLevel)
		}
		log.Setup(log.Options{Level: firstNonEmpty(level, config.DefaultLogLevel), File: a.LogFile})
		return evaluateFitted(ctx, a, cfg, stdout)
	}

	cfg, err := loadConfig(a)
	if err != nil {
		return err
	}
	log.Setup(log.Options{Level: firstNonEmpty(a.LogLevel, cfg.LogLevel), File: a.LogFile})

	switch {
	case a.Train != nil:
		return train(ctx, a, cfg, stdout)
	case a.Evaluate != nil:
		return evaluate(ctx, a, cfg, stdout)
	case a.CrossValidate != nil:
		return crossValidate(ctx, a, cfg, stdout)
	}
	return errors.New("no command given")
}

func loadConfig(a *args) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case a.Config != "" && a.Preset != "":
		return nil, errors.New("--config and --preset are mutually exclusive")
	case a.Config != "":
		c, err := config.Load(a.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	case a.Preset != "":
		build, ok := config.Presets[a.Preset]
		if !ok {
			return nil, errors.Newf("unknown preset %q", a.Preset)
		}
		cfg = build()
	default:
		return nil, errors.New("one of --config or --preset is required")
	}
	if a.Seed != nil {
		cfg.Seed = *a.Seed
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
