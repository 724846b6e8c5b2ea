package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/ezoic/tabml/backend"
	"github.com/ezoic/tabml/config"
	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/dataset"
	"github.com/ezoic/tabml/evaluation"
	"github.com/ezoic/tabml/metrics"
	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
	"github.com/ezoic/tabml/registry"
	"github.com/ezoic/tabml/report"
	"github.com/ezoic/tabml/schema"
	"github.com/ezoic/tabml/serving"
	"github.com/ezoic/tabml/store"
)

func loadRecords(ctx context.Context, opts dataset.CSVOptions, s *schema.Schema, path, query string) ([]schema.Record, error) {
	if query != "" {
		return dataset.ReadSQLite(ctx, path, query, s)
	}
	return dataset.ReadCSVFile(path, s, opts)
}

func fit(ctx context.Context, cfg *config.Config, path, query string) (*pipeline.FittedPipeline, error) {
	p, err := cfg.Pipeline()
	if err != nil {
		return nil, err
	}
	records, err := loadRecords(ctx, cfg.CSVOptions(), p.Schema(), path, query)
	if err != nil {
		return nil, err
	}
	return p.Fit(ctx, records)
}

func loadFitted(a *args, path, name string) (*pipeline.FittedPipeline, error) {
	switch {
	case path != "" && name != "":
		return nil, errors.New("--model and --name are mutually exclusive")
	case path != "":
		return pipeline.LoadFile(path, backend.DecodeModel)
	case name != "":
		return registry.Open(a.Registry).Get(name, backend.DecodeModel)
	}
	return nil, errors.New("one of --model or --name is required")
}

func save(a *args, fp *pipeline.FittedPipeline, path, name string, stdout io.Writer) error {
	if path != "" {
		if err := fp.SaveFile(path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved pipeline to %s\n", path)
	}
	if name != "" {
		if err := registry.Open(a.Registry).Put(name, fp); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Registered pipeline %q in %s\n", name, a.Registry)
	}
	return nil
}

func train(ctx context.Context, a *args, cfg *config.Config, stdout io.Writer) error {
	c := a.Train
	if c.Out == "" && c.Name == "" {
		return errors.New("one of --out or --name is required")
	}
	fp, err := fit(ctx, cfg, c.Data, c.Query)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Trained %s on %s with %d features\n", fp.Backend(), c.Data, fp.NumFeatures())
	return save(a, fp, c.Out, c.Name, stdout)
}

// evaluate fits a pipeline from the experiment, on a separate file or on a
// split of DATA, and scores it.
func evaluate(ctx context.Context, a *args, cfg *config.Config, stdout io.Writer) error {
	c := a.Evaluate
	p, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	records, err := loadRecords(ctx, cfg.CSVOptions(), p.Schema(), c.Data, c.Query)
	if err != nil {
		return err
	}

	var fp *pipeline.FittedPipeline
	if c.Split {
		fraction := c.TestFraction
		if fraction == 0 {
			fraction = cfg.TestFraction
		}
		if fraction == 0 {
			fraction = 0.2
		}
		trainSet, testSet, err := dataset.TrainTestSplit(records, fraction, cfg.Seed)
		if err != nil {
			return err
		}
		if fp, err = p.Fit(ctx, trainSet); err != nil {
			return err
		}
		records = testSet
	} else if fp, err = fit(ctx, cfg, c.Train, c.Query); err != nil {
		return err
	}
	return scoreAndReport(ctx, a, fp, records, cfg.String(), stdout)
}

// evaluateFitted scores a saved pipeline. DATA is read with the pipeline's
// own schema; cfg, when given, only supplies the CSV options.
func evaluateFitted(ctx context.Context, a *args, cfg *config.Config, stdout io.Writer) error {
	c := a.Evaluate
	fp, err := loadFitted(a, c.Model, c.Name)
	if err != nil {
		return err
	}
	opts := dataset.DefaultCSVOptions()
	if cfg != nil {
		opts = cfg.CSVOptions()
	}
	records, err := loadRecords(ctx, opts, fp.Schema(), c.Data, c.Query)
	if err != nil {
		return err
	}
	return scoreAndReport(ctx, a, fp, records, firstNonEmpty(c.Name, c.Model), stdout)
}

func scoreAndReport(ctx context.Context, a *args, fp *pipeline.FittedPipeline, records []schema.Record, title string, stdout io.Writer) error {
	c := a.Evaluate
	outcomes, err := evaluation.Score(fp, records)
	if err != nil {
		return err
	}
	rep, err := evaluation.NewReport(fp.Task(), outcomes)
	if err != nil {
		return err
	}
	if err := report.Fprint(stdout, fmt.Sprintf("Metrics for %s %s model", fp.Backend(), fp.Task()), rep); err != nil {
		return err
	}
	if c.Plot != "" {
		if fp.Task() != model.TaskRegression {
			return errors.New("--plot requires a regression pipeline")
		}
		if err := report.SavePredictions(c.Plot, title, outcomes); err != nil {
			return err
		}
	}
	return recordRun(ctx, a, store.KindEvaluate, fp.Backend(), c.Data, fp.Seed(), rep, stdout)
}

func crossValidate(ctx context.Context, a *args, cfg *config.Config, stdout io.Writer) error {
	c := a.CrossValidate
	p, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	records, err := loadRecords(ctx, cfg.CSVOptions(), p.Schema(), c.Data, c.Query)
	if err != nil {
		return err
	}
	k := cfg.Folds
	if c.Folds > 0 {
		k = c.Folds
	}
	workers := cfg.Workers
	if c.Workers > 0 {
		workers = c.Workers
	}

	opts := []evaluation.CVOption{evaluation.WithWorkers(workers)}
	var bar *pb.ProgressBar
	if !c.NoProgress {
		bar = pb.New(k).SetWriter(os.Stderr)
		bar.Start()
		opts = append(opts, evaluation.OnFoldDone(func(evaluation.FoldResult) { bar.Increment() }))
	}
	res, err := evaluation.CrossValidate(ctx, p, records, k, cfg.Seed, opts...)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%d-fold cross-validation of %s", k, p.Backend().Name())
	if err := report.FprintCV(stdout, title, res); err != nil {
		return err
	}
	return recordRun(ctx, a, store.KindCrossValidate, p.Backend().Name(), c.Data, cfg.Seed, res.Mean, stdout)
}

func recordRun(ctx context.Context, a *args, kind, backendName, data string, seed uint64, rep metrics.Report, stdout io.Writer) error {
	if a.History == "" {
		return nil
	}
	runs, err := store.Open(a.History)
	if err != nil {
		return err
	}
	defer runs.Close()
	id, err := runs.Record(ctx, store.NewRun(kind, backendName, data, seed, rep))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Recorded run %s\n", id)
	return nil
}

type predictionLine struct {
	Row            int     `json:"row"`
	Score          float64 `json:"score"`
	PredictedLabel *bool   `json:"predicted_label,omitempty"`
}

func newPredictionLine(row int, p pipeline.Prediction) predictionLine {
	line := predictionLine{Row: row, Score: p.Score}
	if p.Task == model.TaskBinaryClassification {
		label := p.PredictedLabel
		line.PredictedLabel = &label
	}
	return line
}

// parseRecord reads one record given on the command line: a JSON object
// keyed by field name, or a delimited row in schema column order. Empty
// cells of label and ignore fields are dropped so they may be left blank.
func parseRecord(s *schema.Schema, text string) (map[string]string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, errors.Wrap(err, "parse JSON record")
		}
		raw := make(map[string]string, len(obj))
		for name, v := range obj {
			switch v := v.(type) {
			case string:
				raw[name] = v
			case float64:
				raw[name] = strconv.FormatFloat(v, 'g', -1, 64)
			case bool:
				raw[name] = strconv.FormatBool(v)
			case nil:
			default:
				return nil, errors.Newf("field %q: unsupported JSON value %v", name, v)
			}
		}
		return raw, nil
	}

	fields, err := csv.NewReader(strings.NewReader(text)).Read()
	if err != nil {
		return nil, errors.Wrap(err, "parse CSV record")
	}
	header := s.Header()
	if len(fields) > len(header) {
		return nil, errors.Newf("record has %d columns, schema declares %d", len(fields), len(header))
	}
	raw := make(map[string]string, len(fields))
	for i, v := range fields {
		f, _ := s.Field(header[i])
		if v == "" && f.Role != schema.RoleFeature {
			continue
		}
		raw[f.Name] = v
	}
	return raw, nil
}

// predict writes one JSON prediction per line for a single record given
// positionally or with --set, or for every row of a delimited file with a
// header.
func predict(a *args, stdout io.Writer) error {
	c := a.Predict
	modelPath, record := c.Model, c.Record
	if c.Name != "" && record == "" {
		modelPath, record = "", c.Model
	}
	fp, err := loadFitted(a, modelPath, c.Name)
	if err != nil {
		return err
	}
	cached, err := serving.NewCachedPredictor(fp, c.Cache)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)

	switch {
	case record != "":
		raw, err := parseRecord(fp.Schema(), record)
		if err != nil {
			return err
		}
		p, err := cached.PredictMap(raw)
		if err != nil {
			return err
		}
		return enc.Encode(newPredictionLine(0, p))
	case len(c.Set) > 0:
		raw := make(map[string]string, len(c.Set))
		for _, kv := range c.Set {
			name, value, ok := strings.Cut(kv, "=")
			if !ok {
				return errors.Newf("--set %q: expected field=value", kv)
			}
			raw[name] = value
		}
		p, err := cached.PredictMap(raw)
		if err != nil {
			return err
		}
		return enc.Encode(newPredictionLine(0, p))
	case c.Data == "":
		return errors.New("give a record, --set or --data")
	}

	in := io.Reader(os.Stdin)
	if c.Data != "-" {
		f, err := os.Open(c.Data)
		if err != nil {
			return errors.Wrap(err, "open data")
		}
		defer f.Close()
		in = f
	}
	cr := csv.NewReader(in)
	header, err := cr.Read()
	if err != nil {
		return errors.Wrap(err, "read header")
	}
	for row := 0; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "read row %d", row)
		}
		raw := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				raw[name] = fields[i]
			}
		}
		p, err := cached.PredictMap(raw)
		if err != nil {
			return errors.Wrapf(err, "row %d", row)
		}
		if err := enc.Encode(newPredictionLine(row, p)); err != nil {
			return errors.Wrap(err, "write prediction")
		}
	}
	s := cached.Stats()
	log.GetLoggerWithName("predict").Debug("Predictions written", "hits", s.Hits, "misses", s.Misses)
	return nil
}

func listModels(a *args, stdout io.Writer) error {
	for _, name := range registry.Open(a.Registry).Names() {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

func listRuns(ctx context.Context, a *args, stdout io.Writer) error {
	if a.History == "" {
		return errors.New("--history is required")
	}
	runs, err := store.Open(a.History)
	if err != nil {
		return err
	}
	defer runs.Close()
	list, err := runs.List(ctx, a.Runs.Limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tKIND\tBACKEND\tSAMPLES\tHEADLINE")
	for _, r := range list {
		headline := ""
		if len(r.Metrics) > 0 {
			headline = fmt.Sprintf("%s=%.4f", r.Metrics[0].Name, r.Metrics[0].Value)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.CreatedAt.Local().Format(time.DateTime),
			r.Kind, r.Backend, r.Samples, headline)
	}
	return w.Flush()
}
