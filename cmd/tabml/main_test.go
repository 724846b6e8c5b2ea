package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/tabml/internal/fixture"
)

const taxiConfig = `name: taxi
task: regression
schema:
  - {name: VendorId, kind: string, column: 0}
  - {name: RateCode, kind: string, column: 1}
  - {name: PassengerCount, kind: float32, column: 2}
  - {name: TripDistance, kind: float32, column: 3}
  - {name: PaymentType, kind: string, column: 4}
  - {name: FareAmount, kind: float32, column: 5, role: label}
stages:
  - {kind: copy, output: Label, inputs: [FareAmount]}
  - {kind: onehot, output: VendorIdEncoded, inputs: [VendorId]}
  - {kind: onehot, output: RateCodeEncoded, inputs: [RateCode]}
  - {kind: onehot, output: PaymentTypeEncoded, inputs: [PaymentType]}
  - {kind: concat, output: Features, inputs: [VendorIdEncoded, RateCodeEncoded, PassengerCount, TripDistance, PaymentTypeEncoded]}
backend:
  name: linear
seed: 3
folds: 4
`

type workspace struct {
	dir    string
	config string
	data   string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:    dir,
		config: filepath.Join(dir, "taxi.yaml"),
		data:   filepath.Join(dir, "taxi.csv"),
	}
	require.NoError(t, os.WriteFile(ws.config, []byte(taxiConfig), 0o644))

	f, err := os.Create(ws.data)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.Write(fixture.TaxiSchema().Header()))
	require.NoError(t, w.WriteAll(fixture.TaxiRows(120, 4)))
	require.NoError(t, f.Close())
	return ws
}

func (ws workspace) args() *args {
	return &args{
		Config:   ws.config,
		Registry: filepath.Join(ws.dir, "models"),
		History:  filepath.Join(ws.dir, "runs.db"),
		LogLevel: "error",
	}
}

func TestTrainEvaluatePredict(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	model := filepath.Join(ws.dir, "taxi.json")

	a := ws.args()
	a.Train = &trainCmd{Data: ws.data, Out: model, Name: "taxi"}
	var out bytes.Buffer
	require.NoError(t, run(ctx, a, &out))
	assert.Contains(t, out.String(), "Trained linear")
	assert.FileExists(t, model)

	a = ws.args()
	a.Evaluate = &evaluateCmd{Data: ws.data, Model: model}
	out.Reset()
	require.NoError(t, run(ctx, a, &out))
	assert.Contains(t, out.String(), "RSquared Score:           1.00")
	assert.Contains(t, out.String(), "Recorded run")

	a = ws.args()
	a.Predict = &predictCmd{Name: "taxi", Cache: 8, Set: []string{
		"VendorId=VTS", "RateCode=1", "PassengerCount=1", "TripDistance=2", "PaymentType=CRD",
	}}
	out.Reset()
	require.NoError(t, run(ctx, a, &out))
	var line predictionLine
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.InDelta(t, 9.0, line.Score, 0.05)
	assert.Nil(t, line.PredictedLabel)

	a = ws.args()
	a.Predict = &predictCmd{Data: ws.data, Model: model, Cache: 8}
	out.Reset()
	require.NoError(t, run(ctx, a, &out))
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 120)

	a = ws.args()
	a.Models = &modelsCmd{}
	out.Reset()
	require.NoError(t, run(ctx, a, &out))
	assert.Equal(t, "taxi\n", out.String())
}

func TestFittedPipelineNeedsNoExperiment(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	modelPath := filepath.Join(ws.dir, "taxi.json")

	a := ws.args()
	a.Train = &trainCmd{Data: ws.data, Out: modelPath, Name: "taxi"}
	require.NoError(t, run(ctx, a, &bytes.Buffer{}))

	a = ws.args()
	a.Config = ""
	a.Evaluate = &evaluateCmd{Data: ws.data, Model: modelPath}
	var out bytes.Buffer
	require.NoError(t, run(ctx, a, &out))
	assert.Contains(t, out.String(), "RSquared Score:           1.00")
	assert.Contains(t, out.String(), "Samples:                  120")

	a = ws.args()
	a.Config = ""
	a.Evaluate = &evaluateCmd{Data: ws.data, Split: true}
	assert.ErrorContains(t, run(ctx, a, &bytes.Buffer{}), "--config or --preset")

	records := []struct {
		name string
		cmd  *predictCmd
	}{
		{"json", &predictCmd{Model: modelPath, Cache: 8,
			Record: `{"VendorId": "VTS", "RateCode": "1", "PassengerCount": 1, "TripDistance": 2, "PaymentType": "CRD"}`}},
		{"csv row with blank label", &predictCmd{Model: modelPath, Cache: 8, Record: "VTS,1,1,2,CRD,"}},
		{"csv row without label", &predictCmd{Model: modelPath, Cache: 8, Record: "VTS,1,1,2,CRD"}},
		{"registry name", &predictCmd{Name: "taxi", Cache: 8, Model: "VTS,1,1,2,CRD"}},
	}
	for _, tc := range records {
		t.Run(tc.name, func(t *testing.T) {
			a := ws.args()
			a.Config = ""
			a.Predict = tc.cmd
			var out bytes.Buffer
			require.NoError(t, run(ctx, a, &out))
			var line predictionLine
			require.NoError(t, json.Unmarshal(out.Bytes(), &line))
			assert.InDelta(t, 9.0, line.Score, 0.05)
		})
	}

	a = ws.args()
	a.Predict = &predictCmd{Model: modelPath, Cache: 8, Record: "VTS,1,1,2,CRD,9,extra"}
	assert.ErrorContains(t, run(ctx, a, &bytes.Buffer{}), "columns")

	a = ws.args()
	a.Predict = &predictCmd{Model: modelPath, Cache: 8, Record: `{"VendorId": [1]}`}
	assert.ErrorContains(t, run(ctx, a, &bytes.Buffer{}), "unsupported JSON value")
}

func TestEvaluateSplitAndCrossValidate(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()

	a := ws.args()
	a.Evaluate = &evaluateCmd{Data: ws.data, Split: true, TestFraction: 0.25,
		Plot: filepath.Join(ws.dir, "pred.png")}
	var out bytes.Buffer
	require.NoError(t, run(ctx, a, &out))
	assert.Contains(t, out.String(), "Samples:                  30")
	assert.FileExists(t, filepath.Join(ws.dir, "pred.png"))

	a = ws.args()
	a.CrossValidate = &crossvalidateCmd{Data: ws.data, Workers: 2, NoProgress: true}
	out.Reset()
	require.NoError(t, run(ctx, a, &out))
	assert.Contains(t, out.String(), "Fold 3: train=90 test=30")
	assert.Contains(t, out.String(), "4-fold cross-validation of linear")

	a = ws.args()
	a.Runs = &runsCmd{}
	out.Reset()
	require.NoError(t, run(ctx, a, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "crossvalidate")
	assert.Contains(t, lines[2], "evaluate")
}

func TestRunErrors(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()

	a := ws.args()
	a.Config = ""
	a.Train = &trainCmd{Data: ws.data, Out: "x"}
	assert.ErrorContains(t, run(ctx, a, &bytes.Buffer{}), "--config or --preset")

	a = ws.args()
	a.Preset = "nope"
	a.Config = ""
	a.Train = &trainCmd{Data: ws.data, Out: "x"}
	assert.ErrorContains(t, run(ctx, a, &bytes.Buffer{}), "unknown preset")

	a = ws.args()
	a.Train = &trainCmd{Data: ws.data}
	assert.ErrorContains(t, run(ctx, a, &bytes.Buffer{}), "--out or --name")

	a = ws.args()
	a.Predict = &predictCmd{Name: "missing", Cache: 8, Set: []string{"VendorId=VTS"}}
	assert.Error(t, run(ctx, a, &bytes.Buffer{}))

	a = ws.args()
	a.Train = &trainCmd{Data: filepath.Join(ws.dir, "absent.csv"), Out: "x"}
	assert.Error(t, run(ctx, a, &bytes.Buffer{}))
}
