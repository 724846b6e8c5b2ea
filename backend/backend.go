// Package backend resolves backend names from configuration to concrete
// model backends, and persisted model kinds back to fitted models.
package backend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/linear"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/tree"
)

type factory struct {
	tasks []model.Task
	build func(task model.Task, params model.Hyperparameters) (model.Backend, error)
}

var factories = map[string]factory{
	linear.RegressionName: {
		tasks: []model.Task{model.TaskRegression},
		build: func(_ model.Task, p model.Hyperparameters) (model.Backend, error) {
			b, err := linear.NewRegression(p)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	},
	linear.LogisticName: {
		tasks: []model.Task{model.TaskBinaryClassification},
		build: func(_ model.Task, p model.Hyperparameters) (model.Backend, error) {
			b, err := linear.NewLogistic(p)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	},
	tree.Name: {
		tasks: []model.Task{model.TaskRegression, model.TaskBinaryClassification},
		build: func(task model.Task, p model.Hyperparameters) (model.Backend, error) {
			params, err := tree.ParseParams(p)
			if err != nil {
				return nil, err
			}
			b, err := tree.New(task, params)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	},
}

// Names returns the registered backend names, sorted.
func Names() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParseTask maps "regression" or "binary" to a task.
func ParseTask(s string) (model.Task, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regression":
		return model.TaskRegression, nil
	case "binary", "binary_classification", "classification":
		return model.TaskBinaryClassification, nil
	default:
		return 0, errors.NewValidationError("task", "must be regression or binary", s)
	}
}

// New builds the backend name for task.
func New(name string, task model.Task, params model.Hyperparameters) (model.Backend, error) {
	f, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewValidationError("backend",
			fmt.Sprintf("unknown backend, expected one of %v", Names()), name)
	}
	supported := false
	for _, t := range f.tasks {
		supported = supported || t == task
	}
	if !supported {
		return nil, errors.NewValidationError("backend",
			fmt.Sprintf("backend %q does not support %s", name, task), name)
	}
	return f.build(task, params)
}

// DecodeModel rebuilds a fitted model from its kind and persisted params.
// It satisfies model.ModelDecoder.
func DecodeModel(kind string, raw []byte) (model.FittedModel, error) {
	switch kind {
	case linear.RegressionName:
		var m linear.RegressionModel
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrap(err, "decode linear model")
		}
		return &m, nil
	case linear.LogisticName:
		var m linear.LogisticModel
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrap(err, "decode logistic model")
		}
		return &m, nil
	case tree.RegressionKind:
		var m tree.RegressionModel
		if err := json.Unmarshal(raw, &m.Ensemble); err != nil {
			return nil, errors.Wrap(err, "decode fasttree model")
		}
		if err := validateEnsemble(&m.Ensemble); err != nil {
			return nil, err
		}
		return &m, nil
	case tree.BinaryKind:
		var m tree.BinaryModel
		if err := json.Unmarshal(raw, &m.Ensemble); err != nil {
			return nil, errors.Wrap(err, "decode fasttree model")
		}
		if err := validateEnsemble(&m.Ensemble); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, errors.NewValueError("backend.DecodeModel", fmt.Sprintf("unknown model kind %q", kind))
	}
}

var _ model.ModelDecoder = DecodeModel

func validateEnsemble(e *tree.Ensemble) error {
	for i, t := range e.Trees {
		n := len(t.Feature)
		if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.LeafValue) != n+1 {
			return errors.NewValueError("backend.DecodeModel", fmt.Sprintf("tree %d is malformed", i))
		}
		for j := 0; j < n; j++ {
			if t.Feature[j] < 0 || t.Feature[j] >= e.Features {
				return errors.NewValueError("backend.DecodeModel", fmt.Sprintf("tree %d splits on feature %d", i, t.Feature[j]))
			}
		}
	}
	return nil
}
