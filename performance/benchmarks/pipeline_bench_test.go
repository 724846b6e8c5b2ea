package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/ezoic/tabml/backend"
	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/evaluation"
	"github.com/ezoic/tabml/internal/fixture"
	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/serving"
)

var sizes = []int{1_000, 10_000, 100_000}

func taxiPipeline(b *testing.B, name string, params model.Hyperparameters) *pipeline.Pipeline {
	b.Helper()
	be, err := backend.New(name, model.TaskRegression, params)
	if err != nil {
		b.Fatal(err)
	}
	return pipeline.New(fixture.TaxiSchema(), be, fixture.TaxiStages(), pipeline.WithSeed(1))
}

// BenchmarkFit measures stage fitting plus training for each backend.
func BenchmarkFit(b *testing.B) {
	backends := []struct {
		name   string
		params model.Hyperparameters
	}{
		{"linear", nil},
		{"fasttree", model.Hyperparameters{"trees": 50, "leaves": 20}},
	}
	for _, n := range sizes {
		records := fixture.TaxiRecords(n, 42)
		for _, be := range backends {
			b.Run(fmt.Sprintf("%s_%d", be.name, n), func(b *testing.B) {
				p := taxiPipeline(b, be.name, be.params)
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := p.Fit(context.Background(), records); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkPredict measures single-record prediction with and without the
// prediction cache.
func BenchmarkPredict(b *testing.B) {
	records := fixture.TaxiRecords(10_000, 42)
	fp, err := taxiPipeline(b, "fasttree", model.Hyperparameters{"trees": 100}).Fit(context.Background(), records)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("Direct", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := fp.Predict(records[i%len(records)]); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Cached", func(b *testing.B) {
		c, err := serving.NewCachedPredictor(fp, serving.DefaultCacheSize)
		if err != nil {
			b.Fatal(err)
		}
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := c.Predict(records[i%len(records)]); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkCrossValidate compares sequential and concurrent folds.
func BenchmarkCrossValidate(b *testing.B) {
	records := fixture.TaxiRecords(20_000, 42)
	p := taxiPipeline(b, "fasttree", model.Hyperparameters{"trees": 30})
	for _, workers := range []int{1, 5} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := evaluation.CrossValidate(context.Background(), p, records, 5, 1,
					evaluation.WithWorkers(workers)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEvaluate measures scoring, which runs in parallel above a
// record threshold.
func BenchmarkEvaluate(b *testing.B) {
	for _, n := range sizes {
		records := fixture.TaxiRecords(n, 42)
		fp, err := taxiPipeline(b, "linear", nil).Fit(context.Background(), records)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("n_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := evaluation.Evaluate(fp, records); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
