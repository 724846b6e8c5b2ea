package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/tabml/core/parallel"
)

// binner maps raw feature values to histogram bins. bounds[f] holds the
// strictly increasing upper bound of every bin of feature f, the last one
// being +Inf, so v falls in the first bin whose bound is >= v.
type binner struct {
	bounds [][]float64
}

func newBinner(X mat.Matrix, maxBins int) *binner {
	n, c := X.Dims()
	b := &binner{bounds: make([][]float64, c)}
	parallel.ParallelizeWithThreshold(c, 8, func(start, end int) {
		col := make([]float64, n)
		for f := start; f < end; f++ {
			for i := 0; i < n; i++ {
				col[i] = X.At(i, f)
			}
			b.bounds[f] = featureBounds(col, maxBins)
		}
	})
	return b
}

// featureBounds sorts col in place and derives at most maxBins bins with
// roughly equal counts. Cuts fall midway between adjacent distinct values.
func featureBounds(col []float64, maxBins int) []float64 {
	vals := col[:0]
	for _, v := range col {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	sort.Float64s(vals)

	type run struct {
		v     float64
		count int
	}
	var runs []run
	for _, v := range vals {
		if len(runs) > 0 && runs[len(runs)-1].v == v {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{v: v, count: 1})
	}

	var bounds []float64
	if len(runs) <= maxBins {
		for i := 0; i+1 < len(runs); i++ {
			bounds = append(bounds, midpoint(runs[i].v, runs[i+1].v))
		}
	} else {
		target := float64(len(vals)) / float64(maxBins)
		acc := 0
		for i := 0; i+1 < len(runs) && len(bounds) < maxBins-1; i++ {
			acc += runs[i].count
			if float64(acc) >= target {
				bounds = append(bounds, midpoint(runs[i].v, runs[i+1].v))
				acc = 0
			}
		}
	}
	return append(bounds, math.Inf(1))
}

func midpoint(a, b float64) float64 {
	m := a + (b-a)/2
	if m >= b {
		return a
	}
	return m
}

// bin returns the bin of v for feature f. NaN goes to bin 0.
func (b *binner) bin(f int, v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return sort.SearchFloat64s(b.bounds[f], v)
}

// binAll returns the row-major bin matrix of X.
func (b *binner) binAll(X mat.Matrix) [][]uint16 {
	n, c := X.Dims()
	out := make([][]uint16, n)
	parallel.ParallelizeWithThreshold(n, 4096, func(start, end int) {
		for i := start; i < end; i++ {
			row := make([]uint16, c)
			for f := 0; f < c; f++ {
				row[f] = uint16(b.bin(f, X.At(i, f)))
			}
			out[i] = row
		}
	})
	return out
}
