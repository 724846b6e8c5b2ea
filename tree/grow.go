package tree

import (
	"math"

	"github.com/ezoic/tabml/core/parallel"
)

// grower builds one tree from binned rows and the current gradients.
type grower struct {
	params Params
	bn     *binner
	bins   [][]uint16
	grad   []float64
	hess   []float64
}

type split struct {
	feature int
	bin     int
	gain    float64
}

// leaf is a growing leaf: its rows, gradient sums and best split.
type leaf struct {
	rows []int
	g, h float64
	best split
	// parent internal node and side, -1 for the root
	parent int
	left   bool
}

func (gr *grower) grow(rows []int) Tree {
	root := &leaf{rows: rows, parent: -1}
	root.g, root.h = gr.sums(rows)
	gr.findSplit(root)

	var t Tree
	leaves := []*leaf{root}
	for len(leaves) < gr.params.NumLeaves {
		bi := -1
		for i, l := range leaves {
			if l.best.feature >= 0 && (bi < 0 || l.best.gain > leaves[bi].best.gain) {
				bi = i
			}
		}
		if bi < 0 {
			break
		}
		l := leaves[bi]
		node := len(t.Feature)
		t.Feature = append(t.Feature, l.best.feature)
		t.Threshold = append(t.Threshold, gr.bn.bounds[l.best.feature][l.best.bin])
		t.Left = append(t.Left, 0)
		t.Right = append(t.Right, 0)
		if l.parent >= 0 {
			if l.left {
				t.Left[l.parent] = node
			} else {
				t.Right[l.parent] = node
			}
		}

		var lrows, rrows []int
		f, b := l.best.feature, uint16(l.best.bin)
		for _, i := range l.rows {
			if gr.bins[i][f] <= b {
				lrows = append(lrows, i)
			} else {
				rrows = append(rrows, i)
			}
		}
		left := &leaf{rows: lrows, parent: node, left: true}
		right := &leaf{rows: rrows, parent: node, left: false}
		left.g, left.h = gr.sums(lrows)
		right.g, right.h = l.g-left.g, l.h-left.h
		gr.findSplit(left)
		gr.findSplit(right)

		leaves[bi] = left
		leaves = append(leaves, right)
	}

	t.LeafValue = make([]float64, len(leaves))
	for i, l := range leaves {
		t.LeafValue[i] = -l.g / (l.h + gr.params.LambdaL2 + 1e-12) * gr.params.LearningRate
		if l.parent < 0 {
			continue
		}
		if l.left {
			t.Left[l.parent] = ^i
		} else {
			t.Right[l.parent] = ^i
		}
	}
	return t
}

func (gr *grower) sums(rows []int) (g, h float64) {
	for _, i := range rows {
		g += gr.grad[i]
		h += gr.hess[i]
	}
	return g, h
}

func (gr *grower) score(g, h float64) float64 {
	return g * g / (h + gr.params.LambdaL2 + 1e-12)
}

// findSplit stores the best histogram split of l, or feature -1 when no
// split leaves MinDataInLeaf rows on both sides with positive gain.
func (gr *grower) findSplit(l *leaf) {
	l.best = split{feature: -1}
	minLeaf := gr.params.MinDataInLeaf
	if len(l.rows) < 2*minLeaf {
		return
	}
	nFeatures := len(gr.bn.bounds)
	results := make([]split, nFeatures)
	parentScore := gr.score(l.g, l.h)

	parallel.ParallelizeWithThreshold(nFeatures, 4, func(start, end int) {
		for f := start; f < end; f++ {
			nb := len(gr.bn.bounds[f])
			hg := make([]float64, nb)
			hh := make([]float64, nb)
			hc := make([]int, nb)
			for _, i := range l.rows {
				b := gr.bins[i][f]
				hg[b] += gr.grad[i]
				hh[b] += gr.hess[i]
				hc[b]++
			}
			best := split{feature: -1}
			var gl, hl float64
			cl := 0
			for b := 0; b < nb-1; b++ {
				gl += hg[b]
				hl += hh[b]
				cl += hc[b]
				cr := len(l.rows) - cl
				if cl < minLeaf {
					continue
				}
				if cr < minLeaf {
					break
				}
				if hc[b] == 0 && b > 0 {
					continue
				}
				gain := gr.score(gl, hl) + gr.score(l.g-gl, l.h-hl) - parentScore
				if gain > best.gain && !math.IsNaN(gain) {
					best = split{feature: f, bin: b, gain: gain}
				}
			}
			results[f] = best
		}
	})

	for _, s := range results {
		if s.feature >= 0 && s.gain > l.best.gain {
			l.best = s
		}
	}
}
