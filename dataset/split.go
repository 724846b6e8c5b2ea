package dataset

import (
	"math"
	"math/bits"
	"math/rand/v2"
	"sort"

	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/schema"
)

// streamIncrement is xored into the seed to form the second PCG word.
const streamIncrement = 0x9e3779b97f4a7c15

// NewSource returns the PCG-DXSM generator used for every data shuffle,
// seeded with (seed, seed^0x9e3779b97f4a7c15).
func NewSource(seed uint64) *rand.PCG {
	return rand.NewPCG(seed, seed^streamIncrement)
}

// Permutation returns a seeded permutation of [0, n). It starts from the
// identity and, for i from n-1 down to 1, swaps i with j uniform in [0, i].
// j is drawn from the NewSource stream by Lemire's multiply-and-reject
// method, so the result depends only on the PCG-DXSM output sequence.
func Permutation(n int, seed uint64) []int {
	src := NewSource(seed)
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := bounded(src, uint64(i+1))
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// bounded returns a uniform value in [0, n): the high word of x*n for a
// 64-bit draw x, redrawing while the low word is below 2^64 mod n.
func bounded(src rand.Source, n uint64) uint64 {
	hi, lo := bits.Mul64(src.Uint64(), n)
	if lo < n {
		threshold := -n % n
		for lo < threshold {
			hi, lo = bits.Mul64(src.Uint64(), n)
		}
	}
	return hi
}

// TrainTestSplit holds out round(testFraction*n) records chosen by a seeded
// permutation. Both parts keep the source order.
func TrainTestSplit(records []schema.Record, testFraction float64, seed uint64) (train, test []schema.Record, err error) {
	if !(testFraction > 0 && testFraction < 1) {
		return nil, nil, errors.NewValidationError("test_fraction", "must be in (0, 1)", testFraction)
	}
	n := len(records)
	if n < 2 {
		return nil, nil, errors.NewModelError("TrainTestSplit", "need at least two records", errors.ErrEmptyData)
	}
	nTest := int(math.Round(testFraction * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}

	perm := Permutation(n, seed)
	testIdx := perm[:nTest]
	trainIdx := perm[nTest:]
	sort.Ints(testIdx)
	sort.Ints(trainIdx)

	train = make([]schema.Record, len(trainIdx))
	for i, j := range trainIdx {
		train[i] = records[j]
	}
	test = make([]schema.Record, len(testIdx))
	for i, j := range testIdx {
		test[i] = records[j]
	}
	return train, test, nil
}
