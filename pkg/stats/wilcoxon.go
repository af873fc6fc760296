// Package stats holds the statistical tests used by the validations.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

var ErrNoObservations = errors.New("no non-zero differences to rank")

// exactLimit is the sample size below which untied data get an exact p-value.
const exactLimit = 50

// Tester is the default statistical backend for the validations.
type Tester struct{}

// WilcoxonSignedRank tests whether values are greater than mu (one-sided
// signed-rank test). Differences equal to zero are dropped. Small samples
// without ties or zeros use the exact null distribution, the rest the normal
// approximation with continuity and tie correction.
func (Tester) WilcoxonSignedRank(values []float64, mu float64) (float64, error) {
	return WilcoxonSignedRank(values, mu)
}

func WilcoxonSignedRank(values []float64, mu float64) (float64, error) {
	diffs := make([]float64, 0, len(values))
	zeros := false
	for _, v := range values {
		d := v - mu
		if d == 0 {
			zeros = true
			continue
		}
		diffs = append(diffs, d)
	}
	n := len(diffs)
	if n == 0 {
		return math.NaN(), ErrNoObservations
	}

	ranks, tieSizes := absRanks(diffs)
	v := 0.0
	for i, d := range diffs {
		if d > 0 {
			v += ranks[i]
		}
	}

	if n < exactLimit && len(tieSizes) == 0 && !zeros {
		return exactUpperTail(n, int(math.Round(v))), nil
	}

	nf := float64(n)
	mean := nf * (nf + 1) / 4
	tieAdj := 0.0
	for _, t := range tieSizes {
		tf := float64(t)
		tieAdj += tf*tf*tf - tf
	}
	sigma := math.Sqrt(nf*(nf+1)*(2*nf+1)/24 - tieAdj/48)
	if sigma == 0 {
		return 1, nil
	}
	z := (v - mean - 0.5) / sigma
	return distuv.UnitNormal.Survival(z), nil
}

// absRanks ranks |d| with average ranks for ties and returns the size of every tie group.
func absRanks(diffs []float64) ([]float64, []int) {
	idx := make([]int, len(diffs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(diffs[idx[a]]) < math.Abs(diffs[idx[b]])
	})

	ranks := make([]float64, len(diffs))
	var ties []int
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && math.Abs(diffs[idx[j]]) == math.Abs(diffs[idx[i]]) {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks i+1..j
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		if j-i > 1 {
			ties = append(ties, j-i)
		}
		i = j
	}
	return ranks, ties
}

// exactUpperTail returns P(V >= v) under the null for n untied ranks.
func exactUpperTail(n, v int) float64 {
	maxSum := n * (n + 1) / 2
	counts := make([]float64, maxSum+1)
	counts[0] = 1
	for r := 1; r <= n; r++ {
		for s := maxSum; s >= r; s-- {
			counts[s] += counts[s-r]
		}
	}
	if v < 0 {
		v = 0
	}
	tail := 0.0
	for s := v; s <= maxSum; s++ {
		tail += counts[s]
	}
	return tail / math.Pow(2, float64(n))
}
