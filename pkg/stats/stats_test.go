package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWilcoxonExact(t *testing.T) {
	// All five differences positive: V = 15, the maximum, so p = 1/32.
	p, err := WilcoxonSignedRank([]float64{1.5, 2.1, 1.2, 3.0, 1.4}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/32, p, 1e-12)

	// All negative: every signed-rank sum is >= 0, p = 1.
	p, err = WilcoxonSignedRank([]float64{0.5, 0.8, 0.1}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-12)
}

func TestWilcoxonNormalApproximationWithTies(t *testing.T) {
	// Differences 1,1,1,1,2,2: ties force the normal approximation.
	p, err := WilcoxonSignedRank([]float64{2, 2, 2, 2, 3, 3}, 1)
	require.NoError(t, err)
	assert.Less(t, p, 0.05)
	assert.Greater(t, p, 0.0)
}

func TestWilcoxonZerosDropped(t *testing.T) {
	_, err := WilcoxonSignedRank([]float64{1, 1, 1}, 1)
	assert.ErrorIs(t, err, ErrNoObservations)

	p, err := Tester{}.WilcoxonSignedRank([]float64{1, 1, 1.2, 1.3, 1.1}, 1)
	require.NoError(t, err)
	assert.True(t, p > 0 && p < 1)
}

func TestExactTailMatchesEnumeration(t *testing.T) {
	// n = 3: sums over subsets of {1,2,3} are 0,1,2,3,3,4,5,6.
	assert.InDelta(t, 3.0/8, exactUpperTail(3, 4), 1e-12)
	assert.InDelta(t, 1.0, exactUpperTail(3, 0), 1e-12)
}

func TestWeightedSlope(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{3, 5, 7, 9}
	slope, r2 := WeightedSlope(x, y, nil)
	assert.InDelta(t, 2.0, slope, 1e-9)
	assert.InDelta(t, 1.0, r2, 1e-9)

	slope, _ = WeightedSlope([]float64{5, 5}, []float64{1, 2}, nil)
	assert.True(t, math.IsNaN(slope))
}

func TestMedianAndMean(t *testing.T) {
	assert.Equal(t, 3.0, Median([]int{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]int{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(Median(nil)))
	assert.InDelta(t, 2.5, Mean([]int{1, 2, 3, 4}), 1e-12)
}
