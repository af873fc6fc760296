package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WeightedSlope fits y = alpha + beta*x by weighted least squares and returns
// beta and the coefficient of determination. Fewer than two distinct x values
// give a NaN slope.
func WeightedSlope(x, y, weights []float64) (slope, r2 float64) {
	if len(x) < 2 || !hasSpread(x) {
		return math.NaN(), math.NaN()
	}
	alpha, beta := stat.LinearRegression(x, y, weights, false)
	return beta, stat.RSquared(x, y, weights, alpha, beta)
}

func hasSpread(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return true
		}
	}
	return false
}

// Median of the values; the mean of the two middle values for even sizes.
func Median(values []int) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return float64(sorted[mid-1]+sorted[mid]) / 2
	}
	return float64(sorted[mid])
}

// Mean of int values via gonum.
func Mean(values []int) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	fs := make([]float64, len(values))
	for i, v := range values {
		fs[i] = float64(v)
	}
	return stat.Mean(fs, nil)
}
