package cluster

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenario = []int{4, 5, 8, 11, 11, 14, 15, 15, 15, 15, 15, 16, 17, 17, 20}

func TestSingleValue(t *testing.T) {
	for _, m := range []LinkageMethod{NoDuplicateWeighting, AverageLinkage} {
		clusters := Clusterizer{Method: m}.Cluster1D([]int{42})
		require.Len(t, clusters, 1)
		assert.Equal(t, map[int]int{42: 1}, clusters[0].Lengths)
	}

	pairs := Clusterizer{}.Cluster2D([]Point{{3, 9}})
	require.Len(t, pairs, 1)
	assert.Equal(t, map[Point]int{{3, 9}: 1}, pairs[0].Points)
}

func TestEmptyInput(t *testing.T) {
	assert.Nil(t, Clusterizer{}.Cluster1D(nil))
	assert.Nil(t, Clusterizer{}.Cluster2D(nil))

	_, ok := MostDense([]*Cluster{})
	assert.False(t, ok)
}

func TestAllEqualValuesFormOneCluster(t *testing.T) {
	clusters := Clusterizer{}.Cluster1D([]int{7, 7, 7})
	require.Len(t, clusters, 1)
	assert.Equal(t, 3, clusters[0].Density())
}

func TestTargetClusterCount(t *testing.T) {
	clusters := Clusterizer{TargetClusters: 2, Method: AverageLinkage}.Cluster1D(scenario)
	require.Len(t, clusters, 2)

	assert.Equal(t, map[int]int{4: 1, 5: 1, 8: 1, 11: 2}, clusters[0].Lengths)
	assert.Equal(t, map[int]int{14: 1, 15: 5, 16: 1, 17: 2, 20: 1}, clusters[1].Lengths)
}

func TestThresholdPolicyFindsDenseCore(t *testing.T) {
	for _, m := range []LinkageMethod{NoDuplicateWeighting, AverageLinkage} {
		clusters := Clusterizer{Method: m}.Cluster1D(scenario)
		require.Len(t, clusters, 5)

		best, ok := MostDense(clusters)
		require.True(t, ok)
		assert.Equal(t, map[int]int{14: 1, 15: 5, 16: 1, 17: 2}, best.Lengths)
		assert.Equal(t, 15.0, math.Round(best.Mean()))
		assert.InDelta(t, 139.0/9.0, best.Mean(), 1e-9)
	}
}

func TestTargetCountProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for range 100 {
		n := 2 + rng.Intn(40)
		values := make([]int, n)
		distinct := make(map[int]bool)
		for i := range values {
			values[i] = rng.Intn(300)
			distinct[values[i]] = true
		}
		k := 1 + rng.Intn(len(distinct))

		clusters := Clusterizer{TargetClusters: k, Method: LinkageMethod(rng.Intn(2))}.Cluster1D(values)
		assert.Len(t, clusters, k)
	}
}

// Merging never empties a cluster and never loses an observation.
func TestClustersNeverEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for range 100 {
		values := make([]int, 1+rng.Intn(50))
		for i := range values {
			values[i] = rng.Intn(1000)
		}
		clusters := Clusterizer{Method: LinkageMethod(rng.Intn(2))}.Cluster1D(values)

		total := 0
		for _, c := range clusters {
			require.GreaterOrEqual(t, c.Density(), 1)
			require.NotEmpty(t, c.Lengths)
			total += c.Density()
		}
		assert.Equal(t, len(values), total)
	}
}

func TestTieBreakPrefersDenserPair(t *testing.T) {
	// (1,2) and (9,10) are both one apart; the pair holding 10 three times is denser.
	clusters := Clusterizer{TargetClusters: 3}.Cluster1D([]int{1, 2, 9, 10, 10, 10})
	require.Len(t, clusters, 3)
	assert.Equal(t, map[int]int{9: 1, 10: 3}, clusters[2].Lengths)
}

func TestTieBreakKeepsFirstOnEqualDensity(t *testing.T) {
	clusters := Clusterizer{TargetClusters: 3}.Cluster1D([]int{1, 2, 9, 10})
	require.Len(t, clusters, 3)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, clusters[0].Lengths)
}

func TestLengthDistributionWithOutlier(t *testing.T) {
	clusters := Clusterizer{}.Cluster1D([]int{100, 100, 100, 101, 102, 500})
	best, ok := MostDense(clusters)
	require.True(t, ok)

	assert.Equal(t, 4, best.Density())
	lo, hi := best.Limits()
	assert.LessOrEqual(t, lo, 101)
	assert.GreaterOrEqual(t, hi, 101)
	assert.Less(t, hi, 500)
}

// The 2-D search considers every pair, so it can merge points that are not
// neighbours in (x, y) order. The 1-D search only ever merges neighbours.
func TestCluster2DSearchesAllPairs(t *testing.T) {
	points := []Point{{0, 0}, {1, 100}, {2, 0}}
	clusters := Clusterizer{TargetClusters: 2}.Cluster2D(points)
	require.Len(t, clusters, 2)

	assert.Equal(t, map[Point]int{{0, 0}: 1, {2, 0}: 1}, clusters[0].Points)
	assert.Equal(t, map[Point]int{{1, 100}: 1}, clusters[1].Points)
}

// The 2-D variant has no distance threshold; it stops once a cluster holds
// more than half of the points.
func TestCluster2DDensityStop(t *testing.T) {
	points := []Point{{5, 50}, {5, 50}, {5, 50}, {5, 50}, {100, 200}, {300, 10}}
	clusters := Clusterizer{}.Cluster2D(points)
	require.Len(t, clusters, 2)

	best, ok := MostDense(clusters)
	require.True(t, ok)
	assert.Equal(t, 5, best.Density())
	assert.Equal(t, map[Point]int{{300, 10}: 1}, clusters[1].Points)
}

func TestMostDenseFirstWinsOnTie(t *testing.T) {
	a := NewCluster(map[int]int{1: 2})
	b := NewCluster(map[int]int{5: 2})
	best, ok := MostDense([]*Cluster{a, b})
	require.True(t, ok)
	assert.Same(t, a, best)
}
