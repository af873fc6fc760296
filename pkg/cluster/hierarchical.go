package cluster

import (
	"math"
	"sort"

	"github.com/yumyai/genevalidator/logger"
	"go.uber.org/zap"
)

// Clusterizer runs agglomerative clustering.
//
// With TargetClusters > 0 merging continues until that many clusters remain.
// With TargetClusters == 0 it stops on the distance and density thresholds
// derived from the input.
type Clusterizer struct {
	TargetClusters int
	Method         LinkageMethod
	Debug          bool
}

// Cluster1D clusters scalar values. Only neighbouring clusters in ascending
// value order are candidates for a merge.
func (hc Clusterizer) Cluster1D(values []int) []*Cluster {
	if len(values) == 0 {
		return nil
	}
	if len(values) == 1 {
		return []*Cluster{NewCluster(map[int]int{values[0]: 1})}
	}

	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	thresholdDistance := 0.25 * float64(sorted[len(sorted)-1]-sorted[0])
	thresholdDensity := int(0.5 * float64(len(sorted)))

	var clusters []*Cluster
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		clusters = append(clusters, NewCluster(map[int]int{sorted[i]: j - i}))
		i = j
	}
	hc.debug("initial clusters", clusters)

	for {
		if hc.TargetClusters > 0 && len(clusters) == hc.TargetClusters {
			break
		}
		if len(clusters) < 2 {
			break
		}

		first := -1
		minDistance := math.Inf(1)
		bestDensity := -1
		for i := 0; i < len(clusters)-1; i++ {
			d := clusters[i].Distance(clusters[i+1], hc.Method)
			density := clusters[i].Density() + clusters[i+1].Density()
			if d < minDistance || (d == minDistance && density > bestDensity) {
				minDistance = d
				bestDensity = density
				first = i
			}
		}
		second := first + 1

		if hc.TargetClusters == 0 &&
			math.Abs(clusters[first].Mean()-clusters[second].Mean()) > thresholdDistance {
			break
		}

		clusters[first].Merge(clusters[second])
		clusters = append(clusters[:second], clusters[second+1:]...)
		hc.debug("merged", clusters)

		if hc.TargetClusters == 0 && clusters[first].Density() > thresholdDensity {
			break
		}
	}
	return clusters
}

// Cluster2D clusters points. Unlike Cluster1D every pair of clusters is a
// merge candidate, since points have no meaningful linear order, and there is
// no distance threshold: it stops on the target count or the density threshold.
func (hc Clusterizer) Cluster2D(points []Point) []*PairCluster {
	if len(points) == 0 {
		return nil
	}
	if len(points) == 1 {
		return []*PairCluster{NewPairCluster(map[Point]int{points[0]: 1})}
	}

	thresholdDensity := int(0.5 * float64(len(points)))

	histogram := make(map[Point]int)
	for _, p := range points {
		histogram[p]++
	}
	keys := make([]Point, 0, len(histogram))
	for p := range histogram {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	clusters := make([]*PairCluster, 0, len(keys))
	for _, p := range keys {
		clusters = append(clusters, NewPairCluster(map[Point]int{p: histogram[p]}))
	}

	for {
		if hc.TargetClusters > 0 && len(clusters) == hc.TargetClusters {
			break
		}
		if len(clusters) < 2 {
			break
		}

		first, second := -1, -1
		minDistance := math.Inf(1)
		bestDensity := -1
		for i := 0; i < len(clusters)-1; i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := clusters[i].Distance(clusters[j], hc.Method)
				density := clusters[i].Density() + clusters[j].Density()
				if d < minDistance || (d == minDistance && density > bestDensity) {
					minDistance = d
					bestDensity = density
					first, second = i, j
				}
			}
		}

		clusters[first].Merge(clusters[second])
		clusters = append(clusters[:second], clusters[second+1:]...)

		if hc.Debug {
			logger.Debug("merged 2d clusters",
				zap.Int("clusters", len(clusters)),
				zap.Stringer("merged", clusters[first]))
		}

		if hc.TargetClusters == 0 && clusters[first].Density() > thresholdDensity {
			break
		}
	}
	return clusters
}

func (hc Clusterizer) debug(msg string, clusters []*Cluster) {
	if !hc.Debug {
		return
	}
	dump := make([]string, len(clusters))
	for i, c := range clusters {
		dump[i] = c.String()
	}
	logger.Debug(msg, zap.Strings("clusters", dump))
}

// MostDense returns the cluster with the largest density. The first one wins
// on ties; ok is false when clusters is empty.
func MostDense[C interface{ Density() int }](clusters []C) (best C, ok bool) {
	bestDensity := -1
	for _, c := range clusters {
		if d := c.Density(); d > bestDensity {
			best, bestDensity, ok = c, d, true
		}
	}
	return best, ok
}
