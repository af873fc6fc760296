// Weighted multisets of lengths used by the length and gene-merge validations.

package cluster

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// LinkageMethod selects how the distance between two clusters is averaged.
type LinkageMethod int

const (
	// NoDuplicateWeighting averages |a-b| over every pair of distinct values.
	NoDuplicateWeighting LinkageMethod = 0
	// AverageLinkage weights each pair by the product of the occurrence counts.
	AverageLinkage LinkageMethod = 1
)

// Cluster maps a value (a length) to the number of times it was observed.
type Cluster struct {
	Lengths map[int]int
}

func NewCluster(lengths map[int]int) *Cluster {
	c := &Cluster{Lengths: make(map[int]int, len(lengths))}
	for k, v := range lengths {
		c.Lengths[k] = v
	}
	return c
}

// Density is the total number of observations in the cluster.
func (c *Cluster) Density() int {
	density := 0
	for _, n := range c.Lengths {
		density += n
	}
	return density
}

// Mean is the occurrence weighted average. It is NaN for an empty cluster.
func (c *Cluster) Mean() float64 {
	var sum, density int64
	for v, n := range c.Lengths {
		sum += int64(v) * int64(n)
		density += int64(n)
	}
	if density == 0 {
		return math.NaN()
	}
	return float64(sum) / float64(density)
}

// Distance is the average pairwise |a-b| between the two clusters.
func (c *Cluster) Distance(other *Cluster, method LinkageMethod) float64 {
	var d, norm int64
	for v1, n1 := range other.Lengths {
		for v2, n2 := range c.Lengths {
			diff := int64(v1 - v2)
			if diff < 0 {
				diff = -diff
			}
			if method == AverageLinkage {
				w := int64(n1) * int64(n2)
				d += diff * w
				norm += w
			} else {
				d += diff
			}
		}
	}
	if method != AverageLinkage {
		norm = int64(len(other.Lengths)) * int64(len(c.Lengths))
	}
	return float64(d) / float64(norm)
}

// Merge absorbs other into c. On a shared value the count from other replaces c's count.
func (c *Cluster) Merge(other *Cluster) {
	for v, n := range other.Lengths {
		c.Lengths[v] = n
	}
}

// Limits returns the smallest and largest value in the cluster.
func (c *Cluster) Limits() (int, int) {
	values := c.Values()
	if len(values) == 0 {
		return 0, 0
	}
	return values[0], values[len(values)-1]
}

// Values returns the distinct values in ascending order.
func (c *Cluster) Values() []int {
	values := make([]int, 0, len(c.Lengths))
	for v := range c.Lengths {
		values = append(values, v)
	}
	sort.Ints(values)
	return values
}

func (c *Cluster) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, v := range c.Values() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d:%d", v, c.Lengths[v])
	}
	fmt.Fprintf(&b, "} density=%d", c.Density())
	return b.String()
}
