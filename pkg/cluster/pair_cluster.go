package cluster

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Point is an (x, y) observation, e.g. the start and end of a hit on the prediction.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) less(o Point) bool {
	if p.X != o.X {
		return p.X < o.X
	}
	return p.Y < o.Y
}

func (p Point) dist(o Point) float64 {
	return math.Hypot(float64(p.X-o.X), float64(p.Y-o.Y))
}

// PairCluster is the two dimensional analogue of Cluster.
type PairCluster struct {
	Points map[Point]int
}

func NewPairCluster(points map[Point]int) *PairCluster {
	c := &PairCluster{Points: make(map[Point]int, len(points))}
	for k, v := range points {
		c.Points[k] = v
	}
	return c
}

func (c *PairCluster) Density() int {
	density := 0
	for _, n := range c.Points {
		density += n
	}
	return density
}

// Mean returns the weighted centroid. Both coordinates are NaN for an empty cluster.
func (c *PairCluster) Mean() (float64, float64) {
	var sx, sy, density float64
	for _, p := range c.Keys() {
		n := float64(c.Points[p])
		sx += float64(p.X) * n
		sy += float64(p.Y) * n
		density += n
	}
	if density == 0 {
		return math.NaN(), math.NaN()
	}
	return sx / density, sy / density
}

// Distance averages the euclidean distance over point pairs, weighted as in Cluster.Distance.
func (c *PairCluster) Distance(other *PairCluster, method LinkageMethod) float64 {
	var d, norm float64
	// Sorted keys keep the float sum independent of map order.
	mine := c.Keys()
	for _, p1 := range other.Keys() {
		n1 := other.Points[p1]
		for _, p2 := range mine {
			n2 := c.Points[p2]
			if method == AverageLinkage {
				w := float64(n1 * n2)
				d += p1.dist(p2) * w
				norm += w
			} else {
				d += p1.dist(p2)
			}
		}
	}
	if method != AverageLinkage {
		norm = float64(len(other.Points) * len(c.Points))
	}
	return d / norm
}

// Merge absorbs other into c, overwriting counts of shared points.
func (c *PairCluster) Merge(other *PairCluster) {
	for p, n := range other.Points {
		c.Points[p] = n
	}
}

// Limits returns the per-axis minimum and maximum.
func (c *PairCluster) Limits() (Point, Point) {
	keys := c.Keys()
	if len(keys) == 0 {
		return Point{}, Point{}
	}
	lo, hi := keys[0], keys[0]
	for _, p := range keys[1:] {
		lo.X = min(lo.X, p.X)
		lo.Y = min(lo.Y, p.Y)
		hi.X = max(hi.X, p.X)
		hi.Y = max(hi.Y, p.Y)
	}
	return lo, hi
}

// Keys returns the points ordered by x, then y.
func (c *PairCluster) Keys() []Point {
	keys := make([]Point, 0, len(c.Points))
	for p := range c.Points {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

func (c *PairCluster) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, p := range c.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "(%d,%d):%d", p.X, p.Y, c.Points[p])
	}
	fmt.Fprintf(&b, "} density=%d", c.Density())
	return b.String()
}
