package validation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/yumyai/genevalidator/pkg/cluster"
	"github.com/yumyai/genevalidator/pkg/model"
	"github.com/yumyai/genevalidator/pkg/stats"
)

// LengthCluster checks that the prediction length falls inside the densest
// cluster of hit lengths.
type LengthCluster struct {
	header
	deps Deps
}

func NewLengthCluster(deps Deps) *LengthCluster {
	return &LengthCluster{
		header: header{
			alias:       "LengthCluster",
			kind:        model.KindLengthCluster,
			short:       "LengthCluster",
			long:        "Length Cluster",
			description: "Check whether the prediction length fits most of the BLAST hit lengths, by 1D hierarchical clusterization.",
			expected:    model.ResultYes,
		},
		deps: deps,
	}
}

func hitLengths(hits []*model.Sequence) []int {
	lengths := make([]int, len(hits))
	for i, h := range hits {
		lengths[i] = h.ProteinLength()
	}
	return lengths
}

func (t *LengthCluster) Run(_ context.Context, in Input) (*model.Report, error) {
	rep := t.newReport()
	if err := checkInput(in, t.deps.minHits()); err != nil {
		return rep, err
	}

	lengths := hitLengths(in.Hits)
	predLen := in.Prediction.ProteinLength()

	hc := cluster.Clusterizer{Method: cluster.NoDuplicateWeighting}
	clusters := hc.Cluster1D(lengths)
	dense, ok := cluster.MostDense(clusters)
	if !ok {
		return rep, fmt.Errorf("%w: no clusters", ErrNotEnoughEvidence)
	}
	lo, hi := dense.Limits()

	rep.Result = yesNo(predLen >= lo && predLen <= hi)
	rep.Message = fmt.Sprintf("%d in [%d, %d]", predLen, lo, hi)
	if rep.Result == model.ResultNo {
		rep.Message = fmt.Sprintf("%d not in [%d, %d]", predLen, lo, hi)
	}
	rep.Approach = "If the query is a genuine gene, its length should fall within the most dense cluster of hit lengths."
	rep.Explanation = fmt.Sprintf("The most dense cluster holds %d of %d hits, with lengths between %d and %d (mean %.1f). The prediction is %d amino acids long.",
		dense.Density(), len(lengths), lo, hi, dense.Mean(), predLen)
	if rep.Result == model.ResultYes {
		rep.Conclusion = "The prediction length agrees with most hits."
	} else {
		rep.Conclusion = "The prediction length differs from most hits; it may be truncated, merged or over-extended."
	}

	rep.SetValue("prediction_len", float64(predLen))
	rep.SetValue("cluster_min", float64(lo))
	rep.SetValue("cluster_max", float64(hi))
	rep.SetValue("cluster_mean", dense.Mean())
	rep.SetValue("cluster_density", float64(dense.Density()))
	rep.SetValue("clusters", float64(len(clusters)))

	bars := make([]map[string]any, 0, len(lengths))
	for ci, c := range clusters {
		for _, v := range c.Values() {
			bars = append(bars, map[string]any{
				"length":  v,
				"count":   c.Lengths[v],
				"cluster": ci,
				"main":    c == dense,
			})
		}
	}
	rep.AddPlot(model.PlotData{
		Data:   bars,
		Type:   "bars",
		Title:  "Length Cluster",
		XTitle: "Sequence length",
		YTitle: "Number of hits",
		Aux:    map[string]any{"prediction": predLen, "min": lo, "max": hi},
	})
	return rep, nil
}

// LengthThreshold is the minimum share (percent) of hits that must lie beyond
// the prediction on its side of the median.
const LengthThreshold = 20

// LengthRank checks that the prediction is not an extreme of the hit length distribution.
type LengthRank struct {
	header
	deps Deps
}

func NewLengthRank(deps Deps) *LengthRank {
	return &LengthRank{
		header: header{
			alias:       "LengthRank",
			kind:        model.KindLengthRank,
			short:       "LengthRank",
			long:        "Length Rank",
			description: "Check whether the rank of the prediction length lies among 80% of all the BLAST hit lengths.",
			expected:    model.ResultYes,
		},
		deps: deps,
	}
}

func (t *LengthRank) Run(_ context.Context, in Input) (*model.Report, error) {
	rep := t.newReport()
	if err := checkInput(in, t.deps.minHits()); err != nil {
		return rep, err
	}

	lengths := hitLengths(in.Hits)
	sort.Ints(lengths)
	predLen := in.Prediction.ProteinLength()
	median := stats.Median(lengths)

	var (
		extreme int
		msg     string
		pct     float64
	)
	switch {
	case float64(predLen) < median:
		for _, l := range lengths {
			if l < predLen {
				extreme++
			}
		}
		msg = "too short"
		pct = 100 * float64(extreme) / float64(len(lengths))
	case float64(predLen) > median:
		for _, l := range lengths {
			if l > predLen {
				extreme++
			}
		}
		msg = "too long"
		pct = 100 * float64(extreme) / float64(len(lengths))
	default:
		pct = 100
	}
	pct = math.Round(pct)

	rep.Result = yesNo(pct >= LengthThreshold)
	if rep.Result == model.ResultYes {
		rep.Message = fmt.Sprintf("%.0f%%", pct)
	} else {
		rep.Message = fmt.Sprintf("%.0f%% (%s)", pct, msg)
	}
	rep.Approach = "If the query is a genuine gene, its length should not be an extreme of the hit length distribution."
	rep.Explanation = fmt.Sprintf("The prediction is %d amino acids long; the median hit length is %.1f. %.0f%% of hits lie beyond the prediction.",
		predLen, median, pct)

	rep.SetValue("prediction_len", float64(predLen))
	rep.SetValue("median", median)
	rep.SetValue("percentage", pct)
	rep.SetValue("hits_min", float64(lengths[0]))
	rep.SetValue("hits_max", float64(lengths[len(lengths)-1]))
	return rep, nil
}
