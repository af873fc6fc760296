package validation

import (
	"context"
	"fmt"
	"math"

	"github.com/yumyai/genevalidator/pkg/cluster"
	"github.com/yumyai/genevalidator/pkg/model"
	"github.com/yumyai/genevalidator/pkg/stats"
)

// Slopes inside this open interval mean the hits align to two different
// stretches of the prediction.
const (
	MergeSlopeMin = 0.4
	MergeSlopeMax = 1.2
)

// GeneMerge looks for predictions that join two neighbouring genes.
type GeneMerge struct {
	header
	deps Deps
}

func NewGeneMerge(deps Deps) *GeneMerge {
	return &GeneMerge{
		header: header{
			alias:       "Merge",
			kind:        model.KindGeneMerge,
			short:       "Gene_Merge",
			long:        "Gene Merge",
			description: "Check whether BLAST hits make evidence about a merge of two genes that match the predicted gene.",
			expected:    model.ResultNo,
		},
		deps: deps,
	}
}

// hitSpan is the query region covered by all HSPs of a hit.
func hitSpan(hit *model.Sequence) (cluster.Point, bool) {
	if len(hit.Hsps) == 0 {
		return cluster.Point{}, false
	}
	start, end := hit.Hsps[0].QueryRange()
	for _, hsp := range hit.Hsps[1:] {
		lo, hi := hsp.QueryRange()
		start = min(start, lo)
		end = max(end, hi)
	}
	return cluster.Point{X: start, Y: end}, true
}

func (t *GeneMerge) Run(_ context.Context, in Input) (*model.Report, error) {
	rep := t.newReport()
	if err := checkInput(in, t.deps.minHits()); err != nil {
		return rep, err
	}

	points := make([]cluster.Point, 0, len(in.Hits))
	for _, hit := range in.Hits {
		if p, ok := hitSpan(hit); ok {
			points = append(points, p)
		}
	}
	if len(points) < t.deps.minHits() {
		return rep, fmt.Errorf("%w: %d hits with HSPs", ErrNotEnoughEvidence, len(points))
	}

	clusters := cluster.Clusterizer{}.Cluster2D(points)

	slope, r2 := math.NaN(), math.NaN()
	if len(clusters) > 1 {
		counts := make(map[cluster.Point]int)
		var order []cluster.Point
		for _, p := range points {
			if counts[p] == 0 {
				order = append(order, p)
			}
			counts[p]++
		}
		xs := make([]float64, len(order))
		ys := make([]float64, len(order))
		ws := make([]float64, len(order))
		for i, p := range order {
			xs[i], ys[i], ws[i] = float64(p.X), float64(p.Y), float64(counts[p])
		}
		slope, r2 = stats.WeightedSlope(xs, ys, ws)
	}

	merged := !math.IsNaN(slope) && slope > MergeSlopeMin && slope < MergeSlopeMax
	rep.Result = yesNo(merged)
	if math.IsNaN(slope) {
		rep.Message = "unimodal"
	} else {
		rep.Message = fmt.Sprintf("slope=%.3f", slope)
	}
	rep.Approach = "If the query is a merge of two genes, hits should cluster around two different regions of the prediction and their start/end coordinates should follow a line of slope near one."
	rep.Explanation = fmt.Sprintf("The start/end coordinates of %d hits form %d cluster(s).", len(points), len(clusters))
	if merged {
		rep.Conclusion = "The prediction may be a merge of two genes."
	} else {
		rep.Conclusion = "There is no evidence of a gene merge."
	}

	rep.SetValue("slope", slope)
	rep.SetValue("r2", r2)
	rep.SetValue("clusters", float64(len(clusters)))

	scatter := make([]map[string]any, len(points))
	for i, p := range points {
		scatter[i] = map[string]any{"start": p.X, "end": p.Y}
	}
	aux := map[string]any{"clusters": len(clusters)}
	if !math.IsNaN(slope) {
		aux["slope"] = slope
	}
	rep.AddPlot(model.PlotData{
		Data:   scatter,
		Type:   "scatter",
		Title:  "Start/end of hit alignments on the prediction",
		XTitle: "Start offset",
		YTitle: "End offset",
		Aux:    aux,
	})
	return rep, nil
}
