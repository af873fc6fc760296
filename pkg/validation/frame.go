package validation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yumyai/genevalidator/pkg/model"
)

// ReadingFrame checks that all HSPs of a nucleotide prediction share one reading frame.
type ReadingFrame struct {
	header
	deps Deps
}

func NewReadingFrame(deps Deps) *ReadingFrame {
	return &ReadingFrame{
		header: header{
			alias:       "Frame",
			kind:        model.KindReadingFrame,
			short:       "Frame",
			long:        "Reading Frame",
			description: "Check whether there is a single reading frame among BLAST hits.",
			expected:    model.ResultYes,
		},
		deps: deps,
	}
}

func (t *ReadingFrame) Run(_ context.Context, in Input) (*model.Report, error) {
	rep := t.newReport()
	if err := checkInput(in, t.deps.minHits()); err != nil {
		return rep, err
	}
	if in.Prediction.Type != model.Nucleotide {
		return rep, fmt.Errorf("%w: reading frames need a nucleotide prediction", ErrUnapplicable)
	}

	counts := make(map[int]int)
	for _, hit := range in.Hits {
		for _, hsp := range hit.Hsps {
			counts[hsp.QueryFrame]++
		}
	}
	if len(counts) == 0 {
		return rep, fmt.Errorf("%w: no HSPs", ErrNotEnoughEvidence)
	}

	frames := make([]int, 0, len(counts))
	for f := range counts {
		frames = append(frames, f)
	}
	sort.Ints(frames)

	parts := make([]string, len(frames))
	bars := make([]map[string]any, len(frames))
	for i, f := range frames {
		parts[i] = fmt.Sprintf("%s: %d", signedFrame(f), counts[f])
		bars[i] = map[string]any{"frame": f, "count": counts[f]}
		rep.SetValue("frame_"+signedFrame(f), float64(counts[f]))
	}

	rep.Result = yesNo(len(frames) == 1)
	rep.Message = strings.Join(parts, "; ")
	rep.Approach = "HSPs of a genuine gene should all come from a single reading frame."
	rep.Explanation = fmt.Sprintf("The HSPs are spread over %d reading frame(s).", len(frames))
	if rep.Result == model.ResultNo {
		rep.Conclusion = "The prediction may contain a frameshift."
	}
	rep.AddPlot(model.PlotData{
		Data:   bars,
		Type:   "bars",
		Title:  "Reading frame of HSPs",
		XTitle: "Reading frame",
		YTitle: "Number of HSPs",
	})
	return rep, nil
}

func signedFrame(f int) string {
	if f > 0 {
		return "+" + strconv.Itoa(f)
	}
	return strconv.Itoa(f)
}
