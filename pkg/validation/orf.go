package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/yumyai/genevalidator/pkg/model"
)

const (
	// MinORFLength is the shortest stop-to-stop stretch, in nucleotides, counted as an ORF.
	MinORFLength = 100
	// ORFCoverage is the share (percent) of the prediction the main ORF must span.
	ORFCoverage = 80
)

// ORFRange is a stop-to-stop stretch on the forward strand, 1-based inclusive.
type ORFRange struct {
	Frame int `json:"frame"`
	Start int `json:"start"`
	End   int `json:"end"`
}

func (o ORFRange) Len() int {
	return o.End - o.Start + 1
}

// FindORFs lists stop-to-stop stretches of at least minLen nucleotides in all
// six frames. Stop codons are not part of the stretch.
func FindORFs(seq string, minLen int) []ORFRange {
	seq = strings.ToUpper(seq)
	n := len(seq)
	var orfs []ORFRange
	for _, strand := range []int{1, -1} {
		s := seq
		if strand < 0 {
			s = ReverseComplement(seq)
		}
		for offset := 0; offset < 3; offset++ {
			frame := strand * (offset + 1)
			begin := offset
			emit := func(from, to int) { // [from, to) on s
				if to-from < minLen {
					return
				}
				r := ORFRange{Frame: frame, Start: from + 1, End: to}
				if strand < 0 {
					r.Start, r.End = n-to+1, n-from
				}
				orfs = append(orfs, r)
			}
			i := offset
			for ; i+3 <= n; i += 3 {
				if isStop(s[i : i+3]) {
					emit(begin, i)
					begin = i + 3
				}
			}
			emit(begin, i)
		}
	}
	return orfs
}

// ORF checks that a nucleotide prediction is mostly one open reading frame.
type ORF struct {
	header
	deps Deps
}

func NewORF(deps Deps) *ORF {
	return &ORF{
		header: header{
			alias:       "ORF",
			kind:        model.KindORF,
			short:       "ORF",
			long:        "Main ORF",
			description: "Check whether there is a single main Open Reading Frame in the predicted gene.",
			expected:    model.ResultYes,
		},
		deps: deps,
	}
}

func (t *ORF) Run(_ context.Context, in Input) (*model.Report, error) {
	rep := t.newReport()
	if err := checkInput(in, 0); err != nil {
		return rep, err
	}
	pred := in.Prediction
	if pred.Type != model.Nucleotide {
		return rep, fmt.Errorf("%w: ORFs need a nucleotide prediction", ErrUnapplicable)
	}
	if !pred.HasRaw() {
		return rep, fmt.Errorf("%w: prediction has no residues", ErrInvalidInput)
	}

	orfs := FindORFs(pred.RawSequence, MinORFLength)
	var (
		longest    ORFRange
		longestLen int
	)
	for _, o := range orfs {
		if o.Len() > longestLen {
			longest, longestLen = o, o.Len()
		}
	}
	coverage := 100 * float64(longestLen) / float64(len(pred.RawSequence))

	rep.Result = yesNo(coverage >= ORFCoverage)
	rep.Message = fmt.Sprintf("%.0f%%", coverage)
	rep.Approach = "A genuine gene should be covered almost entirely by one open reading frame."
	if len(orfs) == 0 {
		rep.Explanation = fmt.Sprintf("No ORF of at least %d nucleotides was found.", MinORFLength)
	} else {
		rep.Explanation = fmt.Sprintf("%d ORF(s) found; the longest, in frame %s, spans %d-%d and covers %.0f%% of the prediction.",
			len(orfs), signedFrame(longest.Frame), longest.Start, longest.End, coverage)
	}
	if rep.Result == model.ResultNo {
		rep.Conclusion = "The prediction may contain a frameshift or a premature stop codon."
	}
	rep.SetValue("orfs", float64(len(orfs)))
	rep.SetValue("longest_orf", float64(longestLen))
	rep.SetValue("coverage", coverage)

	lines := make([]map[string]any, len(orfs))
	for i, o := range orfs {
		lines[i] = map[string]any{"frame": o.Frame, "start": o.Start, "end": o.End}
	}
	rep.AddPlot(model.PlotData{
		Data:   lines,
		Type:   "lines",
		Title:  "Open reading frames",
		XTitle: "Offset in the prediction (nt)",
		YTitle: "Reading frame",
		Aux:    map[string]any{"length": len(pred.RawSequence)},
	})
	return rep, nil
}
