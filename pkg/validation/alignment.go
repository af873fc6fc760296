package validation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yumyai/genevalidator/logger"
	"github.com/yumyai/genevalidator/pkg/align"
	"github.com/yumyai/genevalidator/pkg/db"
	"github.com/yumyai/genevalidator/pkg/model"
)

const (
	// AlignmentHits is how many of the best hits join the multiple alignment.
	AlignmentHits = 10
	// ConsensusShare is the share of hit rows that must carry a residue for a
	// column to belong to the consensus.
	ConsensusShare = 0.5
	// GapThreshold and ExtraThreshold bound the missing and extra percentages.
	GapThreshold   = 20
	ExtraThreshold = 20
)

// Alignment compares the prediction with the consensus of a multiple
// alignment of its best hits, looking for missing and extra regions.
type Alignment struct {
	header
	deps Deps
}

func NewAlignment(deps Deps) *Alignment {
	return &Alignment{
		header: header{
			alias:       "MA",
			kind:        model.KindAlignment,
			short:       "MissingExtraSequences",
			long:        "Missing/Extra sequences",
			description: "Finds missing and extra sequences in the prediction, based on the multiple alignment of the best hits.",
			expected:    model.ResultYes,
		},
		deps: deps,
	}
}

// ConsensusStats summarises the prediction row against the consensus of the hit rows.
type ConsensusStats struct {
	Consensus string  // '-' where the hits do not agree on a residue
	Gaps      float64 // consensus residues missing from the prediction, percent
	Extra     float64 // prediction residues outside the consensus, percent
	Conserved float64 // consensus residues matched by the prediction, percent
}

// Consensus scores aligned[0] (the prediction) against the consensus of the
// remaining rows. All rows must have the same length.
func Consensus(aligned []string) ConsensusStats {
	pred, hits := aligned[0], aligned[1:]
	width := len(pred)
	cons := make([]byte, width)

	var consResidues, missing, predResidues, extra, conserved int
	for col := 0; col < width; col++ {
		counts := make(map[byte]int)
		present := 0
		for _, row := range hits {
			if c := row[col]; c != '-' {
				counts[c]++
				present++
			}
		}
		cons[col] = '-'
		if len(hits) > 0 && float64(present) >= ConsensusShare*float64(len(hits)) {
			var best byte
			for c, n := range counts {
				if n > counts[best] || (n == counts[best] && c < best) {
					best = c
				}
			}
			cons[col] = best
		}

		p := pred[col]
		if cons[col] != '-' {
			consResidues++
			if p == '-' {
				missing++
			} else if p == cons[col] {
				conserved++
			}
		}
		if p != '-' {
			predResidues++
			if cons[col] == '-' {
				extra++
			}
		}
	}

	st := ConsensusStats{Consensus: string(cons)}
	if consResidues > 0 {
		st.Gaps = 100 * float64(missing) / float64(consResidues)
		st.Conserved = 100 * float64(conserved) / float64(consResidues)
	}
	if predResidues > 0 {
		st.Extra = 100 * float64(extra) / float64(predResidues)
	}
	return st
}

func (t *Alignment) Run(ctx context.Context, in Input) (*model.Report, error) {
	rep := t.newReport()
	if err := checkInput(in, t.deps.minHits()); err != nil {
		return rep, err
	}
	if t.deps.Aligner == nil {
		return rep, fmt.Errorf("%w: no aligner configured", align.ErrAlignerUnavailable)
	}

	predSeq, err := t.predictionResidues(in)
	if err != nil {
		return rep, err
	}

	seqs := []string{predSeq}
	for _, hit := range in.Hits[:min(AlignmentHits, len(in.Hits))] {
		raw, err := t.hitResidues(ctx, hit)
		if errors.Is(err, db.ErrNetworkUnavailable) {
			return rep, err
		}
		if err != nil {
			logger.Debug("skipping hit without residues", zap.String("hit", hit.ID), zap.Error(err))
			continue
		}
		seqs = append(seqs, raw)
	}
	if len(seqs) < 2 {
		return rep, fmt.Errorf("%w: no hit residues available", ErrNotEnoughEvidence)
	}

	aligned, err := t.deps.Aligner.Align(ctx, seqs)
	if err != nil {
		return rep, err
	}
	if len(aligned) != len(seqs) {
		return rep, fmt.Errorf("%w: aligner returned %d rows for %d sequences", align.ErrAlignerUnavailable, len(aligned), len(seqs))
	}
	for _, row := range aligned[1:] {
		if len(row) != len(aligned[0]) {
			return rep, fmt.Errorf("%w: ragged alignment", align.ErrAlignerUnavailable)
		}
	}

	st := Consensus(aligned)
	rep.Result = yesNo(st.Gaps < GapThreshold && st.Extra < ExtraThreshold)
	rep.Message = fmt.Sprintf("%.0f%% missing, %.0f%% extra", st.Gaps, st.Extra)
	rep.Approach = "The best hits are aligned together with the prediction; their consensus is the reference the prediction is compared against."
	rep.Explanation = fmt.Sprintf("%.0f%% of the consensus is missing from the prediction, %.0f%% of the prediction lies outside the consensus and %.0f%% of the consensus residues are conserved.",
		st.Gaps, st.Extra, st.Conserved)
	if rep.Result == model.ResultNo {
		rep.Conclusion = "The prediction may lack or carry extra regions compared with its homologs."
	}
	rep.SetValue("gaps", st.Gaps)
	rep.SetValue("extra", st.Extra)
	rep.SetValue("conserved", st.Conserved)
	rep.SetValue("aligned_hits", float64(len(seqs)-1))

	rows := make([]map[string]any, 0, len(aligned)+1)
	for i, row := range aligned {
		name := "prediction"
		if i > 0 {
			name = fmt.Sprintf("hit %d", i)
		}
		rows = append(rows, map[string]any{"name": name, "sequence": row})
	}
	rows = append(rows, map[string]any{"name": "consensus", "sequence": st.Consensus})
	rep.AddPlot(model.PlotData{
		Data:   rows,
		Type:   "align",
		Title:  "Multiple alignment of the best hits",
		XTitle: "Alignment column",
		YTitle: "Sequence",
	})
	return rep, nil
}

// predictionResidues returns the prediction as protein. Nucleotide predictions
// are translated in the frame of the best hit.
func (t *Alignment) predictionResidues(in Input) (string, error) {
	pred := in.Prediction
	if !pred.HasRaw() {
		return "", fmt.Errorf("%w: prediction has no residues", ErrInvalidInput)
	}
	if pred.Type != model.Nucleotide || in.Hits[0].Type == model.Nucleotide {
		return pred.RawSequence, nil
	}
	frame := 1
	if hsps := in.Hits[0].Hsps; len(hsps) > 0 && hsps[0].QueryFrame != 0 {
		frame = hsps[0].QueryFrame
	}
	return Translate(pred.RawSequence, frame), nil
}

func (t *Alignment) hitResidues(ctx context.Context, hit *model.Sequence) (string, error) {
	if hit.HasRaw() {
		return hit.RawSequence, nil
	}
	if t.deps.Fetcher == nil {
		return "", fmt.Errorf("%w: %s (no fetcher)", db.ErrSequenceNotFound, hit.FetchKey())
	}
	raw, err := t.deps.Fetcher.Fetch(ctx, hit.FetchKey(), hit.Type)
	if err != nil {
		return "", err
	}
	hit.RawSequence = raw
	return raw, nil
}
