package validation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/yumyai/genevalidator/logger"
	"github.com/yumyai/genevalidator/pkg/db"
	"github.com/yumyai/genevalidator/pkg/model"
)

// DuplicationPValue is the significance level of the duplication test.
const DuplicationPValue = 0.05

// Duplication looks for hit regions matched more than once by the
// prediction, the footprint of a duplicated domain.
type Duplication struct {
	header
	deps Deps
}

func NewDuplication(deps Deps) *Duplication {
	return &Duplication{
		header: header{
			alias:       "Dup",
			kind:        model.KindDuplication,
			short:       "Duplication",
			long:        "Duplication",
			description: "Check whether there is a duplicated subsequence in the predicted gene by counting the hsp residue coverage of the prediction, for each hit.",
			expected:    model.ResultNo,
		},
		deps: deps,
	}
}

func (t *Duplication) Run(ctx context.Context, in Input) (*model.Report, error) {
	rep := t.newReport()
	if err := checkInput(in, t.deps.minHits()); err != nil {
		return rep, err
	}

	averages := make([]float64, 0, len(in.Hits))
	allSingle := true
	for _, hit := range in.Hits {
		if len(hit.Hsps) == 0 {
			continue
		}
		if len(hit.QueryFrames()) > 1 {
			return rep, fmt.Errorf("%w: %s", ErrMultipleReadingFrames, hit.ID)
		}
		length, err := t.hitLength(ctx, hit)
		if err != nil {
			return rep, err
		}
		coverage := Coverage(hit, length)

		var covered []float64
		for _, c := range coverage {
			if c > 0 {
				covered = append(covered, float64(c))
				if c != 1 {
					allSingle = false
				}
			}
		}
		if len(covered) == 0 {
			continue
		}
		averages = append(averages, floats.Sum(covered)/float64(len(covered)))
	}
	if len(averages) == 0 {
		return rep, fmt.Errorf("%w: no usable HSPs", ErrNotEnoughEvidence)
	}

	pvalue := 1.0
	if !allSingle {
		p, err := t.deps.stat().WilcoxonSignedRank(averages, 1)
		if err != nil {
			return rep, fmt.Errorf("wilcoxon signed-rank: %w", err)
		}
		pvalue = p
	}

	rep.Result = yesNo(pvalue < DuplicationPValue)
	rep.Message = fmt.Sprintf("pval=%.2f", pvalue)
	rep.Approach = "A hit region matched by more than one stretch of the prediction suggests a duplication. The average coverage of hit residues is compared with 1 by a one-sided Wilcoxon signed-rank test."
	rep.Explanation = fmt.Sprintf("Average residue coverage over %d hits, p-value %.3g.", len(averages), pvalue)
	if rep.Result == model.ResultYes {
		rep.Conclusion = "The prediction may contain a duplicated region."
	} else {
		rep.Conclusion = "There is no evidence of duplication."
	}
	rep.SetValue("pvalue", pvalue)
	rep.SetValue("average_coverage", floats.Sum(averages)/float64(len(averages)))
	return rep, nil
}

// hitLength returns the residue count of the hit, asking the fetcher when the
// hit record lacks it.
func (t *Duplication) hitLength(ctx context.Context, hit *model.Sequence) (int, error) {
	if hit.Length > 0 {
		return hit.Length, nil
	}
	if hit.HasRaw() {
		return len(hit.RawSequence), nil
	}
	if t.deps.Fetcher != nil {
		raw, err := t.deps.Fetcher.Fetch(ctx, hit.FetchKey(), hit.Type)
		if err == nil {
			hit.RawSequence = raw
			return len(raw), nil
		}
		if errors.Is(err, db.ErrNetworkUnavailable) {
			return 0, err
		}
		logger.Debug("hit length unavailable", zap.String("hit", hit.ID), zap.Error(err))
	}
	// Fall back to the furthest aligned residue.
	length := 0
	for _, hsp := range hit.Hsps {
		_, hi := hsp.HitRange()
		length = max(length, hi)
	}
	return length, nil
}

// Coverage counts, for each residue of the hit, how many HSPs align a
// prediction residue to it. With alignment strings, residues facing a gap
// in the prediction are not counted.
func Coverage(hit *model.Sequence, length int) []int {
	coverage := make([]int, length)
	for _, hsp := range hit.Hsps {
		lo, hi := hsp.HitRange()
		if hsp.QueryAlignment != "" && len(hsp.QueryAlignment) == len(hsp.HitAlignment) {
			pos := lo - 1
			for i := 0; i < len(hsp.HitAlignment); i++ {
				if hsp.HitAlignment[i] == '-' {
					continue
				}
				if hsp.QueryAlignment[i] != '-' && pos >= 0 && pos < length {
					coverage[pos]++
				}
				pos++
			}
			continue
		}
		for pos := lo - 1; pos < hi && pos < length; pos++ {
			if pos >= 0 {
				coverage[pos]++
			}
		}
	}
	return coverage
}
