package pipeline

import (
	"sort"

	"github.com/yumyai/genevalidator/pkg/model"
)

// IdentityCutoff is the HSP identity (percent) above which a hit may be the prediction itself.
const IdentityCutoff = 99

// FilterHits drops hits that are the prediction itself: every HSP at least
// IdentityCutoff identical and the HSPs together covering the whole prediction.
func FilterHits(pred *model.Sequence, hits []*model.Sequence) []*model.Sequence {
	kept := make([]*model.Sequence, 0, len(hits))
	for _, h := range hits {
		if h == nil || !nearIdentical(pred, h) {
			kept = append(kept, h)
		}
	}
	return kept
}

func nearIdentical(pred, hit *model.Sequence) bool {
	if len(hit.Hsps) == 0 || pred.Length <= 0 {
		return false
	}
	ranges := make([][2]int, len(hit.Hsps))
	for i, hsp := range hit.Hsps {
		if hsp.Identity < IdentityCutoff {
			return false
		}
		lo, hi := hsp.QueryRange()
		ranges[i] = [2]int{lo, hi}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })

	if ranges[0][0] > 1 {
		return false
	}
	reach := ranges[0][1]
	for _, r := range ranges[1:] {
		if r[0] > reach+1 {
			return false
		}
		reach = max(reach, r[1])
	}
	return reach >= pred.Length
}
