package pipeline

import (
	"errors"
	"math"

	"github.com/yumyai/genevalidator/pkg/model"
)

// ErrNoValidation means no test produced an applicable result for a query.
var ErrNoValidation = errors.New("no validation applicable to this prediction")

// Score folds the reports of one query into a 0-100 score. Length-Cluster
// and Length-Rank judge the same property, so together they count once.
func Score(reports []*model.Report) (int, error) {
	var successes, failures float64
	var cluster, rank *model.Report
	for _, r := range reports {
		if !r.Applicable() {
			continue
		}
		if r.Passed() {
			successes++
		} else {
			failures++
		}
		switch r.Kind {
		case model.KindLengthCluster:
			cluster = r
		case model.KindLengthRank:
			rank = r
		}
	}

	if cluster != nil && rank != nil {
		switch {
		case cluster.Passed() && rank.Passed():
			successes--
		case !cluster.Passed() && !rank.Passed():
			failures--
		default:
			successes -= 0.5
			failures -= 0.5
		}
	}

	if successes+failures <= 0 {
		return 0, ErrNoValidation
	}
	return int(math.Round(100 * successes / (successes + failures))), nil
}
