package handler

import (
	"net/http"

	"github.com/yumyai/genevalidator/pkg/pipeline"
)

type TestStats struct {
	Runs      int     `json:"runs"`
	AverageMs float64 `json:"average_ms"`
	Errors    int     `json:"errors"`
}

type StatsResponse struct {
	RunID      string               `json:"run_id"`
	Total      int                  `json:"total"`
	Good       int                  `json:"good"`
	Bad        int                  `json:"bad"`
	NoEvidence int                  `json:"no_evidence"`
	GoodScore  int                  `json:"good_score"`
	Histogram  [10]int              `json:"histogram"`
	Tests      map[string]TestStats `json:"tests"`
	ElapsedSec float64              `json:"elapsed_seconds"`
}

func newStatsResponse(sum pipeline.Summary) StatsResponse {
	resp := StatsResponse{
		RunID:      sum.RunID,
		Total:      sum.Total,
		Good:       sum.Good,
		Bad:        sum.Bad,
		NoEvidence: sum.NoEvidence,
		GoodScore:  pipeline.GoodScore,
		Histogram:  sum.ScoreHistogram(),
		Tests:      make(map[string]TestStats, len(sum.Timings)),
		ElapsedSec: sum.Elapsed.Seconds(),
	}
	for name, t := range sum.Timings {
		resp.Tests[name] = TestStats{
			Runs:      t.Count,
			AverageMs: float64(t.Average().Microseconds()) / 1000,
			Errors:    sum.Errors[name],
		}
	}
	return resp
}

// RunStatsHandler reports the live statistics of the current run.
func (sctx *StatusContext) RunStatsHandler(w http.ResponseWriter, r *http.Request) {
	if sctx.Stats == nil {
		http.Error(w, "No run in progress", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(sctx.Stats.Snapshot()))
}
