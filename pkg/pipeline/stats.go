package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/yumyai/genevalidator/pkg/model"
)

// GoodScore is the lowest overall score of a good prediction.
const GoodScore = 75

// Timing is the accumulated running time of one test.
type Timing struct {
	Total time.Duration `json:"total"`
	Count int           `json:"count"`
}

func (t Timing) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// Summary is a point-in-time copy of the run statistics.
type Summary struct {
	RunID      string            `json:"run_id"`
	Total      int               `json:"total"`
	Good       int               `json:"good"`
	Bad        int               `json:"bad"`
	NoEvidence int               `json:"no_evidence"`
	Scores     []int             `json:"scores"`
	Errors     map[string]int    `json:"errors"`
	Timings    map[string]Timing `json:"timings"`
	StartedAt  time.Time         `json:"started_at"`
	Elapsed    time.Duration     `json:"elapsed"`
}

// ScoreHistogram counts scores in buckets of width 10; a score of 100 lands in the last bucket.
func (s Summary) ScoreHistogram() [10]int {
	var h [10]int
	for _, sc := range s.Scores {
		h[min(sc/10, 9)]++
	}
	return h
}

// Tests lists the tests that reported timings, sorted by name.
func (s Summary) Tests() []string {
	names := make([]string, 0, len(s.Timings))
	for name := range s.Timings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunStats accumulates run-wide statistics. All methods are safe for
// concurrent use; the lock never leaves this type.
type RunStats struct {
	mu         sync.Mutex
	runID      string
	started    time.Time
	total      int
	good       int
	bad        int
	noEvidence int
	scores     []int
	errors     map[string]int
	timings    map[string]*Timing
}

func NewRunStats(runID string) *RunStats {
	return &RunStats{
		runID:   runID,
		started: time.Now(),
		errors:  make(map[string]int),
		timings: make(map[string]*Timing),
	}
}

// Record folds one finished query into the totals.
func (s *RunStats) Record(out *model.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.scores = append(s.scores, out.Score)
	if out.Score >= GoodScore {
		s.good++
	} else {
		s.bad++
	}
	s.recordReports(out.Reports)
}

// RecordNoEvidence counts a query for which no test was applicable.
func (s *RunStats) RecordNoEvidence(reports []*model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.noEvidence++
	s.recordReports(reports)
}

func (s *RunStats) recordReports(reports []*model.Report) {
	for _, r := range reports {
		name := r.Kind.String()
		t, ok := s.timings[name]
		if !ok {
			t = &Timing{}
			s.timings[name] = t
		}
		t.Total += r.RunTime
		t.Count++
		if r.Result == model.ResultError {
			s.errors[name]++
		}
	}
}

func (s *RunStats) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		RunID:      s.runID,
		Total:      s.total,
		Good:       s.good,
		Bad:        s.bad,
		NoEvidence: s.noEvidence,
		Scores:     append([]int(nil), s.scores...),
		Errors:     make(map[string]int, len(s.errors)),
		Timings:    make(map[string]Timing, len(s.timings)),
		StartedAt:  s.started,
		Elapsed:    time.Since(s.started),
	}
	sort.Ints(sum.Scores)
	for k, v := range s.errors {
		sum.Errors[k] = v
	}
	for k, v := range s.timings {
		sum.Timings[k] = *v
	}
	return sum
}
