package model

import (
	"encoding/json"
	"math"
	"time"
)

// Result is the outcome of one validation test.
type Result int

const (
	ResultYes Result = iota
	ResultNo
	ResultUnapplicable
	ResultError
	ResultWarning
)

func (r Result) String() string {
	switch r {
	case ResultYes:
		return "yes"
	case ResultNo:
		return "no"
	case ResultUnapplicable:
		return "unapplicable"
	case ResultError:
		return "error"
	case ResultWarning:
		return "warning"
	default:
		return "unknown"
	}
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// ReportKind identifies which test produced a report.
type ReportKind int

const (
	KindUnknown ReportKind = iota
	KindLengthCluster
	KindLengthRank
	KindReadingFrame
	KindGeneMerge
	KindDuplication
	KindORF
	KindAlignment
)

func (k ReportKind) String() string {
	switch k {
	case KindLengthCluster:
		return "length_cluster"
	case KindLengthRank:
		return "length_rank"
	case KindReadingFrame:
		return "reading_frame"
	case KindGeneMerge:
		return "gene_merge"
	case KindDuplication:
		return "duplication"
	case KindORF:
		return "orf"
	case KindAlignment:
		return "alignment"
	default:
		return "unknown"
	}
}

func (k ReportKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ErrorTag classifies a runtime failure inside a single test.
type ErrorTag int

const (
	TagOther ErrorTag = iota
	TagAlignerUnavailable
	TagNetworkUnavailable
	TagMultipleReadingFrames
)

func (t ErrorTag) String() string {
	switch t {
	case TagAlignerUnavailable:
		return "AlignerUnavailable"
	case TagNetworkUnavailable:
		return "NetworkUnavailable"
	case TagMultipleReadingFrames:
		return "MultipleReadingFrames"
	default:
		return "Other"
	}
}

func (t ErrorTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// PlotData describes a chart for an external renderer. Nothing here draws it.
type PlotData struct {
	Data   any            `json:"data"`
	Type   string         `json:"type"` // bars, scatter, lines, align
	Title  string         `json:"title"`
	XTitle string         `json:"x_title"`
	YTitle string         `json:"y_title"`
	Aux    map[string]any `json:"aux,omitempty"`
}

type Report struct {
	Kind        ReportKind         `json:"kind"`
	ShortHeader string             `json:"short_header"`
	Header      string             `json:"header"`
	Description string             `json:"description"`
	Result      Result             `json:"result"`
	Expected    Result             `json:"expected"`
	Message     string             `json:"message,omitempty"`
	Approach    string             `json:"approach,omitempty"`
	Explanation string             `json:"explanation,omitempty"`
	Conclusion  string             `json:"conclusion,omitempty"`
	Values      map[string]float64 `json:"values,omitempty"`
	Plots       []PlotData         `json:"plots,omitempty"`
	RunTime     time.Duration      `json:"run_time"`
	Errors      []ErrorTag         `json:"errors,omitempty"`
}

// Applicable reports whether the result counts towards the score.
func (r *Report) Applicable() bool {
	return r.Result == ResultYes || r.Result == ResultNo
}

// Passed reports whether the test agreed with its expectation.
func (r *Report) Passed() bool {
	return r.Result == r.Expected
}

func (r *Report) AddPlot(p PlotData) {
	r.Plots = append(r.Plots, p)
}

// SetValue records a named statistic. NaN and infinities are dropped since
// they have no JSON encoding.
func (r *Report) SetValue(name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if r.Values == nil {
		r.Values = make(map[string]float64)
	}
	r.Values[name] = v
}

// Output is everything produced for one query.
type Output struct {
	RunID      string        `json:"run_id"`
	Index      int           `json:"index"`
	QueryID    string        `json:"query_id"`
	Definition string        `json:"definition"`
	Type       SeqType       `json:"type"`
	Length     int           `json:"length"`
	HitCount   int           `json:"hit_count"`
	Score      int           `json:"score"`
	NoEvidence bool          `json:"no_evidence,omitempty"` // no test was applicable; Score is meaningless
	Reports    []*Report     `json:"reports"`
	RunTime    time.Duration `json:"run_time"`
}

// Report returns the report of the given kind, or nil.
func (o *Output) Report(kind ReportKind) *Report {
	for _, r := range o.Reports {
		if r.Kind == kind {
			return r
		}
	}
	return nil
}
