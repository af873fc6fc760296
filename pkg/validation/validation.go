// Package validation implements the per-prediction consistency tests. Each
// test looks at a prediction and its BLAST hits and reports whether the
// prediction looks like a well-formed gene.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yumyai/genevalidator/pkg/align"
	"github.com/yumyai/genevalidator/pkg/db"
	"github.com/yumyai/genevalidator/pkg/model"
	"github.com/yumyai/genevalidator/pkg/stats"
)

const DefaultMinHits = 5

var (
	ErrNotEnoughEvidence     = errors.New("not enough evidence")
	ErrUnapplicable          = errors.New("test does not apply to this prediction")
	ErrMultipleReadingFrames = errors.New("hit aligns in more than one reading frame")
	ErrInvalidInput          = errors.New("malformed sequence record")
)

// Input is what every test looks at.
type Input struct {
	Prediction *model.Sequence
	Hits       []*model.Sequence
}

// StatTest is the statistical backend of the duplication test.
type StatTest interface {
	WilcoxonSignedRank(values []float64, mu float64) (float64, error)
}

// Deps carries the collaborators shared by all tests of a run.
type Deps struct {
	Fetcher db.SequenceFetcher
	Aligner align.Aligner
	Stat    StatTest
	MinHits int
}

func (d Deps) minHits() int {
	if d.MinHits <= 0 {
		return DefaultMinHits
	}
	return d.MinHits
}

func (d Deps) stat() StatTest {
	if d.Stat == nil {
		return stats.Tester{}
	}
	return d.Stat
}

// Test is one validation. Run returns a report whose Result is yes or no, or
// an error. Classify turns the error into the final report.
type Test interface {
	Alias() string
	Kind() model.ReportKind
	Run(ctx context.Context, in Input) (*model.Report, error)
}

// header is the static description shared by every report of a test.
type header struct {
	alias       string
	kind        model.ReportKind
	short       string
	long        string
	description string
	expected    model.Result
}

func (h header) Alias() string          { return h.alias }
func (h header) Kind() model.ReportKind { return h.kind }

func (h header) newReport() *model.Report {
	return &model.Report{
		Kind:        h.kind,
		ShortHeader: h.short,
		Header:      h.long,
		Description: h.description,
		Expected:    h.expected,
		Result:      model.ResultUnapplicable,
	}
}

// Blank returns an empty report for test t, for paths that never reached Run.
func Blank(t Test) *model.Report {
	if h, ok := t.(interface{ newReport() *model.Report }); ok {
		return h.newReport()
	}
	return &model.Report{Kind: t.Kind(), ShortHeader: t.Alias(), Result: model.ResultUnapplicable}
}

// Classify folds the outcome of Run into a final report.
func Classify(t Test, rep *model.Report, err error, took time.Duration) *model.Report {
	if rep == nil {
		rep = Blank(t)
	}
	rep.RunTime = took
	if err == nil {
		return rep
	}

	rep.Message = err.Error()
	switch {
	case errors.Is(err, ErrNotEnoughEvidence):
		rep.Result = model.ResultWarning
		rep.Message = "Not enough evidence"
	case errors.Is(err, ErrUnapplicable):
		rep.Result = model.ResultUnapplicable
	default:
		rep.Result = model.ResultError
		rep.Errors = append(rep.Errors, Tag(err))
	}
	return rep
}

// Tag classifies a runtime error.
func Tag(err error) model.ErrorTag {
	switch {
	case errors.Is(err, align.ErrAlignerUnavailable):
		return model.TagAlignerUnavailable
	case errors.Is(err, db.ErrNetworkUnavailable):
		return model.TagNetworkUnavailable
	case errors.Is(err, ErrMultipleReadingFrames):
		return model.TagMultipleReadingFrames
	default:
		return model.TagOther
	}
}

// checkInput rejects malformed records and too few hits.
func checkInput(in Input, minHits int) error {
	if in.Prediction == nil || in.Prediction.Length <= 0 {
		return fmt.Errorf("%w: prediction", ErrInvalidInput)
	}
	if minHits > 0 && len(in.Hits) < minHits {
		return fmt.Errorf("%w: %d hits, need %d", ErrNotEnoughEvidence, len(in.Hits), minHits)
	}
	if len(in.Hits) > 0 && in.Hits[0] == nil {
		return fmt.Errorf("%w: first hit", ErrInvalidInput)
	}
	return nil
}

func yesNo(ok bool) model.Result {
	if ok {
		return model.ResultYes
	}
	return model.ResultNo
}
