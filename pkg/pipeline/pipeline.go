// Package pipeline drives the validation of a batch of predictions:
// fetch a prediction and its hits, filter the hits, run every test, score
// the reports and emit one output per prediction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yumyai/genevalidator/logger"
	"github.com/yumyai/genevalidator/pkg/blast"
	"github.com/yumyai/genevalidator/pkg/model"
	"github.com/yumyai/genevalidator/pkg/validation"
)

// ErrMalformedReport means a test broke the report contract. It aborts the run.
var ErrMalformedReport = errors.New("validation returned a malformed report")

// Queries gives random access to the predictions. db.QueryIndex satisfies it.
type Queries interface {
	Len() int
	ID(i int) string
	Read(i int) (*model.Sequence, error)
}

// Sink receives every output. Implementations must be safe for concurrent use.
type Sink interface {
	SaveOutput(ctx context.Context, out *model.Output) error
}

type Options struct {
	RunID   string
	Threads int
	Tests   []validation.Test
	Stats   *RunStats
	Metrics *Metrics
	Sink    Sink
}

type Pipeline struct {
	queries Queries
	hits    blast.HitIterator
	opts    Options

	// mu guards cursor and hits. Held only while one hit record is read.
	mu     sync.Mutex
	cursor int
}

func New(queries Queries, hits blast.HitIterator, opts Options) *Pipeline {
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.Stats == nil {
		opts.Stats = NewRunStats(opts.RunID)
	}
	return &Pipeline{queries: queries, hits: hits, opts: opts}
}

func (p *Pipeline) Stats() *RunStats {
	return p.opts.Stats
}

// Run validates every prediction and returns the final statistics. It stops
// early, without error, when the hit stream ends. Any other error aborts the
// run; the statistics gathered so far are still returned.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	logger.Info("validation started",
		zap.String("run", p.opts.RunID),
		zap.Int("queries", p.queries.Len()),
		zap.Int("threads", p.opts.Threads),
		zap.Int("tests", len(p.opts.Tests)))

	var err error
	if p.opts.Threads == 1 {
		err = p.worker(ctx, false)
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < p.opts.Threads; w++ {
			g.Go(func() error { return p.worker(gctx, true) })
		}
		err = g.Wait()
	}

	sum := p.opts.Stats.Snapshot()
	logger.Info("validation finished",
		zap.String("run", p.opts.RunID),
		zap.Int("total", sum.Total),
		zap.Int("good", sum.Good),
		zap.Int("no_evidence", sum.NoEvidence),
		zap.Duration("elapsed", sum.Elapsed))
	return sum, err
}

func (p *Pipeline) worker(ctx context.Context, locked bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx, hits, err := p.fetch(locked)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		pred, err := p.queries.Read(idx)
		if err != nil {
			return fmt.Errorf("read prediction %d: %w", idx, err)
		}

		out, err := p.Process(ctx, idx, pred, hits)
		if errors.Is(err, ErrNoValidation) {
			logger.Warn("no applicable validation", zap.String("query", pred.ID))
		} else if err != nil {
			return err
		}
		if p.opts.Sink != nil {
			if err := p.opts.Sink.SaveOutput(ctx, out); err != nil {
				return err
			}
		}
	}
}

// fetch claims the next prediction and reads its hits. Hit records come in
// input order, so claiming and reading happen under one lock.
func (p *Pipeline) fetch(locked bool) (int, []*model.Sequence, error) {
	if locked {
		p.mu.Lock()
		defer p.mu.Unlock()
	}
	if p.cursor >= p.queries.Len() {
		return 0, nil, io.EOF
	}
	idx := p.cursor
	p.cursor++

	hits, err := p.hits.Next(p.queries.ID(idx))
	if err == io.EOF {
		return 0, nil, io.EOF
	}
	if err != nil {
		return 0, nil, fmt.Errorf("hits of %s: %w", p.queries.ID(idx), err)
	}
	return idx, hits, nil
}

// Process runs every test on one prediction and folds the result into the
// run statistics. When no test was applicable it returns ErrNoValidation
// together with an output flagged NoEvidence, which carries the reports but
// no score.
func (p *Pipeline) Process(ctx context.Context, idx int, pred *model.Sequence, hits []*model.Sequence) (*model.Output, error) {
	start := time.Now()
	filtered := FilterHits(pred, hits)
	if dropped := len(hits) - len(filtered); dropped > 0 {
		logger.Debug("dropped near-identical hits", zap.String("query", pred.ID), zap.Int("dropped", dropped))
	}

	in := validation.Input{Prediction: pred, Hits: filtered}
	reports := make([]*model.Report, 0, len(p.opts.Tests))
	for _, t := range p.opts.Tests {
		rep, err := p.runTest(ctx, t, in)
		if err != nil {
			return nil, err
		}
		if rep.Result == model.ResultError {
			logger.Warn("validation error",
				zap.String("query", pred.ID),
				zap.String("test", t.Alias()),
				zap.String("message", rep.Message))
		}
		reports = append(reports, rep)
	}

	out := &model.Output{
		RunID:      p.opts.RunID,
		Index:      idx,
		QueryID:    pred.ID,
		Definition: pred.Definition,
		Type:       pred.Type,
		Length:     pred.Length,
		HitCount:   len(filtered),
		Reports:    reports,
	}

	score, err := Score(reports)
	if err != nil {
		out.NoEvidence = true
		out.RunTime = time.Since(start)
		p.opts.Stats.RecordNoEvidence(reports)
		p.opts.Metrics.observeNoEvidence(reports)
		return out, fmt.Errorf("%s: %w", pred.ID, err)
	}

	out.Score = score
	out.RunTime = time.Since(start)
	p.opts.Stats.Record(out)
	p.opts.Metrics.observeOutput(out)
	logger.Debug("query validated", zap.String("query", pred.ID), zap.Int("score", score), zap.Duration("took", out.RunTime))
	return out, nil
}

// runTest isolates a single test: errors and panics become error reports,
// while a broken report contract is returned as ErrMalformedReport.
func (p *Pipeline) runTest(ctx context.Context, t validation.Test, in validation.Input) (rep *model.Report, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("validation panicked", zap.String("test", t.Alias()), zap.Any("panic", r))
			rep = validation.Classify(t, nil, fmt.Errorf("panic: %v", r), time.Since(start))
			err = nil
		}
	}()

	raw, runErr := t.Run(ctx, in)
	if runErr == nil {
		if err := checkReport(t, raw); err != nil {
			return nil, err
		}
	}
	return validation.Classify(t, raw, runErr, time.Since(start)), nil
}

func checkReport(t validation.Test, rep *model.Report) error {
	switch {
	case rep == nil:
		return fmt.Errorf("%w: %s returned no report", ErrMalformedReport, t.Alias())
	case rep.Kind != t.Kind():
		return fmt.Errorf("%w: %s returned a %s report", ErrMalformedReport, t.Alias(), rep.Kind)
	case rep.Result != model.ResultYes && rep.Result != model.ResultNo:
		return fmt.Errorf("%w: %s returned result %s without an error", ErrMalformedReport, t.Alias(), rep.Result)
	case rep.Expected != model.ResultYes && rep.Expected != model.ResultNo:
		return fmt.Errorf("%w: %s expects %s", ErrMalformedReport, t.Alias(), rep.Expected)
	}
	return nil
}
