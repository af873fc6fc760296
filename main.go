package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yumyai/genevalidator/internal/config"
	"github.com/yumyai/genevalidator/logger"
	"github.com/yumyai/genevalidator/pkg/align"
	"github.com/yumyai/genevalidator/pkg/archive"
	"github.com/yumyai/genevalidator/pkg/blast"
	mydb "github.com/yumyai/genevalidator/pkg/db"
	"github.com/yumyai/genevalidator/pkg/handler"
	"github.com/yumyai/genevalidator/pkg/pipeline"
	"github.com/yumyai/genevalidator/pkg/render"
	"github.com/yumyai/genevalidator/pkg/validation"
)

const VERSION = "0.1.0"

const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

func main() {
	os.Exit(run(os.Stdout))
}

func run(stdout io.Writer) int {

	// Try load env
	dotenvErr := godotenv.Load()

	level, levelErr := logger.ParseLevel(os.Getenv("GV_LOG_LEVEL"))
	if err := logger.InitLogger(level); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		return exitFailure
	}
	defer logger.Sync() // Make sure that the buffered is flushed.

	if dotenvErr != nil {
		logger.Warn("No .env found, using local environment")
	}
	if levelErr != nil {
		logger.Warn("Falling back to info logging", zap.Error(levelErr))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger.Info("Start:", zap.String("Version", VERSION), zap.String("run", runID))

	res, err := validate(ctx, cfg, runID)
	if err != nil {
		logger.Error("Validation failed", zap.String("run", runID), zap.Error(err))
		if !res.Flushed {
			return exitCode(err)
		}
	}

	data := render.SummaryData{Summary: res.Summary, Input: cfg.Input, ResultsDSN: cfg.ResultsDSN, ArchiveURL: res.ArchiveURL}
	if cfg.ResultsDriver == mydb.DriverPostgres {
		data.ResultsDSN = "postgres database"
	}
	if renderErr := render.RenderSummary(stdout, data); renderErr != nil {
		logger.Error("Rendering summary failed", zap.Error(renderErr))
		return exitFailure
	}
	if err != nil {
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var cerr *config.ConfigError
	var verr *validation.ConfigError
	switch {
	case errors.As(err, &cerr), errors.As(err, &verr), errors.Is(err, pipeline.ErrMalformedReport):
		return exitConfig
	default:
		return exitFailure
	}
}

// runResult is what a run leaves behind. Flushed is set once the run row has
// been closed, even when the run stopped early; the summary is then worth printing.
type runResult struct {
	Summary    pipeline.Summary
	ArchiveURL string
	Flushed    bool
}

// validate wires every component for one run and executes it. A run that
// fails while reading its inputs is still closed in the results store and
// archived, so its partial summary survives.
func validate(ctx context.Context, cfg *config.Config, runID string) (runResult, error) {
	tests, err := validation.Build(cfg.Validations, validation.Deps{
		Fetcher: newFetcher(cfg),
		Aligner: &align.Mafft{Binary: cfg.Mafft, Threads: cfg.Threads},
		MinHits: cfg.MinHits,
	})
	if err != nil {
		return runResult{}, err
	}

	queries, err := mydb.BuildQueryIndex(cfg.Input)
	if err != nil {
		return runResult{}, err
	}
	defer queries.Close()

	hits, err := openHits(cfg)
	if err != nil {
		return runResult{}, err
	}
	defer hits.Close()

	store, err := mydb.OpenResultStore(ctx, cfg.ResultsDriver, cfg.ResultsDSN)
	if err != nil {
		return runResult{}, err
	}
	defer store.Close()

	aliases := make([]string, len(tests))
	for i, t := range tests {
		aliases[i] = t.Alias()
	}
	if err := store.BeginRun(ctx, mydb.RunRecord{
		ID:         runID,
		Input:      cfg.Input,
		Threads:    cfg.Threads,
		Validation: aliases,
		StartedAt:  time.Now(),
	}); err != nil {
		return runResult{}, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := pipeline.NewMetrics(registry)
	if err != nil {
		return runResult{}, err
	}

	p := pipeline.New(queries, hits, pipeline.Options{
		RunID:   runID,
		Threads: cfg.Threads,
		Tests:   tests,
		Metrics: metrics,
		Sink:    store,
	})

	if cfg.StatusAddr != "" {
		shutdown := serveStatus(cfg.StatusAddr, &handler.StatusContext{
			Version:  VERSION,
			Stats:    p.Stats(),
			Registry: registry,
		})
		defer shutdown()
	}

	sum, runErr := p.Run(ctx)
	res := runResult{Summary: sum}
	if runErr != nil && exitCode(runErr) == exitConfig {
		return res, runErr
	}

	// The run context may be cancelled already; the run row still gets closed.
	flushCtx := context.WithoutCancel(ctx)
	if err := store.FinishRun(flushCtx, runID, sum.Good, sum.Total, time.Now()); err != nil {
		return res, errors.Join(runErr, err)
	}
	res.Flushed = true

	if cfg.S3.Bucket != "" {
		url, err := archiveSummary(flushCtx, cfg.S3, sum)
		if err != nil {
			logger.Warn("Archiving summary failed", zap.Error(err))
		}
		res.ArchiveURL = url
	}
	return res, runErr
}

type hitSource interface {
	blast.HitIterator
	io.Closer
}

func openHits(cfg *config.Config) (hitSource, error) {
	if cfg.BlastXML != "" {
		logger.Info("Reading BLAST XML", zap.String("path", cfg.BlastXML))
		return blast.OpenXML(cfg.BlastXML)
	}
	logger.Info("Reading tabular BLAST", zap.String("path", cfg.BlastTabular), zap.String("columns", cfg.TabularColumns))
	return blast.OpenTabular(cfg.BlastTabular, cfg.TabularColumns, blast.HitTypeForProgram(cfg.BlastProgram))
}

// newFetcher chains the configured sequence sources behind an LRU cache.
// It returns nil when no source is configured.
func newFetcher(cfg *config.Config) mydb.SequenceFetcher {
	var chain mydb.ChainFetcher
	if cfg.BlastDB != "" {
		chain = append(chain, &mydb.BlastDBFetcher{DB: cfg.BlastDB})
	}
	if cfg.NCBIFetch {
		chain = append(chain, mydb.NewNCBIFetcher())
	}
	if len(chain) == 0 {
		logger.Warn("No sequence source configured; tests needing raw hit sequences rely on the hit records")
		return nil
	}
	cached, err := mydb.NewCachedFetcher(chain, cfg.FetchCacheSize)
	if err != nil {
		logger.Warn("Sequence cache disabled", zap.Error(err))
		return chain
	}
	return cached
}

func archiveSummary(ctx context.Context, s3cfg config.S3, sum pipeline.Summary) (string, error) {
	a, err := archive.New(ctx, archive.Config{
		Bucket:    s3cfg.Bucket,
		Region:    s3cfg.Region,
		Endpoint:  s3cfg.Endpoint,
		Prefix:    s3cfg.Prefix,
		PathStyle: s3cfg.PathStyle,
	})
	if err != nil {
		return "", err
	}
	return a.Upload(ctx, sum)
}

// serveStatus starts the status server in the background and returns its shutdown func.
func serveStatus(addr string, sctx *handler.StatusContext) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.NewStatusHandler(sctx, logger.Logger()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Status server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Error starting server:", zap.String("error message", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
