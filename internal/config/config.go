// Package config reads the GV_* environment into a validated Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yumyai/genevalidator/internal/util"
	"github.com/yumyai/genevalidator/pkg/blast"
	"github.com/yumyai/genevalidator/pkg/db"
	"github.com/yumyai/genevalidator/pkg/validation"
)

const (
	DefaultThreads   = 2
	DefaultMafft     = "mafft"
	DefaultOutputDir = "./gv_output"
	DefaultCacheSize = 1024
)

// ConfigError is a problem with the environment. The process exits with
// status 2 on it.
type ConfigError struct {
	Var string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Var, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type S3 struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PathStyle bool
}

type Config struct {
	Input          string
	BlastXML       string
	BlastTabular   string
	TabularColumns string
	BlastProgram   string
	BlastDB        string
	NCBIFetch      bool
	Threads        int
	Validations    []string
	MinHits        int
	Mafft          string
	ResultsDriver  string
	ResultsDSN     string
	OutputDir      string
	StatusAddr     string
	FetchCacheSize int
	LogLevel       string
	S3             S3
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Input:        strings.TrimSpace(getenv("GV_INPUT")),
		BlastXML:     strings.TrimSpace(getenv("GV_BLAST_XML")),
		BlastTabular: strings.TrimSpace(getenv("GV_BLAST_TABULAR")),
		BlastDB:      strings.TrimSpace(getenv("GV_BLAST_DB")),
		Validations:  util.SplitList(getenv("GV_VALIDATIONS")),
		Mafft:        withDefault(getenv("GV_MAFFT"), DefaultMafft),
		OutputDir:    withDefault(getenv("GV_OUTPUT_DIR"), DefaultOutputDir),
		StatusAddr:   strings.TrimSpace(getenv("GV_STATUS_ADDR")),
		LogLevel:     getenv("GV_LOG_LEVEL"),
		S3: S3{
			Bucket:   strings.TrimSpace(getenv("GV_S3_BUCKET")),
			Region:   strings.TrimSpace(getenv("GV_S3_REGION")),
			Endpoint: strings.TrimSpace(getenv("GV_S3_ENDPOINT")),
			Prefix:   strings.TrimSpace(getenv("GV_S3_PREFIX")),
		},
	}

	var err error
	if cfg.NCBIFetch, err = parseBool("GV_NCBI_FETCH", getenv("GV_NCBI_FETCH")); err != nil {
		return nil, err
	}
	if cfg.S3.PathStyle, err = parseBool("GV_S3_PATH_STYLE", getenv("GV_S3_PATH_STYLE")); err != nil {
		return nil, err
	}
	if cfg.Threads, err = parsePositive("GV_THREADS", getenv("GV_THREADS"), DefaultThreads); err != nil {
		return nil, err
	}
	if cfg.MinHits, err = parsePositive("GV_MIN_HITS", getenv("GV_MIN_HITS"), validation.DefaultMinHits); err != nil {
		return nil, err
	}
	if cfg.FetchCacheSize, err = parsePositive("GV_FETCH_CACHE_SIZE", getenv("GV_FETCH_CACHE_SIZE"), DefaultCacheSize); err != nil {
		return nil, err
	}

	if cfg.Input == "" {
		return nil, &ConfigError{Var: "GV_INPUT", Err: errors.New("query FASTA file required")}
	}
	if !util.FileExists(cfg.Input) {
		return nil, &ConfigError{Var: "GV_INPUT", Err: fmt.Errorf("%s is not a readable file", cfg.Input)}
	}

	switch {
	case cfg.BlastXML == "" && cfg.BlastTabular == "":
		return nil, &ConfigError{Var: "GV_BLAST_XML", Err: errors.New("one of GV_BLAST_XML or GV_BLAST_TABULAR required")}
	case cfg.BlastXML != "" && cfg.BlastTabular != "":
		return nil, &ConfigError{Var: "GV_BLAST_XML", Err: errors.New("GV_BLAST_XML and GV_BLAST_TABULAR are mutually exclusive")}
	case cfg.BlastXML != "" && !util.FileExists(cfg.BlastXML):
		return nil, &ConfigError{Var: "GV_BLAST_XML", Err: fmt.Errorf("%s is not a readable file", cfg.BlastXML)}
	case cfg.BlastTabular != "" && !util.FileExists(cfg.BlastTabular):
		return nil, &ConfigError{Var: "GV_BLAST_TABULAR", Err: fmt.Errorf("%s is not a readable file", cfg.BlastTabular)}
	}

	cfg.TabularColumns = strings.Join(strings.Fields(getenv("GV_BLAST_TABULAR_COLUMNS")), " ")
	if cfg.TabularColumns == "" {
		cfg.TabularColumns = blast.DefaultColumns
	}
	cfg.BlastProgram = strings.ToLower(withDefault(getenv("GV_BLAST_PROGRAM"), "blastp"))

	cfg.ResultsDriver = strings.ToLower(withDefault(getenv("GV_RESULTS_DRIVER"), db.DriverSQLite))
	switch cfg.ResultsDriver {
	case db.DriverSQLite:
		cfg.ResultsDSN = withDefault(getenv("GV_RESULTS_DSN"), filepath.Join(cfg.OutputDir, "results.db"))
	case db.DriverPostgres:
		cfg.ResultsDSN = strings.TrimSpace(getenv("GV_RESULTS_DSN"))
		if cfg.ResultsDSN == "" {
			return nil, &ConfigError{Var: "GV_RESULTS_DSN", Err: errors.New("required for the pgx driver")}
		}
	default:
		return nil, &ConfigError{Var: "GV_RESULTS_DRIVER", Err: fmt.Errorf("%w: %q", db.ErrUnknownDriver, cfg.ResultsDriver)}
	}

	return cfg, nil
}

func withDefault(raw, def string) string {
	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return def
}

func parseBool(name, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ConfigError{Var: name, Err: fmt.Errorf("not a boolean: %q", raw)}
	}
	return v, nil
}

func parsePositive(name, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, &ConfigError{Var: name, Err: fmt.Errorf("want a positive integer, got %q", raw)}
	}
	return v, nil
}
