package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/yumyai/genevalidator/pkg/model"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var ErrUnknownDriver = errors.New("unknown results driver")

// RunRecord describes one validation run.
type RunRecord struct {
	ID         string
	Input      string
	Threads    int
	Validation []string
	StartedAt  time.Time
	FinishedAt time.Time
	Good       int
	Total      int
}

// ResultStore persists per-query outputs. Writes are serialised, so workers
// may call SaveOutput concurrently.
type ResultStore struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex
}

// OpenResultStore opens driver ("sqlite" or "pgx") at dsn and creates the schema.
func OpenResultStore(ctx context.Context, driver, dsn string) (*ResultStore, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "genevalidator.db"
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create dirs: %w", err)
			}
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("pgx results driver needs a DSN")
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &ResultStore{db: db, driver: driver}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ResultStore) ensureSchema(ctx context.Context) error {
	payload := "BLOB"
	if s.driver == DriverPostgres {
		payload = "JSONB"
	}
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT NOT NULL,
			threads INTEGER NOT NULL,
			validations TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			good INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			query_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			no_evidence INTEGER NOT NULL DEFAULT 0,
			hit_count INTEGER NOT NULL,
			payload ` + payload + ` NOT NULL,
			PRIMARY KEY (run_id, idx)
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *ResultStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *ResultStore) BeginRun(ctx context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO runs (id, input, threads, validations, started_at) VALUES (?, ?, ?, ?, ?)`),
		run.ID, run.Input, run.Threads, strings.Join(run.Validation, ","), run.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *ResultStore) FinishRun(ctx context.Context, id string, good, total int, finished time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE runs SET finished_at = ?, good = ?, total = ? WHERE id = ?`),
		finished.UTC().Format(time.RFC3339Nano), good, total, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run: %w", sql.ErrNoRows)
	}
	return nil
}

func (s *ResultStore) SaveOutput(ctx context.Context, out *model.Output) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode output %s: %w", out.QueryID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	noEvidence := 0
	if out.NoEvidence {
		noEvidence = 1
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO predictions (run_id, idx, query_id, score, no_evidence, hit_count, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		out.RunID, out.Index, out.QueryID, out.Score, noEvidence, out.HitCount, string(payload))
	if err != nil {
		return fmt.Errorf("insert output %s: %w", out.QueryID, err)
	}
	return nil
}

// StoredOutput is a saved output row. Payload is the JSON form of model.Output.
type StoredOutput struct {
	Index      int
	QueryID    string
	Score      int
	NoEvidence bool
	HitCount   int
	Payload    json.RawMessage
}

// Outputs lists a run's outputs in input order.
func (s *ResultStore) Outputs(ctx context.Context, runID string) ([]StoredOutput, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT idx, query_id, score, no_evidence, hit_count, payload FROM predictions WHERE run_id = ? ORDER BY idx`), runID)
	if err != nil {
		return nil, fmt.Errorf("select outputs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredOutput
	for rows.Next() {
		var (
			o          StoredOutput
			noEvidence int
			payload    []byte
		)
		if err := rows.Scan(&o.Index, &o.QueryID, &o.Score, &noEvidence, &o.HitCount, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		o.NoEvidence = noEvidence != 0
		o.Payload = json.RawMessage(payload)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *ResultStore) Run(ctx context.Context, id string) (RunRecord, error) {
	var (
		run        RunRecord
		validation string
		started    string
		finished   sql.NullString
	)
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, input, threads, validations, started_at, finished_at, good, total FROM runs WHERE id = ?`), id)
	if err := row.Scan(&run.ID, &run.Input, &run.Threads, &validation, &started, &finished, &run.Good, &run.Total); err != nil {
		return RunRecord{}, fmt.Errorf("select run %s: %w", id, err)
	}
	if validation != "" {
		run.Validation = strings.Split(validation, ",")
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	return run, nil
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}
