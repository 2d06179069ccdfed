// Package history persists completed run reports to a local SQLite file so
// past maintenance outcomes survive the process. It is an optional sink:
// a nil *Store is valid and every method on it is a no-op.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DJCastle/homeBrewScripts/internal/maintenance"
	"github.com/DJCastle/homeBrewScripts/internal/report"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

var ErrDisabled = errors.New("history disabled")

type Config struct {
	// Driver is "" / "none" (disabled) or "sqlite".
	Driver      string
	Path        string
	Keep        int           // runs retained by Prune (default 90)
	BusyTimeout time.Duration // 0 means sqlite default
}

// Entry is one stored run.
type Entry struct {
	ID           int64
	Host         string
	StartedAt    time.Time
	FinishedAt   time.Time
	SkipReason   string
	SuccessCount int
	FailureCount int
	Steps        []maintenance.Step
}

type Store struct {
	db   *sql.DB
	keep int
	log  logx.Logger
}

// Open returns (nil, nil) when the driver is disabled; callers can use the
// nil store directly.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	switch strings.TrimSpace(cfg.Driver) {
	case "", "none":
		return nil, nil
	case "sqlite":
	default:
		return nil, fmt.Errorf("history driver %q is not supported", cfg.Driver)
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	keep := cfg.Keep
	if keep <= 0 {
		keep = 90
	}
	st := &Store{db: db, keep: keep, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores one finished run.
func (s *Store) Append(ctx context.Context, rep report.RunReport) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	stepsJSON, err := json.Marshal(rep.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs(host, started_at, finished_at, skip_reason, success_count, failure_count, steps)
		 VALUES(?,?,?,?,?,?,?)`,
		rep.Host,
		rep.StartedAt.Format(time.RFC3339Nano),
		rep.FinishedAt.Format(time.RFC3339Nano),
		rep.SkipReason, rep.SuccessCount, rep.FailureCount, string(stepsJSON),
	)
	return err
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, host, started_at, finished_at, skip_reason, success_count, failure_count, steps
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started, finished, stepsJSON string
		if err := rows.Scan(&e.ID, &e.Host, &started, &finished, &e.SkipReason, &e.SuccessCount, &e.FailureCount, &stepsJSON); err != nil {
			return nil, err
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if stepsJSON != "" && stepsJSON != "null" {
			if err := json.Unmarshal([]byte(stepsJSON), &e.Steps); err != nil {
				s.log.Warn("history entry has unreadable steps", logx.Int64("id", e.ID), logx.Err(err))
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune removes everything older than the configured retention count and
// returns how many rows went away.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, s.keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
