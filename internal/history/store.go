package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
	_ "modernc.org/sqlite"             // registers "sqlite" driver

	"github.com/hubenschmidt/vishing-trainer/internal/outcome"
	"github.com/hubenschmidt/vishing-trainer/internal/transcript"
	"github.com/hubenschmidt/vishing-trainer/internal/wire"
)

// DefaultRetention is how many results are kept.
const DefaultRetention = 100

var ErrUnsupportedDriver = errors.New("unsupported history driver")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind turns ? placeholders into $N for postgres.
func (d dialect) rebind(q string) string {
	if d != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store persists session results.
type Store struct {
	db        *sql.DB
	dialect   dialect
	retention int
}

// Open connects to a history database. driver is "sqlite" (dsn is a file
// path or ":memory:") or "pgx" (dsn is a PostgreSQL connection string).
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var d dialect
	switch driver {
	case "sqlite", "":
		driver, d = "sqlite", dialectSQLite
	case "pgx", "postgres":
		driver, d = "pgx", dialectPostgres
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("history open: %w", err)
	}
	if d == dialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history ping: %w", err)
	}
	if err = migrate(ctx, db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("history migrate: %w", err)
	}
	return &Store{db: db, dialect: d, retention: DefaultRetention}, nil
}

// SetRetention changes how many results are kept; n <= 0 keeps the default.
func (s *Store) SetRetention(n int) {
	if n <= 0 {
		n = DefaultRetention
	}
	s.retention = n
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendResult stores r and prunes results beyond the retention limit.
func (s *Store) AppendResult(ctx context.Context, r outcome.Result) error {
	entries, err := json.Marshal(r.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if r.SessionID == "" {
		return errors.New("append result: empty session id")
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO results (id, scenario_id, scenario_name, mode, outcome, success, score, duration_s,
		                      ended_at, end_reason, from_backend, feedback, debrief, transcript)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.SessionID, r.ScenarioID, r.ScenarioName, string(r.Mode), string(r.Outcome), boolInt(r.Success),
		r.Score, r.Duration, r.EndedAt.UnixMilli(), r.EndReason, boolInt(r.FromBackend),
		r.Feedback, r.Debrief, string(entries),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(
		`DELETE FROM results WHERE id NOT IN (SELECT id FROM results ORDER BY ended_at DESC LIMIT ?)`),
		s.retention,
	)
	if err != nil {
		return fmt.Errorf("prune results: %w", err)
	}
	return nil
}

// ReadRecentResults returns up to n results, newest first.
func (s *Store) ReadRecentResults(ctx context.Context, n int) ([]outcome.Result, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT id, scenario_id, scenario_name, mode, outcome, success, score, duration_s,
		        ended_at, end_reason, from_backend, feedback, debrief, transcript
		 FROM results
		 ORDER BY ended_at DESC, id
		 LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []outcome.Result
	for rows.Next() {
		var (
			r                    outcome.Result
			mode, oc, entries    string
			success, fromBackend int
			endedAt              int64
		)
		err = rows.Scan(&r.SessionID, &r.ScenarioID, &r.ScenarioName, &mode, &oc, &success, &r.Score,
			&r.Duration, &endedAt, &r.EndReason, &fromBackend, &r.Feedback, &r.Debrief, &entries)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Mode = wire.Mode(mode)
		r.Outcome = outcome.Outcome(oc)
		r.Success = success != 0
		r.FromBackend = fromBackend != 0
		r.EndedAt = time.UnixMilli(endedAt).UTC()
		if err = json.Unmarshal([]byte(entries), &r.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript of %s: %w", r.SessionID, err)
		}
		if r.Transcript == nil {
			r.Transcript = []transcript.Entry{}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored results.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
