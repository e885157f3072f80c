package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/catchment-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db       *sql.DB
	cacheTTL time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// cacheTTL bounds how long cached isochrones are served; zero means no expiry.
func NewSQLite(dsn string, cacheTTL time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, cacheTTL: cacheTTL}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input_file TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dead_letters (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	facility   TEXT NOT NULL,
	row        INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	error_type TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS isochrone_cache (
	id            TEXT PRIMARY KEY,
	lat           REAL NOT NULL,
	lon           REAL NOT NULL,
	range_seconds INTEGER NOT NULL,
	profile       TEXT NOT NULL,
	geometry      TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_dead_letters_run_id ON dead_letters(run_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_isochrone_cache_key
	ON isochrone_cache(lat, lon, range_seconds, profile);
CREATE INDEX IF NOT EXISTS idx_isochrone_cache_expires_at ON isochrone_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, inputFile string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_file, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, inputFile, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		InputFile: inputFile,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_file, status, summary, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input_file, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordDeadLetters(ctx context.Context, letters []model.DeadLetter) error {
	if len(letters) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin dead letters")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, dl := range letters {
		id := dl.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := dl.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dead_letters (id, run_id, facility, row, reason, error_type, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, dl.RunID, dl.Facility, dl.Row, dl.Reason, dl.ErrorType, createdAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert dead letter for %s", dl.Facility)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit dead letters")
}

func (s *SQLiteStore) ListDeadLetters(ctx context.Context, runID string) ([]model.DeadLetter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, facility, row, reason, error_type, created_at
		 FROM dead_letters WHERE run_id = ? ORDER BY row`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list dead letters for run %s", runID)
	}
	defer rows.Close()

	var letters []model.DeadLetter
	for rows.Next() {
		var dl model.DeadLetter
		if err := rows.Scan(&dl.ID, &dl.RunID, &dl.Facility, &dl.Row, &dl.Reason, &dl.ErrorType, &dl.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dead letter")
		}
		letters = append(letters, dl)
	}
	return letters, eris.Wrap(rows.Err(), "sqlite: list dead letters iterate")
}

func (s *SQLiteStore) GetIsochrone(ctx context.Context, lat, lon float64, rangeSeconds int, profile string) (json.RawMessage, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT geometry FROM isochrone_cache
		 WHERE lat = ? AND lon = ? AND range_seconds = ? AND profile = ?
		   AND (expires_at IS NULL OR expires_at > datetime('now'))`,
		lat, lon, rangeSeconds, profile,
	)

	var geometry string
	err := row.Scan(&geometry)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get isochrone")
	}
	return json.RawMessage(geometry), true, nil
}

func (s *SQLiteStore) PutIsochrone(ctx context.Context, lat, lon float64, rangeSeconds int, profile string, geometry json.RawMessage) error {
	now := time.Now().UTC()
	var expiresAt any
	if s.cacheTTL != 0 {
		// Stored in SQLite's datetime text form so the datetime('now')
		// comparisons in queries work.
		expiresAt = now.Add(s.cacheTTL).Format("2006-01-02 15:04:05")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO isochrone_cache (id, lat, lon, range_seconds, profile, geometry, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(lat, lon, range_seconds, profile)
		 DO UPDATE SET geometry = excluded.geometry, created_at = excluded.created_at, expires_at = excluded.expires_at`,
		uuid.New().String(), lat, lon, rangeSeconds, profile, string(geometry), now, expiresAt,
	)
	return eris.Wrap(err, "sqlite: put isochrone")
}

func (s *SQLiteStore) DeleteExpiredIsochrones(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM isochrone_cache WHERE expires_at IS NOT NULL AND expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired isochrones")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.InputFile, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if summaryJSON.Valid && summaryJSON.String != "null" {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
