package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"property-monitor/models"
)

// Timestamps are stored as fixed-width UTC text so that they sort
// lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		url          TEXT NOT NULL,
		run_id       TEXT NOT NULL,
		run_at       TEXT NOT NULL,
		price        REAL NOT NULL,
		raw_price    TEXT NOT NULL DEFAULT '',
		location     TEXT NOT NULL DEFAULT '',
		rooms        INTEGER,
		size         REAL,
		description  TEXT NOT NULL DEFAULT '',
		retrieved_at TEXT NOT NULL,
		PRIMARY KEY (url, run_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_run_at ON listings(run_at)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price)`,
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// A single connection serializes writers on the file.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite store %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) AppendBatch(ctx context.Context, b *models.ScrapeBatch) (int, error) {
	rows, err := finalizedRows(b)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO listings (url, run_id, run_at, price, raw_price, location, rooms, size, description, retrieved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (url, run_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	runAt := b.RunAt.UTC().Format(sqliteTimeLayout)
	written := 0
	for i, l := range rows {
		res, err := stmt.ExecContext(ctx,
			l.URL,
			b.RunID,
			runAt,
			l.Price,
			l.RawPrice,
			l.Location,
			nullInt(l.Rooms),
			nullFloat(l.Size),
			l.Description,
			l.RetrievedAt.UTC().Format(sqliteTimeLayout),
		)
		if err != nil {
			return 0, fmt.Errorf("insert failed at row %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert failed at row %d: %w", i, err)
		}
		written += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (s *SQLiteStore) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, MIN(run_at), COUNT(*)
	FROM listings
	GROUP BY run_id
	ORDER BY MIN(run_at), run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			run   RunInfo
			runAt string
		)
		if err := rows.Scan(&run.RunID, &runAt, &run.Rows); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if run.RunAt, err = time.Parse(sqliteTimeLayout, runAt); err != nil {
			return nil, fmt.Errorf("list runs: bad run_at %q: %w", runAt, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) LoadRun(ctx context.Context, runID string) (RunInfo, []models.Listing, error) {
	if runID == "" {
		err := s.db.QueryRowContext(ctx,
			`SELECT run_id FROM listings ORDER BY run_at DESC, run_id DESC LIMIT 1`).Scan(&runID)
		if errors.Is(err, sql.ErrNoRows) {
			return RunInfo{}, nil, ErrRunNotFound
		}
		if err != nil {
			return RunInfo{}, nil, fmt.Errorf("find latest run: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT url, run_at, price, raw_price, location, rooms, size, description, retrieved_at
	FROM listings
	WHERE run_id = ?
	ORDER BY url`, runID)
	if err != nil {
		return RunInfo{}, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	defer rows.Close()

	run := RunInfo{RunID: runID}
	var listings []models.Listing
	for rows.Next() {
		var (
			l                  models.Listing
			runAt, retrievedAt string
			rooms              sql.NullInt64
			size               sql.NullFloat64
		)
		if err := rows.Scan(&l.URL, &runAt, &l.Price, &l.RawPrice, &l.Location, &rooms, &size, &l.Description, &retrievedAt); err != nil {
			return RunInfo{}, nil, fmt.Errorf("load run %s: %w", runID, err)
		}
		if run.RunAt, err = time.Parse(sqliteTimeLayout, runAt); err != nil {
			return RunInfo{}, nil, fmt.Errorf("load run %s: bad run_at %q: %w", runID, runAt, err)
		}
		if l.RetrievedAt, err = time.Parse(sqliteTimeLayout, retrievedAt); err != nil {
			return RunInfo{}, nil, fmt.Errorf("load run %s: bad retrieved_at %q: %w", runID, retrievedAt, err)
		}
		if rooms.Valid {
			l.Rooms = models.IntPtr(int(rooms.Int64))
		}
		if size.Valid {
			l.Size = models.FloatPtr(size.Float64)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return RunInfo{}, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if len(listings) == 0 {
		return RunInfo{}, nil, ErrRunNotFound
	}

	run.Rows = len(listings)
	return run, listings, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
