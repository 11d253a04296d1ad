package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"property-monitor/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	sql := `
	CREATE TABLE IF NOT EXISTS listings (
		url TEXT NOT NULL,
		run_id TEXT NOT NULL,
		run_at TIMESTAMPTZ NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		raw_price TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		rooms INTEGER,
		size NUMERIC(10,1),
		description TEXT NOT NULL DEFAULT '',
		retrieved_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (url, run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_listings_run_at ON listings(run_at);
	CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
	`

	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	return nil
}

func (s *PostgresStore) AppendBatch(ctx context.Context, b *models.ScrapeBatch) (int, error) {
	rows, err := finalizedRows(b)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	insertSQL := `
	INSERT INTO listings (url, run_id, run_at, price, raw_price, location, rooms, size, description, retrieved_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (url, run_id) DO NOTHING;
	`
	for _, l := range rows {
		batch.Queue(
			insertSQL,
			l.URL,
			b.RunID,
			b.RunAt,
			l.Price,
			l.RawPrice,
			l.Location,
			l.Rooms,
			l.Size,
			l.Description,
			l.RetrievedAt,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	written := 0
	for i := 0; i < len(rows); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("batch insert failed at row %d: %w", i, err)
		}
		written += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("batch insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (s *PostgresStore) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.pool.Query(ctx, `
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
		var run RunInfo
		if err := rows.Scan(&run.RunID, &run.RunAt, &run.Rows); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		run.RunAt = run.RunAt.UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) LoadRun(ctx context.Context, runID string) (RunInfo, []models.Listing, error) {
	if runID == "" {
		err := s.pool.QueryRow(ctx,
			`SELECT run_id FROM listings ORDER BY run_at DESC, run_id DESC LIMIT 1`).Scan(&runID)
		if errors.Is(err, pgx.ErrNoRows) {
			return RunInfo{}, nil, ErrRunNotFound
		}
		if err != nil {
			return RunInfo{}, nil, fmt.Errorf("find latest run: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx, `
	SELECT url, run_at, price::float8, raw_price, location, rooms, size::float8, description, retrieved_at
	FROM listings
	WHERE run_id = $1
	ORDER BY url`, runID)
	if err != nil {
		return RunInfo{}, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	defer rows.Close()

	run := RunInfo{RunID: runID}
	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.URL, &run.RunAt, &l.Price, &l.RawPrice, &l.Location, &l.Rooms, &l.Size, &l.Description, &l.RetrievedAt); err != nil {
			return RunInfo{}, nil, fmt.Errorf("load run %s: %w", runID, err)
		}
		l.RetrievedAt = l.RetrievedAt.UTC()
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return RunInfo{}, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if len(listings) == 0 {
		return RunInfo{}, nil, ErrRunNotFound
	}

	run.RunAt = run.RunAt.UTC()
	run.Rows = len(listings)
	return run, listings, nil
}
