package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property-monitor/config"
	"property-monitor/models"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrNotFinalized = errors.New("batch is not finalized")
)

// RunInfo describes one persisted run.
type RunInfo struct {
	RunID string
	RunAt time.Time
	Rows  int
}

// Store is the append-only listings table. Rows are keyed by URL and run
// ID; appending never updates or removes rows of earlier runs.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// AppendBatch inserts the finalized table of b in one transaction and
	// returns the number of rows written.
	AppendBatch(ctx context.Context, b *models.ScrapeBatch) (int, error)
	// Runs lists persisted runs, oldest first.
	Runs(ctx context.Context) ([]RunInfo, error)
	// LoadRun returns the rows of a run sorted by URL. An empty runID
	// selects the most recent run.
	LoadRun(ctx context.Context, runID string) (RunInfo, []models.Listing, error)
	Close() error
}

// NewStore opens the store selected by cfg.StoreDriver and makes sure the
// schema exists.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.StoreDriver {
	case "sqlite":
		s, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	case "postgres":
		s, err = NewPostgresStore(ctx, cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// finalizedRows returns the table to persist, refusing batches that are
// still being filled.
func finalizedRows(b *models.ScrapeBatch) ([]models.Listing, error) {
	if !b.Finalized() {
		return nil, ErrNotFinalized
	}
	return b.Listings(), nil
}
