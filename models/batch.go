package models

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrBatchFinalized = errors.New("batch already finalized")

// ScrapeBatch collects the listings of one run. Records are added while
// pages are parsed, up to the batch limit; Finalize swaps in the cleaned
// table and freezes the batch.
type ScrapeBatch struct {
	RunID string
	RunAt time.Time

	mu        sync.Mutex
	limit     int
	raw       []Listing
	listings  []Listing
	overCap   int
	finalized bool
}

func NewScrapeBatch(runAt time.Time, limit int) *ScrapeBatch {
	return &ScrapeBatch{
		RunID: uuid.NewString(),
		RunAt: runAt.UTC(),
		limit: limit,
	}
}

// Add appends a parsed record. It returns false once the batch is full or
// finalized; records refused because of the limit are counted.
func (b *ScrapeBatch) Add(l Listing) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return false
	}
	if len(b.raw) >= b.limit {
		b.overCap++
		return false
	}
	b.raw = append(b.raw, l)
	return true
}

func (b *ScrapeBatch) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.raw) >= b.limit
}

// Raw returns a copy of the records added so far.
func (b *ScrapeBatch) Raw() []Listing {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Listing, len(b.raw))
	copy(out, b.raw)
	return out
}

func (b *ScrapeBatch) OverCap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overCap
}

func (b *ScrapeBatch) Finalize(cleaned []Listing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return ErrBatchFinalized
	}
	b.listings = make([]Listing, len(cleaned))
	copy(b.listings, cleaned)
	b.raw = nil
	b.finalized = true
	return nil
}

func (b *ScrapeBatch) Finalized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalized
}

// Listings returns a copy of the finalized table, or nil before Finalize.
func (b *ScrapeBatch) Listings() []Listing {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.finalized {
		return nil
	}
	out := make([]Listing, len(b.listings))
	copy(out, b.listings)
	return out
}

// RunStats holds the per-stage counters of one run.
type RunStats struct {
	RunID             string
	Requested         int
	Fetched           int
	FetchFailures     int
	TransientFailures int
	PermanentFailures int
	Parsed            int
	ParseFailures     int
	OverCap           int
	Rejected          int
	Duplicates        int
	Cleaned           int
	Persisted         int
	ExportFailed      bool
	AnalysisFailed    bool
	StartedAt         time.Time
	FinishedAt        time.Time
}
