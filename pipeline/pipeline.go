package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property-monitor/config"
	"property-monitor/models"
	"property-monitor/scraper/rightmove"
	"property-monitor/services"
	"property-monitor/storage"
	"property-monitor/utils"
)

// Pipeline runs one scrape: fetch and parse pages, clean the collected
// records, persist them and analyze the result.
type Pipeline struct {
	cfg       *config.Config
	pool      *rightmove.WorkerPool
	persister *storage.Persister
	analyzer  *services.Analyzer
	now       func() time.Time
}

func New(cfg *config.Config, scraper rightmove.PageScraper, persister *storage.Persister, analyzer *services.Analyzer) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		pool:      rightmove.NewWorkerPool(scraper, cfg.MaxWorkers),
		persister: persister,
		analyzer:  analyzer,
		now:       time.Now,
	}
}

// Run processes jobs and returns the stage counters. Fetch, parse and
// validation problems are only counted. The error is non-nil when the run
// is interrupted or the store rejects the batch.
func (p *Pipeline) Run(ctx context.Context, jobs []models.ScrapeJob) (models.RunStats, error) {
	limit := p.cfg.ListingLimit()
	if len(jobs) > limit {
		utils.Warn("%d pages requested, keeping the first %d", len(jobs), limit)
		jobs = jobs[:limit]
	}

	batch := models.NewScrapeBatch(p.now(), limit)
	stats := models.RunStats{
		RunID:     batch.RunID,
		Requested: len(jobs),
		StartedAt: batch.RunAt,
	}
	utils.Info("Run %s started | pages=%d workers=%d cap=%d", batch.RunID, len(jobs), p.cfg.MaxWorkers, limit)

	utils.Section("Fetch")
	p.fetch(ctx, jobs, batch, &stats)
	if err := ctx.Err(); err != nil {
		stats.FinishedAt = p.now().UTC()
		return stats, fmt.Errorf("run %s interrupted: %w", batch.RunID, err)
	}
	utils.Info("Fetched %d/%d pages | %d transient and %d permanent failures",
		stats.Fetched, stats.Requested, stats.TransientFailures, stats.PermanentFailures)
	utils.Info("Parsed %d listings | %d parse failures | %d over cap",
		stats.Parsed, stats.ParseFailures, stats.OverCap)

	utils.Section("Clean")
	cleaned := services.CleanListings(batch.Raw())
	stats.Rejected = cleaned.Rejected()
	stats.Duplicates = cleaned.Duplicates
	stats.Cleaned = len(cleaned.Listings)
	if err := batch.Finalize(cleaned.Listings); err != nil {
		return stats, err
	}
	utils.Info("Cleaned %d listings | %d rejected | %d duplicates", stats.Cleaned, stats.Rejected, stats.Duplicates)

	utils.Section("Persist")
	res, err := p.persister.Persist(ctx, batch)
	if err != nil {
		stats.FinishedAt = p.now().UTC()
		return stats, err
	}
	stats.Persisted = res.Rows
	stats.ExportFailed = res.ExportErr != nil

	utils.Section("Analyze")
	if _, err := p.analyzer.Analyze(batch.RunID, batch.Listings()); err != nil {
		utils.Warn("Analysis output incomplete: %v", err)
		stats.AnalysisFailed = true
	}

	stats.FinishedAt = p.now().UTC()
	utils.Success("Run %s finished in %s | %d rows persisted",
		batch.RunID, stats.FinishedAt.Sub(stats.StartedAt).Round(time.Millisecond), stats.Persisted)
	return stats, nil
}

// fetch drains the worker pool into batch. Once the batch is full the
// remaining pages are cancelled; those cancellations are not failures.
func (p *Pipeline) fetch(ctx context.Context, jobs []models.ScrapeJob, batch *models.ScrapeBatch, stats *models.RunStats) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.pool.Run(fetchCtx, jobs, func(r models.ScrapeResult) {
		if r.Error != nil {
			if errors.Is(r.Error, context.Canceled) || errors.Is(r.Error, context.DeadlineExceeded) {
				if fetchCtx.Err() != nil {
					return
				}
			}
			stats.FetchFailures++
			if rightmove.KindOf(r.Error) == rightmove.Transient {
				stats.TransientFailures++
			} else {
				stats.PermanentFailures++
			}
			utils.Warn("Page %d failed: %v", r.PageNumber, r.Error)
			return
		}

		stats.Fetched++
		stats.ParseFailures += r.ParseFailures
		for _, l := range r.Listings {
			if batch.Add(l) {
				stats.Parsed++
			}
		}
		stats.OverCap = batch.OverCap()

		if batch.Full() && fetchCtx.Err() == nil {
			utils.Info("Reached %d listings, cancelling remaining pages", stats.Parsed)
			cancel()
		}
	})
}
