package rightmove

import (
	"context"
	"sync"

	"property-monitor/models"
	"property-monitor/utils"
)

// PageScraper is the unit of work a pool worker runs for each job.
type PageScraper interface {
	ScrapePage(ctx context.Context, job models.ScrapeJob) models.ScrapeResult
}

// WorkerPool fetches pages with a fixed number of workers. Results arrive
// in completion order; each carries its source URL.
type WorkerPool struct {
	scraper PageScraper
	workers int
	jobs    chan models.ScrapeJob
	results chan models.ScrapeResult
	wg      sync.WaitGroup
}

func NewWorkerPool(scraper PageScraper, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		scraper: scraper,
		workers: workers,
	}
}

// Run scrapes every job and calls handle for each result on the calling
// goroutine, so handle needs no locking. Jobs still queued when ctx is
// done are dropped without a result. Run returns once all workers exit.
func (p *WorkerPool) Run(ctx context.Context, jobs []models.ScrapeJob, handle func(models.ScrapeResult)) {
	if len(jobs) == 0 {
		return
	}

	p.jobs = make(chan models.ScrapeJob, len(jobs))
	p.results = make(chan models.ScrapeResult, len(jobs))

	workerCount := p.workers
	if len(jobs) < workerCount {
		workerCount = len(jobs)
	}
	utils.Info("Fetching %d pages with %d workers", len(jobs), workerCount)

	p.wg.Add(workerCount)
	for i := 1; i <= workerCount; i++ {
		go p.worker(ctx)
	}

	for _, job := range jobs {
		p.jobs <- job
	}
	close(p.jobs)

	go func() {
		p.wg.Wait()
		close(p.results)
	}()

	for result := range p.results {
		handle(result)
	}
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		if ctx.Err() != nil {
			continue
		}
		p.results <- p.scraper.ScrapePage(ctx, job)
	}
}
