package rightmove

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/time/rate"

	"property-monitor/config"
	"property-monitor/models"
	"property-monitor/utils"
)

// Scraper turns one search page URL into parsed listings: it waits for the
// shared rate limiter, fetches with the configured retry policy and parses
// the result.
type Scraper struct {
	cfg     *config.Config
	fetcher Fetcher
	parser  *Parser
	limiter *rate.Limiter
}

func NewScraper(cfg *config.Config, fetcher Fetcher, parser *Parser) *Scraper {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  parser,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// NewFetcher picks the fetcher for cfg.FetchMode. The browser fetcher
// fails when Chrome cannot be started.
func NewFetcher(cfg *config.Config) (Fetcher, error) {
	if cfg.FetchMode == "browser" {
		return NewBrowserFetcher(cfg.Headless, cfg.RequestTimeout, cfg.MaxTabs)
	}
	return NewStaticFetcher(cfg.RequestTimeout), nil
}

func (s *Scraper) Close() error {
	return s.fetcher.Close()
}

// ScrapePage never fails as a whole: fetch and parse problems are reported
// on the result so the batch can continue.
func (s *Scraper) ScrapePage(ctx context.Context, job models.ScrapeJob) models.ScrapeResult {
	result := models.ScrapeResult{URL: job.URL, PageNumber: job.PageNumber}

	if err := utils.RandomDelay(ctx, s.cfg.MinDelay, s.cfg.MaxDelay); err != nil {
		result.Error = err
		return result
	}

	var page Page
	policy := utils.RetryPolicy{
		MaxAttempts: s.cfg.MaxAttempts,
		Backoff:     s.cfg.RetryBackoff,
		Retryable:   IsTransient,
	}
	err := utils.Retry(ctx, policy, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		page, err = s.fetcher.Fetch(ctx, job.URL)
		return err
	})
	result.StatusCode = page.StatusCode
	if err != nil {
		result.Error = err
		return result
	}

	parsed, err := s.parser.Parse(strings.NewReader(page.HTML), page.FetchedAt)
	switch {
	case errors.Is(err, ErrNoListings) && looksBlocked(page.HTML):
		result.Error = newFetchError(job.URL, page.StatusCode, ErrBlocked)
		return result
	case err != nil:
		utils.Warn("Page %d (%s) unparseable: %v", job.PageNumber, job.URL, err)
		result.ParseFailures = 1
		return result
	}

	result.Listings = parsed.Listings
	result.ParseFailures = parsed.Failures
	utils.Success("Page %d | %d listings | %d unparseable cards", job.PageNumber, len(parsed.Listings), parsed.Failures)
	return result
}
