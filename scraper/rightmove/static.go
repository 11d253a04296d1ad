package rightmove

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"property-monitor/utils"
)

// StaticFetcher fetches plain HTML with a fresh colly collector per page.
type StaticFetcher struct {
	timeout time.Duration
}

func NewStaticFetcher(timeout time.Duration) *StaticFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StaticFetcher{timeout: timeout}
}

func (f *StaticFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	page := Page{URL: pageURL, FetchedAt: time.Now().UTC()}

	userAgent := utils.RandomUserAgent()
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.timeout)

	headers := utils.BrowserHeaders(userAgent)
	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.HTML = string(r.Body)
	})

	// colly reports non-2xx responses here as well as transport errors.
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
			page.StatusCode = status
		}
		fetchErr = newFetchError(pageURL, status, err)
	})

	utils.Debug("GET %s (ua=%s)", pageURL, userAgent)
	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = newFetchError(pageURL, page.StatusCode, fmt.Errorf("visit: %w", err))
	}
	if fetchErr != nil {
		return page, fetchErr
	}

	return page, nil
}

func (f *StaticFetcher) Close() error {
	return nil
}
