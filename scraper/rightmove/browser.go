package rightmove

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"property-monitor/utils"
)

// BrowserFetcher renders pages in headless Chrome. One browser process is
// started up front and every fetch opens its own tab in it; the number of
// open tabs is capped separately from the worker count because each tab is
// a full renderer.
type BrowserFetcher struct {
	timeout       time.Duration
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabs          *semaphore.Weighted
}

func NewBrowserFetcher(headless bool, timeout time.Duration, maxTabs int64) (*BrowserFetcher, error) {
	if maxTabs < 1 {
		maxTabs = 1
	}
	userAgent := utils.RandomUserAgent()
	utils.Info("Launching Chrome browser (headless=%v, tabs=%d)", headless, maxTabs)

	allocCtx, allocCancel := chromedp.NewExecAllocator(
		context.Background(),
		utils.StealthOpts(headless, userAgent)...,
	)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Running on the browser context starts the process; tabs derived from
	// it afterwards share that process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	return &BrowserFetcher{
		timeout:       timeout,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          semaphore.NewWeighted(maxTabs),
	}, nil
}

// newTab opens a tab in the shared browser. Cancelling it closes the tab
// only.
func (f *BrowserFetcher) newTab() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(f.browserCtx)
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	page := Page{URL: pageURL}

	if err := f.tabs.Acquire(ctx, 1); err != nil {
		return page, err
	}
	defer f.tabs.Release(1)

	tabCtx, tabCancel := f.newTab()
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, f.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(pageURL))
	page.FetchedAt = time.Now().UTC()
	if err != nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		return page, newFetchError(pageURL, 0, fmt.Errorf("navigate: %w", err))
	}
	if resp != nil {
		page.StatusCode = int(resp.Status)
	}
	if page.StatusCode >= 400 {
		return page, newFetchError(pageURL, page.StatusCode, fmt.Errorf("unexpected status %d", page.StatusCode))
	}

	err = chromedp.Run(runCtx,
		utils.MaskAutomation(),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return page, newFetchError(pageURL, page.StatusCode, fmt.Errorf("render: %w", err))
	}

	return page, nil
}

func (f *BrowserFetcher) Close() error {
	utils.Info("Closing browser...")
	f.browserCancel()
	f.allocCancel()
	return nil
}
