package rightmove

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"property-monitor/config"
	"property-monitor/models"
)

func newPortal(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	page, err := os.ReadFile("testdata/search_page.html")
	if err != nil {
		t.Fatal(err)
	}

	var flakyHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write(page)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if flakyHits.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write(page)
	})
	mux.HandleFunc("/captcha", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><h1>Please complete the CAPTCHA</h1></body></html>"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>We are updating our site.</p></body></html>"))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &flakyHits
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MinDelay = 0
	cfg.MaxDelay = 0
	cfg.RatePerSecond = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func TestStaticFetcher_Fetch(t *testing.T) {
	ts, _ := newPortal(t)
	f := NewStaticFetcher(5 * time.Second)

	page, err := f.Fetch(context.Background(), ts.URL+"/ok")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("Got status %d, expected 200", page.StatusCode)
	}
	if len(page.HTML) == 0 {
		t.Error("expected a body")
	}
	if page.FetchedAt.IsZero() {
		t.Error("FetchedAt should be set")
	}
}

func TestStaticFetcher_ClassifiesFailures(t *testing.T) {
	ts, _ := newPortal(t)
	f := NewStaticFetcher(5 * time.Second)

	tests := []struct {
		path   string
		status int
		kind   FailureKind
	}{
		{"/missing", http.StatusNotFound, Permanent},
		{"/boom", http.StatusBadGateway, Transient},
	}
	for _, tt := range tests {
		_, err := f.Fetch(context.Background(), ts.URL+tt.path)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("%s: expected *FetchError, got %v", tt.path, err)
		}
		if fe.StatusCode != tt.status || fe.Kind != tt.kind {
			t.Errorf("%s: got status=%d kind=%s, expected %d %s", tt.path, fe.StatusCode, fe.Kind, tt.status, tt.kind)
		}
	}
}

func TestStaticFetcher_ConnectionRefusedIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	_, err := NewStaticFetcher(time.Second).Fetch(context.Background(), addr+"/gone")
	if !IsTransient(err) {
		t.Errorf("connection failure should be transient, got %v", err)
	}
}

func TestScraper_ScrapePage(t *testing.T) {
	ts, _ := newPortal(t)
	cfg := testConfig()
	s := NewScraper(cfg, NewStaticFetcher(cfg.RequestTimeout), newTestParser(t))

	res := s.ScrapePage(context.Background(), models.ScrapeJob{URL: ts.URL + "/ok", PageNumber: 1})
	if res.Error != nil {
		t.Fatalf("unexpected error %v", res.Error)
	}
	if len(res.Listings) != 3 || res.ParseFailures != 2 {
		t.Errorf("Got %d listings / %d failures, expected 3 / 2", len(res.Listings), res.ParseFailures)
	}

	res = s.ScrapePage(context.Background(), models.ScrapeJob{URL: ts.URL + "/moved", PageNumber: 2})
	if res.Error != nil || res.ParseFailures != 1 {
		t.Errorf("page without cards should be one parse failure, got err=%v failures=%d", res.Error, res.ParseFailures)
	}

	res = s.ScrapePage(context.Background(), models.ScrapeJob{URL: ts.URL + "/captcha", PageNumber: 3})
	if !errors.Is(res.Error, ErrBlocked) || KindOf(res.Error) != Permanent {
		t.Errorf("captcha page should be a permanent fetch failure, got %v", res.Error)
	}
}

func TestScraper_RetriesTransientOnly(t *testing.T) {
	ts, flakyHits := newPortal(t)
	cfg := testConfig()
	cfg.MaxAttempts = 3
	s := NewScraper(cfg, NewStaticFetcher(cfg.RequestTimeout), newTestParser(t))

	res := s.ScrapePage(context.Background(), models.ScrapeJob{URL: ts.URL + "/flaky"})
	if res.Error != nil {
		t.Fatalf("429 should be retried, got %v", res.Error)
	}
	if got := flakyHits.Load(); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}

	counting := &countingFetcher{inner: NewStaticFetcher(cfg.RequestTimeout)}
	s = NewScraper(cfg, counting, newTestParser(t))
	res = s.ScrapePage(context.Background(), models.ScrapeJob{URL: ts.URL + "/missing"})
	if res.Error == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 failure, got %+v", res)
	}
	if got := counting.calls.Load(); got != 1 {
		t.Errorf("404 must not be retried, got %d calls", got)
	}
}

func TestScraper_DefaultPolicyDoesNotRetry(t *testing.T) {
	ts, _ := newPortal(t)
	cfg := testConfig()
	counting := &countingFetcher{inner: NewStaticFetcher(cfg.RequestTimeout)}
	s := NewScraper(cfg, counting, newTestParser(t))

	res := s.ScrapePage(context.Background(), models.ScrapeJob{URL: ts.URL + "/boom"})
	if res.Error == nil {
		t.Fatal("expected failure")
	}
	if got := counting.calls.Load(); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

type countingFetcher struct {
	inner Fetcher
	calls atomic.Int32
}

func (c *countingFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	c.calls.Add(1)
	return c.inner.Fetch(ctx, pageURL)
}

func (c *countingFetcher) Close() error { return c.inner.Close() }

type fakePageScraper struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (f *fakePageScraper) ScrapePage(ctx context.Context, job models.ScrapeJob) models.ScrapeResult {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return models.ScrapeResult{URL: job.URL, PageNumber: job.PageNumber}
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	fake := &fakePageScraper{}
	pool := NewWorkerPool(fake, 3)

	jobs := PageJobs("https://example.com/find", 20, 24, 500)
	seen := make(map[string]bool)
	pool.Run(context.Background(), jobs, func(r models.ScrapeResult) {
		seen[r.URL] = true
	})

	if len(seen) != len(jobs) {
		t.Errorf("Got %d results, expected %d", len(seen), len(jobs))
	}
	if fake.maxSeen > 3 {
		t.Errorf("at most 3 pages should be in flight, saw %d", fake.maxSeen)
	}
}

func TestWorkerPool_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(&fakePageScraper{}, 1)

	results := 0
	pool.Run(ctx, PageJobs("https://example.com/find", 50, 24, 500), func(models.ScrapeResult) {
		results++
		cancel()
	})

	if results >= 50 {
		t.Errorf("queued jobs should be dropped after cancel, got %d results", results)
	}
}

func TestWorkerPool_NoJobs(t *testing.T) {
	called := false
	NewWorkerPool(&fakePageScraper{}, 2).Run(context.Background(), nil, func(models.ScrapeResult) { called = true })
	if called {
		t.Error("handle should not be called without jobs")
	}
}
