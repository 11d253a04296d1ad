package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"property-monitor/config"
	"property-monitor/storage"
)

func TestPrintRuns(t *testing.T) {
	buf := &bytes.Buffer{}
	printRuns(buf, nil)
	if !strings.Contains(buf.String(), "No runs") {
		t.Errorf("unexpected output for no runs: %q", buf.String())
	}

	buf.Reset()
	printRuns(buf, []storage.RunInfo{
		{RunID: "run-a", RunAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC), Rows: 1200},
		{RunID: "run-b", RunAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), Rows: 3},
	})
	out := buf.String()
	for _, want := range []string{"run-a", "1,200", "2026-10-18 09:00:00", "2 runs, 1,203 rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunAndChartCommands(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<div class="PropertyCard_propertyCardContainer__a">
  <a class="propertyCard-link" href="/properties/7"><div class="PropertyPrice_price__b">£180,000</div></a>
  <address class="PropertyAddress_address__c">Springfield</address>
</div></body></html>`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "property-monitor.yaml")
	yaml := fmt.Sprintf(`portal_url: %s
min_delay: 0s
max_delay: 0s
rate_per_second: 0
sqlite_path: %s
export_dir: %s
chart_path: %s
summary_path: %s
log_file: %s
`, ts.URL,
		filepath.Join(dir, "listings.db"),
		filepath.Join(dir, "out"),
		filepath.Join(dir, "out", "prices.png"),
		filepath.Join(dir, "out", "summary.yaml"),
		filepath.Join(dir, "out", "scrape.log"))
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { runURLs, chartRunID, cfgFile, quiet = nil, "", "", false })

	rootCmd.SetArgs([]string{"run", "--quiet", "--config", cfgPath, "--url", ts.URL + "/page"})
	if err := Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}

	latest := filepath.Join(dir, "out", storage.LatestExportName)
	data, err := os.ReadFile(latest)
	if err != nil {
		t.Fatalf("latest export missing: %v", err)
	}
	if !strings.Contains(string(data), ts.URL+"/properties/7,180000.00") {
		t.Errorf("unexpected export:\n%s", data)
	}

	os.Remove(filepath.Join(dir, "out", "prices.png"))
	rootCmd.SetArgs([]string{"chart", "--quiet", "--config", cfgPath})
	if err := Execute(); err != nil {
		t.Fatalf("chart: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "prices.png")); err != nil {
		t.Errorf("chart not re-rendered: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "out", "scrape.log")); err != nil {
		t.Errorf("run log missing: %v", err)
	}
}

func TestJobsFor_ZeroMaxListings(t *testing.T) {
	t.Cleanup(func() { runURLs = nil })

	cfg := config.DefaultConfig()
	cfg.MaxListings = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if got := len(jobsFor(cfg)); got != cfg.Pages {
		t.Errorf("Got %d page jobs, expected %d", got, cfg.Pages)
	}

	runURLs = []string{"https://example.com/a", "https://example.com/b"}
	if got := len(jobsFor(cfg)); got != 2 {
		t.Errorf("Got %d URL jobs, expected 2", got)
	}
}
