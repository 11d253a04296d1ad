package services

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"property-monitor/models"
)

func sampleTable() []models.Listing {
	return []models.Listing{
		{URL: "https://example.com/1", Price: 100000, Location: "1 High St, Springfield", Rooms: models.IntPtr(1), Size: models.FloatPtr(50), RetrievedAt: t0},
		{URL: "https://example.com/2", Price: 200000, Location: "2 High St, Springfield", Rooms: models.IntPtr(2), Size: models.FloatPtr(100), RetrievedAt: t0},
		{URL: "https://example.com/3", Price: 300000, Location: "Shelbyville", Rooms: models.IntPtr(2), RetrievedAt: t0},
		{URL: "https://example.com/4", Price: 1000000, Location: "", RetrievedAt: t0},
	}
}

func TestGenerateReport(t *testing.T) {
	r := GenerateReport(sampleTable(), 4)

	if r.TotalListings != 4 {
		t.Errorf("Got %d listings, expected 4", r.TotalListings)
	}
	if r.MinPrice != 100000 || r.MaxPrice != 1000000 {
		t.Errorf("Got min/max %v/%v", r.MinPrice, r.MaxPrice)
	}
	if r.AveragePrice != 400000 {
		t.Errorf("Got average %v, expected 400000", r.AveragePrice)
	}
	if r.MedianPrice != 250000 {
		t.Errorf("Got median %v, expected 250000", r.MedianPrice)
	}
	if r.AveragePricePerSqM != 2000 || r.ListingsWithSize != 2 {
		t.Errorf("Got price per m² %v over %d listings, expected 2000 over 2", r.AveragePricePerSqM, r.ListingsWithSize)
	}
	if r.ListingsByLocation["Springfield"] != 2 || r.ListingsByLocation["Shelbyville"] != 1 || r.ListingsByLocation["Unknown"] != 1 {
		t.Errorf("unexpected location counts %v", r.ListingsByLocation)
	}
	if r.AveragePriceByRoom["2"] != 250000 || r.AveragePriceByRoom["unknown"] != 1000000 {
		t.Errorf("unexpected price by rooms %v", r.AveragePriceByRoom)
	}
	if len(r.MostExpensive) != 4 || r.MostExpensive[0].URL != "https://example.com/4" {
		t.Errorf("unexpected most expensive %+v", r.MostExpensive)
	}

	total := 0
	for _, b := range r.Histogram {
		total += b.Count
	}
	if len(r.Histogram) != 4 || total != 4 {
		t.Errorf("Got %d buckets holding %d listings, expected 4 / 4", len(r.Histogram), total)
	}
	if r.Histogram[0].Count != 3 || r.Histogram[3].Count != 1 {
		t.Errorf("unexpected histogram %+v", r.Histogram)
	}
}

func TestGenerateReport_Empty(t *testing.T) {
	r := GenerateReport(nil, 10)
	if r.TotalListings != 0 || r.Histogram != nil {
		t.Errorf("unexpected report for empty table: %+v", r)
	}
}

func TestHistogram(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		bins   int
		counts []int
	}{
		{"spread", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}, 5, []int{2, 2, 2, 2, 2}},
		{"max lands in last bucket", []float64{0, 10}, 2, []int{1, 1}},
		{"all equal", []float64{5, 5, 5}, 4, []int{3}},
		{"empty", nil, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Histogram(tt.values, tt.bins)
			if len(got) != len(tt.counts) {
				t.Fatalf("Got %d buckets, expected %d", len(got), len(tt.counts))
			}
			for i, b := range got {
				if b.Count != tt.counts[i] {
					t.Errorf("bucket %d: got %d, expected %d", i, b.Count, tt.counts[i])
				}
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	buf := &bytes.Buffer{}
	PrintReport(buf, GenerateReport(sampleTable(), 4))

	out := buf.String()
	for _, want := range []string{"Property Market Insights", "£400,000", "Springfield", "Most Expensive"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyzer_WritesChartAndSummary(t *testing.T) {
	dir := t.TempDir()
	a := &Analyzer{
		ChartPath:   filepath.Join(dir, "charts", "prices.png"),
		SummaryPath: filepath.Join(dir, "summary.yaml"),
		Bins:        5,
	}

	report, err := a.Analyze("run-1", sampleTable())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.RunID != "run-1" {
		t.Errorf("Got run ID %q", report.RunID)
	}

	png, err := os.ReadFile(a.ChartPath)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("chart is not a PNG")
	}

	data, err := os.ReadFile(a.SummaryPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Report
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("summary is not valid YAML: %v", err)
	}
	if decoded.TotalListings != 4 || decoded.MaxPrice != 1000000 {
		t.Errorf("unexpected summary %+v", decoded)
	}
}

func TestAnalyzer_EmptyTableSkipsChart(t *testing.T) {
	dir := t.TempDir()
	a := &Analyzer{
		ChartPath:   filepath.Join(dir, "prices.png"),
		SummaryPath: filepath.Join(dir, "summary.yaml"),
		Bins:        5,
	}

	if _, err := a.Analyze("run-empty", nil); err != nil {
		t.Fatalf("empty table should not be an error, got %v", err)
	}
	if _, err := os.Stat(a.ChartPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("chart should be skipped, stat error = %v", err)
	}
	if _, err := os.Stat(a.SummaryPath); err != nil {
		t.Errorf("summary should still be written: %v", err)
	}
	if err := RenderChart(a.ChartPath, GenerateReport(nil, 5)); !errors.Is(err, ErrNoData) {
		t.Errorf("RenderChart() error = %v, expected ErrNoData", err)
	}
}

func TestAnalyzer_SingleValueChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.png")
	report := GenerateReport([]models.Listing{{URL: "https://example.com/1", Price: 250000, RetrievedAt: t0}}, 10)
	if err := RenderChart(path, report); err != nil {
		t.Fatalf("RenderChart() error = %v", err)
	}
}
