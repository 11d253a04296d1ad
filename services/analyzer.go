package services

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"

	"property-monitor/models"
	"property-monitor/utils"
)

// ErrNoData is returned by RenderChart for an empty table.
var ErrNoData = errors.New("no listings to chart")

// Analyzer summarizes a finalized table and renders its price distribution.
type Analyzer struct {
	ChartPath   string
	SummaryPath string
	Bins        int
	Out         io.Writer // boxed report; nil disables it
}

// Analyze builds the report and writes the chart and summary files. The
// report is always returned; the error covers file output only. An empty
// table skips the chart.
func (a *Analyzer) Analyze(runID string, listings []models.Listing) (Report, error) {
	report := GenerateReport(listings, a.Bins)
	report.RunID = runID

	var errs []error

	if err := RenderChart(a.ChartPath, report); errors.Is(err, ErrNoData) {
		utils.Warn("No listings, skipping chart")
	} else if err != nil {
		errs = append(errs, err)
	} else {
		utils.Success("Chart saved → %s", a.ChartPath)
	}

	if a.SummaryPath != "" {
		if err := WriteSummary(a.SummaryPath, report); err != nil {
			errs = append(errs, err)
		} else {
			utils.Success("Summary saved → %s", a.SummaryPath)
		}
	}

	if a.Out != nil {
		PrintReport(a.Out, report)
	}

	return report, errors.Join(errs...)
}

// RenderChart draws the report histogram as an image; the format follows
// the file extension. An existing file is overwritten.
func RenderChart(path string, report Report) error {
	if report.TotalListings == 0 || len(report.Histogram) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Price distribution (%d listings)", report.TotalListings)
	p.X.Label.Text = "Price (£)"
	p.Y.Label.Text = "Listings"

	bins := make([]plotter.HistogramBin, 0, len(report.Histogram))
	for _, b := range report.Histogram {
		lower, upper := b.Lower, b.Upper
		if lower == upper {
			lower, upper = lower-0.5, upper+0.5
		}
		bins = append(bins, plotter.HistogramBin{Min: lower, Max: upper, Weight: float64(b.Count)})
	}

	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     bins[0].Max - bins[0].Min,
		FillColor: color.RGBA{R: 70, G: 130, B: 180, A: 255},
		LineStyle: plotter.DefaultLineStyle,
	}
	p.Add(hist)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create chart dir: %w", err)
	}
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("could not save chart: %w", err)
	}
	return nil
}

// WriteSummary writes the report as YAML.
func WriteSummary(path string, report Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create summary dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create summary: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return f.Close()
}
