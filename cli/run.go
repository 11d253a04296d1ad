package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"property-monitor/config"
	"property-monitor/models"
	"property-monitor/pipeline"
	"property-monitor/scraper/rightmove"
	"property-monitor/services"
	"property-monitor/storage"
	"property-monitor/utils"
)

var runURLs []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape, clean, store and chart one batch of listings",
	Long: `Run fetches the configured search pages (or the pages given with --url),
parses the listing cards, cleans the records and appends them to the store
under a new run ID. It then writes a timestamped CSV export, refreshes
listings_latest.csv and renders the price distribution chart.

Fetch and parse failures are counted and logged; the run only fails when
the store cannot be written or the run is interrupted.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runURLs, "url", "u", nil, "search page URL to scrape instead of base_url (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	utils.Info("Scraper starting | mode=%s workers=%d delay=%v-%v store=%s",
		cfg.FetchMode, cfg.MaxWorkers, cfg.MinDelay, cfg.MaxDelay, cfg.StoreDriver)

	store, err := storage.NewStore(ctx, cfg)
	if err != nil {
		utils.Error("Could not open store: %v", err)
		return err
	}
	defer store.Close()

	parser, err := rightmove.NewParser(cfg.Selectors, cfg.PortalURL)
	if err != nil {
		return err
	}
	fetcher, err := rightmove.NewFetcher(cfg)
	if err != nil {
		utils.Error("Could not start fetcher: %v", err)
		return err
	}
	scraper := rightmove.NewScraper(cfg, fetcher, parser)
	defer scraper.Close()

	p := pipeline.New(cfg, scraper,
		storage.NewPersister(store, storage.NewCSVWriter(cfg.ExportDir)),
		newAnalyzer(cfg))

	stats, err := p.Run(ctx, jobsFor(cfg))
	if err != nil {
		utils.Error("Run failed: %v", err)
		return err
	}

	printSummary(stats)
	return nil
}

func jobsFor(cfg *config.Config) []models.ScrapeJob {
	if len(runURLs) > 0 {
		return rightmove.URLJobs(runURLs, cfg.ListingLimit())
	}
	return rightmove.PageJobs(cfg.BaseURL, cfg.Pages, cfg.PageStep, cfg.ListingLimit())
}

func newAnalyzer(cfg *config.Config) *services.Analyzer {
	a := &services.Analyzer{
		ChartPath:   cfg.ChartPath,
		SummaryPath: cfg.SummaryPath,
		Bins:        cfg.ChartBins,
	}
	if !quiet {
		a.Out = os.Stdout
	}
	return a
}

func printSummary(s models.RunStats) {
	if quiet {
		return
	}
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║                SCRAPE COMPLETE               ║")
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Printf("║  Pages fetched  : %-26s ║\n", fmt.Sprintf("%d/%d", s.Fetched, s.Requested))
	fmt.Printf("║  Fetch failures : %-26s ║\n", fmt.Sprintf("%d (%d transient)", s.FetchFailures, s.TransientFailures))
	fmt.Printf("║  Parse failures : %-26d ║\n", s.ParseFailures)
	fmt.Printf("║  Rejected       : %-26d ║\n", s.Rejected)
	fmt.Printf("║  Duplicates     : %-26d ║\n", s.Duplicates)
	fmt.Printf("║  Rows persisted : %-26d ║\n", s.Persisted)
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()
}
