package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"property-monitor/storage"
	"property-monitor/utils"
)

var chartRunID string

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Re-render the chart and summary of a stored run",
	Long: `Chart loads a run back from the store and writes the price distribution
chart and the YAML summary again. Without --run-id the most recent run is
used.`,
	RunE: runChart,
}

func init() {
	chartCmd.Flags().StringVar(&chartRunID, "run-id", "", "run to chart (default latest)")
	rootCmd.AddCommand(chartCmd)
}

func runChart(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	store, err := storage.NewStore(ctx, cfg)
	if err != nil {
		utils.Error("Could not open store: %v", err)
		return err
	}
	defer store.Close()

	run, listings, err := store.LoadRun(ctx, chartRunID)
	if err != nil {
		utils.Error("Could not load run %q: %v", chartRunID, err)
		return fmt.Errorf("load run: %w", err)
	}
	utils.Info("Loaded run %s from %s | %d listings", run.RunID, run.RunAt.Format("2006-01-02 15:04:05"), run.Rows)

	if _, err := newAnalyzer(cfg).Analyze(run.RunID, listings); err != nil {
		utils.Error("Analysis failed: %v", err)
		return err
	}
	return nil
}
