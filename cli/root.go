// Package cli implements the property-monitor commands.
package cli

import (
	"github.com/spf13/cobra"

	"property-monitor/config"
	"property-monitor/utils"
)

var (
	cfgFile string
	debug   bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "property-monitor",
	Short: "Scrape property listings, store them and chart the price distribution",
	Long: `property-monitor scrapes up to 500 listings from property search pages,
cleans them, appends them to a local store and renders a price chart.

Examples:
  # Full run with the default search
  property-monitor run

  # Scrape specific pages
  property-monitor run --url "https://www.rightmove.co.uk/property-for-sale/find.html?index=0"

  # Re-render the chart for the latest stored run
  property-monitor chart

  # List stored runs
  property-monitor runs`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./property-monitor.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the configuration and starts logging to the console and the
// run log. The returned func closes the log file.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	closeLog, err := utils.InitLogger(utils.LogOptions{
		Debug: debug,
		Quiet: quiet,
		File:  cfg.LogFile,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, func() { closeLog() }, nil
}
