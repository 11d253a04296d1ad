package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"property-monitor/storage"
	"property-monitor/utils"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs with their row counts",
	RunE:  listRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := storage.NewStore(cmd.Context(), cfg)
	if err != nil {
		utils.Error("Could not open store: %v", err)
		return err
	}
	defer store.Close()

	runs, err := store.Runs(cmd.Context())
	if err != nil {
		return err
	}
	printRuns(os.Stdout, runs)
	return nil
}

func printRuns(w io.Writer, runs []storage.RunInfo) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored yet.")
		return
	}

	fmt.Fprintln(w, "┌──────────────────────────────────────┬─────────────────────┬────────────┐")
	fmt.Fprintln(w, "│ Run ID                               │ Run At (UTC)        │ Rows       │")
	fmt.Fprintln(w, "├──────────────────────────────────────┼─────────────────────┼────────────┤")
	total := 0
	for _, r := range runs {
		fmt.Fprintf(w, "│ %-36s │ %-19s │ %-10s │\n", r.RunID, r.RunAt.UTC().Format("2006-01-02 15:04:05"), humanize.Comma(int64(r.Rows)))
		total += r.Rows
	}
	fmt.Fprintln(w, "└──────────────────────────────────────┴─────────────────────┴────────────┘")
	fmt.Fprintf(w, "%d runs, %s rows, latest %s\n", len(runs), humanize.Comma(int64(total)), humanize.Time(runs[len(runs)-1].RunAt))
}
