package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lance13c/stateshot/internal/database"
	"github.com/lance13c/stateshot/internal/report"
)

var (
	historyLimit   int
	historyStats   bool
	historySuite   string
	historyState   string
	historyBrowser string
)

var historyCmd = &cobra.Command{
	Use:   "history [run id]",
	Short: "Show past runs, one run's results, or one state across runs",
	Long: `Without arguments, list the most recent runs. With a run id, list the
results of that run. With --suite, --state and --browser, show how one
state did across runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs or results to show")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "show totals over the whole history")
	historyCmd.Flags().StringVar(&historySuite, "suite", "", "suite path, space separated")
	historyCmd.Flags().StringVar(&historyState, "state", "", "state name")
	historyCmd.Flags().StringVar(&historyBrowser, "browser", "", "browser id")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	if cfg.Report.HistoryDB == "" {
		return fmt.Errorf("report.history_db is not set")
	}
	db, err := database.New(cfg.Path(cfg.Report.HistoryDB))
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	color := report.UseColor(out, cfg.Report.Color)

	switch {
	case historyStats:
		stats, err := db.GetStatistics()
		if err != nil {
			return fmt.Errorf("failed to read statistics: %w", err)
		}
		fmt.Fprintf(out, "Runs:    %v (%v failed)\n", stats["total_runs"], stats["failed_runs"])
		fmt.Fprintf(out, "Results: %v\n", stats["total_results"])
		if last, ok := stats["last_run"].(time.Time); ok {
			fmt.Fprintf(out, "Last:    %s\n", last.Local().Format("2006-01-02 15:04:05"))
		}
		return nil

	case historyState != "":
		if historySuite == "" || historyBrowser == "" {
			return fmt.Errorf("--state needs --suite and --browser")
		}
		results, err := db.GetStateHistory(strings.Fields(historySuite), historyState, historyBrowser, historyLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No results recorded for that state.")
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(out, "%s  %s  %-11s %s\n", r.RunID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Outcome, r.Error)
		}
		return nil

	case len(args) == 1:
		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		results, err := db.GetResults(run.ID)
		if err != nil {
			return err
		}
		report.PrintResults(out, run, results, color)
		return nil
	}

	runs, err := db.GetRecentRuns(historyLimit)
	if err != nil {
		return err
	}
	report.PrintRuns(out, runs, color)
	return nil
}
