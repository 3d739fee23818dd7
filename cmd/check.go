package cmd

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lance13c/stateshot/internal/browser"
	"github.com/lance13c/stateshot/internal/diff"
	"github.com/lance13c/stateshot/internal/scheduler"
)

var checkFlags runFlags

var checkCmd = &cobra.Command{
	Use:   "check [suite path...]",
	Short: "Check urls and selectors against the served HTML, without a browser",
	Long: `Fetch each suite url over plain HTTP and check that element, capture
and ignore selectors match the returned HTML. Nothing is rendered and no
script runs, so pages built in the browser need a real capture run.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringSliceVarP(&checkFlags.browsers, "browser", "b", nil, "only check these browser ids")
	checkCmd.Flags().IntVarP(&checkFlags.workers, "workers", "w", 0, "parallel suite runs (default from config)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	browsers, err := selectBrowsers(cfg, checkFlags.browsers)
	if err != nil {
		return err
	}
	plan, err := buildPlan(cfg, browsers, args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	job := &runJob{
		cfg:      cfg,
		plan:     plan,
		mode:     scheduler.ModeTest,
		driver:   browser.NewStaticDriver(&http.Client{Timeout: 30 * time.Second}),
		comparer: diff.Discard{},
		flags:    checkFlags,
	}
	summary, err := job.execute(ctx, cmd)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return errStatesFailed
	}
	return nil
}
