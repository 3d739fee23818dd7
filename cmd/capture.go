package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lance13c/stateshot/internal/scheduler"
)

var (
	captureFlags runFlags
	gatherFlags  runFlags
)

var captureCmd = &cobra.Command{
	Use:     "capture [suite path...]",
	Aliases: []string{"test"},
	Short:   "Capture every state and compare it with its reference image",
	Long: `Run every suite in every configured browser, capture each state and
compare the screenshot with the reference image under baseline_dir.

Arguments restrict the run to suites whose path starts with one of them,
e.g. 'stateshot capture "header menu"'. Differences are written as
<browser>.diff.png next to the current capture under output_dir.`,
}

var gatherCmd = &cobra.Command{
	Use:   "gather [suite path...]",
	Short: "Capture every state and store it as the new reference image",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCapture(cmd, args, scheduler.ModeGather, gatherFlags)
	},
}

func init() {
	// assigned here rather than in the literal: runCapture refers to captureCmd
	captureCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCapture(cmd, args, scheduler.ModeTest, captureFlags)
	}
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(gatherCmd)
	addRunFlags(captureCmd, &captureFlags)
	addRunFlags(gatherCmd, &gatherFlags)
}

func runCapture(cmd *cobra.Command, args []string, mode scheduler.Mode, flags runFlags) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	// the config may pin the default command to gather
	if mode == scheduler.ModeTest && cfg.Mode == string(scheduler.ModeGather) && cmd == captureCmd {
		mode = scheduler.ModeGather
	}

	job, driver, err := newChromeJob(cfg, mode, flags, args)
	if err != nil {
		return err
	}
	defer driver.Close()

	ctx, stop := signalContext()
	defer stop()

	summary, err := job.execute(ctx, cmd)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return errStatesFailed
	}
	return nil
}
