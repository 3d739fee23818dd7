package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lance13c/stateshot/internal/report"
)

var planBrowsers []string

var planCmd = &cobra.Command{
	Use:   "plan [suite path...]",
	Short: "Print what a capture run would do, without starting a browser",
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringSliceVarP(&planBrowsers, "browser", "b", nil, "only plan these browser ids")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	browsers, err := selectBrowsers(cfg, planBrowsers)
	if err != nil {
		return err
	}
	plan, err := buildPlan(cfg, browsers, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styles := report.NewStyles()
	color := report.UseColor(out, cfg.Report.Color)
	paint := func(s string) string {
		if color {
			return styles.Muted.Render(s)
		}
		return s
	}

	for _, u := range plan.Units {
		fmt.Fprintf(out, "%s @ %s  %s\n", u.Suite.FullName(), u.Browser, paint(u.Suite.URL))
		for _, st := range u.Suite.States {
			fmt.Fprintf(out, "  %s  %s\n", st.Name, paint(fmt.Sprintf("tolerance %g", u.Suite.ToleranceFor(st, cfg.Tolerance))))
		}
	}
	for _, sk := range plan.Skipped {
		line := fmt.Sprintf("skip %s @ %s", sk.Suite.FullName(), sk.Browser)
		if sk.Rule.Comment != "" {
			line += ": " + sk.Rule.Comment
		}
		fmt.Fprintln(out, paint(line))
	}
	fmt.Fprintf(out, "\n%d suite runs, %d states, %d skipped runs\n", len(plan.Units), len(plan.Entries), len(plan.Skipped))
	return nil
}
