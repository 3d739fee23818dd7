package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lance13c/stateshot/internal/browser"
	"github.com/lance13c/stateshot/internal/config"
	"github.com/lance13c/stateshot/internal/database"
	"github.com/lance13c/stateshot/internal/diff"
	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/report"
	"github.com/lance13c/stateshot/internal/scheduler"
	"github.com/lance13c/stateshot/internal/suite"
	"github.com/lance13c/stateshot/internal/suitefile"
	"github.com/lance13c/stateshot/internal/ui"
)

// errStatesFailed makes the process exit non-zero after the report is printed
var errStatesFailed = errors.New("some states did not pass")

// runFlags are shared by capture, gather, check and watch
type runFlags struct {
	browsers    []string
	workers     int
	tui         bool
	metricsAddr string
	noHistory   bool
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringSliceVarP(&f.browsers, "browser", "b", nil, "only run these browser ids")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "parallel suite runs (default from config)")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "show a live progress view")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record the run in the history database")
}

// signalContext is cancelled by the first interrupt, which lets in-flight
// actions finish; a second interrupt exits at once
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigChan:
		case <-done:
			return
		}
		fmt.Fprintln(os.Stderr, "\nStopping after the current actions, press Ctrl+C again to quit")
		cancel()
		select {
		case <-sigChan:
			os.Exit(130)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(done)
		cancel()
	}
}

// loadTree compiles every suite file the config names
func loadTree(cfg *config.Config) (*suite.Tree, error) {
	reg := suite.NewRegistry()
	files, err := suitefile.Load(reg, cfg.Root, cfg.Suites)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no suite files match %v under %s", cfg.Suites, cfg.Root)
	}
	return reg.Build()
}

// selectBrowsers narrows the configured ids to the --browser flag
func selectBrowsers(cfg *config.Config, only []string) ([]string, error) {
	ids := cfg.BrowserIDs()
	if len(only) == 0 {
		return ids, nil
	}
	for _, id := range only {
		if !slices.Contains(ids, id) {
			return nil, fmt.Errorf("browser %q is not configured (have %v)", id, ids)
		}
	}
	var out []string
	for _, id := range ids {
		if slices.Contains(only, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// buildPlan loads suites and plans them for the selected browsers. args
// restrict the run to suites whose path starts with one of them.
func buildPlan(cfg *config.Config, browsers []string, args []string) (*scheduler.Plan, error) {
	tree, err := loadTree(cfg)
	if err != nil {
		return nil, err
	}
	plan := scheduler.NewPlan(tree, browsers).Filter(args)
	if len(plan.Units) == 0 && len(plan.Skipped) == 0 {
		return nil, fmt.Errorf("no suites match %v", args)
	}
	return plan, nil
}

// plannedStates counts every result the run will report, skipped ones included
func plannedStates(p *scheduler.Plan) int {
	n := len(p.Entries)
	for _, sk := range p.Skipped {
		n += len(sk.Suite.States)
	}
	return n
}

func serveMetrics(addr string) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server failed: %v", err)
		}
	}()
	logging.Info("Serving metrics on %s/metrics", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// runJob is one execution of a plan against a driver and comparer
type runJob struct {
	cfg      *config.Config
	plan     *scheduler.Plan
	mode     scheduler.Mode
	driver   scheduler.Driver
	comparer scheduler.Comparer
	flags    runFlags
	history  bool
}

// execute runs the plan, printing results as they arrive, and records
// the run in the history database when enabled
func (j *runJob) execute(ctx context.Context, cmd *cobra.Command) (*scheduler.Summary, error) {
	cfg := j.cfg
	out := cmd.OutOrStdout()
	color := report.UseColor(out, cfg.Report.Color)
	verbose, _ := cmd.Flags().GetBool("verbose")
	console := report.NewConsole(out, color, verbose)

	workers := cfg.Workers
	if j.flags.workers > 0 {
		workers = j.flags.workers
	}
	opts := scheduler.Options{
		Mode:      j.mode,
		Workers:   workers,
		Tolerance: &cfg.Tolerance,
		RootURL:   cfg.RootURL,
		RunID:     ulid.Make().String(),
	}

	var history *report.History
	if j.history && !j.flags.noHistory && cfg.Report.HistoryDB != "" {
		db, err := database.New(cfg.Path(cfg.Report.HistoryDB))
		if err != nil {
			logging.Warn("History disabled: %v", err)
		} else {
			defer db.Close()
			if history, err = report.StartHistory(db, opts.RunID, j.mode, cfg.RootURL); err != nil {
				logging.Warn("History disabled: %v", err)
				history = nil
			}
		}
	}

	stopMetrics := serveMetrics(firstNonEmpty(j.flags.metricsAddr, cfg.MetricsAddr))
	defer stopMetrics()

	var summary *scheduler.Summary
	var runErr error
	if j.flags.tui {
		summary, runErr = ui.Run(ctx, plannedStates(j.plan), func(ctx context.Context, bridge *ui.Bridge) (*scheduler.Summary, error) {
			opts.OnPhase = bridge.OnPhase
			sink := report.Multi(bridge, historySink(history))
			return scheduler.NewRunner(j.driver, j.comparer, sink, opts).Run(ctx, j.plan)
		})
		if summary != nil {
			console.Summary(summary)
		}
	} else {
		sink := report.Multi(console, historySink(history))
		summary, runErr = scheduler.NewRunner(j.driver, j.comparer, sink, opts).Run(ctx, j.plan)
		if summary != nil {
			console.Summary(summary)
		}
	}

	aborted := errors.Is(runErr, context.Canceled)
	if history != nil && summary != nil {
		if err := history.Finish(summary, aborted); err != nil {
			logging.Warn("Failed to finish run in history: %v", err)
		}
	}
	if runErr != nil {
		if aborted {
			return summary, fmt.Errorf("run aborted")
		}
		return summary, runErr
	}
	return summary, nil
}

// historySink keeps a nil *History from becoming a non-nil Sink
func historySink(h *report.History) scheduler.Sink {
	if h == nil {
		return nil
	}
	return h
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// newChromeJob prepares a run against real browsers
func newChromeJob(cfg *config.Config, mode scheduler.Mode, flags runFlags, args []string) (*runJob, *browser.ChromeDriver, error) {
	browsers, err := selectBrowsers(cfg, flags.browsers)
	if err != nil {
		return nil, nil, err
	}
	profiles, err := browser.ProfilesFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	plan, err := buildPlan(cfg, browsers, args)
	if err != nil {
		return nil, nil, err
	}
	driver := browser.NewChromeDriver(profiles)
	return &runJob{
		cfg:      cfg,
		plan:     plan,
		mode:     mode,
		driver:   driver,
		comparer: diff.NewStore(cfg.Path(cfg.BaselineDir), cfg.Path(cfg.OutputDir)),
		flags:    flags,
		history:  true,
	}, driver, nil
}
