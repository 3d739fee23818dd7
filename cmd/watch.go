package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lance13c/stateshot/internal/browser"
	"github.com/lance13c/stateshot/internal/config"
	"github.com/lance13c/stateshot/internal/diff"
	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/scheduler"
	"github.com/lance13c/stateshot/internal/watcher"
)

var watchFlags runFlags

var watchCmd = &cobra.Command{
	Use:   "watch [suite path...]",
	Short: "Run capture, then run it again whenever a suite file changes",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSliceVarP(&watchFlags.browsers, "browser", "b", nil, "only run these browser ids")
	watchCmd.Flags().IntVarP(&watchFlags.workers, "workers", "w", 0, "parallel suite runs (default from config)")
	watchCmd.Flags().BoolVar(&watchFlags.noHistory, "no-history", false, "do not record runs in the history database")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	browsers, err := selectBrowsers(cfg, watchFlags.browsers)
	if err != nil {
		return err
	}
	profiles, err := browser.ProfilesFromConfig(cfg)
	if err != nil {
		return err
	}
	// one browser per profile for the whole session
	driver := browser.NewChromeDriver(profiles)
	defer driver.Close()
	comparer := diff.NewStore(cfg.Path(cfg.BaselineDir), cfg.Path(cfg.OutputDir))

	ctx, stop := signalContext()
	defer stop()

	runOnce := func() {
		plan, err := buildPlan(cfg, browsers, args)
		if err != nil {
			// a half-edited suite file is normal while watching
			fmt.Fprintf(cmd.ErrOrStderr(), "Cannot run: %v\n", err)
			return
		}
		job := &runJob{
			cfg:      cfg,
			plan:     plan,
			mode:     scheduler.ModeTest,
			driver:   driver,
			comparer: comparer,
			flags:    watchFlags,
			history:  true,
		}
		if _, err := job.execute(ctx, cmd); err != nil && ctx.Err() == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Run failed: %v\n", err)
		}
	}

	runOnce()
	if ctx.Err() != nil {
		return nil
	}

	fw, err := watcher.NewFileWatcher(cfg.Root, watcher.WatcherConfig{
		Patterns: cfg.Suites,
		Files:    []string{filepath.Join(cfg.Root, config.ConfigDirName, config.ConfigFileName)},
	})
	if err != nil {
		return err
	}
	fw.SetChangeCallback(func(files []string) error {
		logging.Info("Re-running after changes in %v", files)
		// browsers keep their profiles; everything else follows the new config
		if reloaded, err := config.NewLoader(cfg.Root).Load(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Keeping previous config: %v\n", err)
		} else {
			cfg = reloaded
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nChanged: %v\n", relPaths(cfg.Root, files))
		runOnce()
		return nil
	})

	fmt.Fprintln(cmd.OutOrStdout(), "\nWatching suite files, press Ctrl+C to stop")
	if err := fw.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func relPaths(root string, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		if rel, err := filepath.Rel(root, f); err == nil {
			out[i] = rel
		} else {
			out[i] = f
		}
	}
	return out
}
