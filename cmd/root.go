package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lance13c/stateshot/internal/config"
	"github.com/lance13c/stateshot/internal/logging"
)

var (
	appConfig *config.Config
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stateshot",
	Short: "stateshot - visual regression testing for web pages",
	Long: `stateshot drives real browsers through the states of your pages,
captures screenshots of chosen regions and compares them with reference
images.

Suites live in YAML files (see 'stateshot init'). Use 'gather' to record
reference images and 'capture' to check the current build against them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
		fmt.Fprintln(os.Stderr, errStyle.Render("Error:")+" "+err.Error())
		logging.Error("%s", err)
		logging.GetLogger().Close()
		os.Exit(1)
	}
	logging.GetLogger().Close()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolP("verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().StringP("project", "p", ".", "project directory")
}

// initConfig loads the project config and starts file logging in the
// project root. A missing config is only an error for commands that
// need one.
func initConfig() {
	startTime := time.Now()
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	projectDir, _ := rootCmd.PersistentFlags().GetString("project")
	if abs, err := filepath.Abs(projectDir); err == nil {
		projectDir = abs
	}

	loader := config.NewLoader(projectDir)
	logDir := projectDir
	if root, err := loader.GetProjectRoot(); err == nil {
		logDir = root
	}

	if err := logging.Initialize(logDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize logging: %v\n", err)
	} else {
		logging.RedirectStandardLog()
	}

	appConfig, configErr = loader.Load()
	if configErr != nil {
		logging.Debug("No usable config: %v", configErr)
		if verbose {
			logging.GetLogger().SetLevel(logging.DEBUG)
		}
		return
	}

	level, err := logging.ParseLevel(appConfig.LogLevel)
	if err != nil {
		logging.Warn("%v, using info", err)
	}
	if verbose {
		level = logging.DEBUG
	}
	logging.GetLogger().SetLevel(level)

	logging.Info("Loaded config for %s in %v", appConfig.Root, time.Since(startTime))
}

// requireConfig returns the loaded config or the reason there is none
func requireConfig() (*config.Config, error) {
	if appConfig == nil {
		return nil, configErr
	}
	return appConfig, nil
}
