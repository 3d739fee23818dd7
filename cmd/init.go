package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lance13c/stateshot/internal/config"
)

var (
	initForce   bool
	initRootURL string
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize stateshot in the current project",
	Long: `Create .stateshot/config.yaml with default settings and an example
suite file under stateshot/.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
	initCmd.Flags().StringVar(&initRootURL, "root-url", "http://localhost:3000", "url suite urls are relative to")
}

const exampleSuite = `# Each suite opens a page, runs its before hook once, then captures
# every state in order. Nested suites inherit url, capture, ignore,
# tolerance and browser filters.
suites:
  - name: example
    url: /
    capture: [body]
    ignore:
      - {selector: .timestamp, every: true}
    before:
      - find: {name: link, selector: a}
    states:
      - name: plain
      - name: hovered
        actions:
          - mouseMove: "@link"
`

func runInit(cmd *cobra.Command, args []string) error {
	projectDir, _ := cmd.Flags().GetString("project")
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return err
	}

	loader := config.NewLoader(projectDir)
	configPath := loader.GetConfigPath()
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("stateshot is already initialized here (%s); use --force to overwrite", configPath)
	}

	cfg := config.DefaultConfig()
	cfg.RootURL = initRootURL
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := loader.Save(cfg, configPath); err != nil {
		return err
	}

	examplePath := filepath.Join(projectDir, "stateshot", "example.yaml")
	if _, err := os.Stat(examplePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(examplePath), 0755); err != nil {
			return fmt.Errorf("failed to create suite directory: %w", err)
		}
		if err := os.WriteFile(examplePath, []byte(exampleSuite), 0644); err != nil {
			return fmt.Errorf("failed to write example suite: %w", err)
		}
	}

	blueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#4A9EFF")).Bold(true)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, blueStyle.Render("stateshot initialized"))
	fmt.Fprintf(out, "  config: %s\n", configPath)
	fmt.Fprintf(out, "  suites: %s\n", examplePath)
	fmt.Fprintln(out, "\nNext: start your app, run 'stateshot gather' to record reference images,")
	fmt.Fprintln(out, "then 'stateshot capture' after each change.")
	return nil
}
