package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yaml"
	ConfigDirName  = ".stateshot"
)

// Loader handles configuration loading and discovery
type Loader struct {
	startDir string
	getenv   func(string) string
}

// NewLoader creates a new config loader starting from the given directory
func NewLoader(startDir string) *Loader {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			startDir = "."
		}
	}

	return &Loader{
		startDir: startDir,
		getenv:   os.Getenv,
	}
}

// Load loads the configuration with environment variable overrides
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	config, err := l.loadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	config.Root = filepath.Dir(filepath.Dir(configPath))

	if err := l.applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// findConfigFile searches upward from the start directory for a config file
func (l *Loader) findConfigFile() (string, error) {
	dir := l.startDir

	for {
		configPath := filepath.Join(dir, ConfigDirName, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no config file found (searched upward from %s), run 'stateshot init'", l.startDir)
}

// loadFromFile loads configuration from a YAML file on top of the defaults
func (l *Loader) loadFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	browsers := config.Browsers
	config.Browsers = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if config.Browsers == nil {
		config.Browsers = browsers
	}

	return config, nil
}

// applyEnvOverrides applies STATESHOT_* environment variables
func (l *Loader) applyEnvOverrides(config *Config) error {
	if v := l.getenv("STATESHOT_ROOT_URL"); v != "" {
		config.RootURL = v
	}
	if v := l.getenv("STATESHOT_BASELINE_DIR"); v != "" {
		config.BaselineDir = v
	}
	if v := l.getenv("STATESHOT_OUTPUT_DIR"); v != "" {
		config.OutputDir = v
	}
	if v := l.getenv("STATESHOT_MODE"); v != "" {
		config.Mode = v
	}
	if v := l.getenv("STATESHOT_METRICS_ADDR"); v != "" {
		config.MetricsAddr = v
	}
	if v := l.getenv("STATESHOT_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := l.getenv("STATESHOT_TOLERANCE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("STATESHOT_TOLERANCE: %w", err)
		}
		config.Tolerance = t
	}
	if v := l.getenv("STATESHOT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STATESHOT_WORKERS: %w", err)
		}
		config.Workers = n
	}

	return nil
}

// Save saves the configuration to the specified path
func (l *Loader) Save(config *Config, configPath string) error {
	config.Meta.UpdatedAt = time.Now()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the path where a config file should be created
func (l *Loader) GetConfigPath() string {
	return filepath.Join(l.startDir, ConfigDirName, ConfigFileName)
}

// IsInitialized checks if a config file exists in the project hierarchy
func (l *Loader) IsInitialized() bool {
	_, err := l.findConfigFile()
	return err == nil
}

// GetProjectRoot returns the root directory containing the .stateshot folder
func (l *Loader) GetProjectRoot() (string, error) {
	configPath, err := l.findConfigFile()
	if err != nil {
		return "", err
	}

	return filepath.Dir(filepath.Dir(configPath)), nil
}
