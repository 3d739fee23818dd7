package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete stateshot configuration
type Config struct {
	RootURL     string                   `yaml:"root_url"`
	BaselineDir string                   `yaml:"baseline_dir"`
	OutputDir   string                   `yaml:"output_dir"`
	Tolerance   float64                  `yaml:"tolerance"`
	Workers     int                      `yaml:"workers"`
	Mode        string                   `yaml:"mode,omitempty"` // test or gather
	Suites      []string                 `yaml:"suites"`         // glob patterns of suite files
	Browsers    map[string]BrowserConfig `yaml:"browsers"`
	Report      ReportConfig             `yaml:"report"`
	MetricsAddr string                   `yaml:"metrics_addr,omitempty"`
	LogLevel    string                   `yaml:"log_level,omitempty"`
	Meta        MetaConfig               `yaml:"meta"`

	// Root is the project directory the config was loaded for; relative
	// paths are resolved against it
	Root string `yaml:"-"`
}

// BrowserConfig describes one browser profile
type BrowserConfig struct {
	WindowSize string  `yaml:"window_size"` // e.g. 1280x1024
	Headless   *bool   `yaml:"headless,omitempty"`
	UserAgent  string  `yaml:"user_agent,omitempty"`
	Mobile     bool    `yaml:"mobile,omitempty"`
	Touch      bool    `yaml:"touch,omitempty"`
	Scale      float64 `yaml:"scale,omitempty"`
	ExecPath   string  `yaml:"exec_path,omitempty"`
	Remote     string  `yaml:"remote,omitempty"` // ws:// DevTools endpoint of an already running browser
}

// ReportConfig controls where results go besides the console
type ReportConfig struct {
	HistoryDB string `yaml:"history_db"`
	Color     string `yaml:"color"` // auto, always, never
}

// MetaConfig holds metadata about the configuration
type MetaConfig struct {
	Version   string    `yaml:"version"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// DefaultConfig returns a new config with sensible defaults
func DefaultConfig() *Config {
	now := time.Now()
	headless := true
	return &Config{
		RootURL:     "http://localhost:3000",
		BaselineDir: "stateshot/baselines",
		OutputDir:   ".stateshot/current",
		Tolerance:   2.3,
		Workers:     2,
		Mode:        "test",
		Suites:      []string{"stateshot/**/*.yaml"},
		Browsers: map[string]BrowserConfig{
			"chrome": {
				WindowSize: "1280x1024",
				Headless:   &headless,
			},
		},
		Report: ReportConfig{
			HistoryDB: ".stateshot/history.db",
			Color:     "auto",
		},
		Meta: MetaConfig{
			Version:   "1.0.0",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaselineDir == "" {
		return NewValidationError("baseline_dir is required")
	}
	if c.Tolerance < 0 {
		return NewValidationError(fmt.Sprintf("tolerance must not be negative, got %v", c.Tolerance))
	}
	if c.Workers < 1 {
		return NewValidationError(fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	switch c.Mode {
	case "", "test", "gather":
	default:
		return NewValidationError("mode must be test or gather, got " + c.Mode)
	}
	switch c.Report.Color {
	case "", "auto", "always", "never":
	default:
		return NewValidationError("report.color must be auto, always or never, got " + c.Report.Color)
	}
	if len(c.Browsers) == 0 {
		return NewValidationError("at least one browser is required")
	}
	for _, id := range c.BrowserIDs() {
		b := c.Browsers[id]
		if b.WindowSize != "" {
			if _, _, err := ParseWindowSize(b.WindowSize); err != nil {
				return NewValidationError(fmt.Sprintf("browsers.%s.window_size: %v", id, err))
			}
		}
		if b.Scale < 0 {
			return NewValidationError(fmt.Sprintf("browsers.%s.scale must not be negative", id))
		}
		if b.Remote != "" && !strings.HasPrefix(b.Remote, "ws://") && !strings.HasPrefix(b.Remote, "wss://") {
			return NewValidationError(fmt.Sprintf("browsers.%s.remote must be a ws:// url", id))
		}
	}
	return nil
}

// BrowserIDs returns the configured browser ids in sorted order
func (c *Config) BrowserIDs() []string {
	ids := make([]string, 0, len(c.Browsers))
	for id := range c.Browsers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Path resolves p against the project root unless it is absolute
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// IsHeadless reports whether the profile runs without a window; the
// default is headless
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// ParseWindowSize parses a WIDTHxHEIGHT string
func ParseWindowSize(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("window size %q is not WIDTHxHEIGHT", s)
	}
	if width, err = strconv.Atoi(w); err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("window size %q has a bad width", s)
	}
	if height, err = strconv.Atoi(h); err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("window size %q has a bad height", s)
	}
	return width, height, nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}
