package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ConfigDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigDirName, ConfigFileName), []byte(body), 0644))
}

func testLoader(dir string, env map[string]string) *Loader {
	l := NewLoader(dir)
	l.getenv = func(k string) string { return env[k] }
	return l
}

func TestLoad_FindsConfigUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
root_url: http://localhost:8080
tolerance: 3.5
browsers:
  chrome:
    window_size: 1024x768
  iphone:
    window_size: 375x667
    mobile: true
    scale: 2
    headless: false
`)
	nested := filepath.Join(root, "web", "src")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := testLoader(nested, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "http://localhost:8080", cfg.RootURL)
	assert.Equal(t, 3.5, cfg.Tolerance)
	assert.Equal(t, 2, cfg.Workers, "defaults fill fields the file leaves out")
	assert.Equal(t, []string{"chrome", "iphone"}, cfg.BrowserIDs())
	assert.True(t, cfg.Browsers["chrome"].IsHeadless())
	assert.False(t, cfg.Browsers["iphone"].IsHeadless())
	assert.Equal(t, filepath.Join(root, "stateshot/baselines"), cfg.Path(cfg.BaselineDir))
}

func TestLoad_EnvOverrides(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "root_url: http://a\n")

	cfg, err := testLoader(root, map[string]string{
		"STATESHOT_ROOT_URL":  "http://b",
		"STATESHOT_WORKERS":   "6",
		"STATESHOT_TOLERANCE": "0.5",
		"STATESHOT_MODE":      "gather",
	}).Load()
	require.NoError(t, err)
	assert.Equal(t, "http://b", cfg.RootURL)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 0.5, cfg.Tolerance)
	assert.Equal(t, "gather", cfg.Mode)

	_, err = testLoader(root, map[string]string{"STATESHOT_WORKERS": "many"}).Load()
	assert.ErrorContains(t, err, "STATESHOT_WORKERS")
}

func TestLoad_Missing(t *testing.T) {
	l := testLoader(t.TempDir(), nil)
	_, err := l.Load()
	assert.ErrorContains(t, err, "stateshot init")
	assert.False(t, l.IsInitialized())
}

func TestLoad_Invalid(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "workers: 0\n")
	_, err := testLoader(root, nil).Load()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "workers")
}

func TestSaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	l := testLoader(root, nil)
	require.NoError(t, l.Save(DefaultConfig(), l.GetConfigPath()))
	assert.True(t, l.IsInitialized())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Browsers["chrome"].WindowSize, cfg.Browsers["chrome"].WindowSize)

	projectRoot, err := l.GetProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, root, projectRoot)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"tolerance":    func(c *Config) { c.Tolerance = -1 },
		"mode":         func(c *Config) { c.Mode = "record" },
		"window_size":  func(c *Config) { c.Browsers["chrome"] = BrowserConfig{WindowSize: "big"} },
		"remote":       func(c *Config) { c.Browsers["chrome"] = BrowserConfig{Remote: "http://x"} },
		"browser":      func(c *Config) { c.Browsers = nil },
		"report.color": func(c *Config) { c.Report.Color = "rainbow" },
	}
	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			c := DefaultConfig()
			mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestParseWindowSize(t *testing.T) {
	w, h, err := ParseWindowSize("1280X1024")
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 1024, h)

	for _, bad := range []string{"", "1280", "0x10", "ax10", "10x-1"} {
		_, _, err := ParseWindowSize(bad)
		assert.Error(t, err, bad)
	}
}
