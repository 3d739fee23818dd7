package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: WARN}
	l.SetOutput(&buf)

	l.Logf(INFO, "hidden %d", 1)
	l.Logf(WARN, "shown %d", 2)
	l.Logf(ERROR, "shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Contains(t, out, "[ERROR] shown 3")
}

func TestLogger_FileAndRotation(t *testing.T) {
	dir := t.TempDir()
	l, err := open(filepath.Join(dir, logDirName, logFileName), 64)
	require.NoError(t, err)
	defer l.Close()
	l.SetLevel(DEBUG)

	for i := 0; i < 10; i++ {
		l.Logf(DEBUG, "line %d with enough padding to force rotation", i)
	}

	entries, err := os.ReadDir(filepath.Join(dir, logDirName))
	require.NoError(t, err)
	assert.Greater(t, len(entries), 1)
	assert.FileExists(t, l.Path())
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestWith_PrefixesMessages(t *testing.T) {
	var buf bytes.Buffer
	l := GetLogger()
	l.SetOutput(&buf)
	defer l.SetOutput(io.Discard)

	With("menu @ 100% chrome").Warn("state %q failed", "open")
	With("menu @ chrome").Debug("hidden")

	assert.Contains(t, buf.String(), `[WARN] [menu @ 100% chrome] state "open" failed`)
	assert.NotContains(t, buf.String(), "hidden")
}
