package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, root string) *FileWatcher {
	t.Helper()
	fw, err := NewFileWatcher(root, WatcherConfig{
		Debounce: 50 * time.Millisecond,
		Patterns: []string{"stateshot/**/*.yaml"},
		Files:    []string{filepath.Join(root, ".stateshot", "config.yaml")},
	})
	require.NoError(t, err)
	t.Cleanup(fw.Stop)
	return fw
}

func TestRelevance(t *testing.T) {
	root := t.TempDir()
	fw := newTestWatcher(t, root)

	assert.True(t, fw.isRelevant(filepath.Join(root, "stateshot", "a", "b.yaml")))
	assert.True(t, fw.isRelevant(filepath.Join(root, ".stateshot", "config.yaml")))
	assert.False(t, fw.isRelevant(filepath.Join(root, "stateshot", "b.png")))
	assert.False(t, fw.isRelevant(filepath.Join(root, "src", "b.yaml")))
}

func TestDebounce(t *testing.T) {
	root := t.TempDir()
	fw := newTestWatcher(t, root)

	var got []string
	fw.SetChangeCallback(func(files []string) error {
		got = append(got, files...)
		return nil
	})

	suiteFile := filepath.Join(root, "stateshot", "a.yaml")
	fw.handleEvent(fsnotify.Event{Name: suiteFile, Op: fsnotify.Write})
	fw.handleEvent(fsnotify.Event{Name: filepath.Join(root, "stateshot", "x.png"), Op: fsnotify.Write})
	fw.handleEvent(fsnotify.Event{Name: suiteFile, Op: fsnotify.Chmod})
	assert.Len(t, fw.GetPendingFiles(), 1)

	require.NoError(t, fw.processPendingFiles(time.Now()))
	assert.Empty(t, got, "changes inside the debounce window wait")

	require.NoError(t, fw.processPendingFiles(time.Now().Add(time.Second)))
	assert.Equal(t, []string{suiteFile}, got)
	assert.Empty(t, fw.GetPendingFiles())
}

func TestStartReportsChanges(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "stateshot")
	require.NoError(t, os.MkdirAll(dir, 0755))
	fw := newTestWatcher(t, root)

	var mu sync.Mutex
	var got []string
	fw.SetChangeCallback(func(files []string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, files...)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Start(ctx) }()

	require.Eventually(t, fw.IsWatching, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(fw.GetWatchedPaths()) > 0 }, time.Second, 10*time.Millisecond)

	target := filepath.Join(dir, "new.yaml")
	require.NoError(t, os.WriteFile(target, []byte("suites: []\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[0] == target
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, fw.IsWatching())
}

func TestStartWithoutSuiteDirs(t *testing.T) {
	fw, err := NewFileWatcher(t.TempDir(), WatcherConfig{Patterns: []string{"missing/*.yaml"}})
	require.NoError(t, err)
	err = fw.Start(context.Background())
	assert.ErrorContains(t, err, "none of the suite directories exist")
	assert.False(t, fw.IsWatching())
}
