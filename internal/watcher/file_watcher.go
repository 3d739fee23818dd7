package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/suitefile"
)

// FileWatcher monitors suite files and the config file and reports
// batches of changes once they settle
type FileWatcher struct {
	projectRoot string
	patterns    []string
	extra       map[string]bool
	watcher     *fsnotify.Watcher

	debounce time.Duration

	mu           sync.RWMutex
	isWatching   bool
	pendingFiles map[string]time.Time

	onFileChanged func(files []string) error
}

// WatcherConfig configures the file watcher
type WatcherConfig struct {
	Debounce time.Duration
	// Patterns are suite file globs relative to the project root
	Patterns []string
	// Files are watched in addition to the patterns, such as the config file
	Files []string
}

// DefaultDebounce is used when the config leaves Debounce unset
const DefaultDebounce = 500 * time.Millisecond

// NewFileWatcher creates a new file watcher
func NewFileWatcher(projectRoot string, config WatcherConfig) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	fw := &FileWatcher{
		projectRoot:  projectRoot,
		patterns:     config.Patterns,
		extra:        map[string]bool{},
		watcher:      watcher,
		debounce:     config.Debounce,
		pendingFiles: make(map[string]time.Time),
	}
	for _, f := range config.Files {
		fw.extra[filepath.Clean(f)] = true
	}
	return fw, nil
}

// SetChangeCallback sets the callback function for when files change
func (fw *FileWatcher) SetChangeCallback(callback func(files []string) error) {
	fw.onFileChanged = callback
}

// Start watches until ctx is cancelled. Callback errors are logged and
// do not stop the watcher.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	if fw.isWatching {
		fw.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	fw.isWatching = true
	fw.mu.Unlock()

	if err := fw.addWatchPaths(); err != nil {
		fw.Stop()
		return fmt.Errorf("failed to add watch paths: %w", err)
	}

	// tick at half the debounce so a settled batch waits at most 1.5x
	ticker := time.NewTicker(fw.debounce / 2)
	defer ticker.Stop()

	logging.Info("Watching %d paths (debounce %v)", len(fw.watcher.WatchList()), fw.debounce)

	for {
		select {
		case <-ctx.Done():
			fw.Stop()
			return ctx.Err()

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logging.Warn("File watcher error: %v", err)

		case <-ticker.C:
			if err := fw.processPendingFiles(time.Now()); err != nil {
				logging.Error("Error processing file changes: %v", err)
			}
		}
	}
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.isWatching {
		fw.watcher.Close()
		fw.isWatching = false
		logging.Info("File watcher stopped")
	}
}

// IsWatching returns true if the watcher is currently active
func (fw *FileWatcher) IsWatching() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.isWatching
}

// addWatchPaths watches the directories suite files can live in, and the
// directories holding the extra files
func (fw *FileWatcher) addWatchPaths() error {
	dirs := suitefile.Dirs(fw.projectRoot, fw.patterns)
	for f := range fw.extra {
		dirs = append(dirs, filepath.Dir(f))
	}
	added := 0
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if err := fw.watcher.Add(path); err != nil {
				logging.Warn("Could not watch directory %s: %v", path, err)
				return nil
			}
			added++
			return nil
		})
		if err != nil {
			return err
		}
	}
	if added == 0 {
		return fmt.Errorf("none of the suite directories exist")
	}
	return nil
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	// new directories may hold suite files later
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.watcher.Add(event.Name); err != nil {
				logging.Warn("Could not watch directory %s: %v", event.Name, err)
			}
			return
		}
	}
	if !fw.isRelevant(event.Name) {
		return
	}
	fw.mu.Lock()
	fw.pendingFiles[event.Name] = time.Now()
	fw.mu.Unlock()
}

// isRelevant reports whether path is a suite file or one of the extra files
func (fw *FileWatcher) isRelevant(path string) bool {
	if fw.extra[filepath.Clean(path)] {
		return true
	}
	rel, err := filepath.Rel(fw.projectRoot, path)
	if err != nil {
		return false
	}
	return suitefile.Match(fw.patterns, rel)
}

// processPendingFiles hands every file quiet for at least the debounce
// period to the callback
func (fw *FileWatcher) processPendingFiles(now time.Time) error {
	fw.mu.Lock()
	threshold := now.Add(-fw.debounce)
	var files []string
	for file, ts := range fw.pendingFiles {
		if !ts.After(threshold) {
			files = append(files, file)
			delete(fw.pendingFiles, file)
		}
	}
	fw.mu.Unlock()

	if len(files) == 0 {
		return nil
	}
	sort.Strings(files)
	logging.Info("Detected changes in %d file(s): %v", len(files), files)

	if fw.onFileChanged != nil {
		return fw.onFileChanged(files)
	}
	return nil
}

// GetWatchedPaths returns all currently watched paths
func (fw *FileWatcher) GetWatchedPaths() []string {
	return fw.watcher.WatchList()
}

// GetPendingFiles returns files waiting for debounce
func (fw *FileWatcher) GetPendingFiles() map[string]time.Time {
	fw.mu.RLock()
	defer fw.mu.RUnlock()

	result := make(map[string]time.Time)
	for k, v := range fw.pendingFiles {
		result[k] = v
	}
	return result
}
