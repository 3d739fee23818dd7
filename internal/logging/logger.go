// Package logging writes leveled messages to .stateshot/logs/stateshot.log
// so the console stays free for run output.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level orders log messages by severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps debug/info/warn/error to a level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

const (
	logDirName  = ".stateshot/logs"
	logFileName = "stateshot.log"
	maxLogSize  = int64(10 * 1024 * 1024)
	maxLogAge   = 7 * 24 * time.Hour
)

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// Logger writes to a file that is rotated once it reaches maxSize
type Logger struct {
	mu      sync.Mutex
	out     *log.Logger
	file    *os.File
	path    string
	level   Level
	maxSize int64
	size    int64
}

// Initialize opens the global log file under projectDir. Later calls keep
// the file that is already open.
func Initialize(projectDir string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger != nil && globalLogger.file != nil {
		return nil
	}
	l, err := open(filepath.Join(projectDir, logDirName, logFileName), maxLogSize)
	if err != nil {
		return err
	}
	if globalLogger != nil {
		l.level = globalLogger.level
	}
	globalLogger = l
	return nil
}

// GetLogger returns the global logger. Until Initialize succeeds it
// discards everything, so library code can log freely in tests.
func GetLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		globalLogger = &Logger{level: INFO, out: log.New(io.Discard, "", 0)}
	}
	return globalLogger
}

func open(path string, maxSize int64) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	l := &Logger{path: path, level: INFO, maxSize: maxSize}
	if err := l.reopen(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) reopen() error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.size = 0
	if info, err := file.Stat(); err == nil {
		l.size = info.Size()
	}
	l.file = file
	l.out = log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	return nil
}

// rotate moves a full log aside as stateshot-<time>.log
func (l *Logger) rotate() {
	if l.file == nil || l.size < l.maxSize {
		return
	}
	l.file.Close()
	rotated := filepath.Join(filepath.Dir(l.path), fmt.Sprintf("stateshot-%s.log", time.Now().Format("20060102-150405.000")))
	if err := os.Rename(l.path, rotated); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to rotate log file: %v\n", err)
	}
	if err := l.reopen(); err != nil {
		l.file = nil
		l.out = log.New(io.Discard, "", 0)
		return
	}
	go removeOldLogs(filepath.Dir(l.path), time.Now().Add(-maxLogAge))
}

func removeOldLogs(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == logFileName || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		if info, err := e.Info(); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// logf is the single write path; every caller is exactly one frame above
// it so Lshortfile points at the code that logged
func (l *Logger) logf(level Level, prefix, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level || l.out == nil {
		return
	}
	l.rotate()

	msg := fmt.Sprintf("[%s] %s%s", level, prefix, fmt.Sprintf(format, v...))
	l.out.Output(3, msg)
	l.size += int64(len(msg)) + 1
}

// Logf writes one message at level
func (l *Logger) Logf(level Level, format string, v ...interface{}) {
	l.logf(level, "", format, v...)
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects the logger, mainly for tests
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = log.New(w, "", 0)
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.out = log.New(io.Discard, "", 0)
	return err
}

// Path is the current log file, empty before Initialize
func (l *Logger) Path() string {
	return l.path
}

func Debug(format string, v ...interface{}) { GetLogger().logf(DEBUG, "", format, v...) }
func Info(format string, v ...interface{})  { GetLogger().logf(INFO, "", format, v...) }
func Warn(format string, v ...interface{})  { GetLogger().logf(WARN, "", format, v...) }
func Error(format string, v ...interface{}) { GetLogger().logf(ERROR, "", format, v...) }

// Prefixed logs through the global logger with a fixed tag in front of
// every message, e.g. the suite and browser a unit runs
type Prefixed struct {
	prefix string
}

// With returns a Prefixed logger that writes "[tag] message"
func With(tag string) Prefixed {
	return Prefixed{prefix: "[" + tag + "] "}
}

func (p Prefixed) Debug(format string, v ...interface{}) {
	GetLogger().logf(DEBUG, p.prefix, format, v...)
}

func (p Prefixed) Info(format string, v ...interface{}) {
	GetLogger().logf(INFO, p.prefix, format, v...)
}

func (p Prefixed) Warn(format string, v ...interface{}) {
	GetLogger().logf(WARN, p.prefix, format, v...)
}

func (p Prefixed) Error(format string, v ...interface{}) {
	GetLogger().logf(ERROR, p.prefix, format, v...)
}

// stdWriter feeds lines from the standard log package in at INFO
type stdWriter struct{}

func (stdWriter) Write(p []byte) (int, error) {
	GetLogger().logf(INFO, "", "%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// RedirectStandardLog sends the standard log package to the log file
func RedirectStandardLog() {
	log.SetOutput(stdWriter{})
	log.SetFlags(0)
}
