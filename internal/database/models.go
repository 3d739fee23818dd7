package database

import (
	"strings"
	"time"
)

// Run is one invocation of capture or gather
type Run struct {
	ID         string
	Mode       string
	RootURL    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Total      int
	Failed     int
	Status     string // running, passed, failed, aborted
}

// ResultRecord is one state in one browser within a run
type ResultRecord struct {
	ID         int64
	RunID      string
	SuitePath  []string
	State      string
	Browser    string
	Outcome    string
	Comment    string
	Error      string
	Tolerance  float64
	DiffPixels int
	ImagePath  string
	DiffPath   string
	Duration   time.Duration
	CreatedAt  time.Time
}

// Suite returns the suite path joined for display
func (r ResultRecord) Suite() string {
	return strings.Join(r.SuitePath, " ")
}

// pathSep joins suite path segments in the suite_path column
const pathSep = "\x1f"

func joinPath(p []string) string {
	return strings.Join(p, pathSep)
}

func splitPath(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, pathSep)
}
