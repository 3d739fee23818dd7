package report

import (
	"fmt"
	"io"
	"time"

	"github.com/lance13c/stateshot/internal/database"
	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/scheduler"
)

// History records a run and its results in the history database
type History struct {
	db  *database.DB
	run *database.Run
}

// StartHistory inserts the run row. Results recorded later reference it.
func StartHistory(db *database.DB, runID string, mode scheduler.Mode, rootURL string) (*History, error) {
	run := &database.Run{
		ID:        runID,
		Mode:      string(mode),
		RootURL:   rootURL,
		StartedAt: time.Now().UTC(),
	}
	if err := db.StartRun(run); err != nil {
		return nil, err
	}
	return &History{db: db, run: run}, nil
}

// RunID returns the id results must carry
func (h *History) RunID() string {
	return h.run.ID
}

// Record implements scheduler.Sink. A failed write is logged and does
// not affect the run.
func (h *History) Record(r scheduler.Result) {
	rec := &database.ResultRecord{
		RunID:     h.run.ID,
		SuitePath: r.SuitePath,
		State:     r.State,
		Browser:   r.Browser,
		Outcome:   string(r.Outcome),
		Comment:   r.Comment,
		Tolerance: r.Tolerance,
		ImagePath: r.ImagePath,
		Duration:  r.Duration,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if c := r.Comparison; c != nil {
		rec.DiffPixels = c.DiffPixels
		rec.DiffPath = c.DiffPath
		if rec.ImagePath == "" {
			rec.ImagePath = c.CurrentPath
		}
	}
	if _, err := h.db.SaveResult(rec); err != nil {
		logging.Warn("Failed to record %s / %s @ %s in history: %v", r.Suite(), r.State, r.Browser, err)
	}
}

// Finish stores the run totals. aborted marks a cancelled run.
func (h *History) Finish(s *scheduler.Summary, aborted bool) error {
	status := "passed"
	switch {
	case aborted:
		status = "aborted"
	case s.Failed():
		status = "failed"
	}
	failed := 0
	for o, n := range s.Counts {
		if o.Bad() {
			failed += n
		}
	}
	return h.db.FinishRun(h.run.ID, s.Total(), failed, status, time.Now().UTC())
}

// PrintRuns lists runs, newest first
func PrintRuns(w io.Writer, runs []database.Run, color bool) {
	c := NewConsole(w, color, false)
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	fmt.Fprintln(w, c.paint(c.styles.Heading, "Recent runs"))
	for _, r := range runs {
		style := c.styles.Pass
		switch r.Status {
		case "failed":
			style = c.styles.Fail
		case "aborted", "running":
			style = c.styles.Warn
		}
		took := "-"
		if r.FinishedAt != nil {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s  %s  %-7s %-8s %3d/%-3d %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			c.paint(style, r.Status),
			r.Failed, r.Total,
			c.paint(c.styles.Muted, took))
	}
}

// PrintResults lists the results of one run
func PrintResults(w io.Writer, run *database.Run, results []database.ResultRecord, color bool) {
	c := NewConsole(w, color, true)
	fmt.Fprintf(w, "%s %s (%s, %s)\n", c.paint(c.styles.Title, "Run"), run.ID, run.Mode, run.Status)
	for _, r := range results {
		res := scheduler.Result{
			SuitePath: r.SuitePath,
			State:     r.State,
			Browser:   r.Browser,
			Outcome:   scheduler.Outcome(r.Outcome),
			Comment:   r.Comment,
			Duration:  r.Duration,
		}
		if r.Error != "" {
			res.Err = recordedError(r.Error)
		}
		if r.DiffPath != "" || r.DiffPixels > 0 {
			res.Comparison = &scheduler.Comparison{DiffPixels: r.DiffPixels, DiffPath: r.DiffPath}
		}
		c.Record(res)
	}
}

// recordedError replays an error message read back from history
type recordedError string

func (e recordedError) Error() string { return string(e) }
