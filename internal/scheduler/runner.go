package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lance13c/stateshot/internal/logging"
)

// DefaultTolerance is used when neither state, suite nor config set one
const DefaultTolerance = 2.3

// Options configure a Runner
type Options struct {
	Mode      Mode
	Workers   int
	// Tolerance is the configured default; nil means DefaultTolerance.
	// Zero is a valid tolerance and is kept.
	Tolerance *float64
	RootURL   string
	RunID     string

	// OnPhase, when set, observes every phase transition of every unit
	OnPhase func(u Unit, p Phase)
}

// Summary totals the outcomes of a run
type Summary struct {
	RunID    string
	Units    int
	Counts   map[Outcome]int
	Duration time.Duration
}

// Failed reports whether any state ended badly
func (s *Summary) Failed() bool {
	for o, n := range s.Counts {
		if n > 0 && o.Bad() {
			return true
		}
	}
	return false
}

// Total returns the number of recorded results
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Runner executes plans
type Runner struct {
	driver   Driver
	comparer Comparer
	sink     Sink
	opts     Options
}

// NewRunner creates a runner. Zero options fall back to test mode, one
// worker and DefaultTolerance.
func NewRunner(driver Driver, comparer Comparer, sink Sink, opts Options) *Runner {
	if opts.Mode == "" {
		opts.Mode = ModeTest
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Tolerance == nil {
		def := DefaultTolerance
		opts.Tolerance = &def
	}
	return &Runner{driver: driver, comparer: comparer, sink: sink, opts: opts}
}

// Run executes every unit of the plan on the worker pool and reports each
// state to the sink. Units are independent: a failure in one never stops
// another. Cancelling ctx stops new work; units in flight finish their
// current action first. The returned error is ctx.Err() after an abort.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Summary, error) {
	start := time.Now()
	runID := r.opts.RunID
	if runID == "" {
		runID = ulid.Make().String()
	}

	summary := &Summary{RunID: runID, Units: len(plan.Units), Counts: map[Outcome]int{}}
	var mu sync.Mutex
	record := func(res Result) {
		res.RunID = runID
		recordOutcome(res)
		mu.Lock()
		summary.Counts[res.Outcome]++
		mu.Unlock()
		if r.sink != nil {
			r.sink.Record(res)
		}
	}

	logging.Info("Run %s: %d units, %d states, %d workers, mode %s",
		runID, len(plan.Units), len(plan.Entries), r.opts.Workers, r.opts.Mode)

	for _, sk := range plan.Skipped {
		for _, st := range sk.Suite.States {
			record(Result{
				SuitePath: sk.Suite.Path,
				State:     st.Name,
				Browser:   sk.Browser,
				Outcome:   OutcomeSkipped,
				Comment:   sk.Rule.Comment,
			})
		}
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for _, u := range plan.Units {
		if ctx.Err() != nil {
			abortAll(u, record, "run aborted before start")
			continue
		}
		g.Go(func() error {
			// the abort may have come while this unit waited for a worker
			if ctx.Err() != nil {
				abortAll(u, record, "run aborted before start")
				return nil
			}
			run := &unitRun{
				runner: r,
				unit:   u,
				ctx:    ctx,
				work:   context.WithoutCancel(ctx),
				record: record,
			}
			run.execute()
			return nil
		})
	}
	g.Wait()

	summary.Duration = time.Since(start)
	logging.Info("Run %s finished in %v: %s", runID, summary.Duration, formatCounts(summary.Counts))
	return summary, ctx.Err()
}

func abortAll(u Unit, record func(Result), comment string) {
	for _, st := range u.Suite.States {
		record(Result{
			SuitePath: u.Suite.Path,
			State:     st.Name,
			Browser:   u.Browser,
			Outcome:   OutcomeAborted,
			Comment:   comment,
		})
	}
}

func formatCounts(counts map[Outcome]int) string {
	order := []Outcome{OutcomePassed, OutcomeGathered, OutcomeDiffered, OutcomeNoBaseline, OutcomeFailed, OutcomeSkipped, OutcomeAborted}
	var parts []string
	for _, o := range order {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, n))
		}
	}
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, " ")
}

// ResolveURL joins a suite url onto the root url unless it is absolute
func ResolveURL(root, u string) string {
	if root == "" || strings.Contains(u, "://") {
		return u
	}
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(u, "/")
}
