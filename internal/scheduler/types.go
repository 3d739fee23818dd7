package scheduler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/suite"
)

// Step is an action with its element handles already resolved
type Step struct {
	Action actions.Action
	Target *actions.ElementRef
	Dest   *actions.ElementRef
}

// CaptureRequest describes the region to screenshot
type CaptureRequest struct {
	Selectors []string
	Ignore    []suite.IgnoreRule
}

// Capture is a screenshot of the capture region. Ignore rectangles are
// relative to the image bounds.
type Capture struct {
	Image  image.Image
	Ignore []image.Rectangle
}

// Session drives one browser tab for one suite run. Implementations
// return *actions.ElementNotFoundError (or wrap actions.ErrNoMatch) when
// selectors match nothing, and honour ctx deadlines on the wait actions.
type Session interface {
	actions.Resolver

	Navigate(ctx context.Context, url string) error
	Perform(ctx context.Context, step Step) error
	ExecuteScript(ctx context.Context, script string) (any, error)
	SetWindowSize(ctx context.Context, width, height int) error
	ChangeOrientation(ctx context.Context) error
	Capture(ctx context.Context, req CaptureRequest) (*Capture, error)
	Close() error
}

// Driver opens sessions for a browser id
type Driver interface {
	Open(ctx context.Context, browserID string) (Session, error)
}

// Key names one screenshot
type Key struct {
	SuitePath []string
	State     string
	Browser   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", strings.Join(k.SuitePath, "/"), k.State, k.Browser)
}

// Comparison is the result of checking a capture against its baseline
type Comparison struct {
	Equal        bool
	DiffPixels   int
	DiffBounds   image.Rectangle
	BaselinePath string
	CurrentPath  string
	DiffPath     string
}

// ErrNoBaseline is returned by Compare when the key has no reference image
var ErrNoBaseline = errors.New("no reference image")

// Comparer stores and compares baselines
type Comparer interface {
	Compare(ctx context.Context, key Key, c *Capture, tolerance float64) (Comparison, error)
	Save(ctx context.Context, key Key, c *Capture) (string, error)
}

// Mode selects between comparing against baselines and writing them
type Mode string

const (
	ModeTest   Mode = "test"
	ModeGather Mode = "gather"
)

// Outcome classifies one state in one browser
type Outcome string

const (
	OutcomePassed     Outcome = "passed"
	OutcomeDiffered   Outcome = "differed"
	OutcomeGathered   Outcome = "gathered"
	OutcomeNoBaseline Outcome = "no-baseline"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeAborted    Outcome = "aborted"
)

// Bad reports whether the outcome should fail a run
func (o Outcome) Bad() bool {
	switch o {
	case OutcomeDiffered, OutcomeNoBaseline, OutcomeFailed, OutcomeAborted:
		return true
	}
	return false
}

// Hook names used in results for failures outside any state
const (
	HookBefore = "(before)"
	HookAfter  = "(after)"
)

// Result is what the sink receives for every planned state
type Result struct {
	RunID      string
	SuitePath  []string
	State      string
	Browser    string
	Outcome    Outcome
	Comment    string
	Err        error
	Tolerance  float64
	Comparison *Comparison
	ImagePath  string
	Duration   time.Duration
}

// Suite returns the space-joined suite path
func (r Result) Suite() string {
	return strings.Join(r.SuitePath, " ")
}

// Sink receives results. Record is called from several workers at once.
type Sink interface {
	Record(Result)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Result)

func (f SinkFunc) Record(r Result) { f(r) }

// BackendError is a failure of the automation or screenshot backend. It
// stops the remaining states of its suite run.
type BackendError struct {
	Op      string
	Browser string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s failed in %s: %v", e.Op, e.Browser, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// CallbackError is a panic raised while recording a hook or state
type CallbackError struct {
	Where string
	Value any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s callback panicked: %v", e.Where, e.Value)
}

// errAborted marks work stopped by cancellation of the run
var errAborted = errors.New("run aborted")

// stateScoped reports whether err fails only the current state
func stateScoped(err error) bool {
	var notFound *actions.ElementNotFoundError
	var timeout *actions.TimeoutError
	return errors.As(err, &notFound) || errors.As(err, &timeout) || errors.Is(err, actions.ErrNoMatch)
}
