package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/suite"
)

// Phase is where a unit is in its lifecycle
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseNavigated
	PhaseBeforeHookRun
	PhaseStateRunning
	PhaseStateCaptured
	PhaseAfterHookRun
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not-started"
	case PhaseNavigated:
		return "navigated"
	case PhaseBeforeHookRun:
		return "before-hook-run"
	case PhaseStateRunning:
		return "state-running"
	case PhaseStateCaptured:
		return "state-captured"
	case PhaseAfterHookRun:
		return "after-hook-run"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// unitRun executes one suite in one browser. ctx carries the run's
// cancellation; work is detached from it so the action in progress can
// complete after an abort.
type unitRun struct {
	runner *Runner
	unit   Unit
	ctx    context.Context
	work   context.Context
	record func(Result)

	session Session
	scope   actions.Scope
	phase   Phase
	log     logging.Prefixed
}

func (u *unitRun) enter(p Phase) {
	u.phase = p
	u.log.Debug("%s", p)
	if u.runner.opts.OnPhase != nil {
		u.runner.opts.OnPhase(u.unit, p)
	}
}

func (u *unitRun) aborted() bool {
	return u.ctx.Err() != nil
}

func (u *unitRun) execute() {
	metricUnitsInFlight.Inc()
	defer metricUnitsInFlight.Dec()

	s := u.unit.Suite
	u.scope = actions.Scope{}
	u.log = logging.With(s.FullName() + " @ " + u.unit.Browser)
	u.enter(PhaseNotStarted)
	defer func() { recordUnit(u.phase) }()

	session, err := u.runner.driver.Open(u.work, u.unit.Browser)
	if err != nil {
		u.fail(0, &BackendError{Op: "open browser", Browser: u.unit.Browser, Err: err})
		return
	}
	u.session = session
	defer func() {
		if err := session.Close(); err != nil {
			u.log.Warn("closing session: %v", err)
		}
	}()

	url := ResolveURL(u.runner.opts.RootURL, s.URL)
	if err := session.Navigate(u.work, url); err != nil {
		u.fail(0, &BackendError{Op: "navigate to " + url, Browser: u.unit.Browser, Err: err})
		return
	}
	u.enter(PhaseNavigated)

	if err := u.runHook(HookBefore, s.Before); err != nil {
		if errors.Is(err, errAborted) {
			u.abort(0, false)
			return
		}
		u.fail(0, fmt.Errorf("before hook: %w", err))
		return
	}
	u.enter(PhaseBeforeHookRun)

	for i, st := range s.States {
		if u.aborted() {
			u.abort(i, false)
			return
		}
		err := u.runState(st)
		switch {
		case err == nil:
		case errors.Is(err, errAborted):
			u.abort(i, true)
			return
		case stateScoped(err):
			// already recorded; the next state continues from the current page
		default:
			u.fail(i, err)
			return
		}
	}

	if u.aborted() {
		u.enter(PhaseDone)
		return
	}
	if err := u.runHook(HookAfter, s.After); err != nil && !errors.Is(err, errAborted) {
		u.record(Result{
			SuitePath: s.Path,
			State:     HookAfter,
			Browser:   u.unit.Browser,
			Outcome:   OutcomeFailed,
			Err:       err,
		})
		u.enter(PhaseFailed)
		return
	}
	u.enter(PhaseAfterHookRun)
	u.enter(PhaseDone)
}

// fail records states from index from onwards as failed with cause
func (u *unitRun) fail(from int, cause error) {
	u.log.Error("%v", cause)
	for _, st := range u.unit.Suite.States[from:] {
		u.record(Result{
			SuitePath: u.unit.Suite.Path,
			State:     st.Name,
			Browser:   u.unit.Browser,
			Outcome:   OutcomeFailed,
			Err:       cause,
		})
	}
	u.enter(PhaseFailed)
}

// abort records states from index from onwards as aborted. interrupted
// marks the first of them as the one that was running.
func (u *unitRun) abort(from int, interrupted bool) {
	for i, st := range u.unit.Suite.States[from:] {
		comment := "run aborted"
		if interrupted && i == 0 {
			comment = "run aborted during state, no screenshot taken"
		}
		u.record(Result{
			SuitePath: u.unit.Suite.Path,
			State:     st.Name,
			Browser:   u.unit.Browser,
			Outcome:   OutcomeAborted,
			Comment:   comment,
		})
	}
	u.enter(PhaseFailed)
}

func (u *unitRun) runHook(name string, cb actions.Callback) error {
	steps, err := u.collect(name, cb)
	if err != nil {
		return err
	}
	return u.perform(steps)
}

// runState drives one state to its capture. State-scoped failures are
// recorded here; unit-scoped ones are returned for the caller to record.
func (u *unitRun) runState(st *suite.State) error {
	s := u.unit.Suite
	u.enter(PhaseStateRunning)
	start := time.Now()
	tolerance := s.ToleranceFor(st, *u.runner.opts.Tolerance)
	res := Result{
		SuitePath: s.Path,
		State:     st.Name,
		Browser:   u.unit.Browser,
		Tolerance: tolerance,
	}

	steps, err := u.collect(fmt.Sprintf("state %q", st.Name), st.Callback)
	if err == nil {
		err = u.perform(steps)
	}
	if err == nil && u.aborted() {
		err = errAborted
	}

	var capture *Capture
	if err == nil {
		capture, err = u.session.Capture(u.work, CaptureRequest{Selectors: s.CaptureElements, Ignore: s.IgnoreElements})
		if err != nil && !stateScoped(err) {
			err = &BackendError{Op: "capture", Browser: u.unit.Browser, Err: err}
		}
	}
	if err != nil {
		if errors.Is(err, errAborted) {
			return err
		}
		if stateScoped(err) {
			res.Outcome = OutcomeFailed
			res.Err = err
			res.Duration = time.Since(start)
			u.record(res)
			u.log.Warn("state %q failed: %v", st.Name, err)
		}
		return err
	}

	key := Key{SuitePath: s.Path, State: st.Name, Browser: u.unit.Browser}
	if err := u.judge(key, capture, &res); err != nil {
		return &BackendError{Op: "compare " + key.String(), Browser: u.unit.Browser, Err: err}
	}
	res.Duration = time.Since(start)
	u.record(res)
	u.enter(PhaseStateCaptured)
	return nil
}

func (u *unitRun) judge(key Key, c *Capture, res *Result) error {
	cmp := u.runner.comparer
	if u.runner.opts.Mode == ModeGather {
		path, err := cmp.Save(u.work, key, c)
		if err != nil {
			return err
		}
		res.Outcome = OutcomeGathered
		res.ImagePath = path
		return nil
	}

	comparison, err := cmp.Compare(u.work, key, c, res.Tolerance)
	if errors.Is(err, ErrNoBaseline) {
		res.Outcome = OutcomeNoBaseline
		res.Comment = "no reference image, run gather first"
		res.Comparison = &comparison
		res.ImagePath = comparison.CurrentPath
		return nil
	}
	if err != nil {
		return err
	}
	res.Comparison = &comparison
	res.ImagePath = comparison.CurrentPath
	if comparison.Equal {
		res.Outcome = OutcomePassed
	} else {
		res.Outcome = OutcomeDiffered
	}
	return nil
}

// collect invokes a callback against a fresh action list
func (u *unitRun) collect(where string, cb actions.Callback) (steps []actions.Action, err error) {
	if cb == nil {
		return nil, nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = &CallbackError{Where: where, Value: p}
		}
	}()
	acts := actions.New()
	cb(acts, actions.Find, u.scope)
	return acts.Steps(), nil
}

// perform runs steps strictly in order, stopping before the next step
// once the run is aborted
func (u *unitRun) perform(steps []actions.Action) error {
	for _, step := range steps {
		if u.aborted() {
			return errAborted
		}
		if err := u.performOne(step); err != nil {
			return err
		}
	}
	return nil
}

func (u *unitRun) performOne(a actions.Action) error {
	ctx := u.work
	browser := u.unit.Browser

	switch a.Kind {
	case actions.KindWait:
		t := time.NewTimer(a.Duration)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		return nil

	case actions.KindWaitForShow, actions.KindWaitForHide, actions.KindWaitForCondition:
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = actions.DefaultWaitTimeout
		}
		wctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := u.session.Perform(wctx, Step{Action: a})
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(wctx.Err(), context.DeadlineExceeded) {
			target := a.Selector
			if a.Kind == actions.KindWaitForCondition {
				target = a.Script
			}
			return &actions.TimeoutError{Action: a.Kind, Target: target, Timeout: timeout.String()}
		}
		return wrapBackend(string(a.Kind), browser, err)

	case actions.KindExecuteScript:
		_, err := u.session.ExecuteScript(ctx, a.Script)
		return wrapBackend(string(a.Kind), browser, err)

	case actions.KindSetWindowSize:
		return wrapBackend(string(a.Kind), browser, u.session.SetWindowSize(ctx, a.Width, a.Height))

	case actions.KindChangeOrientation:
		return wrapBackend(string(a.Kind), browser, u.session.ChangeOrientation(ctx))
	}

	step := Step{Action: a}
	if a.Target != nil {
		ref, err := a.Target.Resolve(ctx, u.session)
		if err != nil {
			return wrapBackend("resolve "+a.Target.String(), browser, err)
		}
		step.Target = &ref
	}
	if a.Dest != nil {
		ref, err := a.Dest.Resolve(ctx, u.session)
		if err != nil {
			return wrapBackend("resolve "+a.Dest.String(), browser, err)
		}
		step.Dest = &ref
	}
	return wrapBackend(string(a.Kind), browser, u.session.Perform(ctx, step))
}

// wrapBackend leaves state-scoped errors as they are and wraps the rest
func wrapBackend(op, browser string, err error) error {
	if err == nil || stateScoped(err) {
		return err
	}
	return &BackendError{Op: op, Browser: browser, Err: err}
}
