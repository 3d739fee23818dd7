package suitefile

import (
	"fmt"
	"strings"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/config"
	"github.com/lance13c/stateshot/internal/filter"
	"github.com/lance13c/stateshot/internal/suite"
)

// Compile registers every suite of f. Problems are recorded on the
// registry, so they surface together from Build.
func Compile(reg *suite.Registry, source string, f *File) {
	for i := range f.Suites {
		spec := &f.Suites[i]
		reg.Suite(spec.Name, func(b *suite.Builder) {
			compileSuite(reg, source, spec, b)
		})
	}
}

func compileSuite(reg *suite.Registry, source string, spec *SuiteSpec, b *suite.Builder) {
	where := fmt.Sprintf("%s: suite %q", source, spec.Name)
	problem := func(format string, args ...any) {
		reg.Problem("%s: %s", where, fmt.Sprintf(format, args...))
	}

	if spec.URL != "" {
		b.SetURL(spec.URL)
	}
	if len(spec.Capture) > 0 {
		b.SetCaptureElements(spec.Capture...)
	}
	for _, ig := range spec.Ignore {
		if ig.MatchAll {
			b.IgnoreAllElements(ig.Selector)
		} else {
			b.IgnoreElements(ig.Selector)
		}
	}
	if spec.Tolerance != nil {
		b.SetTolerance(*spec.Tolerance)
	}
	for _, sk := range spec.Skip {
		matchers, err := Matchers(sk.Browsers)
		if err != nil {
			problem("%v", err)
			continue
		}
		b.SkipWithComment(sk.Comment, matchers...)
	}
	if len(spec.Browsers) > 0 {
		matchers, err := Matchers(spec.Browsers)
		if err != nil {
			problem("%v", err)
		} else {
			b.Browsers(matchers...)
		}
	}

	// handles the before hook stores are visible to states and the after hook
	stored := map[string]bool{}
	if len(spec.Before) > 0 {
		cb, problems := compileSteps(spec.Before, stored)
		for _, p := range problems {
			problem("before: %s", p)
		}
		b.Before(cb)
	}
	for _, st := range spec.States {
		cb, problems := compileSteps(st.Actions, copyNames(stored))
		for _, p := range problems {
			problem("state %q: %s", st.Name, p)
		}
		if st.Tolerance != nil {
			b.CaptureWithOptions(st.Name, suite.Tolerance(*st.Tolerance), cb)
		} else {
			b.Capture(st.Name, cb)
		}
	}
	if len(spec.After) > 0 {
		cb, problems := compileSteps(spec.After, copyNames(stored))
		for _, p := range problems {
			problem("after: %s", p)
		}
		b.After(cb)
	}

	for i := range spec.Suites {
		child := &spec.Suites[i]
		b.Suite(child.Name, func(cb *suite.Builder) {
			compileSuite(reg, source, child, cb)
		})
	}
}

// Matchers turns browser entries into filter matchers; /expr/ entries
// are regular expressions
func Matchers(entries []string) ([]filter.Matcher, error) {
	var out []filter.Matcher
	for _, e := range entries {
		if len(e) >= 2 && strings.HasPrefix(e, "/") && strings.HasSuffix(e, "/") {
			m, err := filter.Compile(e[1 : len(e)-1])
			if err != nil {
				return nil, err
			}
			out = append(out, m)
			continue
		}
		out = append(out, filter.Browser(e))
	}
	return out, nil
}

func copyNames(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// compileSteps checks steps against the handles known so far, adding the
// ones find steps store, and returns the callback that records them
func compileSteps(steps []Step, known map[string]bool) (actions.Callback, []string) {
	var problems []string
	checkTarget := func(st Step, t *Target) {
		if t != nil && t.Ref != "" && !known[t.Ref] {
			problems = append(problems, fmt.Sprintf("line %d: @%s is not stored by a find step in the before hook", st.Line, t.Ref))
		}
	}
	for _, st := range steps {
		checkTarget(st, st.Target)
		checkTarget(st, st.Dest)
		switch st.Kind {
		case kindFind:
			known[st.Find.Name] = true
		case actions.KindSetWindowSize:
			if _, _, err := config.ParseWindowSize(st.Text); err != nil {
				problems = append(problems, fmt.Sprintf("line %d: %v", st.Line, err))
			}
		case actions.KindSendFile:
			if st.Target == nil {
				problems = append(problems, fmt.Sprintf("line %d: sendFile needs an element option", st.Line))
			}
		case actions.KindWaitForShow, actions.KindWaitForHide, actions.KindWaitForCondition, actions.KindExecuteScript:
			if strings.TrimSpace(st.Text) == "" {
				problems = append(problems, fmt.Sprintf("line %d: %s needs a value", st.Line, st.Kind))
			}
		}
	}

	steps = append([]Step(nil), steps...)
	return func(acts *actions.Actions, find actions.FindFunc, scope actions.Scope) {
		handles := map[string]*actions.Element{}
		element := func(t *Target) *actions.Element {
			if t == nil {
				return nil
			}
			if t.Ref != "" {
				el, ok := scope.Element(t.Ref)
				if !ok {
					panic(fmt.Errorf("no element stored as @%s", t.Ref))
				}
				return el
			}
			key := t.String()
			if el, ok := handles[key]; ok {
				return el
			}
			el := find(t.Selectors[0], t.Selectors[1:]...)
			handles[key] = el
			return el
		}
		for _, st := range steps {
			record(acts, find, scope, st, element)
		}
	}, problems
}

func record(acts *actions.Actions, find actions.FindFunc, scope actions.Scope, st Step, element func(*Target) *actions.Element) {
	switch st.Kind {
	case kindFind:
		scope[st.Find.Name] = find(st.Find.Selector, st.Find.Alternatives...)
	case actions.KindClick:
		acts.Click(element(st.Target), st.Button)
	case actions.KindDoubleClick:
		acts.DoubleClick(element(st.Target), st.Button)
	case actions.KindMouseDown:
		acts.MouseDown(element(st.Target), st.Button)
	case actions.KindMouseUp:
		acts.MouseUp(element(st.Target), st.Button)
	case actions.KindMouseMove:
		if st.Offset != nil {
			acts.MouseMove(element(st.Target), actions.Point(*st.Offset))
		} else {
			acts.MouseMove(element(st.Target))
		}
	case actions.KindDragAndDrop:
		acts.DragAndDrop(element(st.Target), element(st.Dest))
	case actions.KindFlick:
		acts.Flick(actions.Point(*st.Offset), st.Speed, element(st.Target))
	case actions.KindExecuteScript:
		acts.ExecuteJS(st.Text)
	case actions.KindWait:
		acts.Wait(st.Delay)
	case actions.KindWaitForShow:
		acts.WaitForElementToShow(st.Text, st.Timeout)
	case actions.KindWaitForHide:
		acts.WaitForElementToHide(st.Text, st.Timeout)
	case actions.KindWaitForCondition:
		acts.WaitForJSCondition(st.Text, st.Timeout)
	case actions.KindSendKeys:
		acts.SendKeys(element(st.Target), st.Inputs...)
	case actions.KindSendFile:
		acts.SendFile(element(st.Target), st.Text)
	case actions.KindFocus:
		acts.Focus(element(st.Target))
	case actions.KindSetWindowSize:
		w, h, _ := config.ParseWindowSize(st.Text)
		acts.SetWindowSize(w, h)
	case actions.KindTap:
		acts.Tap(element(st.Target))
	case actions.KindChangeOrientation:
		acts.ChangeOrientation()
	}
}
