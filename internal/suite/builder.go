package suite

import (
	"fmt"
	"strings"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/filter"
)

// ValidationError lists every structural problem found in a suite tree
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "suite validation error: " + e.Problems[0]
	}
	return fmt.Sprintf("suite validation error: %d problems:\n  - %s", len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// Registry collects root suites while they are defined
type Registry struct {
	roots    []*Suite
	problems []string
	frozen   bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Suite defines a root suite. fn runs immediately with the suite's builder.
func (r *Registry) Suite(name string, fn func(*Builder)) *Registry {
	r.checkFrozen()
	s := &Suite{Name: name, Path: []string{name}}
	r.checkName(name, nil, r.roots)
	r.roots = append(r.roots, s)
	if fn != nil {
		fn(&Builder{suite: s, reg: r})
	}
	return r
}

// Problem records an error found outside the builder, such as a bad suite file
func (r *Registry) Problem(format string, args ...any) {
	r.problems = append(r.problems, fmt.Sprintf(format, args...))
}

// Build validates the registry and returns the frozen tree
func (r *Registry) Build() (*Tree, error) {
	r.checkFrozen()
	r.frozen = true

	tree := &Tree{Roots: r.roots}
	problems := append([]string(nil), r.problems...)
	tree.Walk(func(s *Suite) {
		problems = append(problems, validateSuite(s)...)
	})
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return tree, nil
}

func validateSuite(s *Suite) []string {
	var out []string
	name := s.FullName()
	if s.Tolerance != nil && *s.Tolerance < 0 {
		out = append(out, fmt.Sprintf("suite %q: tolerance must not be negative", name))
	}
	if len(s.States) == 0 {
		return out
	}
	if s.URL == "" {
		out = append(out, fmt.Sprintf("suite %q has states but no url (use SetURL)", name))
	}
	if len(s.CaptureElements) == 0 {
		out = append(out, fmt.Sprintf("suite %q has states but no capture elements (use SetCaptureElements)", name))
	}
	for _, st := range s.States {
		if t := st.Options.Tolerance; t != nil && *t < 0 {
			out = append(out, fmt.Sprintf("suite %q state %q: tolerance must not be negative", name, st.Name))
		}
	}
	return out
}

func (r *Registry) checkName(name string, parent *Suite, siblings []*Suite) {
	where := "root"
	if parent != nil {
		where = fmt.Sprintf("suite %q", parent.FullName())
	}
	if strings.TrimSpace(name) == "" {
		r.Problem("%s: suite name must not be empty", where)
		return
	}
	for _, s := range siblings {
		if s.Name == name {
			r.Problem("%s: duplicate suite name %q", where, name)
			return
		}
	}
}

func (r *Registry) checkFrozen() {
	if r.frozen {
		panic("suite: registry used after Build")
	}
}

// Builder mutates one suite. Every method returns the builder for chaining.
type Builder struct {
	suite *Suite
	reg   *Registry
}

// SetURL sets the page the suite opens, relative to the root url when not absolute
func (b *Builder) SetURL(url string) *Builder {
	b.reg.checkFrozen()
	b.suite.URL = url
	return b
}

// SetCaptureElements replaces the capture selectors. Duplicates are dropped,
// keeping first-seen order.
func (b *Builder) SetCaptureElements(selectors ...string) *Builder {
	b.reg.checkFrozen()
	b.suite.CaptureElements = dedupe(selectors)
	return b
}

// IgnoreElements masks the first match of each selector
func (b *Builder) IgnoreElements(selectors ...string) *Builder {
	return b.ignore(false, selectors)
}

// IgnoreAllElements masks every match of each selector
func (b *Builder) IgnoreAllElements(selectors ...string) *Builder {
	return b.ignore(true, selectors)
}

func (b *Builder) ignore(all bool, selectors []string) *Builder {
	b.reg.checkFrozen()
	for _, sel := range selectors {
		b.suite.IgnoreElements = append(b.suite.IgnoreElements, IgnoreRule{Selector: sel, MatchAll: all})
	}
	return b
}

// SetTolerance sets the comparison tolerance for the suite and its future children
func (b *Builder) SetTolerance(t float64) *Builder {
	b.reg.checkFrozen()
	b.suite.Tolerance = &t
	return b
}

// Skip excludes matching browsers. With no matchers every browser is skipped.
func (b *Builder) Skip(matchers ...filter.Matcher) *Builder {
	return b.SkipWithComment("", matchers...)
}

// SkipWithComment is Skip with a note carried into the report
func (b *Builder) SkipWithComment(comment string, matchers ...filter.Matcher) *Builder {
	b.reg.checkFrozen()
	b.suite.Filter.Skip(filter.Rule{Matchers: matchers, Comment: comment})
	return b
}

// Browsers restricts the suite to matching browsers
func (b *Builder) Browsers(matchers ...filter.Matcher) *Builder {
	b.reg.checkFrozen()
	b.suite.Filter.Allow(matchers...)
	return b
}

// Capture appends a state
func (b *Builder) Capture(name string, cb actions.Callback) *Builder {
	return b.CaptureWithOptions(name, StateOptions{}, cb)
}

// CaptureWithOptions appends a state with per-state overrides
func (b *Builder) CaptureWithOptions(name string, opts StateOptions, cb actions.Callback) *Builder {
	b.reg.checkFrozen()
	where := b.suite.FullName()
	switch {
	case strings.TrimSpace(name) == "":
		b.reg.Problem("suite %q: state name must not be empty", where)
	case b.suite.State(name) != nil:
		b.reg.Problem("suite %q: duplicate state name %q", where, name)
	}
	if opts.Tolerance != nil {
		t := *opts.Tolerance
		opts.Tolerance = &t
	}
	b.suite.States = append(b.suite.States, &State{Name: name, Options: opts, Callback: cb})
	return b
}

// Before sets the hook that runs once after navigation, before the first state
func (b *Builder) Before(cb actions.Callback) *Builder {
	b.reg.checkFrozen()
	b.suite.Before = cb
	return b
}

// After sets the hook that runs once after the last state
func (b *Builder) After(cb actions.Callback) *Builder {
	b.reg.checkFrozen()
	b.suite.After = cb
	return b
}

// Suite defines a child suite. The child copies the current inheritable
// settings of this suite; later changes on either side stay local.
func (b *Builder) Suite(name string, fn func(*Builder)) *Builder {
	b.reg.checkFrozen()
	b.reg.checkName(name, b.suite, b.suite.Children)
	child := b.suite.inherit(name)
	b.suite.Children = append(b.suite.Children, child)
	if fn != nil {
		fn(&Builder{suite: child, reg: b.reg})
	}
	return b
}

// Tolerance is a helper for building StateOptions literals
func Tolerance(t float64) StateOptions {
	return StateOptions{Tolerance: &t}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
