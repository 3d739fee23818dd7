package suite

import (
	"strings"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/filter"
)

// IgnoreRule masks matching elements out of a capture. Without MatchAll
// only the first match is masked.
type IgnoreRule struct {
	Selector string `yaml:"selector"`
	MatchAll bool   `yaml:"every,omitempty"`
}

// StateOptions override suite settings for one state
type StateOptions struct {
	Tolerance *float64
}

// State is one named capture point inside a suite
type State struct {
	Name     string
	Options  StateOptions
	Callback actions.Callback
}

// Suite is a node of the suite tree. Inheritable fields hold the value
// resolved at creation time merged with the suite's own overrides.
type Suite struct {
	Name string
	Path []string

	URL             string
	CaptureElements []string
	IgnoreElements  []IgnoreRule
	Tolerance       *float64
	Filter          filter.Filter

	Before actions.Callback
	After  actions.Callback

	States   []*State
	Children []*Suite
}

// FullName joins the suite path with spaces, the way reports show it
func (s *Suite) FullName() string {
	return strings.Join(s.Path, " ")
}

// ToleranceFor resolves the tolerance of st: the state override, then the
// suite value, then def
func (s *Suite) ToleranceFor(st *State, def float64) float64 {
	if st != nil && st.Options.Tolerance != nil {
		return *st.Options.Tolerance
	}
	if s.Tolerance != nil {
		return *s.Tolerance
	}
	return def
}

// State returns the state called name
func (s *Suite) State(name string) *State {
	for _, st := range s.States {
		if st.Name == name {
			return st
		}
	}
	return nil
}

// Walk visits s and its descendants depth-first in declaration order
func (s *Suite) Walk(fn func(*Suite)) {
	fn(s)
	for _, c := range s.Children {
		c.Walk(fn)
	}
}

// inherit creates a child carrying copies of the parent's inheritable fields
func (s *Suite) inherit(name string) *Suite {
	child := &Suite{
		Name:            name,
		Path:            append(append([]string(nil), s.Path...), name),
		URL:             s.URL,
		CaptureElements: append([]string(nil), s.CaptureElements...),
		IgnoreElements:  append([]IgnoreRule(nil), s.IgnoreElements...),
		Filter:          s.Filter.Clone(),
	}
	if s.Tolerance != nil {
		t := *s.Tolerance
		child.Tolerance = &t
	}
	return child
}

// Tree is a validated, frozen set of root suites
type Tree struct {
	Roots []*Suite
}

// Walk visits every suite in declaration order
func (t *Tree) Walk(fn func(*Suite)) {
	for _, r := range t.Roots {
		r.Walk(fn)
	}
}

// Find returns the suite at path, or nil
func (t *Tree) Find(path ...string) *Suite {
	level := t.Roots
	var found *Suite
	for _, name := range path {
		found = nil
		for _, s := range level {
			if s.Name == name {
				found = s
				break
			}
		}
		if found == nil {
			return nil
		}
		level = found.Children
	}
	return found
}

// Count returns the number of suites and states in the tree
func (t *Tree) Count() (suites, states int) {
	t.Walk(func(s *Suite) {
		suites++
		states += len(s.States)
	})
	return suites, states
}
