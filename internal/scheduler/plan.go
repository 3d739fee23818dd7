package scheduler

import (
	"strings"

	"github.com/lance13c/stateshot/internal/filter"
	"github.com/lance13c/stateshot/internal/suite"
)

// Entry is one (suite, state, browser) capture
type Entry struct {
	SuitePath []string
	State     string
	Browser   string
}

func (e Entry) String() string {
	return strings.Join(e.SuitePath, " ") + " / " + e.State + " @ " + e.Browser
}

// Unit is one suite run in one browser: a single page load shared by
// all of the suite's states
type Unit struct {
	Suite   *suite.Suite
	Browser string
}

// SkippedUnit is a suite the filter excluded for a browser
type SkippedUnit struct {
	Suite   *suite.Suite
	Browser string
	Rule    filter.Rule
}

// Plan is the ordered work for a run
type Plan struct {
	Units   []Unit
	Entries []Entry
	Skipped []SkippedUnit
}

// NewPlan walks the tree in declaration order and pairs every suite that
// has states with every browser its filter admits
func NewPlan(tree *suite.Tree, browsers []string) *Plan {
	p := &Plan{}
	tree.Walk(func(s *suite.Suite) {
		if len(s.States) == 0 {
			return
		}
		for _, b := range browsers {
			if !s.Filter.Admits(b) {
				rule, _ := s.Filter.SkipReason(b)
				p.Skipped = append(p.Skipped, SkippedUnit{Suite: s, Browser: b, Rule: rule})
				continue
			}
			p.Units = append(p.Units, Unit{Suite: s, Browser: b})
			for _, st := range s.States {
				p.Entries = append(p.Entries, Entry{
					SuitePath: append([]string(nil), s.Path...),
					State:     st.Name,
					Browser:   b,
				})
			}
		}
	})
	return p
}

// Filter keeps only units whose suite path starts with one of the
// prefixes (space-joined, as FullName renders it)
func (p *Plan) Filter(prefixes []string) *Plan {
	if len(prefixes) == 0 {
		return p
	}
	keep := func(s *suite.Suite) bool {
		name := s.FullName()
		for _, pre := range prefixes {
			if name == pre || strings.HasPrefix(name, pre+" ") {
				return true
			}
		}
		return false
	}

	out := &Plan{}
	for _, u := range p.Units {
		if keep(u.Suite) {
			out.Units = append(out.Units, u)
		}
	}
	for _, e := range p.Entries {
		s := strings.Join(e.SuitePath, " ")
		for _, pre := range prefixes {
			if s == pre || strings.HasPrefix(s, pre+" ") {
				out.Entries = append(out.Entries, e)
				break
			}
		}
	}
	for _, sk := range p.Skipped {
		if keep(sk.Suite) {
			out.Skipped = append(out.Skipped, sk)
		}
	}
	return out
}
