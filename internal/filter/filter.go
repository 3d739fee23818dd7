package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher matches a browser id either exactly or by regular expression
type Matcher struct {
	exact   string
	pattern *regexp.Regexp
}

// Browser returns a matcher for one exact browser id
func Browser(id string) Matcher {
	return Matcher{exact: id}
}

// Pattern returns a matcher that admits every id the expression matches
func Pattern(re *regexp.Regexp) Matcher {
	return Matcher{pattern: re}
}

// Compile parses expr and returns a pattern matcher
func Compile(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Matcher{}, fmt.Errorf("invalid browser pattern %q: %w", expr, err)
	}
	return Pattern(re), nil
}

// Match reports whether the browser id satisfies the matcher
func (m Matcher) Match(id string) bool {
	if m.pattern != nil {
		return m.pattern.MatchString(id)
	}
	return m.exact == id
}

// String renders exact ids verbatim and patterns as /expr/
func (m Matcher) String() string {
	if m.pattern != nil {
		return "/" + m.pattern.String() + "/"
	}
	return m.exact
}

// Rule is one skip(...) call. A rule without matchers skips every browser.
type Rule struct {
	Matchers []Matcher
	Comment  string
}

// Matches reports whether the rule covers the browser id
func (r Rule) Matches(id string) bool {
	if len(r.Matchers) == 0 {
		return true
	}
	for _, m := range r.Matchers {
		if m.Match(id) {
			return true
		}
	}
	return false
}

func (r Rule) String() string {
	if len(r.Matchers) == 0 {
		return "all browsers"
	}
	parts := make([]string, len(r.Matchers))
	for i, m := range r.Matchers {
		parts[i] = m.String()
	}
	return strings.Join(parts, ", ")
}

// Filter decides which browsers a suite runs in.
//
// When an allow-list is present it alone decides; otherwise a browser is
// admitted unless one of the skip rules matches it.
type Filter struct {
	allow    []Matcher
	hasAllow bool
	skips    []Rule
}

// Skip adds a skip rule. Rules accumulate across calls.
func (f *Filter) Skip(rule Rule) {
	rule.Matchers = append([]Matcher(nil), rule.Matchers...)
	f.skips = append(f.skips, rule)
}

// Allow extends the allow-list
func (f *Filter) Allow(matchers ...Matcher) {
	f.hasAllow = true
	f.allow = append(f.allow, matchers...)
}

// Admits reports whether the browser id should run
func (f Filter) Admits(id string) bool {
	if f.hasAllow {
		for _, m := range f.allow {
			if m.Match(id) {
				return true
			}
		}
		return false
	}
	_, skipped := f.SkipReason(id)
	return !skipped
}

// SkipReason returns the first skip rule that matches id. Rules never
// apply while an allow-list is set.
func (f Filter) SkipReason(id string) (Rule, bool) {
	if f.hasAllow {
		return Rule{}, false
	}
	for _, r := range f.skips {
		if r.Matches(id) {
			return r, true
		}
	}
	return Rule{}, false
}

// Empty reports whether the filter has neither allow-list nor skip rules
func (f Filter) Empty() bool {
	return !f.hasAllow && len(f.skips) == 0
}

// Clone returns a deep copy so a child suite can extend it independently
func (f Filter) Clone() Filter {
	out := Filter{hasAllow: f.hasAllow}
	if f.allow != nil {
		out.allow = append([]Matcher(nil), f.allow...)
	}
	for _, r := range f.skips {
		out.Skip(r)
	}
	return out
}
