package filter

import (
	"regexp"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_EmptyAdmitsEverything(t *testing.T) {
	var f Filter
	assert.True(t, f.Empty())
	for _, id := range []string{"chrome", "firefox", ""} {
		assert.True(t, f.Admits(id), id)
	}
}

func TestFilter_SkipWithoutMatchersRejectsAll(t *testing.T) {
	var f Filter
	f.Skip(Rule{})
	for _, id := range []string{"chrome", "firefox", "ie8", ""} {
		assert.False(t, f.Admits(id), id)
	}
	r, ok := f.SkipReason("chrome")
	require.True(t, ok)
	assert.Equal(t, "all browsers", r.String())
}

func TestFilter_AllowListWinsOverSkips(t *testing.T) {
	var f Filter
	f.Skip(Rule{Matchers: []Matcher{Browser("chrome")}})
	f.Allow(Browser("chrome"), Pattern(regexp.MustCompile(`^firefox`)))

	assert.True(t, f.Admits("chrome"))
	assert.True(t, f.Admits("firefox-esr"))
	assert.False(t, f.Admits("safari"))

	_, skipped := f.SkipReason("chrome")
	assert.False(t, skipped)
}

func TestFilter_CommentDoesNotAffectMatching(t *testing.T) {
	var a, b Filter
	a.Skip(Rule{Matchers: []Matcher{Browser("ie8")}, Comment: "flaky gradients"})
	b.Skip(Rule{Matchers: []Matcher{Browser("ie8")}})

	for _, id := range []string{"ie8", "chrome"} {
		assert.Equal(t, a.Admits(id), b.Admits(id), id)
	}
	r, ok := a.SkipReason("ie8")
	require.True(t, ok)
	assert.Equal(t, "flaky gradients", r.Comment)
}

func TestFilter_CloneIsIndependent(t *testing.T) {
	var parent Filter
	parent.Skip(Rule{Matchers: []Matcher{Browser("a")}})

	child := parent.Clone()
	child.Skip(Rule{Matchers: []Matcher{Browser("b")}})

	assert.True(t, parent.Admits("b"))
	assert.False(t, child.Admits("b"))
	assert.False(t, child.Admits("a"))
}

func TestCompile_InvalidExpression(t *testing.T) {
	_, err := Compile("(")
	require.Error(t, err)
}

func TestFilter_RepeatedSkipsEqualOneListSkip_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ids := gen.OneConstOf("a", "b", "ab", "ba", "chrome", "bb", "")

	properties.Property("skip(a).skip(/b/) == skip([a, /b/])", prop.ForAll(
		func(id string) bool {
			var repeated, single Filter
			repeated.Skip(Rule{Matchers: []Matcher{Browser("a")}})
			repeated.Skip(Rule{Matchers: []Matcher{Pattern(regexp.MustCompile("b"))}})
			single.Skip(Rule{Matchers: []Matcher{Browser("a"), Pattern(regexp.MustCompile("b"))}})
			return repeated.Admits(id) == single.Admits(id)
		},
		ids,
	))

	properties.Property("skip() rejects every id", prop.ForAll(
		func(id string) bool {
			var f Filter
			f.Skip(Rule{})
			return !f.Admits(id)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
