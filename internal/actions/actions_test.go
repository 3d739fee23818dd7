package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	mu      sync.Mutex
	calls   int
	matches map[string]int64
}

func (r *countingResolver) ResolveElement(_ context.Context, selectors []string) (ElementRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, s := range selectors {
		if id, ok := r.matches[s]; ok {
			return ElementRef{Selector: s, NodeID: id}, nil
		}
	}
	return ElementRef{}, ErrNoMatch
}

func TestActions_RecordsInAppendOrder(t *testing.T) {
	btn := Find(".button")
	acts := New()
	acts.MouseMove(btn).
		MouseDown(btn).
		Wait(50 * time.Millisecond).
		MouseUp(btn).
		SendKeys(nil, Text("hello"), KeyEnter)

	steps := acts.Steps()
	require.Len(t, steps, 5)
	kinds := make([]Kind, len(steps))
	for i, s := range steps {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []Kind{KindMouseMove, KindMouseDown, KindWait, KindMouseUp, KindSendKeys}, kinds)
	assert.Equal(t, ButtonLeft, steps[1].Button)
	assert.Equal(t, []Input{Text("hello"), KeyEnter}, steps[4].Inputs)
}

func TestActions_WaitForDefaultsTimeout(t *testing.T) {
	acts := New().
		WaitForElementToShow(".popup").
		WaitForElementToHide(".spinner", 3*time.Second).
		WaitForJSCondition("window.ready")

	steps := acts.Steps()
	assert.Equal(t, DefaultWaitTimeout, steps[0].Timeout)
	assert.Equal(t, 3*time.Second, steps[1].Timeout)
	assert.Equal(t, time.Second, steps[2].Timeout)
}

func TestActions_FindDoesNotResolve(t *testing.T) {
	r := &countingResolver{matches: map[string]int64{".a": 1}}
	el := Find(".a")
	New().Click(el).DoubleClick(el)
	assert.Equal(t, 0, r.calls)
	assert.Equal(t, 0, el.Lookups())
}

func TestElement_ResolvesOnceAcrossActions(t *testing.T) {
	r := &countingResolver{matches: map[string]int64{".buttons": 7}}
	el := Find(".buttons")
	acts := New().MouseMove(el).MouseDown(el).MouseUp(el)

	for _, step := range acts.Steps() {
		for _, h := range step.Elements() {
			ref, err := h.Resolve(context.Background(), r)
			require.NoError(t, err)
			assert.Equal(t, int64(7), ref.NodeID)
		}
	}
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, el.Lookups())
}

func TestElement_FirstMatchingAlternative(t *testing.T) {
	r := &countingResolver{matches: map[string]int64{".fallback": 3}}
	ref, err := Find(".missing", ".fallback").Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, ".fallback", ref.Selector)
}

func TestElement_NotFoundIsNotCached(t *testing.T) {
	r := &countingResolver{matches: map[string]int64{}}
	el := Find(".late")

	_, err := el.Resolve(context.Background(), r)
	var notFound *ElementNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{".late"}, notFound.Selectors)

	r.matches[".late"] = 9
	ref, err := el.Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(9), ref.NodeID)
	assert.Equal(t, 2, r.calls)
}

func TestElement_BackendErrorPassesThrough(t *testing.T) {
	boom := errors.New("socket closed")
	_, err := Find(".x").Resolve(context.Background(), resolverFunc(func(context.Context, []string) (ElementRef, error) {
		return ElementRef{}, boom
	}))
	assert.ErrorIs(t, err, boom)
}

type resolverFunc func(context.Context, []string) (ElementRef, error)

func (f resolverFunc) ResolveElement(ctx context.Context, s []string) (ElementRef, error) {
	return f(ctx, s)
}

func TestScope_Element(t *testing.T) {
	scope := Scope{}
	el := Find(".x")
	scope["button"] = el
	scope["count"] = 3

	got, ok := scope.Element("button")
	require.True(t, ok)
	assert.Same(t, el, got)

	_, ok = scope.Element("count")
	assert.False(t, ok)
}

func TestParseKeyAndButton(t *testing.T) {
	k, err := ParseKey("enter")
	require.NoError(t, err)
	assert.Equal(t, KeyEnter, k)
	assert.Equal(t, int64(13), k.VirtualKeyCode())

	k, err = ParseKey("Space")
	require.NoError(t, err)
	assert.Equal(t, " ", k.Name())

	_, err = ParseKey("hyper")
	assert.Error(t, err)

	b, err := ParseButton("")
	require.NoError(t, err)
	assert.Equal(t, ButtonLeft, b)
	b, err = ParseButton("Right")
	require.NoError(t, err)
	assert.Equal(t, ButtonRight, b)
}
