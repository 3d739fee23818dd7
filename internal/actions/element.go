package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ElementRef is a resolved element as returned by the automation backend
type ElementRef struct {
	// Selector is the alternative that matched
	Selector string
	// NodeID identifies the node inside the backend's document
	NodeID int64
}

// Resolver looks up the first element matching any of the selectors, in order
type Resolver interface {
	ResolveElement(ctx context.Context, selectors []string) (ElementRef, error)
}

// ErrNoMatch is returned by resolvers when no selector alternative matches
var ErrNoMatch = errors.New("no matching element")

// ElementNotFoundError reports selectors that matched nothing when an
// action or capture needed them
type ElementNotFoundError struct {
	Selectors []string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("could not find element with css selector %s", strings.Join(e.Selectors, " | "))
}

// TimeoutError reports a wait action whose condition stayed unmet
type TimeoutError struct {
	Action  Kind
	Target  string
	Timeout string
}

func (e *TimeoutError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s timed out after %s", e.Action, e.Timeout)
	}
	return fmt.Sprintf("%s %q timed out after %s", e.Action, e.Target, e.Timeout)
}

// Element is a lazy handle on a DOM element. Creating one is free; the
// backend is queried the first time an action needs it, and a successful
// lookup is reused for every later action on the same handle.
type Element struct {
	selectors []string

	mu       sync.Mutex
	ref      ElementRef
	resolved bool
	lookups  int
}

// Find creates a handle for selector, falling back to the alternatives in
// order when the first does not match
func Find(selector string, alternatives ...string) *Element {
	return &Element{selectors: append([]string{selector}, alternatives...)}
}

// FindFunc is what callbacks receive to create element handles
type FindFunc func(selector string, alternatives ...string) *Element

// Selectors returns the selector alternatives of the handle
func (e *Element) Selectors() []string {
	return append([]string(nil), e.selectors...)
}

func (e *Element) String() string {
	return strings.Join(e.selectors, " | ")
}

// Resolve returns the cached reference or queries r for it. A failed
// lookup is not cached.
func (e *Element) Resolve(ctx context.Context, r Resolver) (ElementRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resolved {
		return e.ref, nil
	}

	e.lookups++
	ref, err := r.ResolveElement(ctx, e.selectors)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return ElementRef{}, &ElementNotFoundError{Selectors: e.Selectors()}
		}
		return ElementRef{}, err
	}

	e.ref = ref
	e.resolved = true
	return ref, nil
}

// Lookups reports how many times the backend was queried for this handle
func (e *Element) Lookups() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookups
}
