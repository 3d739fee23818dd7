package scheduler

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/lance13c/stateshot/internal/actions"
)

// fakeDriver hands out in-memory sessions whose DOM is a set of selectors
type fakeDriver struct {
	mu       sync.Mutex
	dom      map[string]int64
	navErr   map[string]error
	sessions []*fakeSession
	onAction func(s *fakeSession, step Step)

	open, maxOpen int
}

func newFakeDriver(selectors ...string) *fakeDriver {
	dom := map[string]int64{}
	for i, s := range selectors {
		dom[s] = int64(i + 1)
	}
	return &fakeDriver{dom: dom, navErr: map[string]error{}}
}

func (d *fakeDriver) Open(_ context.Context, browser string) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	s := &fakeSession{driver: d, browser: browser, resolves: map[string]int{}}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDriver) session(browser string) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sessions {
		if s.browser == browser {
			return s
		}
	}
	return nil
}

type fakeSession struct {
	driver  *fakeDriver
	browser string

	mu          sync.Mutex
	navigations int
	resolves    map[string]int
	performed   []actions.Kind
	captures    int
	closed      bool
}

func (s *fakeSession) Navigate(context.Context, string) error {
	s.mu.Lock()
	s.navigations++
	s.mu.Unlock()
	return s.driver.navErr[s.browser]
}

func (s *fakeSession) ResolveElement(_ context.Context, selectors []string) (actions.ElementRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sel := range selectors {
		s.resolves[sel]++
		if id, ok := s.driver.dom[sel]; ok {
			return actions.ElementRef{Selector: sel, NodeID: id}, nil
		}
	}
	return actions.ElementRef{}, actions.ErrNoMatch
}

func (s *fakeSession) Perform(ctx context.Context, step Step) error {
	s.mu.Lock()
	s.performed = append(s.performed, step.Action.Kind)
	s.mu.Unlock()
	if s.driver.onAction != nil {
		s.driver.onAction(s, step)
	}

	switch step.Action.Kind {
	case actions.KindWaitForShow:
		if _, ok := s.driver.dom[step.Action.Selector]; ok {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	case actions.KindWaitForHide:
		if _, ok := s.driver.dom[step.Action.Selector]; !ok {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	case actions.KindSendFile:
		return errors.New("file chooser crashed")
	}
	return nil
}

func (s *fakeSession) ExecuteScript(context.Context, string) (any, error) {
	s.mu.Lock()
	s.performed = append(s.performed, actions.KindExecuteScript)
	s.mu.Unlock()
	return nil, nil
}

func (s *fakeSession) SetWindowSize(context.Context, int, int) error { return nil }

func (s *fakeSession) ChangeOrientation(context.Context) error { return nil }

func (s *fakeSession) Capture(_ context.Context, req CaptureRequest) (*Capture, error) {
	for _, sel := range req.Selectors {
		if _, ok := s.driver.dom[sel]; ok {
			s.mu.Lock()
			s.captures++
			s.mu.Unlock()
			return &Capture{Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}, nil
		}
	}
	return nil, &actions.ElementNotFoundError{Selectors: req.Selectors}
}

func (s *fakeSession) Close() error {
	s.driver.mu.Lock()
	s.driver.open--
	s.driver.mu.Unlock()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// fakeComparer passes everything and remembers the tolerance per key
type fakeComparer struct {
	mu         sync.Mutex
	tolerances map[string]float64
	saved      []string
	missing    bool
}

func newFakeComparer() *fakeComparer {
	return &fakeComparer{tolerances: map[string]float64{}}
}

func (c *fakeComparer) Compare(_ context.Context, key Key, _ *Capture, tolerance float64) (Comparison, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tolerances[key.String()] = tolerance
	if c.missing {
		return Comparison{CurrentPath: "current.png"}, ErrNoBaseline
	}
	return Comparison{Equal: true, CurrentPath: "current.png"}, nil
}

func (c *fakeComparer) Save(_ context.Context, key Key, _ *Capture) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, key.String())
	return key.String() + ".png", nil
}

// collector is a Sink keeping every result
type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) Record(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) find(state, browser string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.results {
		if r.State == state && r.Browser == browser {
			return r, true
		}
	}
	return Result{}, false
}
