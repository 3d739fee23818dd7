package browser

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/scheduler"
)

// StaticDriver checks suites against the HTML a server returns, without
// running any script. It verifies that urls load and that selectors match
// before a real browser run.
type StaticDriver struct {
	client *http.Client
}

// NewStaticDriver creates a static driver. A nil client uses
// http.DefaultClient.
func NewStaticDriver(client *http.Client) *StaticDriver {
	if client == nil {
		client = http.DefaultClient
	}
	return &StaticDriver{client: client}
}

func (d *StaticDriver) Open(_ context.Context, browserID string) (scheduler.Session, error) {
	return &staticSession{client: d.client, browser: browserID}, nil
}

type staticSession struct {
	client  *http.Client
	browser string

	mu    sync.Mutex
	doc   *goquery.Document
	nodes []*goquery.Selection
}

func (s *staticSession) Navigate(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse HTML with goquery: %w", err)
	}
	s.mu.Lock()
	s.doc = doc
	s.nodes = nil
	s.mu.Unlock()
	return nil
}

func (s *staticSession) find(selector string) *goquery.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return &goquery.Selection{}
	}
	return s.doc.Find(selector)
}

func (s *staticSession) ResolveElement(_ context.Context, selectors []string) (actions.ElementRef, error) {
	for _, sel := range selectors {
		match := s.find(sel)
		if match.Length() == 0 {
			continue
		}
		s.mu.Lock()
		s.nodes = append(s.nodes, match.First())
		id := int64(len(s.nodes))
		s.mu.Unlock()
		return actions.ElementRef{Selector: sel, NodeID: id}, nil
	}
	return actions.ElementRef{}, actions.ErrNoMatch
}

// Perform accepts every interaction. Waiting for an element to show only
// succeeds when the served HTML already contains it; conditions that need
// scripts are assumed to hold.
func (s *staticSession) Perform(_ context.Context, step scheduler.Step) error {
	switch step.Action.Kind {
	case actions.KindWaitForShow:
		if s.find(step.Action.Selector).Length() == 0 {
			return context.DeadlineExceeded
		}
	case actions.KindWaitForHide, actions.KindWaitForCondition:
		logging.Debug("[%s] static check cannot evaluate %s, assuming it holds", s.browser, step.Action.Kind)
	}
	return nil
}

func (s *staticSession) ExecuteScript(context.Context, string) (any, error) { return nil, nil }

func (s *staticSession) SetWindowSize(context.Context, int, int) error { return nil }

func (s *staticSession) ChangeOrientation(context.Context) error { return nil }

// Capture checks the capture and ignore selectors and returns a blank
// placeholder image
func (s *staticSession) Capture(_ context.Context, req scheduler.CaptureRequest) (*scheduler.Capture, error) {
	found := false
	for _, sel := range req.Selectors {
		if s.find(sel).Length() > 0 {
			found = true
			break
		}
	}
	if !found {
		return nil, &actions.ElementNotFoundError{Selectors: req.Selectors}
	}
	var missing []string
	for _, rule := range req.Ignore {
		if s.find(rule.Selector).Length() == 0 {
			missing = append(missing, rule.Selector)
		}
	}
	if len(missing) > 0 {
		return nil, &actions.ElementNotFoundError{Selectors: missing}
	}
	return &scheduler.Capture{Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}, nil
}

func (s *staticSession) Close() error { return nil }
