package browser

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/input"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/config"
	"github.com/lance13c/stateshot/internal/diff"
	"github.com/lance13c/stateshot/internal/scheduler"
	"github.com/lance13c/stateshot/internal/suite"
)

func TestProfilesFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	headless := false
	cfg.Browsers["phone"] = config.BrowserConfig{WindowSize: "375x667", Mobile: true, Scale: 2, Headless: &headless}
	cfg.Browsers["plain"] = config.BrowserConfig{}

	profiles, err := ProfilesFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	phone := profiles["phone"]
	assert.Equal(t, 375, phone.Width)
	assert.Equal(t, 667, phone.Height)
	assert.True(t, phone.Touch, "mobile profiles get touch")
	assert.False(t, phone.Headless)
	assert.False(t, phone.Landscape())

	plain := profiles["plain"]
	assert.Equal(t, defaultWidth, plain.Width)
	assert.Equal(t, 1.0, plain.Scale)
	assert.True(t, plain.Headless)
	assert.True(t, plain.Landscape())

	cfg.Browsers["bad"] = config.BrowserConfig{WindowSize: "wide"}
	_, err = ProfilesFromConfig(cfg)
	assert.ErrorContains(t, err, "browser bad")
}

func TestGeometry(t *testing.T) {
	quad := []float64{10, 20, 30, 20, 30, 60, 10, 60}
	c, ok := quadCenter(quad)
	require.True(t, ok)
	assert.Equal(t, actions.Point{X: 20, Y: 40}, c)

	tl, ok := quadTopLeft(quad)
	require.True(t, ok)
	assert.Equal(t, actions.Point{X: 10, Y: 20}, tl)

	_, ok = quadCenter([]float64{1, 2})
	assert.False(t, ok)

	area := pageRect{X: 100, Y: 50, W: 200, H: 100}
	r := pageRect{X: 110.5, Y: 60, W: 20, H: 10}
	assert.Equal(t, image.Rect(10, 10, 31, 20), r.toImage(area, 1))
	assert.Equal(t, image.Rect(21, 20, 61, 40), r.toImage(area, 2))
}

func TestScriptsQuoteSelectors(t *testing.T) {
	expr := layoutExpr([]string{`a[title="x"]`}, []suite.IgnoreRule{{Selector: ".clock", MatchAll: true}})
	assert.Contains(t, expr, `["a[title=\"x\"]"]`)
	assert.Contains(t, expr, `[{"selector":".clock","every":true}]`)

	empty := layoutExpr([]string{".a"}, nil)
	assert.True(t, strings.HasSuffix(empty, `([".a"], [])`))

	assert.Equal(t, "!!(window.ready)", conditionExpr("window.ready"))
	assert.True(t, strings.HasPrefix(hiddenExpr(".x"), "!(function(sel)"))
}

func TestMouseButtonAndKeys(t *testing.T) {
	btn, mask := mouseButton(actions.ButtonRight)
	assert.Equal(t, input.Right, btn)
	assert.Equal(t, int64(2), mask)
	btn, mask = mouseButton(actions.ButtonLeft)
	assert.Equal(t, input.Left, btn)
	assert.Equal(t, int64(1), mask)

	assert.Equal(t, "\r", keyText(actions.KeyEnter))
	assert.Equal(t, "", keyText(actions.KeyArrowDown))
}

const fixturePage = `<!doctype html>
<html><body>
  <div class="buttons"><button class="primary">Go</button></div>
  <span class="clock">12:00</span>
</body></html>`

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/buttons", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(fixturePage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStaticSession(t *testing.T) {
	srv := fixtureServer(t)
	ctx := context.Background()
	s, err := NewStaticDriver(srv.Client()).Open(ctx, "chrome")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Navigate(ctx, srv.URL+"/buttons"))

	ref, err := s.ResolveElement(ctx, []string{".missing", ".buttons .primary"})
	require.NoError(t, err)
	assert.Equal(t, ".buttons .primary", ref.Selector)

	_, err = s.ResolveElement(ctx, []string{".missing"})
	assert.ErrorIs(t, err, actions.ErrNoMatch)

	c, err := s.Capture(ctx, scheduler.CaptureRequest{
		Selectors: []string{".buttons"},
		Ignore:    []suite.IgnoreRule{{Selector: ".clock"}},
	})
	require.NoError(t, err)
	assert.NotNil(t, c.Image)

	_, err = s.Capture(ctx, scheduler.CaptureRequest{
		Selectors: []string{".buttons"},
		Ignore:    []suite.IgnoreRule{{Selector: ".ad"}},
	})
	var notFound *actions.ElementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{".ad"}, notFound.Selectors)

	err = s.Navigate(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
}

func TestStaticDriverCheckRun(t *testing.T) {
	srv := fixtureServer(t)
	reg := suite.NewRegistry()
	reg.Suite("buttons", func(b *suite.Builder) {
		b.SetURL("/buttons").SetCaptureElements(".buttons").
			Capture("plain", nil).
			Capture("pressed", func(acts *actions.Actions, find actions.FindFunc, _ actions.Scope) {
				acts.MouseDown(find(".primary"))
			}).
			Capture("typo", func(acts *actions.Actions, find actions.FindFunc, _ actions.Scope) {
				acts.Click(find(".primray"))
			}).
			Capture("popup", func(acts *actions.Actions, _ actions.FindFunc, _ actions.Scope) {
				acts.WaitForElementToShow(".popup")
			})
	})
	tree, err := reg.Build()
	require.NoError(t, err)

	var results []scheduler.Result
	sink := scheduler.SinkFunc(func(r scheduler.Result) { results = append(results, r) })
	runner := scheduler.NewRunner(NewStaticDriver(srv.Client()), diff.Discard{}, sink, scheduler.Options{RootURL: srv.URL})
	summary, err := runner.Run(context.Background(), scheduler.NewPlan(tree, []string{"chrome"}))
	require.NoError(t, err)

	outcomes := map[string]scheduler.Outcome{}
	for _, r := range results {
		outcomes[r.State] = r.Outcome
	}
	assert.Equal(t, scheduler.OutcomePassed, outcomes["plain"])
	assert.Equal(t, scheduler.OutcomePassed, outcomes["pressed"])
	assert.Equal(t, scheduler.OutcomeFailed, outcomes["typo"])
	assert.Equal(t, scheduler.OutcomeFailed, outcomes["popup"])
	assert.Equal(t, 2, summary.Counts[scheduler.OutcomeFailed])
}

func devtoolsServer(t *testing.T, respond func(req map[string]any) map[string]any) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		// an unrelated event first, as a real browser may send
		conn.WriteJSON(map[string]any{"method": "Target.targetCreated", "params": map[string]any{}})
		conn.WriteJSON(respond(req))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/devtools/browser/abc"
}

func TestProbeRemote(t *testing.T) {
	url := devtoolsServer(t, func(req map[string]any) map[string]any {
		assert.Equal(t, "Browser.getVersion", req["method"])
		return map[string]any{"id": req["id"], "result": map[string]any{"product": "HeadlessChrome/126.0"}}
	})
	product, err := ProbeRemote(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "HeadlessChrome/126.0", product)
}

func TestProbeRemote_Errors(t *testing.T) {
	url := devtoolsServer(t, func(req map[string]any) map[string]any {
		return map[string]any{"id": req["id"], "error": map[string]any{"code": -32601, "message": "not found"}}
	})
	_, err := ProbeRemote(context.Background(), url)
	assert.ErrorContains(t, err, "not found")

	_, err = ProbeRemote(context.Background(), "ws://127.0.0.1:1/devtools")
	assert.Error(t, err)
}

func TestCDPMessageDecoding(t *testing.T) {
	var msg cdpMessage
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"result":{"product":"x"}}`), &msg))
	assert.Equal(t, 3, msg.ID)
	assert.Equal(t, "x", msg.Result["product"])
}
