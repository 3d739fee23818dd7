package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/scheduler"
)

const pollInterval = 50 * time.Millisecond

// chromeSession is one tab. It is used by a single unit at a time.
type chromeSession struct {
	profile Profile
	ctx     context.Context
	cancel  context.CancelFunc

	width, height int
	landscape     bool

	// pointer state kept between actions
	mouse   actions.Point
	pressed int64
}

// run executes chromedp actions in the tab, honoring ctx's deadline and
// cancellation without tying the tab's lifetime to ctx
func (s *chromeSession) run(ctx context.Context, acts ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, dl)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, acts...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) device() device.Info {
	return device.Info{
		Name:      s.profile.ID,
		UserAgent: s.profile.UserAgent,
		Width:     int64(s.width),
		Height:    int64(s.height),
		Scale:     s.profile.Scale,
		Landscape: s.landscape,
		Mobile:    s.profile.Mobile,
		Touch:     s.profile.Touch,
	}
}

// emulate applies the current viewport. Without a user agent the
// browser's own one is kept.
func (s *chromeSession) emulate() chromedp.Action {
	if s.profile.UserAgent != "" {
		return chromedp.Emulate(s.device())
	}
	opts := []chromedp.EmulateViewportOption{chromedp.EmulateScale(s.profile.Scale)}
	if s.landscape {
		opts = append(opts, chromedp.EmulateLandscape)
	} else {
		opts = append(opts, chromedp.EmulatePortrait)
	}
	if s.profile.Mobile {
		opts = append(opts, chromedp.EmulateMobile)
	}
	if s.profile.Touch {
		opts = append(opts, chromedp.EmulateTouch)
	}
	return chromedp.EmulateViewport(int64(s.width), int64(s.height), opts...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	logging.Debug("[%s] navigated to %s", s.profile.ID, url)
	return nil
}

// ResolveElement returns the first node matched by the first selector that
// matches anything
func (s *chromeSession) ResolveElement(ctx context.Context, selectors []string) (actions.ElementRef, error) {
	for _, sel := range selectors {
		var nodes []*cdp.Node
		if err := s.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
			return actions.ElementRef{}, fmt.Errorf("querying %q: %w", sel, err)
		}
		if len(nodes) == 0 {
			continue
		}
		return actions.ElementRef{Selector: sel, NodeID: int64(nodes[0].NodeID)}, nil
	}
	return actions.ElementRef{}, actions.ErrNoMatch
}

func (s *chromeSession) Perform(ctx context.Context, step scheduler.Step) error {
	a := step.Action
	switch a.Kind {
	case actions.KindClick:
		return s.click(ctx, step.Target, a.Button, 1)
	case actions.KindDoubleClick:
		if err := s.click(ctx, step.Target, a.Button, 1); err != nil {
			return err
		}
		return s.click(ctx, step.Target, a.Button, 2)
	case actions.KindMouseDown:
		return s.press(ctx, step.Target, a.Button, input.MousePressed)
	case actions.KindMouseUp:
		return s.press(ctx, step.Target, a.Button, input.MouseReleased)
	case actions.KindMouseMove:
		p, err := s.point(ctx, step.Target, a.Offset)
		if err != nil {
			return err
		}
		return s.moveTo(ctx, p)
	case actions.KindDragAndDrop:
		return s.drag(ctx, step.Target, step.Dest)
	case actions.KindFlick:
		return s.flick(ctx, step.Target, *a.Offset, a.Speed)
	case actions.KindTap:
		p, err := s.point(ctx, step.Target, nil)
		if err != nil {
			return err
		}
		return s.run(ctx, input.SynthesizeTapGesture(p.X, p.Y).WithGestureSourceType(input.GestureTouch))
	case actions.KindWaitForShow:
		return s.poll(ctx, visibleExpr(a.Selector))
	case actions.KindWaitForHide:
		return s.poll(ctx, hiddenExpr(a.Selector))
	case actions.KindWaitForCondition:
		return s.poll(ctx, conditionExpr(a.Script))
	case actions.KindSendKeys:
		return s.sendKeys(ctx, step.Target, a.Inputs)
	case actions.KindSendFile:
		return s.withNode(ctx, step.Target, func(ctx context.Context, id cdp.NodeID) error {
			return dom.SetFileInputFiles([]string{a.Path}).WithNodeID(id).Do(ctx)
		})
	case actions.KindFocus:
		return s.withNode(ctx, step.Target, func(ctx context.Context, id cdp.NodeID) error {
			return dom.Focus().WithNodeID(id).Do(ctx)
		})
	}
	return fmt.Errorf("action %s is not supported by chrome", a.Kind)
}

// withNode runs fn against the resolved node, reporting nodes that left
// the document as not found
func (s *chromeSession) withNode(ctx context.Context, ref *actions.ElementRef, fn func(context.Context, cdp.NodeID) error) error {
	if ref == nil {
		return errors.New("action needs an element")
	}
	id := cdp.NodeID(ref.NodeID)
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return fn(ctx, id)
	}))
	if isStaleNode(err) {
		return &actions.ElementNotFoundError{Selectors: []string{ref.Selector}}
	}
	return err
}

func isStaleNode(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "No node with given id") ||
		strings.Contains(msg, "Could not compute box model") ||
		strings.Contains(msg, "Node is detached")
}

// point is where the pointer goes for ref: its center, or offset from its
// top-left corner. A nil ref means the current pointer position.
func (s *chromeSession) point(ctx context.Context, ref *actions.ElementRef, offset *actions.Point) (actions.Point, error) {
	if ref == nil {
		if offset != nil {
			return actions.Point{X: s.mouse.X + offset.X, Y: s.mouse.Y + offset.Y}, nil
		}
		return s.mouse, nil
	}
	var p actions.Point
	err := s.withNode(ctx, ref, func(ctx context.Context, id cdp.NodeID) error {
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(id).Do(ctx); err != nil {
			return err
		}
		box, err := dom.GetBoxModel().WithNodeID(id).Do(ctx)
		if err != nil {
			return err
		}
		var ok bool
		if offset != nil {
			if p, ok = quadTopLeft(box.Border); ok {
				p.X += offset.X
				p.Y += offset.Y
			}
		} else {
			p, ok = quadCenter(box.Border)
		}
		if !ok {
			return fmt.Errorf("Could not compute box model for %s", ref.Selector)
		}
		return nil
	})
	return p, err
}

func mouseButton(b actions.Button) (input.MouseButton, int64) {
	switch b {
	case actions.ButtonMiddle:
		return input.Middle, 4
	case actions.ButtonRight:
		return input.Right, 2
	}
	return input.Left, 1
}

func (s *chromeSession) moveTo(ctx context.Context, p actions.Point) error {
	err := s.run(ctx, input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y).WithButtons(s.pressed))
	if err == nil {
		s.mouse = p
	}
	return err
}

func (s *chromeSession) press(ctx context.Context, ref *actions.ElementRef, b actions.Button, typ input.MouseType) error {
	p, err := s.point(ctx, ref, nil)
	if err != nil {
		return err
	}
	if p != s.mouse {
		if err := s.moveTo(ctx, p); err != nil {
			return err
		}
	}
	btn, mask := mouseButton(b)
	if typ == input.MousePressed {
		s.pressed |= mask
	} else {
		s.pressed &^= mask
	}
	return s.run(ctx, input.DispatchMouseEvent(typ, p.X, p.Y).
		WithButton(btn).
		WithButtons(s.pressed).
		WithClickCount(1))
}

func (s *chromeSession) click(ctx context.Context, ref *actions.ElementRef, b actions.Button, count int64) error {
	p, err := s.point(ctx, ref, nil)
	if err != nil {
		return err
	}
	if err := s.moveTo(ctx, p); err != nil {
		return err
	}
	btn, mask := mouseButton(b)
	return s.run(ctx,
		input.DispatchMouseEvent(input.MousePressed, p.X, p.Y).WithButton(btn).WithButtons(s.pressed|mask).WithClickCount(count),
		input.DispatchMouseEvent(input.MouseReleased, p.X, p.Y).WithButton(btn).WithButtons(s.pressed).WithClickCount(count),
	)
}

func (s *chromeSession) drag(ctx context.Context, from, to *actions.ElementRef) error {
	if err := s.press(ctx, from, actions.ButtonLeft, input.MousePressed); err != nil {
		return err
	}
	dest, err := s.point(ctx, to, nil)
	if err != nil {
		return err
	}
	if err := s.moveTo(ctx, dest); err != nil {
		return err
	}
	return s.press(ctx, to, actions.ButtonLeft, input.MouseReleased)
}

func (s *chromeSession) flick(ctx context.Context, ref *actions.ElementRef, offset actions.Point, speed float64) error {
	start := actions.Point{X: float64(s.width) / 2, Y: float64(s.height) / 2}
	if ref != nil {
		var err error
		if start, err = s.point(ctx, ref, nil); err != nil {
			return err
		}
	}
	gesture := input.SynthesizeScrollGesture(start.X, start.Y).
		WithXDistance(offset.X).
		WithYDistance(offset.Y).
		WithGestureSourceType(input.GestureTouch)
	if speed > 0 {
		gesture = gesture.WithSpeed(int64(speed))
	}
	return s.run(ctx, gesture)
}

func (s *chromeSession) sendKeys(ctx context.Context, ref *actions.ElementRef, inputs []actions.Input) error {
	if ref != nil {
		err := s.withNode(ctx, ref, func(ctx context.Context, id cdp.NodeID) error {
			return dom.Focus().WithNodeID(id).Do(ctx)
		})
		if err != nil {
			return err
		}
	}
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, in := range inputs {
			switch v := in.(type) {
			case actions.Text:
				if err := input.InsertText(string(v)).Do(ctx); err != nil {
					return err
				}
			case actions.Key:
				if err := pressKey(ctx, v); err != nil {
					return err
				}
			}
		}
		return nil
	}))
}

// keyText is the character a key types, if any
func keyText(k actions.Key) string {
	switch k {
	case actions.KeyEnter:
		return "\r"
	case actions.KeySpace:
		return " "
	}
	return ""
}

func pressKey(ctx context.Context, k actions.Key) error {
	code := k.VirtualKeyCode()
	down := input.DispatchKeyEvent(input.KeyRawDown)
	if text := keyText(k); text != "" {
		down = input.DispatchKeyEvent(input.KeyDown).WithText(text).WithUnmodifiedText(text)
	}
	down = down.WithKey(k.Name()).WithCode(k.String()).
		WithWindowsVirtualKeyCode(code).WithNativeVirtualKeyCode(code)
	if err := down.Do(ctx); err != nil {
		return err
	}
	return input.DispatchKeyEvent(input.KeyUp).
		WithKey(k.Name()).WithCode(k.String()).
		WithWindowsVirtualKeyCode(code).WithNativeVirtualKeyCode(code).
		Do(ctx)
}

// poll evaluates expr until it is truthy or ctx expires
func (s *chromeSession) poll(ctx context.Context, expr string) error {
	var timeout time.Duration
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	var ok bool
	err := s.run(ctx, chromedp.Poll(expr, &ok,
		chromedp.WithPollingInterval(pollInterval),
		chromedp.WithPollingTimeout(timeout),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return context.DeadlineExceeded
	}
	return err
}

func (s *chromeSession) ExecuteScript(ctx context.Context, script string) (any, error) {
	var obj *cdpruntime.RemoteObject
	if err := s.run(ctx, chromedp.Evaluate(script, &obj)); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	return obj.Value, nil
}

func (s *chromeSession) SetWindowSize(ctx context.Context, width, height int) error {
	s.width, s.height = width, height
	s.landscape = width > height
	return s.run(ctx, s.emulate())
}

// ChangeOrientation swaps the viewport between portrait and landscape
func (s *chromeSession) ChangeOrientation(ctx context.Context) error {
	var landscape bool
	if err := s.run(ctx, chromedp.Evaluate(orientationScript, &landscape)); err != nil {
		return err
	}
	s.landscape = !landscape
	if s.landscape != (s.width > s.height) {
		s.width, s.height = s.height, s.width
	}
	return s.run(ctx, s.emulate())
}

// Capture screenshots the union of the capture selectors' boxes and maps
// the ignored regions into the image
func (s *chromeSession) Capture(ctx context.Context, req scheduler.CaptureRequest) (*scheduler.Capture, error) {
	var layout captureLayout
	if err := s.run(ctx, chromedp.Evaluate(layoutExpr(req.Selectors, req.Ignore), &layout)); err != nil {
		return nil, fmt.Errorf("measuring capture area: %w", err)
	}
	if layout.Area == nil || layout.Area.empty() {
		return nil, &actions.ElementNotFoundError{Selectors: req.Selectors}
	}
	if len(layout.MissingIgnore) > 0 {
		return nil, &actions.ElementNotFoundError{Selectors: layout.MissingIgnore}
	}

	area := *layout.Area
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			WithClip(&page.Viewport{X: area.X, Y: area.Y, Width: area.W, Height: area.H, Scale: 1}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}

	bounds := img.Bounds()
	scale := float64(bounds.Dx()) / area.W
	var ignore []image.Rectangle
	for _, r := range layout.Ignore {
		if r.empty() {
			continue
		}
		rect := r.toImage(area, scale).Add(bounds.Min).Intersect(bounds)
		if !rect.Empty() {
			ignore = append(ignore, rect)
		}
	}
	return &scheduler.Capture{Image: img, Ignore: ignore}, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
