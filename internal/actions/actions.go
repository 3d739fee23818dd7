package actions

import (
	"time"
)

// DefaultWaitTimeout applies to wait-for actions that do not set one
const DefaultWaitTimeout = 1000 * time.Millisecond

// Kind tags an Action record
type Kind string

const (
	KindClick             Kind = "click"
	KindDoubleClick       Kind = "doubleClick"
	KindMouseDown         Kind = "mouseDown"
	KindMouseUp           Kind = "mouseUp"
	KindMouseMove         Kind = "mouseMove"
	KindDragAndDrop       Kind = "dragAndDrop"
	KindFlick             Kind = "flick"
	KindExecuteScript     Kind = "executeJS"
	KindWait              Kind = "wait"
	KindWaitForShow       Kind = "waitForElementToShow"
	KindWaitForHide       Kind = "waitForElementToHide"
	KindWaitForCondition  Kind = "waitForJSCondition"
	KindSendKeys          Kind = "sendKeys"
	KindSendFile          Kind = "sendFile"
	KindFocus             Kind = "focus"
	KindSetWindowSize     Kind = "setWindowSize"
	KindTap               Kind = "tap"
	KindChangeOrientation Kind = "changeOrientation"
)

// Point is a pixel offset
type Point struct {
	X, Y float64
}

// Action is one recorded step. Only the fields relevant to Kind are set.
type Action struct {
	Kind Kind

	Target *Element
	Dest   *Element
	Offset *Point
	Button Button

	// Selector is used by the wait-for-element actions, which take a raw
	// selector rather than a handle
	Selector string
	Script   string
	Inputs   []Input
	Path     string
	Width    int
	Height   int
	Speed    float64

	Duration time.Duration
	Timeout  time.Duration
}

// Elements returns the handles the action touches, in resolution order
func (a Action) Elements() []*Element {
	var out []*Element
	if a.Target != nil {
		out = append(out, a.Target)
	}
	if a.Dest != nil {
		out = append(out, a.Dest)
	}
	return out
}

// Scope is the scratch space of one suite run in one browser. The before
// hook, every state callback and the after hook of that run share it.
type Scope map[string]any

// Element returns the handle stored under name, if any
func (s Scope) Element(name string) (*Element, bool) {
	el, ok := s[name].(*Element)
	return el, ok
}

// Callback records actions for a hook or a state
type Callback func(acts *Actions, find FindFunc, scope Scope)

// Actions accumulates the steps of one hook or state. Nothing runs until
// the scheduler executes the recorded sequence.
type Actions struct {
	steps []Action
}

// New returns an empty sequence
func New() *Actions {
	return &Actions{}
}

// Steps returns a copy of the recorded sequence
func (a *Actions) Steps() []Action {
	return append([]Action(nil), a.steps...)
}

// Len returns the number of recorded steps
func (a *Actions) Len() int {
	return len(a.steps)
}

func (a *Actions) add(step Action) *Actions {
	a.steps = append(a.steps, step)
	return a
}

// Click clicks el with the given button (left when omitted)
func (a *Actions) Click(el *Element, button ...Button) *Actions {
	return a.add(Action{Kind: KindClick, Target: el, Button: firstButton(button)})
}

// DoubleClick double-clicks el
func (a *Actions) DoubleClick(el *Element, button ...Button) *Actions {
	return a.add(Action{Kind: KindDoubleClick, Target: el, Button: firstButton(button)})
}

// MouseDown presses a button over el
func (a *Actions) MouseDown(el *Element, button ...Button) *Actions {
	return a.add(Action{Kind: KindMouseDown, Target: el, Button: firstButton(button)})
}

// MouseUp releases a button over el. A nil el releases at the current position.
func (a *Actions) MouseUp(el *Element, button ...Button) *Actions {
	return a.add(Action{Kind: KindMouseUp, Target: el, Button: firstButton(button)})
}

// MouseMove moves the pointer to el, optionally offset from its top-left
// corner; without an offset the pointer goes to the element's center
func (a *Actions) MouseMove(el *Element, offset ...Point) *Actions {
	step := Action{Kind: KindMouseMove, Target: el}
	if len(offset) > 0 {
		p := offset[0]
		step.Offset = &p
	}
	return a.add(step)
}

// DragAndDrop drags el onto dest
func (a *Actions) DragAndDrop(el, dest *Element) *Actions {
	return a.add(Action{Kind: KindDragAndDrop, Target: el, Dest: dest})
}

// Flick performs a touch flick by offset at speed (pixels per second),
// starting on el or at the viewport center when el is nil
func (a *Actions) Flick(offset Point, speed float64, el *Element) *Actions {
	p := offset
	return a.add(Action{Kind: KindFlick, Target: el, Offset: &p, Speed: speed})
}

// ExecuteJS runs script in the page
func (a *Actions) ExecuteJS(script string) *Actions {
	return a.add(Action{Kind: KindExecuteScript, Script: script})
}

// Wait pauses for d. As the last step of a state it delays the capture.
func (a *Actions) Wait(d time.Duration) *Actions {
	return a.add(Action{Kind: KindWait, Duration: d})
}

// WaitForElementToShow waits until selector is visible
func (a *Actions) WaitForElementToShow(selector string, timeout ...time.Duration) *Actions {
	return a.add(Action{Kind: KindWaitForShow, Selector: selector, Timeout: firstTimeout(timeout)})
}

// WaitForElementToHide waits until selector is hidden or gone
func (a *Actions) WaitForElementToHide(selector string, timeout ...time.Duration) *Actions {
	return a.add(Action{Kind: KindWaitForHide, Selector: selector, Timeout: firstTimeout(timeout)})
}

// WaitForJSCondition waits until script evaluates truthy
func (a *Actions) WaitForJSCondition(script string, timeout ...time.Duration) *Actions {
	return a.add(Action{Kind: KindWaitForCondition, Script: script, Timeout: firstTimeout(timeout)})
}

// SendKeys types into el, or into the focused element when el is nil
func (a *Actions) SendKeys(el *Element, inputs ...Input) *Actions {
	return a.add(Action{Kind: KindSendKeys, Target: el, Inputs: append([]Input(nil), inputs...)})
}

// SendFile sets path on the file input el
func (a *Actions) SendFile(el *Element, path string) *Actions {
	return a.add(Action{Kind: KindSendFile, Target: el, Path: path})
}

// Focus focuses el
func (a *Actions) Focus(el *Element) *Actions {
	return a.add(Action{Kind: KindFocus, Target: el})
}

// SetWindowSize resizes the viewport
func (a *Actions) SetWindowSize(width, height int) *Actions {
	return a.add(Action{Kind: KindSetWindowSize, Width: width, Height: height})
}

// Tap taps el on touch devices
func (a *Actions) Tap(el *Element) *Actions {
	return a.add(Action{Kind: KindTap, Target: el})
}

// ChangeOrientation toggles portrait and landscape
func (a *Actions) ChangeOrientation() *Actions {
	return a.add(Action{Kind: KindChangeOrientation})
}

func firstButton(b []Button) Button {
	if len(b) == 0 {
		return ButtonLeft
	}
	return b[0]
}

func firstTimeout(t []time.Duration) time.Duration {
	if len(t) == 0 || t[0] <= 0 {
		return DefaultWaitTimeout
	}
	return t[0]
}
