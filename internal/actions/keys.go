package actions

import (
	"fmt"
	"strings"
)

// Button is a mouse button
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// ParseButton accepts left, middle or right (empty means left)
func ParseButton(s string) (Button, error) {
	switch strings.ToLower(s) {
	case "", "left":
		return ButtonLeft, nil
	case "middle":
		return ButtonMiddle, nil
	case "right":
		return ButtonRight, nil
	}
	return ButtonLeft, fmt.Errorf("unknown mouse button %q", s)
}

// Input is one item passed to SendKeys: either Text or a Key
type Input interface {
	input()
}

// Text is typed literally
type Text string

func (Text) input() {}

// Key is a special (non-printable) key
type Key int

func (Key) input() {}

const (
	KeyBackspace Key = iota + 1
	KeyTab
	KeyEnter
	KeyShift
	KeyControl
	KeyAlt
	KeyPause
	KeyEscape
	KeySpace
	KeyPageUp
	KeyPageDown
	KeyEnd
	KeyHome
	KeyArrowLeft
	KeyArrowUp
	KeyArrowRight
	KeyArrowDown
	KeyInsert
	KeyDelete
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyMeta
)

type keyInfo struct {
	name string
	code int64
}

var keyTable = map[Key]keyInfo{
	KeyBackspace:  {"Backspace", 8},
	KeyTab:        {"Tab", 9},
	KeyEnter:      {"Enter", 13},
	KeyShift:      {"Shift", 16},
	KeyControl:    {"Control", 17},
	KeyAlt:        {"Alt", 18},
	KeyPause:      {"Pause", 19},
	KeyEscape:     {"Escape", 27},
	KeySpace:      {" ", 32},
	KeyPageUp:     {"PageUp", 33},
	KeyPageDown:   {"PageDown", 34},
	KeyEnd:        {"End", 35},
	KeyHome:       {"Home", 36},
	KeyArrowLeft:  {"ArrowLeft", 37},
	KeyArrowUp:    {"ArrowUp", 38},
	KeyArrowRight: {"ArrowRight", 39},
	KeyArrowDown:  {"ArrowDown", 40},
	KeyInsert:     {"Insert", 45},
	KeyDelete:     {"Delete", 46},
	KeyF1:         {"F1", 112},
	KeyF2:         {"F2", 113},
	KeyF3:         {"F3", 114},
	KeyF4:         {"F4", 115},
	KeyF5:         {"F5", 116},
	KeyF6:         {"F6", 117},
	KeyF7:         {"F7", 118},
	KeyF8:         {"F8", 119},
	KeyF9:         {"F9", 120},
	KeyF10:        {"F10", 121},
	KeyF11:        {"F11", 122},
	KeyF12:        {"F12", 123},
	KeyMeta:       {"Meta", 91},
}

// Name is the DOM KeyboardEvent.key value
func (k Key) Name() string {
	if info, ok := keyTable[k]; ok {
		return info.name
	}
	return ""
}

// VirtualKeyCode is the Windows virtual key code browsers expect
func (k Key) VirtualKeyCode() int64 {
	return keyTable[k].code
}

func (k Key) String() string {
	if n := k.Name(); n != "" {
		if n == " " {
			return "Space"
		}
		return n
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// ParseKey looks a key up by name, case-insensitively
func ParseKey(name string) (Key, error) {
	for k := range keyTable {
		if strings.EqualFold(k.String(), name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", name)
}
