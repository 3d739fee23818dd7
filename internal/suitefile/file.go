// Package suitefile loads suites written in YAML and compiles them into
// the same builder calls a Go suite definition makes.
//
//	suites:
//	  - name: button
//	    url: /buttons
//	    capture: [.buttons]
//	    before:
//	      - find: {name: primary, selector: .buttons .primary}
//	    states:
//	      - name: plain
//	      - name: pressed
//	        actions:
//	          - mouseDown: "@primary"
package suitefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lance13c/stateshot/internal/actions"
	"github.com/lance13c/stateshot/internal/suite"
)

// File is the top level of a suite file
type File struct {
	Suites []SuiteSpec `yaml:"suites"`
}

// SuiteSpec describes one suite and its children
type SuiteSpec struct {
	Name      string       `yaml:"name"`
	URL       string       `yaml:"url"`
	Capture   StringList   `yaml:"capture"`
	Ignore    []IgnoreSpec `yaml:"ignore"`
	Tolerance *float64     `yaml:"tolerance"`
	Skip      []SkipSpec   `yaml:"skip"`
	Browsers  StringList   `yaml:"browsers"`
	Before    []Step       `yaml:"before"`
	After     []Step       `yaml:"after"`
	States    []StateSpec  `yaml:"states"`
	Suites    []SuiteSpec  `yaml:"suites"`
}

// StateSpec is one capture point
type StateSpec struct {
	Name      string   `yaml:"name"`
	Tolerance *float64 `yaml:"tolerance"`
	Actions   []Step   `yaml:"actions"`
}

// SkipSpec excludes browsers. An empty browser list skips all of them.
// Entries written as /expr/ are regular expressions.
type SkipSpec struct {
	Browsers StringList `yaml:"browsers"`
	Comment  string     `yaml:"comment"`
}

// IgnoreSpec is a selector, or a mapping with selector and every
type IgnoreSpec suite.IgnoreRule

func (s *IgnoreSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Selector = node.Value
		return nil
	}
	var rule suite.IgnoreRule
	if err := node.Decode(&rule); err != nil {
		return err
	}
	*s = IgnoreSpec(rule)
	return nil
}

// StringList accepts a single string or a sequence of strings
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = StringList{node.Value}
		return nil
	}
	var items []string
	if err := node.Decode(&items); err != nil {
		return err
	}
	*l = items
	return nil
}

// Duration reads Go duration strings ("1.5s") or plain milliseconds
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration", node.Line)
	}
	if ms, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*d = Duration(time.Duration(ms * float64(time.Millisecond)))
		return nil
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*d = Duration(v)
	return nil
}

// Target names an element: a selector, a list of alternative selectors,
// a mapping with selector and alternatives, or @name for a handle the
// before hook stored in the scope
type Target struct {
	Ref       string
	Selectors []string
}

func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if ref, ok := strings.CutPrefix(node.Value, "@"); ok {
			t.Ref = ref
			return nil
		}
		t.Selectors = []string{node.Value}
	case yaml.SequenceNode:
		if err := node.Decode(&t.Selectors); err != nil {
			return err
		}
	case yaml.MappingNode:
		var m struct {
			Selector     string   `yaml:"selector"`
			Alternatives []string `yaml:"alternatives"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		t.Selectors = append([]string{m.Selector}, m.Alternatives...)
	default:
		return fmt.Errorf("line %d: expected an element", node.Line)
	}
	if len(t.Selectors) == 0 || t.Selectors[0] == "" {
		return fmt.Errorf("line %d: element needs a selector", node.Line)
	}
	return nil
}

func (t Target) String() string {
	if t.Ref != "" {
		return "@" + t.Ref
	}
	return strings.Join(t.Selectors, " | ")
}

// KeyInput is one sendKeys item: a string is typed as text, {key: Enter}
// presses a special key
type KeyInput struct {
	Input actions.Input
}

func (k *KeyInput) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		k.Input = actions.Text(node.Value)
		return nil
	}
	var m struct {
		Key string `yaml:"key"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	key, err := actions.ParseKey(m.Key)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	k.Input = key
	return nil
}

// Point reads [x, y] or {x: .., y: ..}
type Point actions.Point

func (p *Point) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var xy []float64
		if err := node.Decode(&xy); err != nil {
			return err
		}
		if len(xy) != 2 {
			return fmt.Errorf("line %d: offset needs two numbers", node.Line)
		}
		*p = Point{X: xy[0], Y: xy[1]}
		return nil
	}
	var m struct {
		X float64 `yaml:"x"`
		Y float64 `yaml:"y"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	*p = Point{X: m.X, Y: m.Y}
	return nil
}

// FindSpec stores a handle in the scope under Name
type FindSpec struct {
	Name         string   `yaml:"name"`
	Selector     string   `yaml:"selector"`
	Alternatives []string `yaml:"alternatives"`
}

// DragSpec is the value of a dragAndDrop step
type DragSpec struct {
	From Target `yaml:"from"`
	To   Target `yaml:"to"`
}

// Step is one action. The mapping holds exactly one action key; the
// remaining keys are options of that action.
type Step struct {
	Kind actions.Kind
	Line int

	Target  *Target
	Dest    *Target
	Button  actions.Button
	Offset  *Point
	Speed   float64
	Text    string // selector, script, path or window size depending on Kind
	Inputs  []actions.Input
	Delay   time.Duration
	Timeout time.Duration
	Find    *FindSpec
}

// kindFind is the pseudo action that only stores a handle
const kindFind actions.Kind = "find"

var stepKinds = map[string]actions.Kind{}

func init() {
	for _, k := range []actions.Kind{
		actions.KindClick, actions.KindDoubleClick, actions.KindMouseDown, actions.KindMouseUp,
		actions.KindMouseMove, actions.KindDragAndDrop, actions.KindFlick, actions.KindExecuteScript,
		actions.KindWait, actions.KindWaitForShow, actions.KindWaitForHide, actions.KindWaitForCondition,
		actions.KindSendKeys, actions.KindSendFile, actions.KindFocus, actions.KindSetWindowSize,
		actions.KindTap, actions.KindChangeOrientation, kindFind,
	} {
		stepKinds[string(k)] = k
	}
}

func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	s.Line = node.Line
	if node.Kind == yaml.ScalarNode {
		// bare actions that take no value, e.g. "- changeOrientation"
		kind, ok := stepKinds[node.Value]
		if !ok || (kind != actions.KindChangeOrientation && kind != actions.KindMouseUp) {
			return fmt.Errorf("line %d: unknown action %q", node.Line, node.Value)
		}
		s.Kind = kind
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected an action", node.Line)
	}

	var value *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if kind, ok := stepKinds[key.Value]; ok {
			if s.Kind != "" {
				return fmt.Errorf("line %d: step has both %s and %s", key.Line, s.Kind, kind)
			}
			s.Kind, value = kind, val
			continue
		}
		if err := s.option(key.Value, val); err != nil {
			return err
		}
	}
	if s.Kind == "" {
		return fmt.Errorf("line %d: step names no action", node.Line)
	}
	return s.decodeValue(value)
}

func (s *Step) option(name string, val *yaml.Node) error {
	switch name {
	case "button":
		b, err := actions.ParseButton(val.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", val.Line, err)
		}
		s.Button = b
	case "offset":
		var p Point
		if err := val.Decode(&p); err != nil {
			return err
		}
		s.Offset = &p
	case "speed":
		return val.Decode(&s.Speed)
	case "timeout":
		var d Duration
		if err := val.Decode(&d); err != nil {
			return err
		}
		s.Timeout = time.Duration(d)
	case "element":
		var t Target
		if err := val.Decode(&t); err != nil {
			return err
		}
		s.Target = &t
	default:
		return fmt.Errorf("line %d: unknown option %q", val.Line, name)
	}
	return nil
}

func (s *Step) decodeValue(val *yaml.Node) error {
	switch s.Kind {
	case actions.KindClick, actions.KindDoubleClick, actions.KindMouseDown, actions.KindMouseMove,
		actions.KindFocus, actions.KindTap:
		var t Target
		if err := val.Decode(&t); err != nil {
			return err
		}
		s.Target = &t
	case actions.KindMouseUp:
		// a null value releases at the current pointer position
		if val.Tag == "!!null" {
			return nil
		}
		var t Target
		if err := val.Decode(&t); err != nil {
			return err
		}
		s.Target = &t
	case actions.KindDragAndDrop:
		var d DragSpec
		if err := val.Decode(&d); err != nil {
			return err
		}
		s.Target, s.Dest = &d.From, &d.To
	case actions.KindFlick:
		var p Point
		if err := val.Decode(&p); err != nil {
			return err
		}
		s.Offset = &p
	case actions.KindWait:
		var d Duration
		if err := val.Decode(&d); err != nil {
			return err
		}
		s.Delay = time.Duration(d)
	case actions.KindSendKeys:
		var items []KeyInput
		if val.Kind == yaml.ScalarNode {
			items = []KeyInput{{Input: actions.Text(val.Value)}}
		} else if err := val.Decode(&items); err != nil {
			return err
		}
		for _, it := range items {
			s.Inputs = append(s.Inputs, it.Input)
		}
	case actions.KindChangeOrientation:
	case kindFind:
		var f FindSpec
		if err := val.Decode(&f); err != nil {
			return err
		}
		if f.Name == "" || f.Selector == "" {
			return fmt.Errorf("line %d: find needs name and selector", val.Line)
		}
		s.Find = &f
	default:
		// executeJS, waits on selectors or scripts, sendFile, setWindowSize
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: %s expects a string", val.Line, s.Kind)
		}
		s.Text = val.Value
	}
	return nil
}

// Parse decodes a suite file
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &f, nil
}
