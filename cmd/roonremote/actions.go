package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Actions - user intent from buttons
// ============================================================================
// Input sources (evdev, IPC, HTTP) only ever produce ButtonPressed. What a
// press means depends on the current mode and is decided by the reducer.
// ============================================================================

// Button identifies a physical button.
type Button int

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonSelect
)

func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "up"
	case ButtonDown:
		return "down"
	case ButtonSelect:
		return "select"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// ParseButton accepts "up", "down" or "select".
func ParseButton(s string) (Button, error) {
	switch strings.ToLower(s) {
	case "up":
		return ButtonUp, nil
	case "down":
		return ButtonDown, nil
	case "select":
		return ButtonSelect, nil
	default:
		return 0, fmt.Errorf("unknown button: %q", s)
	}
}

func (b Button) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Button) UnmarshalText(text []byte) error {
	v, err := ParseButton(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Press is how a button was pressed.
type Press int

const (
	PressShort Press = iota
	PressLong
)

func (p Press) String() string {
	if p == PressLong {
		return "long"
	}
	return "short"
}

// ParsePress accepts "short" or "long"; empty means short.
func ParsePress(s string) (Press, error) {
	switch strings.ToLower(s) {
	case "", "short":
		return PressShort, nil
	case "long":
		return PressLong, nil
	default:
		return 0, fmt.Errorf("unknown press kind: %q", s)
	}
}

func (p Press) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Press) UnmarshalText(text []byte) error {
	v, err := ParsePress(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ButtonPressed is a recognised click.
type ButtonPressed struct {
	Button Button `json:"button"`
	Press  Press  `json:"press"`
}

func (ButtonPressed) eventMarker() {}

// UnmarshalJSON requires the button field; press defaults to short.
func (b *ButtonPressed) UnmarshalJSON(data []byte) error {
	var raw struct {
		Button *Button `json:"button"`
		Press  Press   `json:"press"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Button == nil {
		return errors.New("missing button")
	}
	*b = ButtonPressed{Button: *raw.Button, Press: raw.Press}
	return nil
}
