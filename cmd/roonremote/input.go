package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"time"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// decodeInputEvent parses one raw event record.
func decodeInputEvent(buf []byte) (inputEvent, bool) {
	var ev inputEvent
	if len(buf) < inputEventSize {
		return ev, false
	}
	if err := binary.Read(bytes.NewReader(buf[:inputEventSize]), binary.LittleEndian, &ev); err != nil {
		return ev, false
	}
	return ev, true
}

// Keymap maps evdev key codes to buttons.
type Keymap map[uint16]Button

func defaultKeymap() Keymap {
	return Keymap{
		KEY_UP:     ButtonUp,
		KEY_DOWN:   ButtonDown,
		KEY_ENTER:  ButtonSelect,
		KEY_SELECT: ButtonSelect,
	}
}

// clickRecognizer turns raw key transitions into clicks.
//
// Up and Down click on press. Select clicks Short on release, or Long as soon
// as it has been held for longPress; the release that ends a long press
// produces nothing. Autorepeat is ignored. When several codes map to Select,
// the first one pressed owns the press until it is released.
type clickRecognizer struct {
	keymap    Keymap
	longPress time.Duration

	selectDown bool
	selectCode uint16
	selectAt   time.Time
	longSent   bool
}

func newClickRecognizer(keymap Keymap, longPress time.Duration) *clickRecognizer {
	if keymap == nil {
		keymap = defaultKeymap()
	}
	if longPress <= 0 {
		longPress = defaultLongPress
	}
	return &clickRecognizer{keymap: keymap, longPress: longPress}
}

// onKey feeds one EV_KEY transition observed at now.
func (r *clickRecognizer) onKey(code uint16, value int32, now time.Time) (ButtonPressed, bool) {
	b, ok := r.keymap[code]
	if !ok {
		return ButtonPressed{}, false
	}

	if b != ButtonSelect {
		if value == evValuePress {
			return ButtonPressed{Button: b, Press: PressShort}, true
		}
		return ButtonPressed{}, false
	}

	switch value {
	case evValuePress:
		if !r.selectDown {
			r.selectDown = true
			r.selectCode = code
			r.selectAt = now
			r.longSent = false
		}
	case evValueRelease:
		if !r.selectDown || code != r.selectCode {
			return ButtonPressed{}, false
		}
		r.selectDown = false
		if r.longSent {
			return ButtonPressed{}, false
		}
		if now.Sub(r.selectAt) >= r.longPress {
			return ButtonPressed{Button: ButtonSelect, Press: PressLong}, true
		}
		return ButtonPressed{Button: ButtonSelect, Press: PressShort}, true
	}
	return ButtonPressed{}, false
}

// longDeadline reports when a held Select turns into a long press.
func (r *clickRecognizer) longDeadline() (time.Time, bool) {
	if !r.selectDown || r.longSent {
		return time.Time{}, false
	}
	return r.selectAt.Add(r.longPress), true
}

// onTick emits the long press once its deadline has passed.
func (r *clickRecognizer) onTick(now time.Time) (ButtonPressed, bool) {
	deadline, ok := r.longDeadline()
	if !ok || now.Before(deadline) {
		return ButtonPressed{}, false
	}
	r.longSent = true
	return ButtonPressed{Button: ButtonSelect, Press: PressLong}, true
}

// runClickRecognizer reads raw events until ctx is canceled or raw is closed
// and forwards recognized clicks to out.
func runClickRecognizer(ctx context.Context, raw <-chan inputEvent, out chan<- Event, rec *clickRecognizer, logger *slog.Logger) {
	hold := time.NewTimer(time.Hour)
	hold.Stop()
	defer hold.Stop()

	forward := func(bp ButtonPressed) bool {
		logger.Debug("click", "button", bp.Button, "press", bp.Press)
		select {
		case out <- bp:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		var holdC <-chan time.Time
		if deadline, ok := rec.longDeadline(); ok {
			hold.Reset(max(0, time.Until(deadline)))
			holdC = hold.C
		} else {
			hold.Stop()
		}

		select {
		case <-ctx.Done():
			return

		case ev, ok := <-raw:
			if !ok {
				return
			}
			if ev.Type != EV_KEY {
				continue
			}
			if bp, ok := rec.onKey(ev.Code, ev.Value, time.Now()); ok && !forward(bp) {
				return
			}

		case <-holdC:
			if bp, ok := rec.onTick(time.Now()); ok && !forward(bp) {
				return
			}
		}
	}
}
