package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
// It can be a button press, a host push, a timer fire, a surface lifecycle
// change, or a report from the effects layer.
type Event interface {
	eventMarker()
}

// TimedEvent stamps an event with the time it is handled. The reducer uses At
// as "now" for arming timers; the loop fills it in on receipt.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// HostMessage is an inbound push from the playback host.
type HostMessage struct {
	Dict Dictionary `json:"dict"`
}

func (HostMessage) eventMarker() {}

// TimerFired is delivered when a slot's deadline passes. Gen must match the
// slot's current generation or the fire is stale.
type TimerFired struct {
	Slot TimerSlot
	Gen  uint64
}

func (TimerFired) eventMarker() {}

// SurfaceAttached signals that the render surface now exists.
type SurfaceAttached struct{}

func (SurfaceAttached) eventMarker() {}

// SurfaceDetached signals that the render surface was torn down.
type SurfaceDetached struct{}

func (SurfaceDetached) eventMarker() {}

// TransmitRejected is emitted by the effects layer when the transport could
// not accept a command. CooldownGen is the cooldown armed for that command.
type TransmitRejected struct {
	Token       string
	CooldownGen uint64
}

func (TransmitRejected) eventMarker() {}

// RequestRenderSnapshot asks the loop for a copy of the displayed state.
// The reducer answers with CmdPublishRenderSnapshot.
type RequestRenderSnapshot struct {
	Reply chan RenderSnapshot
}

func (RequestRenderSnapshot) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps externally-sourced events (IPC, HTTP) with a type
// discriminator. Internal events (timer fires, effect reports, snapshot
// requests) have no wire form.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "button":
		var e ButtonPressed
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("unmarshal ButtonPressed: missing data")
		}
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ButtonPressed: %w", err)
		}
		return e, nil

	case "host_message":
		var e HostMessage
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("unmarshal HostMessage: missing data")
		}
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal HostMessage: %w", err)
		}
		return e, nil

	case "attach":
		return SurfaceAttached{}, nil

	case "detach":
		return SurfaceDetached{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON event envelope
func MarshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	switch e := ev.(type) {
	case ButtonPressed:
		env.Type = "button"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonPressed: %w", err)
		}
		env.Data = data

	case HostMessage:
		env.Type = "host_message"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal HostMessage: %w", err)
		}
		env.Data = data

	case SurfaceAttached:
		env.Type = "attach"

	case SurfaceDetached:
		env.Type = "detach"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", ev)
	}

	return json.Marshal(env)
}
