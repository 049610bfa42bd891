package main

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

// recordingTransport records every accepted token with the engine time it was
// sent at. Set refuse to simulate a busy channel.
type recordingTransport struct {
	now    func() time.Time
	refuse bool

	sent    []string
	sentAt  []time.Time
	refused []string
}

func (t *recordingTransport) TrySend(token string) bool {
	if t.refuse {
		t.refused = append(t.refused, token)
		return false
	}
	t.sent = append(t.sent, token)
	if t.now != nil {
		t.sentAt = append(t.sentAt, t.now())
	}
	return true
}

type renderCall struct {
	Op   string
	Text string
	Flag bool
	Mode Mode
}

// recordingSurface records render and haptic calls in order.
type recordingSurface struct {
	calls  []renderCall
	pulses int
}

func (r *recordingSurface) SetVisibleMode(m Mode) {
	r.calls = append(r.calls, renderCall{Op: "mode", Mode: m})
}

func (r *recordingSurface) SetZoneText(text string, highlighted bool) {
	r.calls = append(r.calls, renderCall{Op: "zone", Text: text, Flag: highlighted})
}

func (r *recordingSurface) SetTrackText(text string) {
	r.calls = append(r.calls, renderCall{Op: "track", Text: text})
}

func (r *recordingSurface) SetArtistText(text string) {
	r.calls = append(r.calls, renderCall{Op: "artist", Text: text})
}

func (r *recordingSurface) SetPlayIndicator(playing bool) {
	r.calls = append(r.calls, renderCall{Op: "play", Flag: playing})
}

func (r *recordingSurface) SetVolumeText(text string, visible bool) {
	r.calls = append(r.calls, renderCall{Op: "volume", Text: text, Flag: visible})
}

func (r *recordingSurface) ShortPulse() { r.pulses++ }

func (r *recordingSurface) ops(op string) []renderCall {
	var out []renderCall
	for _, c := range r.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingSurface) reset() {
	r.calls = nil
	r.pulses = 0
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness drives an engine on a virtual clock. Times are milliseconds from
// the start instant.
type harness struct {
	t       *testing.T
	eng     *engine
	tr      *recordingTransport
	surface *recordingSurface
	start   time.Time
}

func newHarness(t *testing.T, cfg RemoteConfig) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		tr:      &recordingTransport{},
		surface: &recordingSurface{},
		start:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	h.eng = newEngine(NewAppState(), cfg, effects{
		transport: h.tr,
		renderer:  h.surface,
		haptics:   h.surface,
	}, discardLogger())
	h.tr.now = func() time.Time { return h.eng.now }

	h.eng.dispatch(SurfaceAttached{}, h.start)
	h.surface.reset()
	return h
}

func (h *harness) at(ms int) time.Time {
	return h.start.Add(time.Duration(ms) * time.Millisecond)
}

func (h *harness) ms(at time.Time) int {
	return int(at.Sub(h.start) / time.Millisecond)
}

func (h *harness) press(ms int, b Button, p Press) {
	h.eng.dispatch(ButtonPressed{Button: b, Press: p}, h.at(ms))
}

func (h *harness) click(ms int, b Button) { h.press(ms, b, PressShort) }

func (h *harness) host(ms int, tuples ...Tuple) {
	h.eng.dispatch(HostMessage{Dict: Dictionary{Tuples: tuples}}, h.at(ms))
}

// advanceTo fires every timer due at or before ms.
func (h *harness) advanceTo(ms int) {
	h.eng.advance(h.at(ms))
}

func (h *harness) state() *AppState { return h.eng.state }

func (h *harness) wantMode(want Mode) {
	h.t.Helper()
	if got := h.state().Mode; got != want {
		h.t.Fatalf("mode = %s, want %s", got, want)
	}
}

func (h *harness) wantSent(want ...string) {
	h.t.Helper()
	if len(h.tr.sent) != len(want) {
		h.t.Fatalf("sent = %v, want %v", h.tr.sent, want)
	}
	for i := range want {
		if h.tr.sent[i] != want[i] {
			h.t.Fatalf("sent = %v, want %v", h.tr.sent, want)
		}
	}
}
