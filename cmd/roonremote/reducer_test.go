package main

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func attachedState() *AppState {
	s := NewAppState()
	s.UIAttached = true
	return s
}

func fullHostMessage() HostMessage {
	return HostMessage{Dict: Dictionary{Tuples: []Tuple{
		CStringTuple(KeyZoneName, "Kitchen"),
		CStringTuple(KeyTrack, "Teardrop"),
		CStringTuple(KeyArtist, "Massive Attack"),
		IntTuple(KeyIsPlaying, 1, 1),
		IntTuple(KeyVolumeLevel, 2, -12),
		IntTuple(KeyIsFixed, 1, 0),
	}}}
}

func TestReducer_ZoneOnlyMessageInTrackMode(t *testing.T) {
	h := newHarness(t, RemoteConfig{})

	h.host(0, CStringTuple(KeyZoneName, "Kitchen"))

	if got := h.state().ZoneName; got != "Kitchen" {
		t.Fatalf("zone name = %q, want Kitchen", got)
	}
	h.wantMode(ModeTrack)

	if len(h.surface.calls) != 1 {
		t.Fatalf("expected exactly one render call, got %+v", h.surface.calls)
	}
	c := h.surface.calls[0]
	if c.Op != "zone" || c.Text != "Kitchen" || c.Flag {
		t.Fatalf("render call = %+v, want zone Kitchen unhighlighted", c)
	}
}

func TestReducer_HostMessageNeverChangesModeOrTimers(t *testing.T) {
	cfg := RemoteConfig{VolumeEnabled: true}

	for _, mode := range []Mode{ModeTrack, ModeZone, ModeVolume} {
		t.Run(mode.String(), func(t *testing.T) {
			s := attachedState()
			s.Mode = mode
			if slot, ok := revertSlot(mode); ok {
				s.armTimer(slot, t0, defaultRevertAfter)
			}
			s.armTimer(SlotPlayPause, t0, defaultPlayPauseDelay)
			s.Throttle.ChannelReady = false
			s.armTimer(SlotCooldown, t0, defaultCooldown)

			zr, vr, pp, cd := s.ZoneRevert, s.VolumeRevert, s.PlayPause, s.Throttle.Cooldown

			rr := Reduce(s, TimedEvent{Event: fullHostMessage(), At: t0.Add(time.Millisecond)}, cfg)

			if rr.State.Mode != mode {
				t.Fatalf("mode = %s, want %s", rr.State.Mode, mode)
			}
			if rr.State.ZoneRevert != zr || rr.State.VolumeRevert != vr || rr.State.PlayPause != pp || rr.State.Throttle.Cooldown != cd {
				t.Fatalf("host message touched a timer")
			}
			if rr.State.Throttle.ChannelReady {
				t.Fatalf("host message touched the throttle")
			}
			for _, c := range rr.Commands {
				if _, ok := c.(CmdTransmit); ok {
					t.Fatalf("host message caused a transmit: %v", c)
				}
			}
		})
	}
}

func TestReducer_HostMessageIsIdempotent(t *testing.T) {
	s := attachedState()
	cfg := RemoteConfig{VolumeEnabled: true}
	msg := fullHostMessage()

	rr := Reduce(s, TimedEvent{Event: msg, At: t0}, cfg)
	once := *rr.State

	rr = Reduce(rr.State, TimedEvent{Event: msg, At: t0.Add(time.Second)}, cfg)
	if *rr.State != once {
		t.Fatalf("replaying a host message changed state:\n got %+v\nwant %+v", *rr.State, once)
	}
}

func TestReducer_HostMessageFields(t *testing.T) {
	s := attachedState()
	rr := Reduce(s, TimedEvent{Event: fullHostMessage(), At: t0}, RemoteConfig{})

	st := rr.State
	if st.ZoneName != "Kitchen" || st.TrackTitle != "Teardrop" || st.ArtistName != "Massive Attack" {
		t.Fatalf("texts = %q/%q/%q", st.ZoneName, st.TrackTitle, st.ArtistName)
	}
	if !st.IsPlaying || st.IsFixedVolume || st.VolumeLevel != -12 {
		t.Fatalf("playing=%v fixed=%v volume=%d", st.IsPlaying, st.IsFixedVolume, st.VolumeLevel)
	}

	var sawPlay bool
	for _, c := range rr.Commands {
		switch c := c.(type) {
		case CmdSetPlayIndicator:
			sawPlay = c.Playing
		case CmdSetVolumeText:
			t.Fatalf("volume text emitted with the feature disabled: %v", c)
		}
	}
	if !sawPlay {
		t.Fatalf("expected play indicator refresh, got %v", rr.Commands)
	}
}

func TestReducer_VolumeTextRefreshOnlyInVolumeMode(t *testing.T) {
	cfg := RemoteConfig{VolumeEnabled: true}

	s := attachedState()
	rr := Reduce(s, TimedEvent{Event: HostMessage{Dict: Dictionary{Tuples: []Tuple{IntTuple(KeyVolumeLevel, 1, 42)}}}, At: t0}, cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("expected no render outside volume mode, got %v", rr.Commands)
	}

	s.Mode = ModeVolume
	rr = Reduce(s, TimedEvent{Event: HostMessage{Dict: Dictionary{Tuples: []Tuple{IntTuple(KeyVolumeLevel, 1, 43)}}}, At: t0}, cfg)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected one volume render, got %v", rr.Commands)
	}
	if c, ok := rr.Commands[0].(CmdSetVolumeText); !ok || c.Text != "Vol: 43" || !c.Visible {
		t.Fatalf("command = %v, want visible Vol: 43", rr.Commands[0])
	}

	rr = Reduce(s, TimedEvent{Event: HostMessage{Dict: Dictionary{Tuples: []Tuple{IntTuple(KeyIsFixed, 1, 1)}}}, At: t0}, cfg)
	if c, ok := rr.Commands[0].(CmdSetVolumeText); !ok || c.Text != "Fixed" {
		t.Fatalf("command = %v, want Fixed", rr.Commands[0])
	}
}

func TestReducer_HostMessageIgnoredWhileDetached(t *testing.T) {
	s := NewAppState()
	rr := Reduce(s, TimedEvent{Event: fullHostMessage(), At: t0}, RemoteConfig{})

	if rr.State.ZoneName != placeholderZone || rr.State.TrackTitle != placeholderTrack {
		t.Fatalf("detached state mutated: %+v", rr.State)
	}
	if len(rr.Commands) != 0 {
		t.Fatalf("expected no commands while detached, got %v", rr.Commands)
	}
}

func TestReducer_RevertFireIsNoOpOutsideOwningMode(t *testing.T) {
	cfg := RemoteConfig{VolumeEnabled: true}

	for _, mode := range []Mode{ModeTrack, ModeVolume} {
		s := attachedState()
		gen := s.armTimer(SlotZoneRevert, t0, defaultRevertAfter)
		s.Mode = mode

		rr := Reduce(s, TimedEvent{Event: TimerFired{Slot: SlotZoneRevert, Gen: gen}, At: t0.Add(defaultRevertAfter)}, cfg)
		if rr.State.Mode != mode {
			t.Fatalf("zone fire in %s changed mode to %s", mode, rr.State.Mode)
		}
		if len(rr.Commands) != 0 {
			t.Fatalf("zone fire in %s emitted %v", mode, rr.Commands)
		}
	}
}

func TestReducer_RearmSupersedesPreviousFire(t *testing.T) {
	s := attachedState()
	s.Mode = ModeZone
	first := s.armTimer(SlotZoneRevert, t0, defaultRevertAfter)
	second := s.armTimer(SlotZoneRevert, t0.Add(time.Second), defaultRevertAfter)

	if first == second {
		t.Fatalf("re-arm kept generation %d", first)
	}

	rr := Reduce(s, TimedEvent{Event: TimerFired{Slot: SlotZoneRevert, Gen: first}, At: t0.Add(defaultRevertAfter)}, RemoteConfig{})
	if rr.State.Mode != ModeZone || len(rr.Commands) != 0 {
		t.Fatalf("stale fire acted: mode=%s commands=%v", rr.State.Mode, rr.Commands)
	}

	rr = Reduce(s, TimedEvent{Event: TimerFired{Slot: SlotZoneRevert, Gen: second}, At: t0.Add(time.Second + defaultRevertAfter)}, RemoteConfig{})
	if rr.State.Mode != ModeTrack {
		t.Fatalf("current fire did not revert: mode=%s", rr.State.Mode)
	}

	s.Mode = ModeZone
	rr = Reduce(s, TimedEvent{Event: TimerFired{Slot: SlotZoneRevert, Gen: second}, At: t0.Add(time.Second + defaultRevertAfter)}, RemoteConfig{})
	if rr.State.Mode != ModeZone {
		t.Fatalf("a fire was delivered twice")
	}
}

func TestThrottle_WindowCountsFromMostRecentTransmit(t *testing.T) {
	h := newHarness(t, RemoteConfig{})

	h.click(0, ButtonUp)
	h.click(249, ButtonDown)
	h.click(250, ButtonDown)
	h.click(499, ButtonUp)
	h.click(500, ButtonUp)

	h.wantSent("previous", "next", "previous")
}

func TestThrottle_TransportRefusalReleasesCooldown(t *testing.T) {
	h := newHarness(t, RemoteConfig{})

	h.tr.refuse = true
	h.click(0, ButtonUp)
	if len(h.tr.refused) != 1 {
		t.Fatalf("expected the transport to be tried once, got %v", h.tr.refused)
	}
	s := h.state()
	if !s.Throttle.ChannelReady || s.Throttle.Cooldown.Pending {
		t.Fatalf("cooldown held after refusal: ready=%v pending=%v", s.Throttle.ChannelReady, s.Throttle.Cooldown.Pending)
	}

	h.tr.refuse = false
	h.click(10, ButtonUp)
	h.wantSent("previous")
}

func TestThrottle_StaleRejectionIgnored(t *testing.T) {
	s := attachedState()
	cfg := RemoteConfig{}

	rr := Reduce(s, TimedEvent{Event: ButtonPressed{Button: ButtonUp}, At: t0}, cfg)
	first := findTransmit(t, rr.Commands)

	rr = Reduce(s, TimedEvent{Event: TimerFired{Slot: SlotCooldown, Gen: first.CooldownGen}, At: t0.Add(defaultCooldown)}, cfg)
	if !rr.State.Throttle.ChannelReady {
		t.Fatalf("cooldown fire did not release the channel")
	}

	rr = Reduce(s, TimedEvent{Event: ButtonPressed{Button: ButtonDown}, At: t0.Add(defaultCooldown)}, cfg)
	findTransmit(t, rr.Commands)

	rr = Reduce(s, TimedEvent{Event: TransmitRejected{Token: first.Token, CooldownGen: first.CooldownGen}, At: t0.Add(defaultCooldown)}, cfg)
	if rr.State.Throttle.ChannelReady {
		t.Fatalf("rejection for an older send released the current cooldown")
	}
}

func TestThrottle_DroppedTokensReported(t *testing.T) {
	s := attachedState()
	cfg := RemoteConfig{}

	Reduce(s, TimedEvent{Event: ButtonPressed{Button: ButtonUp}, At: t0}, cfg)
	rr := Reduce(s, TimedEvent{Event: ButtonPressed{Button: ButtonDown}, At: t0.Add(10 * time.Millisecond)}, cfg)

	if len(rr.Dropped) != 1 || rr.Dropped[0] != "next" {
		t.Fatalf("dropped = %v, want [next]", rr.Dropped)
	}
}

func TestReducer_AttachRendersEverything(t *testing.T) {
	s := NewAppState()
	rr := Reduce(s, TimedEvent{Event: SurfaceAttached{}, At: t0}, RemoteConfig{VolumeEnabled: true})

	if !rr.State.UIAttached {
		t.Fatalf("attach did not set UIAttached")
	}

	want := []string{"CmdSetVisibleMode", "CmdSetZoneText", "CmdSetTrackText", "CmdSetArtistText", "CmdSetPlayIndicator", "CmdSetVolumeText"}
	if len(rr.Commands) != len(want) {
		t.Fatalf("commands = %v", rr.Commands)
	}
	if c, ok := rr.Commands[2].(CmdSetTrackText); !ok || c.Text != placeholderTrack {
		t.Fatalf("track text = %v, want placeholder", rr.Commands[2])
	}
	if c, ok := rr.Commands[5].(CmdSetVolumeText); !ok || c.Text != "Vol: --" || c.Visible {
		t.Fatalf("volume text = %v, want hidden Vol: --", rr.Commands[5])
	}
}

func TestReducer_SnapshotThroughEngine(t *testing.T) {
	h := newHarness(t, RemoteConfig{})
	h.click(0, ButtonSelect)

	reply := make(chan RenderSnapshot, 1)
	h.eng.dispatch(RequestRenderSnapshot{Reply: reply}, h.at(10))

	select {
	case snap := <-reply:
		if !snap.Attached || snap.Mode != "zone" || !snap.ZoneHighlighted {
			t.Fatalf("snapshot = %+v", snap)
		}
		if snap.ZoneName != placeholderZone || snap.TrackTitle != placeholderTrack {
			t.Fatalf("snapshot texts = %q/%q", snap.ZoneName, snap.TrackTitle)
		}
	default:
		t.Fatalf("no snapshot delivered")
	}
}

func TestAppState_VolumeText(t *testing.T) {
	tests := []struct {
		fixed bool
		level int
		want  string
	}{
		{false, volumeUnknown, "Vol: --"},
		{false, 0, "Vol: 0"},
		{false, 55, "Vol: 55"},
		{true, 55, "Fixed"},
	}
	for _, tt := range tests {
		s := &AppState{IsFixedVolume: tt.fixed, VolumeLevel: tt.level}
		if got := s.VolumeText(); got != tt.want {
			t.Errorf("VolumeText(fixed=%v, level=%d) = %q, want %q", tt.fixed, tt.level, got, tt.want)
		}
	}
}

func findTransmit(t *testing.T, cmds []Command) CmdTransmit {
	t.Helper()
	for _, c := range cmds {
		if tx, ok := c.(CmdTransmit); ok {
			return tx
		}
	}
	t.Fatalf("no CmdTransmit in %v", cmds)
	return CmdTransmit{}
}
