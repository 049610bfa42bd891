package main

import "time"

// This file implements the reducer-style architecture building blocks:
//
//   - Events: inputs to the reducer (button presses, host pushes, timer fires, surface lifecycle)
//   - Commands: side effects requested by the reducer (host transmissions, haptics, render calls)
//   - Reduce(): computes next state + commands, without performing I/O
//
// The reducer must be pure. Timers are plain data inside AppState (deadline +
// generation); the daemon loop decides when a deadline has passed and feeds a
// TimerFired event back in.

// RemoteConfig holds the interaction timings and feature switches.
type RemoteConfig struct {
	Cooldown       time.Duration // minimum spacing between transmissions
	RevertAfter    time.Duration // idle time before a transient mode reverts
	PlayPauseDelay time.Duration // long-press playpause debounce

	// VolumeEnabled makes ModeVolume reachable.
	VolumeEnabled bool
}

func (c RemoteConfig) withDefaults() RemoteConfig {
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	if c.RevertAfter <= 0 {
		c.RevertAfter = defaultRevertAfter
	}
	if c.PlayPauseDelay <= 0 {
		c.PlayPauseDelay = defaultPlayPauseDelay
	}
	return c
}

// ReduceResult is the output of Reduce(): next state plus a set of Commands to execute.
type ReduceResult struct {
	State    *AppState
	Commands []Command

	// Dropped lists command tokens refused by the throttle. Kept for
	// diagnostics only.
	Dropped []string
}

// reduction accumulates the output of a single Reduce call.
type reduction struct {
	s       *AppState
	cfg     RemoteConfig
	now     time.Time
	cmds    []Command
	dropped []string
}

func (r *reduction) emit(cmds ...Command) {
	r.cmds = append(r.cmds, cmds...)
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
//
// The daemon loop must:
// - execute Commands
// - translate effect reports into Events
// - feed those Events back into Reduce()
func Reduce(s *AppState, te TimedEvent, cfg RemoteConfig) ReduceResult {
	if s == nil {
		s = NewAppState()
	}

	r := &reduction{s: s, cfg: cfg.withDefaults(), now: te.At}
	if r.now.IsZero() {
		r.now = time.Now()
	}

	switch ev := te.Event.(type) {
	case ButtonPressed:
		r.onButton(ev)

	case HostMessage:
		r.onHostUpdate(DecodeHostUpdate(ev.Dict))

	case TimerFired:
		r.onTimer(ev)

	case SurfaceAttached:
		r.attach()

	case SurfaceDetached:
		r.detach()

	case TransmitRejected:
		r.onTransmitRejected(ev)

	case RequestRenderSnapshot:
		if ev.Reply != nil {
			r.emit(CmdPublishRenderSnapshot{Snapshot: s.Snapshot(r.cfg), Reply: ev.Reply})
		}

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:    s,
		Commands: r.cmds,
		Dropped:  r.dropped,
	}
}

// onHostUpdate merges host-pushed facts. It never changes the mode and never
// touches timers; only regions that show a changed field are refreshed.
func (r *reduction) onHostUpdate(u HostUpdate) {
	s := r.s
	if !s.UIAttached {
		return
	}

	if u.ZoneName != nil {
		s.ZoneName = *u.ZoneName
		// The zone line is always on screen, only its styling depends on mode.
		r.emit(CmdSetZoneText{Text: s.ZoneName, Highlighted: s.Mode == ModeZone})
	}
	if u.TrackTitle != nil {
		s.TrackTitle = *u.TrackTitle
		r.emit(CmdSetTrackText{Text: s.TrackTitle})
	}
	if u.ArtistName != nil {
		s.ArtistName = *u.ArtistName
		r.emit(CmdSetArtistText{Text: s.ArtistName})
	}
	if u.IsPlaying != nil {
		s.IsPlaying = *u.IsPlaying
		r.emit(CmdSetPlayIndicator{Playing: s.IsPlaying})
	}

	volumeChanged := false
	if u.VolumeLevel != nil {
		s.VolumeLevel = *u.VolumeLevel
		volumeChanged = true
	}
	if u.IsFixed != nil {
		s.IsFixedVolume = *u.IsFixed
		volumeChanged = true
	}
	if volumeChanged && r.cfg.VolumeEnabled && s.Mode == ModeVolume {
		r.emit(CmdSetVolumeText{Text: s.VolumeText(), Visible: true})
	}
}

// onTimer handles a deadline. Stale generations are ignored.
func (r *reduction) onTimer(ev TimerFired) {
	t := r.s.timer(ev.Slot)
	if t == nil || !t.claim(ev.Gen) {
		return
	}

	switch ev.Slot {
	case SlotCooldown:
		r.s.Throttle.ChannelReady = true

	case SlotPlayPause:
		r.transmit("playpause")

	case SlotZoneRevert:
		r.revert(ModeZone)

	case SlotVolumeRevert:
		r.revert(ModeVolume)
	}
}

// revert returns to Track if the owning mode is still active.
func (r *reduction) revert(owner Mode) {
	if r.s.Mode != owner {
		return
	}
	r.s.Mode = ModeTrack
	r.redraw()
}

// attach marks the surface present and pushes everything it displays.
func (r *reduction) attach() {
	s := r.s
	s.UIAttached = true

	r.emit(
		CmdSetVisibleMode{Mode: s.Mode},
		CmdSetZoneText{Text: s.ZoneName, Highlighted: s.Mode == ModeZone},
		CmdSetTrackText{Text: s.TrackTitle},
		CmdSetArtistText{Text: s.ArtistName},
		CmdSetPlayIndicator{Playing: s.IsPlaying},
	)
	if r.cfg.VolumeEnabled {
		r.emit(CmdSetVolumeText{Text: s.VolumeText(), Visible: s.Mode == ModeVolume})
	}
}

// detach cancels the timers that act on the surface so nothing fires into it.
// With the revert timers gone the mode falls back to Track. The cooldown keeps
// running: the channel limit holds across a detach and reattach.
func (r *reduction) detach() {
	s := r.s
	s.UIAttached = false

	s.cancelTimer(SlotPlayPause)
	s.cancelTimer(SlotZoneRevert)
	s.cancelTimer(SlotVolumeRevert)
	s.Mode = ModeTrack
}

// redraw refreshes mode-dependent regions. Called after every handled
// button event, whether or not anything changed.
func (r *reduction) redraw() {
	s := r.s
	if !s.UIAttached {
		return
	}
	r.emit(
		CmdSetVisibleMode{Mode: s.Mode},
		CmdSetZoneText{Text: s.ZoneName, Highlighted: s.Mode == ModeZone},
	)
	if r.cfg.VolumeEnabled {
		r.emit(CmdSetVolumeText{Text: s.VolumeText(), Visible: s.Mode == ModeVolume})
	}
}
