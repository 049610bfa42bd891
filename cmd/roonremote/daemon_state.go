package main

import (
	"fmt"
	"time"
)

// Mode is the display/interaction context that decides what is rendered and
// what the buttons mean.
type Mode int

const (
	ModeTrack Mode = iota
	ModeZone
	ModeVolume // reachable only when the volume feature is enabled
)

func (m Mode) String() string {
	switch m {
	case ModeTrack:
		return "track"
	case ModeZone:
		return "zone"
	case ModeVolume:
		return "volume"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// AppState is the loop-owned state container.
//
// It is created once at startup and only ever mutated by Reduce on the daemon
// goroutine, so it needs no locking. Renderers never see it directly; they
// receive render commands or a RenderSnapshot.
type AppState struct {
	Mode Mode

	// Host-pushed display facts.
	ZoneName      string
	TrackTitle    string
	ArtistName    string
	IsPlaying     bool
	IsFixedVolume bool
	VolumeLevel   int // volumeUnknown when no reading

	// UIAttached mirrors whether the render surface exists. Every mutation
	// and redraw is conditional on it.
	UIAttached bool

	// Throttle owns ChannelReady and the cooldown timer.
	Throttle ThrottleWindow

	// Auto-revert timers, one per transient mode.
	ZoneRevert   Timer
	VolumeRevert Timer

	// PlayPause is the long-press debounce.
	PlayPause Timer

	// armSeq orders timers that share a deadline.
	armSeq uint64
}

// ThrottleWindow gates outbound transmissions.
type ThrottleWindow struct {
	ChannelReady bool
	Cooldown     Timer
}

// NewAppState returns the startup state.
func NewAppState() *AppState {
	return &AppState{
		Mode:        ModeTrack,
		ZoneName:    placeholderZone,
		TrackTitle:  placeholderTrack,
		VolumeLevel: volumeUnknown,
		Throttle:    ThrottleWindow{ChannelReady: true},
	}
}

// VolumeText is what the volume display shows.
func (s *AppState) VolumeText() string {
	switch {
	case s.IsFixedVolume:
		return "Fixed"
	case s.VolumeLevel == volumeUnknown:
		return "Vol: --"
	default:
		return fmt.Sprintf("Vol: %d", s.VolumeLevel)
	}
}

// RenderSnapshot is a read-only copy of everything the surface displays.
type RenderSnapshot struct {
	Attached        bool   `json:"attached"`
	Mode            string `json:"mode"`
	ZoneName        string `json:"zone_name"`
	ZoneHighlighted bool   `json:"zone_highlighted"`
	TrackTitle      string `json:"track_title"`
	ArtistName      string `json:"artist_name"`
	IsPlaying       bool   `json:"is_playing"`
	VolumeText      string `json:"volume_text,omitempty"`
	VolumeVisible   bool   `json:"volume_visible"`
	ChannelReady    bool   `json:"channel_ready"`
}

// Snapshot copies the displayed fields.
func (s *AppState) Snapshot(cfg RemoteConfig) RenderSnapshot {
	snap := RenderSnapshot{
		Attached:        s.UIAttached,
		Mode:            s.Mode.String(),
		ZoneName:        s.ZoneName,
		ZoneHighlighted: s.Mode == ModeZone,
		TrackTitle:      s.TrackTitle,
		ArtistName:      s.ArtistName,
		IsPlaying:       s.IsPlaying,
		ChannelReady:    s.Throttle.ChannelReady,
	}
	if cfg.VolumeEnabled {
		snap.VolumeText = s.VolumeText()
		snap.VolumeVisible = s.Mode == ModeVolume
	}
	return snap
}

// nextArmSeq returns a monotonically increasing arm sequence number.
func (s *AppState) nextArmSeq() uint64 {
	s.armSeq++
	return s.armSeq
}

// timer returns the timer stored in slot, or nil for an unknown slot.
func (s *AppState) timer(slot TimerSlot) *Timer {
	switch slot {
	case SlotCooldown:
		return &s.Throttle.Cooldown
	case SlotPlayPause:
		return &s.PlayPause
	case SlotZoneRevert:
		return &s.ZoneRevert
	case SlotVolumeRevert:
		return &s.VolumeRevert
	default:
		return nil
	}
}

// armTimer (re)schedules slot d after now. A pending fire is superseded.
func (s *AppState) armTimer(slot TimerSlot, now time.Time, d time.Duration) uint64 {
	t := s.timer(slot)
	if t == nil {
		return 0
	}
	t.arm(now.Add(d), s.nextArmSeq())
	return t.Gen
}

// cancelTimer cancels slot. Any fire already computed for it becomes stale.
func (s *AppState) cancelTimer(slot TimerSlot) {
	if t := s.timer(slot); t != nil {
		t.cancel()
	}
}
