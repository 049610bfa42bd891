package main

import (
	"sort"
	"time"
)

// TimerSlot names one single-shot timer owned by the state.
type TimerSlot int

const (
	SlotCooldown TimerSlot = iota
	SlotPlayPause
	SlotZoneRevert
	SlotVolumeRevert
	numTimerSlots
)

func (s TimerSlot) String() string {
	switch s {
	case SlotCooldown:
		return "cooldown"
	case SlotPlayPause:
		return "playpause"
	case SlotZoneRevert:
		return "zone_revert"
	case SlotVolumeRevert:
		return "volume_revert"
	default:
		return "unknown"
	}
}

// revertSlot maps a transient mode to its auto-revert timer.
func revertSlot(m Mode) (TimerSlot, bool) {
	switch m {
	case ModeZone:
		return SlotZoneRevert, true
	case ModeVolume:
		return SlotVolumeRevert, true
	default:
		return 0, false
	}
}

// Timer is a pending-or-absent deadline plus a generation counter.
//
// Every arm and cancel bumps Gen, so a TimerFired carrying an older
// generation is recognised as stale no matter how it was delivered.
type Timer struct {
	Deadline time.Time
	Gen      uint64
	Pending  bool

	seq uint64
}

func (t *Timer) arm(deadline time.Time, seq uint64) {
	t.Gen++
	t.Deadline = deadline
	t.Pending = true
	t.seq = seq
}

func (t *Timer) cancel() {
	t.Gen++
	t.Pending = false
}

// claim consumes a fire for generation gen. It reports false for a stale or
// already-consumed fire.
func (t *Timer) claim(gen uint64) bool {
	if !t.Pending || t.Gen != gen {
		return false
	}
	t.Pending = false
	return true
}

// dueTimer is a fire that the loop should deliver.
type dueTimer struct {
	Slot     TimerSlot
	Gen      uint64
	Deadline time.Time
	seq      uint64
}

// dueTimers lists pending timers with a deadline at or before now, earliest
// first; timers sharing a deadline keep the order in which they were armed.
func dueTimers(s *AppState, now time.Time) []dueTimer {
	var due []dueTimer
	for slot := TimerSlot(0); slot < numTimerSlots; slot++ {
		t := s.timer(slot)
		if t == nil || !t.Pending || t.Deadline.After(now) {
			continue
		}
		due = append(due, dueTimer{Slot: slot, Gen: t.Gen, Deadline: t.Deadline, seq: t.seq})
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].Deadline.Equal(due[j].Deadline) {
			return due[i].Deadline.Before(due[j].Deadline)
		}
		return due[i].seq < due[j].seq
	})
	return due
}

// nextDeadline returns the earliest pending deadline.
func nextDeadline(s *AppState) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for slot := TimerSlot(0); slot < numTimerSlots; slot++ {
		t := s.timer(slot)
		if t == nil || !t.Pending {
			continue
		}
		if !found || t.Deadline.Before(best) {
			best = t.Deadline
			found = true
		}
	}
	return best, found
}
