package main

// Mode state machine.
//
//	| State  | Up                      | Down                    | Select-Short                          | Select-Long                        |
//	|--------|-------------------------|-------------------------|---------------------------------------|------------------------------------|
//	| Track  | previous                | next                    | -> Zone, arm zone timer               | vibrate, playpause after debounce  |
//	| Zone   | reset timer, prev_zone  | reset timer, next_zone  | cancel timer, status, -> Track (*)    | vibrate, reset timer, playpause    |
//	| Volume | reset timer, vol_up     | reset timer, vol_down   | cancel timer, -> Zone                 | vibrate, reset timer, playpause    |
//
// (*) With the volume feature enabled, Select-Short in Zone moves on to
// Volume instead, and Track is reached again through the revert timer.

// onButton interprets a click against the current mode. Clicks while the
// surface is detached are ignored without touching state.
func (r *reduction) onButton(ev ButtonPressed) {
	s := r.s
	if !s.UIAttached {
		return
	}

	switch {
	case ev.Button == ButtonSelect && ev.Press == PressLong:
		r.selectLong()
	case ev.Button == ButtonSelect:
		r.selectShort()
	case ev.Button == ButtonUp:
		r.step("previous", "prev_zone", "vol_up")
	case ev.Button == ButtonDown:
		r.step("next", "next_zone", "vol_down")
	}

	r.redraw()
}

// step handles Up/Down. A long press on these buttons counts as a click.
func (r *reduction) step(track, zone, volume string) {
	switch r.s.Mode {
	case ModeTrack:
		r.transmit(track)
	case ModeZone:
		r.armRevert(ModeZone)
		r.transmit(zone)
	case ModeVolume:
		r.armRevert(ModeVolume)
		r.transmit(volume)
	}
}

func (r *reduction) selectShort() {
	s := r.s
	switch s.Mode {
	case ModeTrack:
		s.Mode = ModeZone
		r.armRevert(ModeZone)

	case ModeZone:
		r.cancelRevert(ModeZone)
		if r.cfg.VolumeEnabled {
			s.Mode = ModeVolume
			r.armRevert(ModeVolume)
			return
		}
		// Leaving zone selection asks the host for a full refresh.
		r.transmit("status")
		s.Mode = ModeTrack

	case ModeVolume:
		r.cancelRevert(ModeVolume)
		s.Mode = ModeZone
		r.armRevert(ModeZone)
	}
}

// selectLong toggles playback from any mode. Each long press restarts the
// debounce so a burst yields a single playpause.
func (r *reduction) selectLong() {
	r.emit(CmdVibrate{})
	r.s.armTimer(SlotPlayPause, r.now, r.cfg.PlayPauseDelay)

	// Continued attention keeps the transient mode alive.
	if _, ok := revertSlot(r.s.Mode); ok {
		r.armRevert(r.s.Mode)
	}
}

func (r *reduction) armRevert(m Mode) {
	if slot, ok := revertSlot(m); ok {
		r.s.armTimer(slot, r.now, r.cfg.RevertAfter)
	}
}

func (r *reduction) cancelRevert(m Mode) {
	if slot, ok := revertSlot(m); ok {
		r.s.cancelTimer(slot)
	}
}
