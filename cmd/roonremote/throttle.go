package main

// transmit asks the throttle to send token. It is a hard rate limit: while
// the channel is cooling down the token is dropped, never queued. A granted
// send (re)arms the cooldown from now, so the window always counts from the
// most recent transmission.
func (r *reduction) transmit(token string) bool {
	s := r.s
	if !s.UIAttached {
		return false
	}
	if !s.Throttle.ChannelReady {
		r.dropped = append(r.dropped, token)
		return false
	}

	s.Throttle.ChannelReady = false
	gen := s.armTimer(SlotCooldown, r.now, r.cfg.Cooldown)
	r.emit(CmdTransmit{Token: token, CooldownGen: gen})
	return true
}

// onTransmitRejected releases the cooldown armed for a send the transport
// refused, so the next user action can try again immediately. A rejection
// for an older cooldown is ignored.
func (r *reduction) onTransmitRejected(ev TransmitRejected) {
	cd := &r.s.Throttle.Cooldown
	if !cd.Pending || cd.Gen != ev.CooldownGen {
		return
	}
	r.s.cancelTimer(SlotCooldown)
	r.s.Throttle.ChannelReady = true
}
