package main

import (
	"log/slog"
)

// Transport is the outbound half of the host channel. TrySend returns false
// when the channel cannot take a message right now; it never blocks.
type Transport interface {
	TrySend(token string) bool
}

// Renderer is the narrow surface the reducer draws through. Every call is
// fire-and-forget and idempotent.
type Renderer interface {
	SetVisibleMode(m Mode)
	SetZoneText(text string, highlighted bool)
	SetTrackText(text string)
	SetArtistText(text string)
	SetPlayIndicator(playing bool)
	SetVolumeText(text string, visible bool)
}

// Haptics drives the vibration motor.
type Haptics interface {
	ShortPulse()
}

// effects bundles the collaborators commands run against.
type effects struct {
	transport Transport
	renderer  Renderer
	haptics   Haptics
}

// runEffect executes a single reducer-emitted Command (side effect) against external systems
// and emits a report Event via onEvent when the reducer needs to know the outcome.
//
// Design rules:
// - This function is allowed to perform I/O, but must not block.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
func runEffect(
	fx effects,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	switch c := cmd.(type) {
	case CmdTransmit:
		if fx.transport == nil {
			logger.Warn("no host transport; command not sent", "token", c.Token, "error", errNoTransport{})
			emit(onEvent, TransmitRejected{Token: c.Token, CooldownGen: c.CooldownGen})
			return
		}
		if !fx.transport.TrySend(c.Token) {
			// Transient: the next user action will try again.
			logger.Debug("host channel busy; command not sent", "token", c.Token)
			emit(onEvent, TransmitRejected{Token: c.Token, CooldownGen: c.CooldownGen})
			return
		}
		logger.Info("TX", "token", c.Token)

	case CmdVibrate:
		if fx.haptics != nil {
			fx.haptics.ShortPulse()
		}

	case CmdSetVisibleMode:
		if fx.renderer != nil {
			fx.renderer.SetVisibleMode(c.Mode)
		}

	case CmdSetZoneText:
		if fx.renderer != nil {
			fx.renderer.SetZoneText(c.Text, c.Highlighted)
		}

	case CmdSetTrackText:
		if fx.renderer != nil {
			fx.renderer.SetTrackText(c.Text)
		}

	case CmdSetArtistText:
		if fx.renderer != nil {
			fx.renderer.SetArtistText(c.Text)
		}

	case CmdSetPlayIndicator:
		if fx.renderer != nil {
			fx.renderer.SetPlayIndicator(c.Playing)
		}

	case CmdSetVolumeText:
		if fx.renderer != nil {
			fx.renderer.SetVolumeText(c.Text, c.Visible)
		}

	case CmdPublishRenderSnapshot:
		// Deliver reducer-produced snapshot to the requester.
		if c.Reply == nil {
			logger.Warn("render snapshot requested with nil reply channel")
			return
		}

		// Never block the loop.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("render snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}

func emit(onEvent func(Event), ev Event) {
	if onEvent != nil {
		onEvent(ev)
	}
}

// errNoTransport indicates the daemon was asked to transmit without a host transport.
type errNoTransport struct{}

func (errNoTransport) Error() string { return "no host transport" }
