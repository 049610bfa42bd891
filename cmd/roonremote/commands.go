package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
// In this codebase, those are host transmissions, haptics and render calls.
type Command interface {
	commandMarker()
	String() string
}

// CmdTransmit sends a command token to the host. CooldownGen identifies the
// throttle cooldown armed for it, so a transport refusal can release it.
type CmdTransmit struct {
	Token       string
	CooldownGen uint64
}

func (CmdTransmit) commandMarker() {}
func (c CmdTransmit) String() string {
	return fmt.Sprintf("CmdTransmit(token=%s)", c.Token)
}

// CmdVibrate requests a short haptic pulse.
type CmdVibrate struct{}

func (CmdVibrate) commandMarker() {}
func (CmdVibrate) String() string { return "CmdVibrate()" }

// CmdSetVisibleMode tells the renderer which mode is active.
type CmdSetVisibleMode struct {
	Mode Mode
}

func (CmdSetVisibleMode) commandMarker()   {}
func (c CmdSetVisibleMode) String() string { return fmt.Sprintf("CmdSetVisibleMode(mode=%s)", c.Mode) }

// CmdSetZoneText updates the zone line; Highlighted is true in Zone mode.
type CmdSetZoneText struct {
	Text        string
	Highlighted bool
}

func (CmdSetZoneText) commandMarker() {}
func (c CmdSetZoneText) String() string {
	return fmt.Sprintf("CmdSetZoneText(text=%q, highlighted=%v)", c.Text, c.Highlighted)
}

// CmdSetTrackText updates the track title.
type CmdSetTrackText struct {
	Text string
}

func (CmdSetTrackText) commandMarker()   {}
func (c CmdSetTrackText) String() string { return fmt.Sprintf("CmdSetTrackText(text=%q)", c.Text) }

// CmdSetArtistText updates the artist line.
type CmdSetArtistText struct {
	Text string
}

func (CmdSetArtistText) commandMarker()   {}
func (c CmdSetArtistText) String() string { return fmt.Sprintf("CmdSetArtistText(text=%q)", c.Text) }

// CmdSetPlayIndicator redraws the play/pause icon.
type CmdSetPlayIndicator struct {
	Playing bool
}

func (CmdSetPlayIndicator) commandMarker() {}
func (c CmdSetPlayIndicator) String() string {
	return fmt.Sprintf("CmdSetPlayIndicator(playing=%v)", c.Playing)
}

// CmdSetVolumeText updates the volume overlay. Only emitted when the volume
// feature is enabled.
type CmdSetVolumeText struct {
	Text    string
	Visible bool
}

func (CmdSetVolumeText) commandMarker() {}
func (c CmdSetVolumeText) String() string {
	return fmt.Sprintf("CmdSetVolumeText(text=%q, visible=%v)", c.Text, c.Visible)
}

// CmdPublishRenderSnapshot delivers a snapshot to a requester.
type CmdPublishRenderSnapshot struct {
	Snapshot RenderSnapshot
	Reply    chan RenderSnapshot
}

func (CmdPublishRenderSnapshot) commandMarker() {}
func (CmdPublishRenderSnapshot) String() string { return "CmdPublishRenderSnapshot()" }
