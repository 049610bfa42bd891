package main

import "log/slog"

// logSurface renders to the debug log. It is always installed so a headless
// daemon still shows what the watch face would display.
type logSurface struct {
	logger *slog.Logger
}

func (l logSurface) SetVisibleMode(m Mode) {
	l.logger.Debug("render mode", "mode", m)
}

func (l logSurface) SetZoneText(text string, highlighted bool) {
	l.logger.Debug("render zone", "text", text, "highlighted", highlighted)
}

func (l logSurface) SetTrackText(text string) {
	l.logger.Debug("render track", "text", text)
}

func (l logSurface) SetArtistText(text string) {
	l.logger.Debug("render artist", "text", text)
}

func (l logSurface) SetPlayIndicator(playing bool) {
	l.logger.Debug("render play indicator", "playing", playing)
}

func (l logSurface) SetVolumeText(text string, visible bool) {
	l.logger.Debug("render volume", "text", text, "visible", visible)
}

func (l logSurface) ShortPulse() {
	l.logger.Debug("vibrate")
}

// surfaces fans every render and haptic call out to each member.
type surfaces []interface {
	Renderer
	Haptics
}

func (s surfaces) SetVisibleMode(m Mode) {
	for _, r := range s {
		r.SetVisibleMode(m)
	}
}

func (s surfaces) SetZoneText(text string, highlighted bool) {
	for _, r := range s {
		r.SetZoneText(text, highlighted)
	}
}

func (s surfaces) SetTrackText(text string) {
	for _, r := range s {
		r.SetTrackText(text)
	}
}

func (s surfaces) SetArtistText(text string) {
	for _, r := range s {
		r.SetArtistText(text)
	}
}

func (s surfaces) SetPlayIndicator(playing bool) {
	for _, r := range s {
		r.SetPlayIndicator(playing)
	}
}

func (s surfaces) SetVolumeText(text string, visible bool) {
	for _, r := range s {
		r.SetVolumeText(text, visible)
	}
}

func (s surfaces) ShortPulse() {
	for _, r := range s {
		r.ShortPulse()
	}
}
