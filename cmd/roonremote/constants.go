package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_ENTER  = 28
	KEY_UP     = 103
	KEY_DOWN   = 108
	KEY_SELECT = 0x161
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Interaction timing
const (
	defaultCooldown       = 250 * time.Millisecond  // Minimum spacing between transmitted commands
	defaultRevertAfter    = 4000 * time.Millisecond // Idle time before a transient mode reverts to Track
	defaultPlayPauseDelay = 100 * time.Millisecond  // Debounce for the long-press playpause
	defaultLongPress      = 800 * time.Millisecond  // Hold time for a Select long press
)

// Host link defaults
const (
	defaultHostWsURL          = "ws://127.0.0.1:9330/remote"
	defaultHandshakeTimeoutMS = 2000
	defaultRetryIntervalMS    = 500
	defaultOutboxSize         = 1 // one in-flight message, like a single app-message outbox
)

// Display limits
const (
	maxZoneBytes = 63  // zone name buffer is 64 bytes including terminator
	maxTextBytes = 127 // track title / artist name
)

// Placeholder texts shown until the host pushes real values
const (
	placeholderTrack = "Loading..."
	placeholderZone  = "Connecting..."
)

// volumeUnknown is the sentinel for "no volume reading".
const volumeUnknown = -1
