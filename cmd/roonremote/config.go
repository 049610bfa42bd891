package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the roonremote daemon.
//
// Keep defaults and validation centralized so the rest of the code can
// assume a well-formed config.
type Config struct {
	// Playback host connection
	Host HostConfig `yaml:"host"`

	// Physical buttons
	Input InputConfig `yaml:"input"`

	// IPC configuration (used by remote-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// Render surface / HTTP API
	UI UIConfig `yaml:"ui"`

	// Interaction timing
	Timing TimingConfig `yaml:"timing"`

	Features FeaturesConfig `yaml:"features"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type HostConfig struct {
	WsURL              string `yaml:"ws_url"`
	HandshakeTimeoutMS int    `yaml:"handshake_timeout_ms"`
	RetryIntervalMS    int    `yaml:"retry_interval_ms"`
	OutboxSize         int    `yaml:"outbox_size"`
}

type InputConfig struct {
	// Devices lists evdev nodes to read. Empty disables physical input.
	Devices     []string   `yaml:"devices"`
	LongPressMS int        `yaml:"long_press_ms"`
	Keys        KeysConfig `yaml:"keys"`
}

// KeysConfig lists the evdev key codes bound to each button.
type KeysConfig struct {
	Up     []uint16 `yaml:"up"`
	Down   []uint16 `yaml:"down"`
	Select []uint16 `yaml:"select"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type UIConfig struct {
	// Port for the HTTP server; 0 disables it.
	Port          int  `yaml:"port"`
	AttachOnStart bool `yaml:"attach_on_start"`
}

type TimingConfig struct {
	CooldownMS       int `yaml:"cooldown_ms"`
	RevertAfterMS    int `yaml:"revert_after_ms"`
	PlayPauseDelayMS int `yaml:"playpause_delay_ms"`
}

type FeaturesConfig struct {
	Volume bool `yaml:"volume"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Host: HostConfig{
			WsURL:              defaultHostWsURL,
			HandshakeTimeoutMS: defaultHandshakeTimeoutMS,
			RetryIntervalMS:    defaultRetryIntervalMS,
			OutboxSize:         defaultOutboxSize,
		},
		Input: InputConfig{
			LongPressMS: int(defaultLongPress / time.Millisecond),
			Keys: KeysConfig{
				Up:     []uint16{KEY_UP},
				Down:   []uint16{KEY_DOWN},
				Select: []uint16{KEY_ENTER, KEY_SELECT},
			},
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/roonremote.sock",
		},
		UI: UIConfig{
			Port:          3002,
			AttachOnStart: true,
		},
		Timing: TimingConfig{
			CooldownMS:       int(defaultCooldown / time.Millisecond),
			RevertAfterMS:    int(defaultRevertAfter / time.Millisecond),
			PlayPauseDelayMS: int(defaultPlayPauseDelay / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		// An empty file keeps every default.
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries command-line values that take precedence over the
// config file. A nil pointer means the flag was not set.
type FlagOverrides struct {
	HostWsURL *string

	InputDevices *[]string
	LongPressMS  *int

	IPCSocketPath *string

	UIPort        *int
	AttachOnStart *bool

	CooldownMS       *int
	RevertAfterMS    *int
	PlayPauseDelayMS *int

	VolumeEnabled *bool

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a zero value).
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.HostWsURL != nil {
		cfg.Host.WsURL = *o.HostWsURL
	}
	if o.InputDevices != nil {
		cfg.Input.Devices = append([]string(nil), (*o.InputDevices)...)
	}
	if o.LongPressMS != nil {
		cfg.Input.LongPressMS = *o.LongPressMS
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.UIPort != nil {
		cfg.UI.Port = *o.UIPort
	}
	if o.AttachOnStart != nil {
		cfg.UI.AttachOnStart = *o.AttachOnStart
	}
	if o.CooldownMS != nil {
		cfg.Timing.CooldownMS = *o.CooldownMS
	}
	if o.RevertAfterMS != nil {
		cfg.Timing.RevertAfterMS = *o.RevertAfterMS
	}
	if o.PlayPauseDelayMS != nil {
		cfg.Timing.PlayPauseDelayMS = *o.PlayPauseDelayMS
	}
	if o.VolumeEnabled != nil {
		cfg.Features.Volume = *o.VolumeEnabled
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// It is called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Host
	if c.Host.WsURL == "" {
		return errors.New("host.ws_url must not be empty")
	}
	u, err := url.Parse(c.Host.WsURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("host.ws_url must be a ws:// or wss:// URL, got %q", c.Host.WsURL)
	}
	if c.Host.HandshakeTimeoutMS <= 0 {
		return errors.New("host.handshake_timeout_ms must be > 0")
	}
	if c.Host.RetryIntervalMS <= 0 {
		return errors.New("host.retry_interval_ms must be > 0")
	}
	if c.Host.OutboxSize <= 0 {
		return errors.New("host.outbox_size must be > 0")
	}

	// Input
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if c.Input.LongPressMS <= 0 {
		return errors.New("input.long_press_ms must be > 0")
	}
	if _, err := c.Input.Keys.Keymap(); err != nil {
		return err
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// UI
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return errors.New("ui.port must be between 0 and 65535")
	}

	// Timing
	if c.Timing.CooldownMS <= 0 {
		return errors.New("timing.cooldown_ms must be > 0")
	}
	if c.Timing.RevertAfterMS <= 0 {
		return errors.New("timing.revert_after_ms must be > 0")
	}
	if c.Timing.PlayPauseDelayMS <= 0 {
		return errors.New("timing.playpause_delay_ms must be > 0")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// Keymap builds the evdev keymap. A key code bound to two buttons is an error.
func (k KeysConfig) Keymap() (Keymap, error) {
	km := make(Keymap)
	bind := func(codes []uint16, b Button) error {
		for _, code := range codes {
			if prev, ok := km[code]; ok && prev != b {
				return fmt.Errorf("input.keys: code %d bound to both %s and %s", code, prev, b)
			}
			km[code] = b
		}
		return nil
	}
	if err := bind(k.Up, ButtonUp); err != nil {
		return nil, err
	}
	if err := bind(k.Down, ButtonDown); err != nil {
		return nil, err
	}
	if err := bind(k.Select, ButtonSelect); err != nil {
		return nil, err
	}
	if len(km) == 0 {
		return nil, errors.New("input.keys must bind at least one key")
	}
	return km, nil
}

// ToRemoteConfig converts the file config into the reducer's config.
func (c *Config) ToRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Cooldown:       time.Duration(c.Timing.CooldownMS) * time.Millisecond,
		RevertAfter:    time.Duration(c.Timing.RevertAfterMS) * time.Millisecond,
		PlayPauseDelay: time.Duration(c.Timing.PlayPauseDelayMS) * time.Millisecond,
		VolumeEnabled:  c.Features.Volume,
	}
}

// ToHostLinkConfig converts the host section into the link's config.
func (c *Config) ToHostLinkConfig() HostLinkConfig {
	return HostLinkConfig{
		URL:              c.Host.WsURL,
		HandshakeTimeout: time.Duration(c.Host.HandshakeTimeoutMS) * time.Millisecond,
		RetryInterval:    time.Duration(c.Host.RetryIntervalMS) * time.Millisecond,
		OutboxSize:       c.Host.OutboxSize,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
