package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// HostLinkConfig configures the websocket connection to the playback host.
type HostLinkConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	RetryInterval    time.Duration

	// OutboxSize is how many frames may wait for the writer. When full,
	// TrySend reports false instead of queueing.
	OutboxSize int
}

// HostLink manages WebSocket communication with the playback host.
//
// Inbound dictionaries become HostMessage events. Outbound commands go
// through TrySend, which never blocks: it reports false while disconnected
// or while the outbox is full, and the caller drops the command.
type HostLink struct {
	cfg    HostLinkConfig
	logger *slog.Logger
	events chan<- Event

	outbox    chan []byte
	connected atomic.Bool
}

// NewHostLink validates the configuration. Call Run to connect.
func NewHostLink(cfg HostLinkConfig, events chan<- Event, logger *slog.Logger) (*HostLink, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid host websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid host websocket URL: scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeoutMS * time.Millisecond
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryIntervalMS * time.Millisecond
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = defaultOutboxSize
	}

	return &HostLink{
		cfg:    cfg,
		logger: logger,
		events: events,
		outbox: make(chan []byte, cfg.OutboxSize),
	}, nil
}

// Connected reports whether a host connection is currently established.
func (h *HostLink) Connected() bool { return h.connected.Load() }

// TrySend enqueues token for the writer. It implements Transport.
func (h *HostLink) TrySend(token string) bool {
	if !h.connected.Load() {
		return false
	}
	frame, err := encodeCommand(token)
	if err != nil {
		h.logger.Warn("encode host command failed", "token", token, "error", err)
		return false
	}
	select {
	case h.outbox <- frame:
		return true
	default:
		return false
	}
}

// encodeCommand wraps a command token as a single-tuple dictionary.
func encodeCommand(token string) ([]byte, error) {
	return json.Marshal(Dictionary{Tuples: []Tuple{CStringTuple(KeyCommand, token)}})
}

// Run connects and reconnects until ctx is canceled.
func (h *HostLink) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		conn, err := h.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.logger.Warn("host connection failed; retrying...", "url", h.cfg.URL, "error", err, "attempt", attempt)
			if !sleepCtx(ctx, h.cfg.RetryInterval) {
				return nil
			}
			continue
		}

		attempt = 0
		h.logger.Info("connected to host", "url", h.cfg.URL)
		err = h.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		h.logger.Warn("host connection lost; reconnecting...", "error", err)
		if !sleepCtx(ctx, h.cfg.RetryInterval) {
			return nil
		}
	}
}

func (h *HostLink) dial(ctx context.Context) (*websocket.Conn, error) {
	d := websocket.Dialer{
		HandshakeTimeout: h.cfg.HandshakeTimeout,
	}
	conn, _, err := d.DialContext(ctx, h.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// serve pumps one connection until it fails or ctx is canceled.
func (h *HostLink) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	// Commands queued for a previous connection are stale by now.
	h.drainOutbox()
	h.connected.Store(true)
	defer h.connected.Store(false)

	readErr := make(chan error, 1)
	go func() {
		readErr <- h.readPump(ctx, conn)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()

		case err := <-readErr:
			return err

		case frame := <-h.outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("write command: %w", err)
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// readPump decodes inbound dictionaries into HostMessage events.
func (h *HostLink) readPump(ctx context.Context, conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if code, text, ok := closeStatus(err); ok {
				return fmt.Errorf("host closed connection: %d %s", code, text)
			}
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var dict Dictionary
		if err := json.Unmarshal(msg, &dict); err != nil {
			h.logger.Warn("malformed host message", "error", err, "bytes", len(msg))
			continue
		}
		h.logger.Debug("RX", "tuples", len(dict.Tuples))

		select {
		case h.events <- HostMessage{Dict: dict}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *HostLink) drainOutbox() {
	for {
		select {
		case <-h.outbox:
		default:
			return
		}
	}
}

// sleepCtx waits for d or until ctx is canceled. It reports whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
