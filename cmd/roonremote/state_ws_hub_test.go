package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// Hub tests use clients with a nil conn: only the send queues are exercised.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(discardLogger(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

// runHub starts hub.Run and stops it at test cleanup.
func runHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Errorf("hub did not stop")
		}
	})
}

// attachClient registers a surface client and waits for the hub to see it.
func attachClient(t *testing.T, hub *Hub, name string, queue int) *Client {
	t.Helper()
	c := &Client{hub: hub, send: make(chan []byte, queue), id: name, remoteAddr: name, logger: discardLogger()}
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, name+" not registered")
	return c
}

func expectFrame(t *testing.T, c *Client, want []byte) {
	t.Helper()
	select {
	case got := <-c.send:
		if string(got) != string(want) {
			t.Fatalf("%s got %s, want %s", c.id, got, want)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("%s: no frame delivered", c.id)
	}
}

func TestHub_FrameReachesEverySurface(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	runHub(t, hub)

	watch := attachClient(t, hub, "watch", 4)
	browser := attachClient(t, hub, "browser", 4)
	if n := hub.ClientCount(); n != 2 {
		t.Fatalf("ClientCount = %d, want 2", n)
	}

	frame := []byte(`{"type":"set_track_text","data":{"text":"Teardrop"}}`)
	hub.broadcast <- frame

	expectFrame(t, watch, frame)
	expectFrame(t, browser, frame)
}

func TestHub_StuckSurfaceIsDropped(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	runHub(t, hub)

	stuck := attachClient(t, hub, "stuck", 1)
	live := attachClient(t, hub, "live", 8)
	stuck.send <- []byte(`{"type":"set_mode","data":{"mode":"zone"}}`)

	frame := []byte(`{"type":"set_play_indicator","data":{"playing":true}}`)
	hub.broadcast <- frame
	expectFrame(t, live, frame)

	// The queued frame may still be there; the channel must end up closed.
	waitUntil(t, 750*time.Millisecond, func() bool {
		for {
			select {
			case _, ok := <-stuck.send:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, "stuck surface not disconnected")

	waitUntil(t, 500*time.Millisecond, func() bool { return hub.ClientCount() == 1 }, "stuck surface still counted")
}

func TestHubSurface_FramesPerRenderCall(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	surface := hubSurface{hub: hub}

	surface.SetZoneText("Kitchen", true)
	surface.SetVolumeText("Vol: 43", false)
	surface.ShortPulse()

	type frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	next := func() frame {
		t.Helper()
		select {
		case msg := <-hub.broadcast:
			var f frame
			if err := json.Unmarshal(msg, &f); err != nil {
				t.Fatalf("unmarshal frame %s: %v", msg, err)
			}
			return f
		default:
			t.Fatalf("expected a queued frame")
			return frame{}
		}
	}

	f := next()
	var zone wsZoneTextData
	if err := json.Unmarshal(f.Data, &zone); err != nil {
		t.Fatalf("unmarshal zone data: %v", err)
	}
	if f.Type != "set_zone_text" || zone.Text != "Kitchen" || !zone.Highlighted {
		t.Fatalf("frame = %s %+v", f.Type, zone)
	}

	f = next()
	var vol wsVolumeTextData
	if err := json.Unmarshal(f.Data, &vol); err != nil {
		t.Fatalf("unmarshal volume data: %v", err)
	}
	if f.Type != "set_volume_text" || vol.Text != "Vol: 43" || vol.Visible {
		t.Fatalf("frame = %s %+v", f.Type, vol)
	}

	if f = next(); f.Type != "vibrate" {
		t.Fatalf("frame type = %s, want vibrate", f.Type)
	}
}

func TestHubSurface_FullQueueDropsFrame(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	surface := hubSurface{hub: hub}

	surface.SetTrackText("one")
	surface.SetTrackText("two") // dropped, must not block

	if got := len(hub.broadcast); got != 1 {
		t.Fatalf("queued frames = %d, want 1", got)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
