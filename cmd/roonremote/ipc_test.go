package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHandleIPCLine_QueuesButton(t *testing.T) {
	events := make(chan Event, 1)

	resp := handleIPCLine(context.Background(), []byte(`{"type":"button","data":{"button":"down"}}`), events)
	if resp.Status != "ok" {
		t.Fatalf("resp = %+v", resp)
	}
	select {
	case ev := <-events:
		if ev != (ButtonPressed{Button: ButtonDown, Press: PressShort}) {
			t.Fatalf("event = %#v", ev)
		}
	default:
		t.Fatalf("no event queued")
	}
}

func TestHandleIPCLine_Errors(t *testing.T) {
	events := make(chan Event, 1)

	resp := handleIPCLine(context.Background(), []byte(`{"type":"bogus"}`), events)
	if resp.Status != "error" || resp.Error == "" {
		t.Fatalf("resp = %+v, want parse error", resp)
	}

	full := make(chan Event)
	resp = handleIPCLine(context.Background(), []byte(`{"type":"attach"}`), full)
	if resp.Status != "error" || resp.Error != "event queue full" {
		t.Fatalf("resp = %+v, want queue full", resp)
	}
}

// answerSnapshots plays the loop's part for snapshot requests.
func answerSnapshots(ctx context.Context, events <-chan Event, snap RenderSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if req, ok := ev.(RequestRenderSnapshot); ok {
				req.Reply <- snap
			}
		}
	}
}

func TestHandleIPCLine_Snapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event)
	go answerSnapshots(ctx, events, RenderSnapshot{Mode: "zone", ZoneName: "Kitchen"})

	resp := handleIPCLine(ctx, []byte(`{"type":"snapshot"}`), events)
	if resp.Status != "ok" || resp.Snapshot == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Snapshot.Mode != "zone" || resp.Snapshot.ZoneName != "Kitchen" {
		t.Fatalf("snapshot = %+v", *resp.Snapshot)
	}
}

func TestHandleIPCLine_SnapshotTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp := handleIPCLine(ctx, []byte(`{"type":"snapshot"}`), make(chan Event))
	if resp.Status != "error" {
		t.Fatalf("resp = %+v, want error", resp)
	}
}

func TestRunIPCServer_LineProtocol(t *testing.T) {
	dir, err := os.MkdirTemp("", "rr-ipc")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "s.sock")

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 4)
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, sock, events, discardLogger()) }()

	var conn net.Conn
	waitUntil(t, time.Second, func() bool {
		conn, err = net.Dial("unix", sock)
		return err == nil
	}, "IPC socket not listening")
	defer conn.Close()

	r := bufio.NewReader(conn)
	roundTrip := func(line string) IPCResponse {
		t.Helper()
		_ = conn.SetDeadline(time.Now().Add(time.Second))
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		b, err := r.ReadBytes('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var resp IPCResponse
		if err := json.Unmarshal(b, &resp); err != nil {
			t.Fatalf("decode %s: %v", b, err)
		}
		return resp
	}

	if resp := roundTrip(`{"type":"detach"}`); resp.Status != "ok" {
		t.Fatalf("detach resp = %+v", resp)
	}
	if resp := roundTrip(`garbage`); resp.Status != "error" {
		t.Fatalf("garbage resp = %+v", resp)
	}
	if ev := <-events; ev != (SurfaceDetached{}) {
		t.Fatalf("event = %#v", ev)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runIPCServer: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("IPC server did not stop")
	}
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Fatalf("socket not removed: %v", err)
	}
}
