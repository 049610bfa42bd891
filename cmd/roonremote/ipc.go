package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server lets local tools drive the remote without hardware:
//   - button clicks from remote-ctl or scripts
//   - attach / detach of the render surface
//   - injected host messages for testing
//   - render snapshot queries
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "button", "data": {"button": "up", "press": "short"}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//   - {"type": "snapshot"} answers {"status": "ok", "snapshot": {...}}
// ============================================================================

// ipcSnapshotType is the request type answered with a render snapshot.
const ipcSnapshotType = "snapshot"

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status   string          `json:"status"`          // "ok" or "error"
	Error    string          `json:"error,omitempty"` // error message if status == "error"
	Snapshot *RenderSnapshot `json:"snapshot,omitempty"`
}

func ipcError(format string, args ...any) IPCResponse {
	return IPCResponse{Status: "error", Error: fmt.Sprintf(format, args...)}
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection serves one client until it disconnects.
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		resp := handleIPCLine(ctx, []byte(line), events)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

// handleIPCLine turns one request line into a response.
func handleIPCLine(ctx context.Context, line []byte, events chan<- Event) IPCResponse {
	var env EventEnvelope
	if err := json.Unmarshal(line, &env); err == nil && env.Type == ipcSnapshotType {
		snap, err := requestSnapshot(ctx, events)
		if err != nil {
			return ipcError("snapshot: %v", err)
		}
		return IPCResponse{Status: "ok", Snapshot: &snap}
	}

	ev, err := UnmarshalEvent(line)
	if err != nil {
		return ipcError("parse event: %v", err)
	}

	select {
	case events <- ev:
		return IPCResponse{Status: "ok"}
	default:
		return ipcError("event queue full")
	}
}
