package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

// ============================================================================
// remote-ctl - Command-line IPC Client
// ============================================================================
// Sends button clicks and surface lifecycle events to the roonremote daemon.
//
// Usage:
//   remote-ctl up
//   remote-ctl select
//   remote-ctl long
//   remote-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/roonremote.sock)
// ============================================================================

// buttonData mirrors the daemon's ButtonPressed wire form.
type buttonData struct {
	Button string `json:"button"`
	Press  string `json:"press"`
}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status   string          `json:"status"`
	Error    string          `json:"error,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

const ioTimeout = 3 * time.Second

func main() {
	socketPath := "/tmp/roonremote.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return
	}

	env, err := buildEnvelope(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	resp, err := send(socketPath, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Snapshot) > 0 {
		var pretty any
		if err := json.Unmarshal(resp.Snapshot, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return
		}
	}
	fmt.Println("ok")
}

// buildEnvelope maps a command word to the envelope the daemon expects.
func buildEnvelope(cmd string) (EventEnvelope, error) {
	button := func(b, press string) (EventEnvelope, error) {
		data, err := json.Marshal(buttonData{Button: b, Press: press})
		if err != nil {
			return EventEnvelope{}, err
		}
		return EventEnvelope{Type: "button", Data: data}, nil
	}

	switch cmd {
	case "up", "previous":
		return button("up", "short")
	case "down", "next":
		return button("down", "short")
	case "select":
		return button("select", "short")
	case "long", "playpause":
		return button("select", "long")
	case "attach":
		return EventEnvelope{Type: "attach"}, nil
	case "detach":
		return EventEnvelope{Type: "detach"}, nil
	case "status", "snapshot":
		return EventEnvelope{Type: "snapshot"}, nil
	default:
		return EventEnvelope{}, fmt.Errorf("unknown command: %s", cmd)
	}
}

func send(socketPath string, env EventEnvelope) (IPCResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, ioTimeout)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	data, err := json.Marshal(env)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `remote-ctl - Control the roonremote daemon via IPC

Usage:
  remote-ctl [options] <command>

Options:
  -socket PATH    Unix domain socket path (default: /tmp/roonremote.sock)

Commands:
  up, previous        Click Up
  down, next          Click Down
  select              Click Select
  long, playpause     Long-press Select
  attach              Attach the render surface
  detach              Detach the render surface
  status, snapshot    Print what the surface currently shows
  help, -h, --help    Show this help message

Examples:
  remote-ctl select
  remote-ctl -socket /run/roonremote.sock long
`)
}
