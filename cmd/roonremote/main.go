package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "roonremote v%s\n", version)
	fmt.Fprintln(w, "Button remote for a multi-zone audio host")
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	printVersion(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  roonremote [OPTIONS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DESCRIPTION:")
	fmt.Fprintln(w, "  Turns three-button clicks (Linux input devices, IPC or HTTP) into")
	fmt.Fprintln(w, "  transport and zone commands for the playback host, and renders the")
	fmt.Fprintln(w, "  host's now-playing state to websocket surfaces.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  # Start with a config file")
	fmt.Fprintln(w, "  roonremote -config ~/.config/roonremote.yaml")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Read buttons from two devices and enable the volume mode")
	fmt.Fprintln(w, "  roonremote -input-devices /dev/input/event3,/dev/input/event4 -volume")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NOTES:")
	fmt.Fprintln(w, "  - Flags override values from the config file.")
	fmt.Fprintln(w, "  - Reading input devices requires the 'input' group or root.")
	fmt.Fprintln(w)
}

// cliFlags holds the raw flag values. Only flags the user actually set are
// turned into overrides.
type cliFlags struct {
	configPath string

	hostWsURL     string
	inputDevices  string
	longPressMS   int
	ipcSocket     string
	uiPort        int
	attachOnStart bool
	cooldownMS    int
	revertMS      int
	playPauseMS   int
	volume        bool
	logLevel      string

	showVersion bool
	showHelp    bool
}

func newFlagSet(f *cliFlags) *flag.FlagSet {
	def := DefaultConfig()
	fs := flag.NewFlagSet("roonremote", flag.ContinueOnError)

	fs.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	fs.StringVar(&f.hostWsURL, "host-ws-url", def.Host.WsURL, "Playback host websocket URL")
	fs.StringVar(&f.inputDevices, "input-devices", "", "Comma-separated Linux input devices (empty disables physical buttons)")
	fs.IntVar(&f.longPressMS, "long-press-ms", def.Input.LongPressMS, "Hold time for a Select long press in ms")
	fs.StringVar(&f.ipcSocket, "ipc-socket", def.IPC.SocketPath, "Unix domain socket path for IPC")
	fs.IntVar(&f.uiPort, "ui-port", def.UI.Port, "HTTP port for the render websocket and API (0 disables)")
	fs.BoolVar(&f.attachOnStart, "attach-on-start", def.UI.AttachOnStart, "Attach the render surface at startup")
	fs.IntVar(&f.cooldownMS, "cooldown-ms", def.Timing.CooldownMS, "Minimum spacing between host commands in ms")
	fs.IntVar(&f.revertMS, "revert-after-ms", def.Timing.RevertAfterMS, "Idle time before zone/volume mode reverts in ms")
	fs.IntVar(&f.playPauseMS, "playpause-delay-ms", def.Timing.PlayPauseDelayMS, "Long-press playpause debounce in ms")
	fs.BoolVar(&f.volume, "volume", def.Features.Volume, "Enable the volume mode")
	fs.StringVar(&f.logLevel, "log-level", def.Logging.Level, "Log level: error, warn, info, debug")
	fs.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&f.showHelp, "help", false, "Print help message")

	return fs
}

// overrides returns FlagOverrides for the flags that were explicitly set.
func (f *cliFlags) overrides(fs *flag.FlagSet) FlagOverrides {
	var o FlagOverrides
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "host-ws-url":
			o.HostWsURL = &f.hostWsURL
		case "input-devices":
			devs := splitList(f.inputDevices)
			o.InputDevices = &devs
		case "long-press-ms":
			o.LongPressMS = &f.longPressMS
		case "ipc-socket":
			o.IPCSocketPath = &f.ipcSocket
		case "ui-port":
			o.UIPort = &f.uiPort
		case "attach-on-start":
			o.AttachOnStart = &f.attachOnStart
		case "cooldown-ms":
			o.CooldownMS = &f.cooldownMS
		case "revert-after-ms":
			o.RevertAfterMS = &f.revertMS
		case "playpause-delay-ms":
			o.PlayPauseDelayMS = &f.playPauseMS
		case "volume":
			o.VolumeEnabled = &f.volume
		case "log-level":
			o.LogLevel = &f.logLevel
		}
	})
	return o
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadConfig resolves defaults, the optional config file and flag overrides.
func loadConfig(f *cliFlags, fs *flag.FlagSet) (Config, error) {
	cfg := DefaultConfig()
	if f.configPath != "" {
		fileCfg, err := LoadConfigFile(f.configPath)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}
	f.overrides(fs).Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	var f cliFlags
	fs := newFlagSet(&f)
	fs.Usage = func() { printUsage(os.Stderr, fs) }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if f.showHelp {
		printUsage(os.Stdout, fs)
		return
	}
	if f.showVersion {
		printVersion(os.Stdout)
		return
	}

	cfg, err := loadConfig(&f, fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(level, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("roonremote stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run wires every component and blocks until ctx is canceled or one of them
// fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	events := make(chan Event, 64)

	link, err := NewHostLink(cfg.ToHostLinkConfig(), events, logger.With("component", "hostlink"))
	if err != nil {
		return err
	}

	surfaceSrv := NewServer(logger.With("component", "surface"), events, ServerConfig{})
	surface := surfaces{logSurface{logger: logger}, hubSurface{hub: surfaceSrv.Hub()}}

	eng := newEngine(NewAppState(), cfg.ToRemoteConfig(), effects{
		transport: link,
		renderer:  surface,
		haptics:   surface,
	}, logger)

	var devices []*os.File
	for _, path := range cfg.Input.Devices {
		dev, err := os.Open(ExpandPath(path))
		if err != nil {
			closeAll(devices)
			return fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", path, err)
		}
		devices = append(devices, dev)
	}
	defer closeAll(devices)

	keymap, err := cfg.Input.Keys.Keymap()
	if err != nil {
		return err
	}

	logger.Debug("configuration",
		"host_ws_url", cfg.Host.WsURL,
		"input_devices", cfg.Input.Devices,
		"long_press_ms", cfg.Input.LongPressMS,
		"ipc_socket", cfg.IPC.SocketPath,
		"ui_port", cfg.UI.Port,
		"attach_on_start", cfg.UI.AttachOnStart,
		"cooldown_ms", cfg.Timing.CooldownMS,
		"revert_after_ms", cfg.Timing.RevertAfterMS,
		"playpause_delay_ms", cfg.Timing.PlayPauseDelayMS,
		"volume", cfg.Features.Volume)

	if cfg.UI.AttachOnStart {
		events <- SurfaceAttached{}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(gctx, events, eng)
		// Tear the surface down so no timer outlives the process.
		eng.dispatch(SurfaceDetached{}, time.Now())
		return nil
	})

	g.Go(func() error {
		return link.Run(gctx)
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger)
	})

	g.Go(func() error {
		surfaceSrv.Hub().Run(gctx)
		return nil
	})

	if cfg.UI.Port > 0 {
		handler := newHTTPHandler(surfaceSrv, link, events, logger)
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.UI.Port, handler, logger)
		})
	}

	if len(devices) > 0 {
		rec := newClickRecognizer(keymap, time.Duration(cfg.Input.LongPressMS)*time.Millisecond)
		raw := make(chan inputEvent, 64)

		g.Go(func() error {
			if err := readInputEventsEpoll(gctx, devices, raw); err != nil {
				return fmt.Errorf("input reader stopped: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			runClickRecognizer(gctx, raw, events, rec, logger)
			return nil
		})
	}

	logger.Info("listening",
		"host", cfg.Host.WsURL,
		"ipc", cfg.IPC.SocketPath,
		"ui_port", cfg.UI.Port,
		"input_devices", len(devices))

	return g.Wait()
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
