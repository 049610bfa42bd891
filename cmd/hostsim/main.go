package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/gorilla/websocket"
)

// ============================================================================
// hostsim - playback host simulator
// ============================================================================
// Listens for the roonremote host link, logs every command it receives and
// answers like a small multi-zone player would. State can also be pushed by
// hand from the interactive prompt.
// ============================================================================

// Tuple and Dictionary mirror the daemon's wire types.
type Tuple struct {
	Key  uint32 `json:"key"`
	Type string `json:"type"`
	Data []byte `json:"data"`
}

type Dictionary struct {
	Tuples []Tuple `json:"tuples"`
}

const (
	keyCommand     = 0
	keyZoneName    = 1
	keyTrack       = 2
	keyArtist      = 3
	keyIsPlaying   = 4
	keyVolumeLevel = 5
	keyIsFixed     = 6
)

func cstring(key uint32, s string) Tuple {
	return Tuple{Key: key, Type: "cstring", Data: append([]byte(s), 0)}
}

func int32Tuple(key uint32, v int32) Tuple {
	return Tuple{Key: key, Type: "int", Data: binary.LittleEndian.AppendUint32(nil, uint32(v))}
}

func flag8(key uint32, b bool) Tuple {
	v := byte(0)
	if b {
		v = 1
	}
	return Tuple{Key: key, Type: "uint", Data: []byte{v}}
}

func commandOf(d Dictionary) (string, bool) {
	for _, t := range d.Tuples {
		if t.Key != keyCommand {
			continue
		}
		s := string(t.Data)
		if i := strings.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		return s, true
	}
	return "", false
}

type zone struct {
	Name   string
	Track  string
	Artist string
	Fixed  bool
}

// player is the simulated host state.
type player struct {
	mu      sync.Mutex
	zones   []zone
	current int
	playing bool
	volume  int
}

func newPlayer() *player {
	return &player{
		zones: []zone{
			{Name: "Living Room", Track: "So What", Artist: "Miles Davis"},
			{Name: "Kitchen", Track: "Teardrop", Artist: "Massive Attack"},
			{Name: "Office", Track: "Avril 14th", Artist: "Aphex Twin", Fixed: true},
		},
		volume: 40,
	}
}

// full returns every field of the current zone.
func (p *player) full() Dictionary {
	z := p.zones[p.current]
	return Dictionary{Tuples: []Tuple{
		cstring(keyZoneName, z.Name),
		cstring(keyTrack, z.Track),
		cstring(keyArtist, z.Artist),
		flag8(keyIsPlaying, p.playing),
		int32Tuple(keyVolumeLevel, int32(p.volume)),
		flag8(keyIsFixed, z.Fixed),
	}}
}

// apply handles one remote command and returns the push to answer with.
func (p *player) apply(cmd string) (Dictionary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch cmd {
	case "status":
		return p.full(), true
	case "playpause":
		p.playing = !p.playing
		return Dictionary{Tuples: []Tuple{flag8(keyIsPlaying, p.playing)}}, true
	case "next", "previous":
		z := &p.zones[p.current]
		z.Track = fmt.Sprintf("%s (%s)", strings.SplitN(z.Track, " (", 2)[0], cmd)
		return Dictionary{Tuples: []Tuple{cstring(keyTrack, z.Track)}}, true
	case "next_zone":
		p.current = (p.current + 1) % len(p.zones)
		return p.full(), true
	case "prev_zone":
		p.current = (p.current + len(p.zones) - 1) % len(p.zones)
		return p.full(), true
	case "vol_up", "vol_down":
		if p.zones[p.current].Fixed {
			return Dictionary{}, false
		}
		if cmd == "vol_up" {
			p.volume = min(100, p.volume+1)
		} else {
			p.volume = max(0, p.volume-1)
		}
		return Dictionary{Tuples: []Tuple{int32Tuple(keyVolumeLevel, int32(p.volume))}}, true
	default:
		return Dictionary{}, false
	}
}

// conns tracks connected remotes and serializes writes.
type conns struct {
	mu  sync.Mutex
	set map[*websocket.Conn]struct{}
}

func (c *conns) add(conn *websocket.Conn) {
	c.mu.Lock()
	c.set[conn] = struct{}{}
	c.mu.Unlock()
}

func (c *conns) remove(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.set, conn)
	c.mu.Unlock()
}

func (c *conns) push(d Dictionary) int {
	payload, err := json.Marshal(d)
	if err != nil {
		log.Printf("marshal push: %v", err)
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for conn := range c.set {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("push failed: %v", err)
			continue
		}
		n++
	}
	return n
}

func main() {
	var (
		addr  = flag.String("addr", "127.0.0.1:9330", "Listen address")
		path  = flag.String("path", "/remote", "Websocket path")
		quiet = flag.Bool("no-reply", false, "Log commands without answering them")
	)
	flag.Parse()

	p := newPlayer()
	remotes := &conns{set: make(map[*websocket.Conn]struct{})}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc(*path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		remotes.add(conn)
		defer remotes.remove(conn)
		log.Printf("remote connected from %s", r.RemoteAddr)

		p.mu.Lock()
		initial := p.full()
		p.mu.Unlock()
		remotes.push(initial)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				log.Printf("remote %s disconnected", r.RemoteAddr)
				return
			}

			var d Dictionary
			if err := json.Unmarshal(msg, &d); err != nil {
				log.Printf("[TEXT] %s", msg)
				continue
			}
			cmd, ok := commandOf(d)
			if !ok {
				log.Printf("[DICT] %d tuples, no command", len(d.Tuples))
				continue
			}
			log.Printf("[CMD] %s", cmd)

			if *quiet {
				continue
			}
			if reply, ok := p.apply(cmd); ok {
				remotes.push(reply)
			}
		}
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("host simulator listening on ws://%s%s", *addr, *path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	if err := console(p, remotes); err != nil {
		log.Printf("console: %v", err)
	}
	_ = srv.Close()
}

// console reads push commands from an interactive prompt until EOF.
func console(p *player, remotes *conns) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "host> ",
		HistoryFile: historyPath(),
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("zone"),
			readline.PcItem("track"),
			readline.PcItem("artist"),
			readline.PcItem("play"),
			readline.PcItem("pause"),
			readline.PcItem("vol"),
			readline.PcItem("fixed", readline.PcItem("on"), readline.PcItem("off")),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	log.SetOutput(rl.Stderr())

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)

		d, err := parseConsole(p, verb, arg)
		if err != nil {
			fmt.Fprintln(rl.Stderr(), err)
			continue
		}
		if verb == "quit" || verb == "exit" {
			return nil
		}
		if len(d.Tuples) == 0 {
			continue
		}
		n := remotes.push(d)
		fmt.Fprintf(rl.Stdout(), "pushed %d tuple(s) to %d remote(s)\n", len(d.Tuples), n)
	}
}

// parseConsole updates the simulated state and returns the push to send.
func parseConsole(p *player, verb, arg string) (Dictionary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	z := &p.zones[p.current]

	switch verb {
	case "", "quit", "exit":
		return Dictionary{}, nil
	case "help":
		return Dictionary{}, fmt.Errorf("commands: zone <name> | track <title> | artist <name> | play | pause | vol <n> | fixed on|off | status | quit")
	case "zone":
		z.Name = arg
		return Dictionary{Tuples: []Tuple{cstring(keyZoneName, arg)}}, nil
	case "track":
		z.Track = arg
		return Dictionary{Tuples: []Tuple{cstring(keyTrack, arg)}}, nil
	case "artist":
		z.Artist = arg
		return Dictionary{Tuples: []Tuple{cstring(keyArtist, arg)}}, nil
	case "play", "pause":
		p.playing = verb == "play"
		return Dictionary{Tuples: []Tuple{flag8(keyIsPlaying, p.playing)}}, nil
	case "vol":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return Dictionary{}, fmt.Errorf("vol: %w", err)
		}
		p.volume = v
		return Dictionary{Tuples: []Tuple{int32Tuple(keyVolumeLevel, int32(v))}}, nil
	case "fixed":
		z.Fixed = arg == "on"
		return Dictionary{Tuples: []Tuple{flag8(keyIsFixed, z.Fixed)}}, nil
	case "status":
		return p.full(), nil
	default:
		return Dictionary{}, fmt.Errorf("unknown command %q (try help)", verb)
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.hostsim_history"
}
