package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	ocean "github.com/cwbudde/algo-ocean"
)

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// helloMessage is sent once per connection.
type helloMessage struct {
	Type   string      `json:"type"`
	Device string      `json:"device"`
	Bands  []bandShape `json:"bands"`
}

type bandShape struct {
	SizeX  int     `json:"sizeX"`
	SizeY  int     `json:"sizeY"`
	PatchX float32 `json:"patchX"`
	PatchY float32 `json:"patchY"`
}

// frameMessage carries the heights of one band, subsampled by Stride.
type frameMessage struct {
	Type    string    `json:"type"`
	Band    int       `json:"band"`
	Time    float64   `json:"time"`
	SizeX   int       `json:"sizeX"`
	SizeY   int       `json:"sizeY"`
	Stride  int       `json:"stride"`
	Min     float32   `json:"min"`
	Max     float32   `json:"max"`
	Heights []float32 `json:"heights"`
}

// command is a client request. Absent fields are left unchanged.
type command struct {
	Paused    *bool       `json:"paused"`
	TimeScale *float64    `json:"timeScale"`
	Wind      *[2]float32 `json:"wind"`
}

// server streams band heights to websocket clients. The simulation is
// only touched by the goroutine calling tick; client commands reach it
// through a channel.
type server struct {
	sim    *ocean.Simulation
	stride int
	log    *slog.Logger
	hello  []byte

	writeWait time.Duration

	commands chan command

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex
}

func newServer(sim *ocean.Simulation, stride int, log *slog.Logger) (*server, error) {
	hello := helloMessage{Type: "hello", Device: sim.Device().Name}

	for i := range sim.NumBands() {
		b, err := sim.Band(i)
		if err != nil {
			return nil, err
		}

		p := b.Params()
		hello.Bands = append(hello.Bands, bandShape{
			SizeX:  int(p.ResolutionX),
			SizeY:  int(p.ResolutionY),
			PatchX: p.PatchX,
			PatchY: p.PatchY,
		})
	}

	data, err := json.Marshal(hello)
	if err != nil {
		return nil, err
	}

	return &server{
		sim:      sim,
		stride:   max(stride, 1),
		log:      log,
		hello:    data,
		commands: make(chan command, 16),

		writeWait: writeWait,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHome)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

func (s *server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, homePage)
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}

	// hello goes out before the connection joins the broadcast set
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, s.hello); err != nil {
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = connMu
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			s.log.Debug("websocket closed", "err", err)
			return
		}

		select {
		case s.commands <- cmd:
		default:
			s.log.Warn("command dropped, queue full")
		}
	}
}

// run steps the simulation every interval until ctx is done.
func (s *server) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := s.tick(now.Sub(last)); err != nil {
				s.log.Error("step failed", "err", err)
			}

			last = now
		}
	}
}

// tick applies queued commands, advances the simulation by dt and sends
// one frame per band to every client.
func (s *server) tick(dt time.Duration) error {
	for drained := false; !drained; {
		select {
		case cmd := <-s.commands:
			s.apply(cmd)
		default:
			drained = true
		}
	}

	if err := s.sim.Step(dt); err != nil {
		return err
	}

	for i := range s.sim.NumBands() {
		data, err := json.Marshal(s.frame(i))
		if err != nil {
			return err
		}

		s.broadcast(data)
	}

	return nil
}

func (s *server) apply(cmd command) {
	clock := s.sim.Clock()

	if cmd.Paused != nil {
		if *cmd.Paused {
			clock.Pause()
		} else {
			clock.Resume()
		}
	}

	if cmd.TimeScale != nil {
		clock.SetSpeed(*cmd.TimeScale)
	}

	if cmd.Wind != nil {
		for i := range s.sim.NumBands() {
			b, err := s.sim.Band(i)
			if err != nil {
				continue
			}

			if err := b.SetWindDirection(cmd.Wind[0], cmd.Wind[1]); err != nil {
				s.log.Warn("wind rejected", "wind", *cmd.Wind, "err", err)
				return
			}
		}
	}
}

func (s *server) frame(band int) frameMessage {
	view := s.sim.View(band)
	lo, hi := view.HeightRange()

	msg := frameMessage{
		Type:   "frame",
		Band:   band,
		Time:   view.Time,
		Stride: s.stride,
		Min:    lo,
		Max:    hi,
	}

	if !view.Valid {
		return msg
	}

	msg.SizeX = (view.SizeX + s.stride - 1) / s.stride
	msg.SizeY = (view.SizeY + s.stride - 1) / s.stride
	msg.Heights = make([]float32, 0, msg.SizeX*msg.SizeY)

	for z := 0; z < view.SizeY; z += s.stride {
		for x := 0; x < view.SizeX; x += s.stride {
			msg.Heights = append(msg.Heights, view.Height(x, z))
		}
	}

	return msg
}

func (s *server) broadcast(data []byte) {
	type client struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}

	s.clientsMu.RLock()
	targets := make([]client, 0, len(s.clients))
	for conn, mu := range s.clients {
		targets = append(targets, client{conn, mu})
	}
	s.clientsMu.RUnlock()

	var failed []*websocket.Conn

	for _, c := range targets {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
		err := c.conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()

		if err != nil {
			s.log.Debug("websocket write failed", "err", err)
			failed = append(failed, c.conn)
		}
	}

	if len(failed) == 0 {
		return
	}

	s.clientsMu.Lock()
	for _, conn := range failed {
		_ = conn.Close()
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()
}

func (s *server) numClients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	return len(s.clients)
}

const homePage = `<!doctype html>
<html>
<head><title>ocean</title></head>
<body style="margin:0;background:#000">
<canvas id="c"></canvas>
<script>
const canvas = document.getElementById("c");
const ctx = canvas.getContext("2d");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (ev) => {
  const msg = JSON.parse(ev.data);
  if (msg.type !== "frame" || msg.band !== 0 || !msg.heights) return;
  canvas.width = msg.sizeX;
  canvas.height = msg.sizeY;
  canvas.style.width = canvas.style.height = "768px";
  const img = ctx.createImageData(msg.sizeX, msg.sizeY);
  const span = (msg.max - msg.min) || 1;
  msg.heights.forEach((h, i) => {
    const v = (h - msg.min) / span;
    img.data[i*4] = 20 + 80*v;
    img.data[i*4+1] = 60 + 120*v;
    img.data[i*4+2] = 110 + 140*v;
    img.data[i*4+3] = 255;
  });
  ctx.putImageData(img, 0, 0);
};
document.addEventListener("keydown", (e) => {
  if (e.key === "p") ws.send(JSON.stringify({paused: !window.paused})), window.paused = !window.paused;
  if (e.key === " ") ws.send(JSON.stringify({wind: [Math.random()*2-1, Math.random()*2-1]}));
});
</script>
</body>
</html>
`
