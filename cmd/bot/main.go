package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"hypervoxel.ai/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "agent name")
		speed = flag.Float64("speed", 0.1, "hyperbolic distance per MOVE")
		seed  = flag.Int64("seed", 0, "heading rng seed (0 = time based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	wk := newWalker(rand.New(rand.NewSource(*seed)), *speed)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME agent_id=%s tick_rate=%d grid=%d seed=%d tile=%s",
				w.AgentID, w.WorldParams.TickRateHz, w.WorldParams.GridSubdivisions, w.WorldParams.Seed, w.Tile.Key)

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			for _, e := range obs.Events {
				logger.Printf("tick=%d event=%v", obs.Tick, e)
			}
			if mv, ok := wk.next(&obs); ok {
				_ = conn.WriteJSON(mv)
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR code=%s message=%s", e.Code, e.Message)
			}
		}
	}
}

// walker wanders: it keeps a heading for a while, turns a little every
// tick and sometimes pauses.
type walker struct {
	r       *rand.Rand
	speed   float64
	heading float64
}

func newWalker(r *rand.Rand, speed float64) *walker {
	return &walker{r: r, speed: speed, heading: r.Float64() * 2 * math.Pi}
}

func (w *walker) next(obs *protocol.ObsMsg) (protocol.MoveMsg, bool) {
	// Rest one tick in eight.
	if obs.Tick%8 == 7 {
		return protocol.MoveMsg{}, false
	}
	w.heading += (w.r.Float64() - 0.5) * 0.6
	return protocol.MoveMsg{
		Type:            protocol.TypeMove,
		ProtocolVersion: protocol.Version,
		Tick:            obs.Tick,
		DX:              w.speed * math.Cos(w.heading),
		DY:              w.speed * math.Sin(w.heading),
	}, true
}
