package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"hypervoxel.ai/internal/protocol"
	"hypervoxel.ai/internal/sim/world"
)

const (
	writeWait     = 5 * time.Second
	handshakeWait = 5 * time.Second
	readWait      = 60 * time.Second

	outQueue = 8
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, out := s.handshake(r.Context(), conn)
		if agentID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. It is the only writer once the handshake is done.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			move, errMsg := decodeMove(msg)
			if errMsg != nil {
				queueJSON(out, *errMsg)
				continue
			}
			select {
			case s.world.Inbox() <- world.ActionEnvelope{AgentID: agentID, Move: move}:
			default:
				queueJSON(out, protocol.NewError(protocol.ErrWorldBusy, "inbox full"))
			}
		}

		// Cleanup.
		s.world.Leave() <- agentID
	}
}

// decodeMove validates one client frame. Anything other than a well-formed
// MOVE yields the ERROR to send back.
func decodeMove(msg []byte) (protocol.MoveMsg, *protocol.ErrorMsg) {
	fail := func(code, text string) (protocol.MoveMsg, *protocol.ErrorMsg) {
		e := protocol.NewError(code, text)
		return protocol.MoveMsg{}, &e
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return fail(protocol.ErrProtoBadRequest, "invalid json")
	}
	if base.Type != protocol.TypeMove {
		return fail(protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
	}
	if base.ProtocolVersion != protocol.Version {
		return fail(protocol.ErrProtoVersion, "unsupported protocol_version "+base.ProtocolVersion)
	}
	if err := protocol.Validate(protocol.TypeMove, msg); err != nil {
		return fail(protocol.ErrBadRequest, err.Error())
	}
	var move protocol.MoveMsg
	if err := json.Unmarshal(msg, &move); err != nil {
		return fail(protocol.ErrBadRequest, err.Error())
	}
	return move, nil
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (agentID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return "", nil
	}
	if base.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return "", nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, err.Error())
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, err.Error())
		return "", nil
	}

	out = make(chan []byte, outQueue)
	respCh := make(chan world.JoinResponse, 1)
	req := world.JoinRequest{Name: hello.AgentName, Out: out, Resp: respCh}

	select {
	case s.world.Join() <- req:
	default:
		reject(conn, protocol.ErrWorldBusy, "join queue full")
		return "", nil
	}
	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-ctx.Done():
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.AgentID
		return "", nil
	}
	s.log.Printf("join agent=%s name=%q", resp.Welcome.AgentID, hello.AgentName)
	return resp.Welcome.AgentID, out
}

func reject(conn *websocket.Conn, code, message string) {
	_ = writeJSON(conn, protocol.NewError(code, message))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

// queueJSON hands v to the writer goroutine without blocking the reader.
func queueJSON(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
