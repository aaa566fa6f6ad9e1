package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"monkeysim.dev/internal/protocol"
	"monkeysim.dev/internal/sim/engine"
)

const maxEveryRounds = 1_000_000

type Server struct {
	engine *engine.Engine
	log    *log.Logger

	maxSessions int64
	active      atomic.Int64

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(e *engine.Engine, maxSessions int, logger *log.Logger) *Server {
	if maxSessions <= 0 {
		maxSessions = 64
	}
	return &Server{
		engine:      e,
		log:         logger,
		maxSessions: int64(maxSessions),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.engine.Bootstrap())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			s.writeError(conn, protocol.ErrProtoBadRequest, "expected SUBSCRIBE")
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		// A finished run has no loop left to join; answer with its outcome.
		select {
		case <-s.engine.Done():
			s.writeFinal(conn)
			closeWith(conn, websocket.CloseNormalClosure, "run finished")
			return
		default:
		}

		if s.active.Add(1) > s.maxSessions {
			s.active.Add(-1)
			s.writeError(conn, protocol.ErrBusy, "too many observers")
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		defer s.active.Add(-1)

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 8)
		joinReq := engine.ObserverJoinRequest{
			SessionID:   sid,
			Out:         out,
			EveryRounds: sub.EveryRounds,
		}
		select {
		case s.engine.ObserverJoin() <- joinReq:
		default:
			s.writeError(conn, protocol.ErrBusy, "server busy")
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		if s.log != nil {
			s.log.Printf("observer %s joined (every=%d)", sid, sub.EveryRounds)
		}
		defer func() {
			select {
			case s.engine.ObserverLeave() <- sid:
			default:
				// Engine is stopping; it closes every session itself.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() { writeErr <- s.writeLoop(ctx, conn, out) }()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := decodeSubscribe(msg)
			if !ok {
				continue
			}
			select {
			case s.engine.ObserverSubscribe() <- engine.ObserverSubscribeRequest{SessionID: sid, EveryRounds: sub.EveryRounds}:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// writeLoop forwards engine messages until the session channel is closed.
// A join that raced with the end of the run is never registered; in that
// case the final outcome is written directly.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan []byte) error {
	write := func(b []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, b)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-out:
			if !ok {
				closeWith(conn, websocket.CloseNormalClosure, "run finished")
				return nil
			}
			if err := write(b); err != nil {
				return err
			}
		case <-s.engine.Done():
			for {
				select {
				case b, ok := <-out:
					if !ok {
						closeWith(conn, websocket.CloseNormalClosure, "run finished")
						return nil
					}
					if err := write(b); err != nil {
						return err
					}
				default:
					s.writeFinal(conn)
					closeWith(conn, websocket.CloseNormalClosure, "run finished")
					return nil
				}
			}
		}
	}
}

func (s *Server) writeFinal(conn *websocket.Conn) {
	res := s.engine.Result()
	if res == nil {
		s.writeError(conn, protocol.ErrAborted, "run aborted")
		return
	}
	b, err := json.Marshal(engine.ScoreMessage(*res))
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) writeError(conn *websocket.Conn, code, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func decodeSubscribe(b []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(b, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

// normalizeSubscribe leaves 0 alone so the engine applies its default.
func normalizeSubscribe(sub *protocol.SubscribeMsg) {
	if sub.EveryRounds < 0 {
		sub.EveryRounds = 0
	}
	if sub.EveryRounds > maxEveryRounds {
		sub.EveryRounds = maxEveryRounds
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
