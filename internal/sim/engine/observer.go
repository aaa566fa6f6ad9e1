package engine

import (
	"encoding/json"

	"monkeysim.dev/internal/protocol"
	"monkeysim.dev/internal/sim/troop"
)

// ObserverJoinRequest registers a read-only observer. Out receives encoded
// ROUND/SCORE/ERROR messages and is closed by the engine on leave or when
// the run ends.
type ObserverJoinRequest struct {
	SessionID   string
	Out         chan []byte
	EveryRounds int
}

// ObserverSubscribeRequest changes an existing session's sampling interval.
type ObserverSubscribeRequest struct {
	SessionID   string
	EveryRounds int
}

type observerClient struct {
	id    string
	out   chan []byte
	every uint64
}

func (e *Engine) ObserverJoin() chan<- ObserverJoinRequest           { return e.observerJoin }
func (e *Engine) ObserverSubscribe() chan<- ObserverSubscribeRequest { return e.observerSub }
func (e *Engine) ObserverLeave() chan<- string                       { return e.observerLeave }

func (e *Engine) everyOrDefault(n int) uint64 {
	if n <= 0 {
		n = e.cfg.ObserverEvery
	}
	return uint64(n)
}

func (e *Engine) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := e.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	e.observers[req.SessionID] = &observerClient{
		id:    req.SessionID,
		out:   req.Out,
		every: e.everyOrDefault(req.EveryRounds),
	}
}

func (e *Engine) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := e.observers[req.SessionID]
	if c == nil {
		return
	}
	c.every = e.everyOrDefault(req.EveryRounds)
}

func (e *Engine) handleObserverLeave(sessionID string) {
	c := e.observers[sessionID]
	if c == nil {
		return
	}
	delete(e.observers, sessionID)
	close(c.out)
}

// drainObserverRequests applies queued requests without blocking so late
// joiners still receive the final message.
func (e *Engine) drainObserverRequests() {
	for {
		select {
		case req := <-e.observerJoin:
			e.handleObserverJoin(req)
		case req := <-e.observerSub:
			e.handleObserverSubscribe(req)
		case id := <-e.observerLeave:
			e.handleObserverLeave(id)
		default:
			return
		}
	}
}

func (e *Engine) closeObservers() {
	e.drainObserverRequests()
	for id, c := range e.observers {
		delete(e.observers, id)
		close(c.out)
	}
}

func (e *Engine) broadcastRound(entry troop.RoundLogEntry) {
	if len(e.observers) == 0 {
		return
	}
	last := entry.Round >= uint64(e.cfg.Rounds)
	var b []byte
	for _, c := range e.observers {
		if !last && entry.Round%c.every != 0 {
			continue
		}
		if b == nil {
			msg := protocol.RoundMsg{
				Type:            protocol.TypeRound,
				ProtocolVersion: protocol.Version,
				RunID:           e.cfg.RunID,
				Round:           entry.Round,
				Digest:          entry.Digest,
				Inspected:       entry.Inspected,
				Held:            entry.Held,
				Throws:          entry.Throws,
			}
			var err error
			if b, err = json.Marshal(msg); err != nil {
				e.log.Printf("run %s: encode round %d: %v", e.cfg.RunID, entry.Round, err)
				return
			}
		}
		sendLatest(c.out, b)
	}
}

func (e *Engine) broadcastScore(res Result) {
	e.broadcast(ScoreMessage(res))
}

func (e *Engine) broadcastError(code, message string) {
	e.broadcast(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
}

func (e *Engine) broadcast(msg any) {
	if len(e.observers) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		e.log.Printf("run %s: encode: %v", e.cfg.RunID, err)
		return
	}
	for _, c := range e.observers {
		sendLatest(c.out, b)
	}
}

// ScoreMessage renders a completed run as the SCORE message.
func ScoreMessage(res Result) protocol.ScoreMsg {
	return protocol.ScoreMsg{
		Type:            protocol.TypeScore,
		ProtocolVersion: protocol.Version,
		RunID:           res.RunID,
		Round:           res.Round,
		Inspected:       res.Inspected,
		Score:           res.Score,
	}
}

// sendLatest never blocks: when the buffer is full the oldest message is
// dropped so a slow observer always sees the newest state.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
