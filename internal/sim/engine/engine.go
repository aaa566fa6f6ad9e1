// Package engine drives one troop through a run: pacing, round logs,
// snapshots and observer fan-out. The troop itself is only ever touched by
// the goroutine executing Run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"monkeysim.dev/internal/persistence/snapshot"
	"monkeysim.dev/internal/protocol"
	"monkeysim.dev/internal/sim/troop"
)

// RoundSink receives every completed round in order.
type RoundSink interface {
	WriteRound(troop.RoundLogEntry) error
}

type Config struct {
	RunID string

	// Rounds is the round number the run stops at. A troop resumed from a
	// snapshot continues from its current round.
	Rounds int

	// RoundRateHz paces rounds; 0 runs them back to back.
	RoundRateHz int

	// SnapshotDir enables snapshots: one before the first round, one every
	// SnapshotEvery rounds and one after the last round.
	SnapshotDir   string
	SnapshotEvery int
	OnSnapshot    func(path string, snap snapshot.SnapshotV1)

	// ObserverEvery is the default ROUND sampling interval for observers
	// that do not ask for one.
	ObserverEvery int
}

func (c *Config) applyDefaults() {
	if c.RunID == "" {
		c.RunID = "run"
	}
	if c.ObserverEvery <= 0 {
		c.ObserverEvery = 1
	}
}

type Result struct {
	RunID        string
	Round        uint64
	Inspected    []int64
	Score        int64
	Digest       string
	SnapshotPath string
}

type Engine struct {
	cfg   Config
	troop *troop.Troop
	log   *log.Logger
	sinks []RoundSink

	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}
	stopOnce      sync.Once
	done          chan struct{}

	observers map[string]*observerClient

	round     atomic.Uint64
	bootstrap protocol.BootstrapResponse
	result    atomic.Pointer[Result]
	lastSnap  string
}

func New(cfg Config, t *troop.Troop, logger *log.Logger, sinks ...RoundSink) (*Engine, error) {
	cfg.applyDefaults()
	if t == nil {
		return nil, errors.New("nil troop")
	}
	if t.Err() != nil {
		return nil, fmt.Errorf("troop already failed: %w", t.Err())
	}
	if cfg.Rounds < 0 || cfg.RoundRateHz < 0 || cfg.SnapshotEvery < 0 {
		return nil, fmt.Errorf("invalid engine config: rounds=%d rate=%d snapshot_every=%d", cfg.Rounds, cfg.RoundRateHz, cfg.SnapshotEvery)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Engine{
		cfg:           cfg,
		troop:         t,
		log:           logger,
		sinks:         sinks,
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		observers:     map[string]*observerClient{},
	}
	e.round.Store(t.CurrentRound())
	e.bootstrap = buildBootstrap(cfg, t)
	return e, nil
}

func buildBootstrap(cfg Config, t *troop.Troop) protocol.BootstrapResponse {
	tc := t.Config()
	resp := protocol.BootstrapResponse{
		ProtocolVersion: protocol.Version,
		RunID:           cfg.RunID,
		Params: protocol.RunParams{
			Mode:        string(tc.Mode),
			Rounds:      cfg.Rounds,
			RoundRateHz: cfg.RoundRateHz,
			Modulus:     t.Modulus(),
		},
		Monkeys: make([]protocol.MonkeyInfo, 0, t.Len()),
	}
	if tc.Mode == troop.ModeRelief {
		resp.Params.ReliefDivisor = tc.ReliefDivisor
	}
	for i := 0; i < t.Len(); i++ {
		m := t.Monkey(i)
		resp.Monkeys = append(resp.Monkeys, protocol.MonkeyInfo{
			ID:        i,
			Operation: m.Operation().String(),
			Divisor:   m.Test().Divisor,
			IfTrue:    m.Test().IfTrue,
			IfFalse:   m.Test().IfFalse,
		})
	}
	return resp
}

func (e *Engine) RunID() string { return e.cfg.RunID }

// CurrentRound is safe to call from any goroutine.
func (e *Engine) CurrentRound() uint64 { return e.round.Load() }

// Bootstrap describes the run for observers. Safe from any goroutine.
func (e *Engine) Bootstrap() protocol.BootstrapResponse {
	b := e.bootstrap
	b.Round = e.round.Load()
	b.Monkeys = append([]protocol.MonkeyInfo(nil), e.bootstrap.Monkeys...)
	return b
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Result is the completed run's outcome, or nil while running or after an
// aborted run.
func (e *Engine) Result() *Result { return e.result.Load() }

func (e *Engine) Stop() { e.stopOnce.Do(func() { close(e.stop) }) }

var errStopped = errors.New("engine stopped")

// Run executes rounds until the configured round count, ctx is cancelled,
// Stop is called or the troop fails.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	defer close(e.done)
	defer e.closeObservers()

	if err := e.maybeSnapshot(true); err != nil {
		return Result{}, err
	}

	var tick <-chan time.Time
	if e.cfg.RoundRateHz > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(e.cfg.RoundRateHz))
		defer ticker.Stop()
		tick = ticker.C
	} else {
		ready := make(chan time.Time)
		close(ready)
		tick = ready
	}

	target := uint64(e.cfg.Rounds)
	e.log.Printf("run %s: %s mode, %d monkeys, rounds %d..%d", e.cfg.RunID, e.troop.Config().Mode, e.troop.Len(), e.troop.CurrentRound()+1, target)
	start := time.Now()

	for e.troop.CurrentRound() < target {
		select {
		case <-ctx.Done():
			return Result{}, e.abort(ctx.Err())
		case <-e.stop:
			return Result{}, e.abort(errStopped)
		case req := <-e.observerJoin:
			e.handleObserverJoin(req)
		case req := <-e.observerSub:
			e.handleObserverSubscribe(req)
		case id := <-e.observerLeave:
			e.handleObserverLeave(id)
		case <-tick:
			if err := e.stepRound(); err != nil {
				return Result{}, e.abort(err)
			}
		}
	}

	if err := e.maybeSnapshot(true); err != nil {
		return Result{}, e.abort(err)
	}
	score, err := e.troop.Score()
	if err != nil {
		return Result{}, e.abort(err)
	}
	res := Result{
		RunID:        e.cfg.RunID,
		Round:        e.troop.CurrentRound(),
		Inspected:    e.troop.Inspections(),
		Score:        score,
		Digest:       e.troop.Digest(),
		SnapshotPath: e.lastSnap,
	}
	e.result.Store(&res)
	e.drainObserverRequests()
	e.broadcastScore(res)
	e.log.Printf("run %s: done at round %d in %s, score=%d inspected=%v", res.RunID, res.Round, time.Since(start).Round(time.Millisecond), res.Score, res.Inspected)
	return res, nil
}

func (e *Engine) stepRound() error {
	entry, err := e.troop.Round()
	if err != nil {
		return err
	}
	e.round.Store(entry.Round)
	for _, s := range e.sinks {
		if err := s.WriteRound(entry); err != nil {
			return fmt.Errorf("round %d log: %w", entry.Round, err)
		}
	}
	e.broadcastRound(entry)
	return e.maybeSnapshot(false)
}

func (e *Engine) abort(err error) error {
	code := protocol.ErrAborted
	if errors.Is(err, troop.ErrOverflow) {
		code = protocol.ErrOverflow
	}
	e.drainObserverRequests()
	e.broadcastError(code, err.Error())
	e.log.Printf("run %s: aborted at round %d: %v", e.cfg.RunID, e.troop.CurrentRound(), err)
	return err
}

// maybeSnapshot writes a snapshot when due; force writes one unless the
// current round was already captured.
func (e *Engine) maybeSnapshot(force bool) error {
	if e.cfg.SnapshotDir == "" {
		return nil
	}
	round := e.troop.CurrentRound()
	path := filepath.Join(e.cfg.SnapshotDir, snapshot.FileName(round))
	if path == e.lastSnap {
		return nil
	}
	due := e.cfg.SnapshotEvery > 0 && round%uint64(e.cfg.SnapshotEvery) == 0
	if !force && !due {
		return nil
	}
	snap := e.troop.ExportSnapshot(e.cfg.RunID)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return fmt.Errorf("snapshot round %d: %w", round, err)
	}
	e.lastSnap = path
	if e.cfg.OnSnapshot != nil {
		e.cfg.OnSnapshot(path, snap)
	}
	return nil
}
