package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"monkeysim.dev/internal/persistence/snapshot"
	"monkeysim.dev/internal/sim/troop"
)

// SQLiteIndex is a queryable read model of runs. It never feeds back into a
// simulation; the JSONL round logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRound    atomic.Uint64
	dropSnapshot atomic.Uint64
	dropRun      atomic.Uint64
}

type reqKind int

const (
	reqRunStart reqKind = iota + 1
	reqRunFinish
	reqRound
	reqSnapshot
)

type req struct {
	kind reqKind

	run      RunRow
	finish   finishRow
	runID    string
	round    troop.RoundLogEntry
	snapshot snapshotRow
}

// RunRow describes a run when it starts.
type RunRow struct {
	RunID         string
	Mode          string
	ReliefDivisor int64
	Modulus       int64
	Monkeys       int
	Rounds        int
	Input         string
	StartedAt     string
}

type finishRow struct {
	RunID      string
	Round      uint64
	Score      int64
	Status     string
	FinishedAt string
}

type snapshotRow struct {
	RunID   string
	Round   uint64
	Path    string
	Mode    string
	Monkeys int
	Items   int
}

// Stats reports queue pressure. Requests are dropped rather than stalling the
// simulation when the writer falls behind.
type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropRoundTotal    uint64
	DropSnapshotTotal uint64
	DropRunTotal      uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			relief_divisor INTEGER NOT NULL,
			modulus INTEGER NOT NULL,
			monkeys INTEGER NOT NULL,
			rounds INTEGER NOT NULL,
			input TEXT NOT NULL,
			started_at TEXT NOT NULL,
			final_round INTEGER,
			score INTEGER,
			status TEXT NOT NULL DEFAULT 'running',
			finished_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			run_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			digest TEXT NOT NULL,
			throws INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			path TEXT NOT NULL,
			mode TEXT NOT NULL,
			monkeys INTEGER NOT NULL,
			items INTEGER NOT NULL,
			PRIMARY KEY (run_id, round)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropRoundTotal:    s.dropRound.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropRunTotal:      s.dropRun.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordRun(r RunRow) {
	if s == nil {
		return
	}
	if r.StartedAt == "" {
		r.StartedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	s.enqueue(req{kind: reqRunStart, run: r}, &s.dropRun)
}

func (s *SQLiteIndex) FinishRun(runID string, round uint64, score int64, status string) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqRunFinish, finish: finishRow{
		RunID:      runID,
		Round:      round,
		Score:      score,
		Status:     status,
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropRun)
}

func (s *SQLiteIndex) WriteRound(runID string, entry troop.RoundLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqRound, runID: runID, round: entry}, &s.dropRound)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		RunID:   snap.Header.RunID,
		Round:   snap.Header.Round,
		Path:    path,
		Mode:    snap.Mode,
		Monkeys: len(snap.Monkeys),
		Items:   snap.ItemCount(),
	}}, &s.dropSnapshot)
}

// RunSink binds the index to one run so it can be used as a round sink.
func (s *SQLiteIndex) RunSink(runID string) *RunSink {
	return &RunSink{idx: s, runID: runID}
}

type RunSink struct {
	idx   *SQLiteIndex
	runID string
}

func (r *RunSink) WriteRound(entry troop.RoundLogEntry) error {
	return r.idx.WriteRound(r.runID, entry)
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,mode,relief_divisor,modulus,monkeys,rounds,input,started_at) VALUES(?,?,?,?,?,?,?,?)`)
	finishRun, _ := s.db.Prepare(`UPDATE runs SET final_round=?, score=?, status=?, finished_at=? WHERE run_id=?`)
	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO rounds(run_id,round,digest,throws,raw_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(run_id,round,path,mode,monkeys,items) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, finishRun, insertRound, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRunStart:
			ru := r.run
			exec(insertRun, ru.RunID, ru.Mode, ru.ReliefDivisor, ru.Modulus, ru.Monkeys, ru.Rounds, ru.Input, ru.StartedAt)
			// Run bookkeeping is rare; make it visible right away.
			commit()
		case reqRunFinish:
			f := r.finish
			exec(finishRun, int64(f.Round), f.Score, f.Status, f.FinishedAt, f.RunID)
			commit()
		case reqRound:
			b, _ := json.Marshal(r.round)
			exec(insertRound, r.runID, int64(r.round.Round), r.round.Digest, r.round.Throws, string(b))
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.RunID, int64(sn.Round), sn.Path, sn.Mode, sn.Monkeys, sn.Items)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
