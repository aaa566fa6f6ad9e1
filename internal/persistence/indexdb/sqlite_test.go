package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"monkeysim.dev/internal/persistence/snapshot"
	"monkeysim.dev/internal/sim/troop"
)

func TestSQLiteIndex_RecordsRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "runs.sqlite")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordRun(RunRow{RunID: "run_1", Mode: "relief", ReliefDivisor: 3, Monkeys: 4, Rounds: 20, Input: "sample.txt"})
	sink := idx.RunSink("run_1")
	for r := uint64(1); r <= 20; r++ {
		if err := sink.WriteRound(troop.RoundLogEntry{Round: r, Digest: "d", Inspected: []int64{1, 2}, Held: []int{1, 1}, Throws: 3}); err != nil {
			t.Fatalf("WriteRound: %v", err)
		}
	}
	idx.RecordSnapshot("/abs/run_1/snapshots/20.snap.zst", snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: snapshot.Version, RunID: "run_1", Round: 20},
		Mode:    "relief",
		Monkeys: []snapshot.MonkeyV1{{Items: []int64{1, 2}}, {Items: []int64{3}}},
	})
	idx.FinishRun("run_1", 20, 10605, "done")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		mode   string
		final  int64
		score  int64
		status string
	)
	if err := db.QueryRow(`SELECT mode,final_round,score,status FROM runs WHERE run_id='run_1'`).Scan(&mode, &final, &score, &status); err != nil {
		t.Fatalf("Scan runs: %v", err)
	}
	if mode != "relief" || final != 20 || score != 10605 || status != "done" {
		t.Fatalf("run row mismatch: mode=%s final=%d score=%d status=%s", mode, final, score, status)
	}

	var rounds int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rounds WHERE run_id='run_1'`).Scan(&rounds); err != nil {
		t.Fatalf("Scan rounds: %v", err)
	}
	if rounds != 20 {
		t.Fatalf("rounds=%d want 20", rounds)
	}

	var items, monkeys int
	if err := db.QueryRow(`SELECT items,monkeys FROM snapshots WHERE run_id='run_1' AND round=20`).Scan(&items, &monkeys); err != nil {
		t.Fatalf("Scan snapshots: %v", err)
	}
	if items != 3 || monkeys != 2 {
		t.Fatalf("snapshot row mismatch: items=%d monkeys=%d", items, monkeys)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRound}

	_ = s.WriteRound("run_1", troop.RoundLogEntry{Round: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})
	s.RecordRun(RunRow{RunID: "run_1"})
	s.FinishRun("run_1", 2, 0, "done")

	st := s.Stats()
	if st.DropRoundTotal != 1 {
		t.Fatalf("DropRoundTotal=%d want=1", st.DropRoundTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.DropRunTotal != 2 {
		t.Fatalf("DropRunTotal=%d want=2", st.DropRunTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	s.RecordRun(RunRow{RunID: "x"})
	if err := s.WriteRound("x", troop.RoundLogEntry{}); err != nil {
		t.Fatalf("WriteRound on nil: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("nil stats: %+v", st)
	}
}
