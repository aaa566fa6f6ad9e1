package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	persistlog "monkeysim.dev/internal/persistence/log"
	"monkeysim.dev/internal/persistence/snapshot"
	"monkeysim.dev/internal/sim/engine"
	"monkeysim.dev/internal/sim/troop"
)

func sampleDefs() []troop.MonkeyDef {
	return []troop.MonkeyDef{
		{Items: []int64{79, 98}, Operation: troop.Multiply(troop.Old(), troop.Literal(19)), Test: troop.Test{Divisor: 23, IfTrue: 2, IfFalse: 3}},
		{Items: []int64{54, 65, 75, 74}, Operation: troop.Add(troop.Old(), troop.Literal(6)), Test: troop.Test{Divisor: 19, IfTrue: 2, IfFalse: 0}},
		{Items: []int64{79, 60, 97}, Operation: troop.Multiply(troop.Old(), troop.Old()), Test: troop.Test{Divisor: 13, IfTrue: 1, IfFalse: 3}},
		{Items: []int64{74}, Operation: troop.Add(troop.Old(), troop.Literal(3)), Test: troop.Test{Divisor: 17, IfTrue: 0, IfFalse: 1}},
	}
}

// recordRun executes a logged, snapshotted run and returns its directory.
func recordRun(t *testing.T, mode troop.Mode, rounds int) string {
	t.Helper()
	runDir := t.TempDir()
	tr, err := troop.New(sampleDefs(), troop.Config{Mode: mode})
	if err != nil {
		t.Fatalf("troop.New: %v", err)
	}
	rl := persistlog.NewRoundLogger(runDir)
	e, err := engine.New(engine.Config{
		RunID:         "replay",
		Rounds:        rounds,
		SnapshotDir:   filepath.Join(runDir, "snapshots"),
		SnapshotEvery: 50,
	}, tr, nil, rl)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}
	return runDir
}

func loadTroop(t *testing.T, runDir string, round uint64) *troop.Troop {
	t.Helper()
	snap, err := snapshot.ReadSnapshot(filepath.Join(runDir, "snapshots", snapshot.FileName(round)))
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	tr, err := troop.FromSnapshot(snap)
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	return tr
}

func eventFiles(t *testing.T, runDir string) []string {
	t.Helper()
	files, err := persistlog.ListEventFiles(filepath.Join(runDir, "events"))
	if err != nil || len(files) == 0 {
		t.Fatalf("ListEventFiles: %v (%d files)", err, len(files))
	}
	return files
}

func TestReplay_FromStartAndMidway(t *testing.T) {
	runDir := recordRun(t, troop.ModeBounded, 120)
	files := eventFiles(t, runDir)

	checked, err := replay(loadTroop(t, runDir, 0), files, 0, 0)
	if err != nil {
		t.Fatalf("replay from 0: %v", err)
	}
	if checked != 120 {
		t.Fatalf("checked=%d want 120", checked)
	}

	checked, err = replay(loadTroop(t, runDir, 50), files, 0, 0)
	if err != nil {
		t.Fatalf("replay from 50: %v", err)
	}
	if checked != 70 {
		t.Fatalf("checked=%d want 70", checked)
	}

	checked, err = replay(loadTroop(t, runDir, 0), files, 10, 60)
	if err != nil {
		t.Fatalf("replay window: %v", err)
	}
	if checked != 51 {
		t.Fatalf("checked=%d want 51", checked)
	}
}

func TestReplay_DetectsMismatch(t *testing.T) {
	bounded := recordRun(t, troop.ModeBounded, 20)
	relief := recordRun(t, troop.ModeRelief, 20)

	_, err := replay(loadTroop(t, relief, 0), eventFiles(t, bounded), 0, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at round 1") {
		t.Fatalf("err=%v want digest mismatch at round 1", err)
	}
}
