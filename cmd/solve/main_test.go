package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"monkeysim.dev/internal/sim/notes"
	"monkeysim.dev/internal/sim/troop"
	"monkeysim.dev/internal/sim/tuning"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found from %s", dir)
		}
		dir = parent
	}
}

func TestSolve_Sample(t *testing.T) {
	root := findRepoRoot(t)
	defs, err := notes.Load(filepath.Join(root, "configs", "sample.txt"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tune, err := tuning.Load(filepath.Join(root, "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}

	var buf bytes.Buffer
	if err := solve(&buf, defs, tune, true); err != nil {
		t.Fatalf("solve: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"relief (20 rounds): 10605",
		"inspected=[101 95 7 105]",
		"bounded (10000 rounds): 2713310158",
		"inspected=[52166 47830 1938 52013]",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSolve_SingleMonkey(t *testing.T) {
	defs := []troop.MonkeyDef{{
		Items:     []int64{1, 2},
		Operation: troop.Add(troop.Old(), troop.Literal(1)),
		Test:      troop.Test{Divisor: 2, IfTrue: 0, IfFalse: 0},
	}}
	err := solve(&bytes.Buffer{}, defs, tuning.Defaults(), false)
	if !errors.Is(err, troop.ErrTooFewMonkeys) {
		t.Fatalf("err=%v want ErrTooFewMonkeys", err)
	}
}
