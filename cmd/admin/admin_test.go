package main

import (
	"bufio"
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"monkeysim.dev/internal/persistence/archive"
	"monkeysim.dev/internal/persistence/indexdb"
	"monkeysim.dev/internal/persistence/snapshot"
	"monkeysim.dev/internal/sim/notes"
	"monkeysim.dev/internal/sim/troop"
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

func lines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestQueryDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordRun(indexdb.RunRow{RunID: "a", Mode: "bounded", Modulus: 96577, Monkeys: 4, Rounds: 10, Input: "sample.txt"})
	idx.RecordRun(indexdb.RunRow{RunID: "b", Mode: "relief", ReliefDivisor: 3, Monkeys: 4, Rounds: 20, Input: "sample.txt"})
	for r := uint64(1); r <= 10; r++ {
		_ = idx.WriteRound("a", troop.RoundLogEntry{Round: r, Digest: "d", Inspected: []int64{1}, Held: []int{1}, Throws: 2})
	}
	_ = idx.WriteRound("b", troop.RoundLogEntry{Round: 1, Digest: "x"})
	idx.RecordSnapshot("/runs/a/snapshots/10.snap.zst", snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: snapshot.Version, RunID: "a", Round: 10},
		Mode:    "bounded",
		Monkeys: []snapshot.MonkeyV1{{Items: []int64{1, 2, 3}}},
	})
	idx.FinishRun("a", 10, 42, "done")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := queryDB(&buf, db, "runs", "", 10); err != nil {
		t.Fatalf("runs: %v", err)
	}
	runs := lines(t, buf.Bytes())
	if len(runs) != 2 {
		t.Fatalf("runs=%d want 2", len(runs))
	}
	for _, r := range runs {
		switch r["run_id"] {
		case "a":
			if r["score"] != float64(42) || r["status"] != "done" {
				t.Fatalf("run a=%v", r)
			}
		case "b":
			if _, ok := r["score"]; ok || r["status"] != "running" {
				t.Fatalf("run b=%v", r)
			}
		}
	}

	buf.Reset()
	if err := queryDB(&buf, db, "rounds", "a", 3); err != nil {
		t.Fatalf("rounds: %v", err)
	}
	rounds := lines(t, buf.Bytes())
	if len(rounds) != 3 || rounds[0]["round"] != float64(10) {
		t.Fatalf("rounds=%v", rounds)
	}
	if entry, ok := rounds[0]["entry"].(map[string]any); !ok || entry["throws"] != float64(2) {
		t.Fatalf("entry=%v", rounds[0]["entry"])
	}

	buf.Reset()
	if err := queryDB(&buf, db, "snapshots", "a", 0); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	snaps := lines(t, buf.Bytes())
	if len(snaps) != 1 || snaps[0]["items"] != float64(3) {
		t.Fatalf("snapshots=%v", snaps)
	}

	if err := queryDB(&buf, db, "agents", "", 0); err == nil || !strings.HasPrefix(err.Error(), "unknown query") {
		t.Fatalf("unknown query err=%v", err)
	}
}

func TestConvert_RoundTrips(t *testing.T) {
	root := findRepoRoot(t)
	src := filepath.Join(root, "configs", "sample.txt")
	want, err := notes.Load(src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, tc := range []struct{ format, ext string }{{"yaml", ".yaml"}, {"json", ".json"}} {
		var buf bytes.Buffer
		if err := convert(&buf, src, tc.format); err != nil {
			t.Fatalf("convert %s: %v", tc.format, err)
		}
		out := filepath.Join(t.TempDir(), "notes"+tc.ext)
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := notes.Load(out)
		if err != nil {
			t.Fatalf("reload %s: %v", tc.format, err)
		}
		if len(got) != len(want) {
			t.Fatalf("%s: %d monkeys want %d", tc.format, len(got), len(want))
		}
		for i := range want {
			if got[i].Operation != want[i].Operation || got[i].Test != want[i].Test || len(got[i].Items) != len(want[i].Items) {
				t.Fatalf("%s monkey %d: got %+v want %+v", tc.format, i, got[i], want[i])
			}
		}
	}

	if err := convert(&bytes.Buffer{}, src, "toml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestListArchives(t *testing.T) {
	runDir := t.TempDir()
	snap := snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: snapshot.Version, RunID: "a", Round: 20},
		Mode:    "relief",
		Monkeys: []snapshot.MonkeyV1{{Inspected: 101}, {Inspected: 105}},
	}
	src := filepath.Join(runDir, "snapshots", snapshot.FileName(20))
	if err := snapshot.WriteSnapshot(src, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := archive.ArchiveRunSnapshot(runDir, src, snap, 10605); err != nil {
		t.Fatalf("ArchiveRunSnapshot: %v", err)
	}

	var buf bytes.Buffer
	if err := listArchives(&buf, runDir); err != nil {
		t.Fatalf("listArchives: %v", err)
	}
	got := lines(t, buf.Bytes())
	if len(got) != 1 || got[0]["score"] != float64(10605) || got[0]["run_id"] != "a" {
		t.Fatalf("archives=%v", got)
	}
}

func TestFetchState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/state" {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write([]byte(`{"run_id":"a","round":20,"done":true}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	if err := fetchState(&buf, srv.Client(), srv.URL+"/"); err != nil {
		t.Fatalf("fetchState: %v", err)
	}
	got := lines(t, []byte(strings.Join(strings.Fields(buf.String()), "")))
	if len(got) != 1 || got[0]["run_id"] != "a" || got[0]["round"] != float64(20) {
		t.Fatalf("state=%v", got)
	}
	if !strings.Contains(buf.String(), "\n  \"run_id\": \"a\"") {
		t.Fatalf("state not indented:\n%s", buf.String())
	}

	if err := fetchState(&bytes.Buffer{}, srv.Client(), srv.URL+"/missing"); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}
