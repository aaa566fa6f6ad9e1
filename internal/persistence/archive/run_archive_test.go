package archive

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"monkeysim.dev/internal/persistence/snapshot"
)

func TestArchiveRunSnapshot_CopiesFinalSnapshot(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "runs", "run_1")

	src := filepath.Join(runDir, "snapshots", snapshot.FileName(20))
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	want := []byte("dummy")
	if err := os.WriteFile(src, want, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, RunID: "run_1", Round: 20},
		Mode:   "relief",
		Monkeys: []snapshot.MonkeyV1{
			{Inspected: 101}, {Inspected: 95}, {Inspected: 7}, {Inspected: 105},
		},
	}

	archivedPath, err := ArchiveRunSnapshot(runDir, src, snap, 10605)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if filepath.Base(filepath.Dir(archivedPath)) != "round_000020" {
		t.Fatalf("unexpected archive dir: %s", archivedPath)
	}

	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("archived content mismatch: got=%q want=%q", string(got), string(want))
	}

	meta, err := ReadMeta(archivedPath)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.RunID != "run_1" || meta.Score != 10605 || !reflect.DeepEqual(meta.Inspected, []int64{101, 95, 7, 105}) {
		t.Fatalf("meta mismatch: %+v", meta)
	}
}

func TestArchiveRunSnapshot_MissingSource(t *testing.T) {
	runDir := t.TempDir()
	snap := snapshot.SnapshotV1{Header: snapshot.Header{Round: 1}}
	if _, err := ArchiveRunSnapshot(runDir, filepath.Join(runDir, "nope.snap.zst"), snap, 0); err == nil {
		t.Fatalf("expected error for missing snapshot")
	}
}
