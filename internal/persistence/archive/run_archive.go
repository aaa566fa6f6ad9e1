package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"monkeysim.dev/internal/persistence/snapshot"
)

type RunArchiveMeta struct {
	RunID     string  `json:"run_id"`
	Round     uint64  `json:"round"`
	Mode      string  `json:"mode"`
	Modulus   int64   `json:"modulus,omitempty"`
	Monkeys   int     `json:"monkeys"`
	Inspected []int64 `json:"inspected"`
	Score     int64   `json:"score"`
	Snapshot  string  `json:"snapshot"`
	CreatedAt string  `json:"created_at"`
}

// ArchiveRunSnapshot copies the final snapshot of a completed run into
// `runDir/archives/round_<NNNNNN>/` next to a meta.json summary, and returns
// the archived snapshot path.
func ArchiveRunSnapshot(runDir, snapshotPath string, snap snapshot.SnapshotV1, score int64) (string, error) {
	if snapshotPath == "" {
		return "", fmt.Errorf("empty snapshot path")
	}
	archiveDir := filepath.Join(runDir, "archives", fmt.Sprintf("round_%06d", snap.Header.Round))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	inspected := make([]int64, 0, len(snap.Monkeys))
	for _, m := range snap.Monkeys {
		inspected = append(inspected, m.Inspected)
	}
	meta := RunArchiveMeta{
		RunID:     snap.Header.RunID,
		Round:     snap.Header.Round,
		Mode:      snap.Mode,
		Modulus:   snap.Modulus,
		Monkeys:   len(snap.Monkeys),
		Inspected: inspected,
		Score:     score,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

// ReadMeta loads the meta.json written next to an archived snapshot.
func ReadMeta(archivedSnapshotPath string) (RunArchiveMeta, error) {
	var meta RunArchiveMeta
	b, err := os.ReadFile(filepath.Join(filepath.Dir(archivedSnapshotPath), "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
