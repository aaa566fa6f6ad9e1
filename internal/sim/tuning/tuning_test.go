package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoConfig(t *testing.T) {
	tune, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.Relief.Rounds != 20 || tune.Relief.Divisor != 3 || tune.Bounded.Rounds != 10000 {
		t.Fatalf("unexpected tuning: %+v", tune)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("bounded:\n  rounds: 500\nround_rate_hz: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.Bounded.Rounds != 500 || tune.RoundRateHz != 50 {
		t.Fatalf("file values not applied: %+v", tune)
	}
	if tune.Relief.Rounds != 20 || tune.Relief.Divisor != 3 || tune.Observer.EveryRounds != 100 {
		t.Fatalf("defaults lost: %+v", tune)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("relief:\n  divisor: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
