package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "monkeysim.dev/internal/persistence/log"
	"monkeysim.dev/internal/persistence/snapshot"
	"monkeysim.dev/internal/sim/troop"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		fromRound = flag.Uint64("from_round", 0, "start verifying from round (inclusive, optional)")
		toRound   = flag.Uint64("to_round", 0, "stop at round (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d run=%s round=%d mode=%s modulus=%d monkeys=%d items=%d\n",
		snap.Header.Version, snap.Header.RunID, snap.Header.Round, snap.Mode, snap.Modulus,
		len(snap.Monkeys), snap.ItemCount())

	if *eventsDir == "" {
		return
	}

	tr, err := troop.FromSnapshot(snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}

	files, err := persistlog.ListEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	checked, err := replay(tr, files, *fromRound, *toRound)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d rounds (from snapshot round=%d)\n", checked, snap.Header.Round)
}

var errDone = errors.New("done")

// replay steps tr through every logged round after its current round and
// compares digests from verifyFrom on. toRound 0 means no upper bound.
func replay(tr *troop.Troop, files []string, verifyFrom, toRound uint64) (uint64, error) {
	startRound := tr.CurrentRound()
	var checked uint64
	for _, path := range files {
		err := persistlog.ScanRounds(path, func(entry troop.RoundLogEntry) error {
			if entry.Round <= startRound {
				return nil
			}
			if toRound != 0 && entry.Round > toRound {
				return errDone
			}
			if want := tr.CurrentRound() + 1; entry.Round != want {
				return fmt.Errorf("round gap: want=%d got=%d (file=%s)", want, entry.Round, filepath.Base(path))
			}
			round, digest, err := tr.StepOnce()
			if err != nil {
				return fmt.Errorf("round %d: %w", entry.Round, err)
			}
			if round >= verifyFrom {
				checked++
				if digest != entry.Digest {
					return fmt.Errorf("digest mismatch at round %d: got=%s want=%s", round, digest, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errDone) {
			break
		}
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}
