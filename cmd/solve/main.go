package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"monkeysim.dev/internal/sim/notes"
	"monkeysim.dev/internal/sim/troop"
	"monkeysim.dev/internal/sim/tuning"
)

func main() {
	var (
		inputPath  = flag.String("input", "./configs/sample.txt", "monkey notes (.txt, .json, .yaml)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		verbose    = flag.Bool("v", false, "print per-monkey inspection counts")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	defs, err := notes.Load(*inputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load notes:", err)
		os.Exit(1)
	}
	if err := solve(os.Stdout, defs, tune, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "solve:", err)
		os.Exit(1)
	}
}

// solve prints the relief score and the bounded score for defs.
func solve(w io.Writer, defs []troop.MonkeyDef, tune tuning.Tuning, verbose bool) error {
	passes := []struct {
		cfg    troop.Config
		rounds int
	}{
		{troop.Config{Mode: troop.ModeRelief, ReliefDivisor: tune.Relief.Divisor}, tune.Relief.Rounds},
		{troop.Config{Mode: troop.ModeBounded}, tune.Bounded.Rounds},
	}
	for _, p := range passes {
		tr, err := troop.New(defs, p.cfg)
		if err != nil {
			return err
		}
		if err := tr.Run(p.rounds); err != nil {
			return fmt.Errorf("%s after round %d: %w", p.cfg.Mode, tr.CurrentRound(), err)
		}
		score, err := tr.Score()
		if err != nil {
			return fmt.Errorf("%s: %w", p.cfg.Mode, err)
		}
		fmt.Fprintf(w, "%s (%d rounds): %d\n", p.cfg.Mode, p.rounds, score)
		if verbose {
			fmt.Fprintf(w, "  inspected=%v\n", tr.Inspections())
		}
	}
	return nil
}
