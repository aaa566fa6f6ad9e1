package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"monkeysim.dev/internal/persistence/archive"
	"monkeysim.dev/internal/persistence/indexdb"
	persistlog "monkeysim.dev/internal/persistence/log"
	"monkeysim.dev/internal/persistence/snapshot"
	"monkeysim.dev/internal/sim/engine"
	"monkeysim.dev/internal/sim/notes"
	"monkeysim.dev/internal/sim/troop"
	"monkeysim.dev/internal/sim/tuning"
	"monkeysim.dev/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		runID      = flag.String("run", "run_1", "run id")
		inputPath  = flag.String("input", "./configs/sample.txt", "monkey notes (.txt, .json, .yaml)")
		modeFlag   = flag.String("mode", "bounded", "dampening mode: relief or bounded")
		rounds     = flag.Int("rounds", 0, "stop at this round (default: tuning value for the mode)")
		rateHz     = flag.Int("rate_hz", -1, "rounds per second, 0 = unthrottled (default: tuning value)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")
		exitOnDone = flag.Bool("exit_on_done", false, "exit once the run completes instead of serving its result")

		snapPath   = flag.String("snapshot", "", "path to snapshot to resume from (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", false, "resume from the latest snapshot in the run dir (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	runDir := filepath.Join(*dataDir, "runs", *runID)
	snapDir := filepath.Join(runDir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		logger.Fatalf("mkdir run dir: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(snapDir)
	}

	var tr *troop.Troop
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.RunID != "" && snap.Header.RunID != *runID {
			logger.Fatalf("snapshot run id mismatch: flag=%s snap=%s", *runID, snap.Header.RunID)
		}
		if tr, err = troop.FromSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s round=%d", filepath.Base(snapshotToLoad), tr.CurrentRound())
	} else {
		mode, err := troop.ParseMode(*modeFlag)
		if err != nil {
			logger.Fatalf("mode: %v", err)
		}
		defs, err := notes.Load(*inputPath)
		if err != nil {
			logger.Fatalf("load notes: %v", err)
		}
		if tr, err = troop.New(defs, troop.Config{Mode: mode, ReliefDivisor: tune.Relief.Divisor}); err != nil {
			logger.Fatalf("troop: %v", err)
		}
	}

	target := *rounds
	if target <= 0 {
		target = tune.Bounded.Rounds
		if tr.Config().Mode == troop.ModeRelief {
			target = tune.Relief.Rounds
		}
	}
	rate := tune.RoundRateHz
	if *rateHz >= 0 {
		rate = *rateHz
	}

	idx, err := openRuntimeIndex(runDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}
	idx.RecordRun(indexdb.RunRow{
		RunID:         *runID,
		Mode:          string(tr.Config().Mode),
		ReliefDivisor: tr.Config().ReliefDivisor,
		Modulus:       tr.Modulus(),
		Monkeys:       tr.Len(),
		Rounds:        target,
		Input:         *inputPath,
	})

	roundLog := persistlog.NewRoundLogger(runDir)
	defer roundLog.Close()

	e, err := engine.New(engine.Config{
		RunID:         *runID,
		Rounds:        target,
		RoundRateHz:   rate,
		SnapshotDir:   snapDir,
		SnapshotEvery: tune.SnapshotEveryRounds,
		OnSnapshot:    idx.RecordSnapshot,
		ObserverEvery: tune.Observer.EveryRounds,
	}, tr, logger, roundLog, idx.RunSink(*runID))
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		res, err := e.Run(ctx)
		if err != nil {
			idx.FinishRun(*runID, e.CurrentRound(), 0, "aborted")
			if err != context.Canceled {
				logger.Printf("run stopped: %v", err)
			}
			return
		}
		idx.FinishRun(*runID, res.Round, res.Score, "done")
		if err := archiveResult(runDir, res); err != nil {
			logger.Printf("archive run: %v", err)
		}
		fmt.Printf("run %s: round=%d score=%d inspected=%v\n", res.RunID, res.Round, res.Score, res.Inspected)
		if *exitOnDone {
			cancel()
		}
	}()

	obsSrv := observer.NewServer(e, tune.Observer.MaxSessions, logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(e, obsSrv, idx),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-runDone
}

func archiveResult(runDir string, res engine.Result) error {
	if res.SnapshotPath == "" {
		return nil
	}
	snap, err := snapshot.ReadSnapshot(res.SnapshotPath)
	if err != nil {
		return err
	}
	_, err = archive.ArchiveRunSnapshot(runDir, res.SnapshotPath, snap, res.Score)
	return err
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestRound uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		round, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || round > bestRound {
			bestRound = round
			best = filepath.Join(dir, name)
		}
	}
	return best
}
