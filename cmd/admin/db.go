package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const dbUsage = "usage: admin db [-data ./data] [-run RUN|-db PATH] [-limit N] runs|rounds|snapshots"

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	runID := fs.String("run", "", "run id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*runID) == "" {
			fmt.Fprintln(os.Stderr, "missing -run or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "runs", *runID, "index", "run.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := queryDB(os.Stdout, db, q, *runID, *limit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, dbUsage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// queryDB prints one JSON object per row. runID filters rounds and snapshots
// when set.
func queryDB(w io.Writer, db *sql.DB, q, runID string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	switch q {
	case "runs":
		rows, err := db.Query(`SELECT run_id,mode,relief_divisor,modulus,monkeys,rounds,input,started_at,final_round,score,status,finished_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID         string  `json:"run_id"`
				Mode          string  `json:"mode"`
				ReliefDivisor int64   `json:"relief_divisor"`
				Modulus       int64   `json:"modulus"`
				Monkeys       int     `json:"monkeys"`
				Rounds        int     `json:"rounds"`
				Input         string  `json:"input"`
				StartedAt     string  `json:"started_at"`
				FinalRound    *int64  `json:"final_round,omitempty"`
				Score         *int64  `json:"score,omitempty"`
				Status        string  `json:"status"`
				FinishedAt    *string `json:"finished_at,omitempty"`
			}
			if err := rows.Scan(&r.RunID, &r.Mode, &r.ReliefDivisor, &r.Modulus, &r.Monkeys, &r.Rounds, &r.Input, &r.StartedAt, &r.FinalRound, &r.Score, &r.Status, &r.FinishedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return rows.Err()

	case "rounds":
		rows, err := db.Query(`SELECT run_id,round,digest,throws,raw_json FROM rounds WHERE (?='' OR run_id=?) ORDER BY round DESC LIMIT ?`, runID, runID, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID   string          `json:"run_id"`
				Round   uint64          `json:"round"`
				Digest  string          `json:"digest"`
				Throws  int             `json:"throws"`
				RawJSON string          `json:"-"`
				Entry   json.RawMessage `json:"entry"`
			}
			if err := rows.Scan(&r.RunID, &r.Round, &r.Digest, &r.Throws, &r.RawJSON); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Entry = json.RawMessage(r.RawJSON)
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return rows.Err()

	case "snapshots":
		rows, err := db.Query(`SELECT run_id,round,path,mode,monkeys,items FROM snapshots WHERE (?='' OR run_id=?) ORDER BY round DESC LIMIT ?`, runID, runID, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RunID   string `json:"run_id"`
				Round   uint64 `json:"round"`
				Path    string `json:"path"`
				Mode    string `json:"mode"`
				Monkeys int    `json:"monkeys"`
				Items   int    `json:"items"`
			}
			if err := rows.Scan(&r.RunID, &r.Round, &r.Path, &r.Mode, &r.Monkeys, &r.Items); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s", q)
	}
}
