package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"monkeysim.dev/internal/persistence/indexdb"
	"monkeysim.dev/internal/sim/engine"
	"monkeysim.dev/internal/transport/observer"
)

type stateResponse struct {
	RunID  string         `json:"run_id"`
	Round  uint64         `json:"round"`
	Done   bool           `json:"done"`
	Result *engine.Result `json:"result,omitempty"`
	Index  indexdb.Stats  `json:"index"`
}

func newMux(e *engine.Engine, obs *observer.Server, idx *indexdb.SQLiteIndex) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, e, idx.Stats())
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := stateResponse{
			RunID:  e.RunID(),
			Round:  e.CurrentRound(),
			Result: e.Result(),
			Index:  idx.Stats(),
		}
		select {
		case <-e.Done():
			resp.Done = true
		default:
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obs.WSHandler())
	return mux
}

// writeMetrics renders a minimal Prometheus exposition.
func writeMetrics(rw http.ResponseWriter, e *engine.Engine, s indexdb.Stats) {
	run := e.RunID()
	fmt.Fprintf(rw, "# HELP monkeysim_round Current round of the run.\n")
	fmt.Fprintf(rw, "# TYPE monkeysim_round gauge\n")
	fmt.Fprintf(rw, "monkeysim_round{run=%q} %d\n", run, e.CurrentRound())

	if res := e.Result(); res != nil {
		fmt.Fprintf(rw, "# HELP monkeysim_score Monkey business score of the completed run.\n")
		fmt.Fprintf(rw, "# TYPE monkeysim_score gauge\n")
		fmt.Fprintf(rw, "monkeysim_score{run=%q} %d\n", run, res.Score)
	}

	fmt.Fprintf(rw, "# HELP monkeysim_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE monkeysim_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "monkeysim_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP monkeysim_index_dropped_total Index writes dropped under backpressure.\n")
	fmt.Fprintf(rw, "# TYPE monkeysim_index_dropped_total counter\n")
	fmt.Fprintf(rw, "monkeysim_index_dropped_total{kind=%q} %d\n", "round", s.DropRoundTotal)
	fmt.Fprintf(rw, "monkeysim_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
	fmt.Fprintf(rw, "monkeysim_index_dropped_total{kind=%q} %d\n", "run", s.DropRunTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
