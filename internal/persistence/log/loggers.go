package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"monkeysim.dev/internal/sim/troop"
)

// DefaultLinesPerFile bounds the size of one segment.
const DefaultLinesPerFile = 10000

// JSONLZstdWriter appends JSON lines to numbered zstd segments
// (prefix-000001.jsonl.zst, prefix-000002.jsonl.zst, ...). A new writer
// continues after the highest existing segment, so segment names sort in
// write order across restarts.
type JSONLZstdWriter struct {
	baseDir      string
	prefix       string
	linesPerFile int

	mu    sync.Mutex
	seq   int
	lines int
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string, linesPerFile int) *JSONLZstdWriter {
	if linesPerFile <= 0 {
		linesPerFile = DefaultLinesPerFile
	}
	return &JSONLZstdWriter{
		baseDir:      baseDir,
		prefix:       prefix,
		linesPerFile: linesPerFile,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil || w.lines >= w.linesPerFile {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	if w.seq == 0 {
		last, err := w.lastSeq()
		if err != nil {
			return err
		}
		w.seq = last
	}
	w.seq++
	f, err := os.OpenFile(w.pathForSeq(w.seq), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.lines = 0
	return nil
}

func (w *JSONLZstdWriter) lastSeq() (int, error) {
	matches, err := filepath.Glob(filepath.Join(w.baseDir, w.prefix+"-*.jsonl.zst"))
	if err != nil {
		return 0, err
	}
	last := 0
	for _, m := range matches {
		s := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), w.prefix+"-"), ".jsonl.zst")
		if n, err := strconv.Atoi(s); err == nil && n > last {
			last = n
		}
	}
	return last, nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForSeq(seq int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%06d.jsonl.zst", w.prefix, seq))
}

// RoundLogger writes one JSONL entry per round (compressed).
type RoundLogger struct{ w *JSONLZstdWriter }

func NewRoundLogger(runDir string) *RoundLogger {
	return &RoundLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, "events"), "events", DefaultLinesPerFile)}
}

func (l *RoundLogger) WriteRound(v troop.RoundLogEntry) error { return l.w.Write(v) }
func (l *RoundLogger) Close() error                           { return l.w.Close() }
