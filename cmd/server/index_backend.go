package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"monkeysim.dev/internal/persistence/indexdb"
)

// openRuntimeIndex opens the optional read-model index. A nil index is valid
// and ignores every write.
func openRuntimeIndex(runDir string, disableDB bool, logger *log.Logger) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("MS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Printf("index backend disabled (MS_INDEX_BACKEND=%s)", backend)
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(runDir, "index", "run.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported MS_INDEX_BACKEND: %s", backend)
	}
}
