// Package diag produces the monitor's periodic diagnostic dump: counts
// by handler state, ids, and elapsed times (spec.md §4.3), written as a
// read-only JSON artifact nothing replays — no restart recovery is in
// scope here, unlike the snapshot this technique is adapted from.
package diag

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// schemaVersion pins the dump's JSON shape so an external reader can
// detect an incompatible future format.
const schemaVersion = 1

// Entry is one handler's state at dump time.
type Entry struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	Elapsed time.Duration `json:"elapsedNanos"`
}

// Snapshot is the full dump payload for one executor's monitor.
type Snapshot struct {
	SchemaVer    int       `json:"schemaVer"`
	ExecutorName string    `json:"executorName"`
	TakenAt      time.Time `json:"takenAt"`
	ActiveCount  int       `json:"activeCount"`
	Entries      []Entry   `json:"entries"`
}

// CountsByStatus tallies Entries by their Status field.
func (s Snapshot) CountsByStatus() map[string]int {
	counts := make(map[string]int)
	for _, e := range s.Entries {
		counts[e.Status]++
	}
	return counts
}

// Writer persists dumps atomically to a fixed path, the same pattern
// the wrapper script uses in shell for its exit file: temp file then
// os.Rename, so a concurrent reader never observes a partial dump.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter constructs a Writer rooted at path. An empty path disables
// file writes; logging still happens via Log.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Write atomically serializes snapshot as indented JSON to the
// writer's path. It is a no-op if the writer has no path configured.
func (w *Writer) Write(snapshot Snapshot) error {
	if w.path == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot.SchemaVer = schemaVersion
	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("diag: marshal snapshot: %w", err)
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, body, 0o644); err != nil {
		return fmt.Errorf("diag: write temp dump: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("diag: rename dump: %w", err)
	}
	return nil
}

// Log emits the snapshot as a structured log line.
func Log(logger *slog.Logger, snapshot Snapshot) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("monitor diagnostic dump",
		"executor", snapshot.ExecutorName,
		"active", snapshot.ActiveCount,
		"counts", snapshot.CountsByStatus(),
	)
}
