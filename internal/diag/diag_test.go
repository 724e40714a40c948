package diag

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAtomicWriteRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	w := NewWriter(path)

	snap := Snapshot{
		ExecutorName: "sge",
		TakenAt:      time.Unix(0, 0).UTC(),
		ActiveCount:  2,
		Entries: []Entry{
			{ID: "1", Name: "a", Status: "RUNNING", Elapsed: time.Second},
			{ID: "2", Name: "b", Status: "PENDING"},
		},
	}
	require.NoError(t, w.Write(snap))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	body, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, schemaVersion, got.SchemaVer)
	assert.Equal(t, "sge", got.ExecutorName)
	assert.Len(t, got.Entries, 2)
}

func TestWriterNoPathIsNoOp(t *testing.T) {
	w := NewWriter("")
	assert.NoError(t, w.Write(Snapshot{}))
}

func TestCountsByStatus(t *testing.T) {
	snap := Snapshot{Entries: []Entry{
		{Status: "RUNNING"}, {Status: "RUNNING"}, {Status: "COMPLETED"},
	}}
	counts := snap.CountsByStatus()
	assert.Equal(t, 2, counts["RUNNING"])
	assert.Equal(t, 1, counts["COMPLETED"])
}
