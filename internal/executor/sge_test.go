package executor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwork/taskexec/internal/config"
	"github.com/fluxwork/taskexec/internal/task"
)

// spec.md §8 scenario 1.
func TestSGESubmitCommandLineShaping(t *testing.T) {
	cfg, err := config.NewTaskConfig(map[string]any{
		"queue":          "my-queue",
		"maxMemory":      "2GB",
		"maxDuration":    "3h",
		"clusterOptions": "-extra opt",
		"name":           "task x",
	})
	require.NoError(t, err)

	run := &task.Run{
		Name:          "task x",
		WorkDirectory: "/abc",
		Config:        cfg,
	}

	got := SGE{}.SubmitCommandLine(run, "/abc/.job.sh")

	want := strings.Fields("qsub -wd /abc -N nf-task_x -o /dev/null -j y -terse -V -q my-queue -l h_rt=03:00:00 -l virtual_free=2G -extra opt .job.sh")
	assert.Equal(t, want, got)
}

func TestSGESubmitCommandLineOmitsUnsetOptions(t *testing.T) {
	cfg, err := config.NewTaskConfig(nil)
	require.NoError(t, err)

	run := &task.Run{Name: "plain", WorkDirectory: "/w", Config: cfg}
	got := SGE{}.SubmitCommandLine(run, "/w/.command.sh")

	want := []string{"qsub", "-wd", "/w", "-N", "nf-plain", "-o", "/dev/null", "-j", "y", "-terse", "-V", ".command.sh"}
	assert.Equal(t, want, got)
}

// spec.md §8 scenario 2.
func TestSGEParseJobID(t *testing.T) {
	id, err := SGE{}.ParseJobID("blah\n..\n6472\n")
	require.NoError(t, err)
	assert.Equal(t, "6472", id)
}

func TestSGEParseJobIDNoDigitsIsError(t *testing.T) {
	_, err := SGE{}.ParseJobID("no digits here")
	assert.Error(t, err)
}

// spec.md §8 scenario 3.
func TestSGEKillCommand(t *testing.T) {
	assert.Equal(t, []string{"qdel", "-j", "123"}, SGE{}.KillCommand("123"))
}

func TestSGEQueueStatusCommand(t *testing.T) {
	assert.Equal(t, []string{"qstat"}, SGE{}.QueueStatusCommand(""))
	assert.Equal(t, []string{"qstat", "-q", "my-queue"}, SGE{}.QueueStatusCommand("my-queue"))
}

// spec.md §8 scenario 4.
func TestSGEParseQueueStatus(t *testing.T) {
	output := `job-ID  prior   name       user         state submit/start at     queue
-----------------------------------------------------------------------------
7548318 0.50000 nf-a       u            r     07/29/2026 10:00:00 all.q@node1
7548348 0.50000 nf-b       u            r     07/29/2026 10:00:01 all.q@node1
7548349 0.50000 nf-c       u            hqw   07/29/2026 10:00:02
7548904 0.50000 nf-d       u            qw    07/29/2026 10:00:03
7548960 0.50000 nf-e       u            Eqw   07/29/2026 10:00:04
`
	got, err := SGE{}.ParseQueueStatus(output)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, StatusRunning, got["7548318"])
	assert.Equal(t, StatusRunning, got["7548348"])
	assert.Equal(t, StatusHold, got["7548349"])
	assert.Equal(t, StatusPending, got["7548904"])
	assert.Equal(t, StatusError, got["7548960"])
}

func TestSGEParseQueueStatusEmpty(t *testing.T) {
	got, err := SGE{}.ParseQueueStatus("job-ID prior name\n---\n")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFormatHMSZeroPads(t *testing.T) {
	assert.Equal(t, "03:00:00", formatHMS(3*time.Hour))
	assert.Equal(t, "00:01:05", formatHMS(65*time.Second))
}
