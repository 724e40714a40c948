package handler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwork/taskexec/internal/config"
	"github.com/fluxwork/taskexec/internal/task"
)

func newLocalRun(t *testing.T, script string) *task.Run {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.NewTaskConfig(nil)
	require.NoError(t, err)
	run := &task.Run{
		Name:          "local test",
		WorkDirectory: dir,
		Type:          task.Shell,
		Config:        cfg,
	}
	require.NoError(t, os.WriteFile(run.CmdWrapperFile(), []byte("#!/bin/bash\n"+script+"\n"), 0o755))
	return run
}

func TestLocalProcessRunsToCompletion(t *testing.T) {
	run := newLocalRun(t, "exit 3")
	h := NewLocalProcess(run)

	require.NoError(t, h.Submit())
	assert.Equal(t, StatusSubmitted, h.Status())
	assert.True(t, h.CheckIfRunning())
	assert.Equal(t, StatusRunning, h.Status())

	require.Eventually(t, func() bool {
		return h.CheckIfCompleted()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, StatusCompleted, h.Status())
	assert.True(t, run.ExitStatusSet)
	assert.Equal(t, 3, run.ExitStatus)
	assert.Equal(t, filepath.Join(run.WorkDirectory, ".command.out"), run.Stdout)
}

func TestLocalProcessCheckIfCompletedIdempotent(t *testing.T) {
	run := newLocalRun(t, "exit 0")
	h := NewLocalProcess(run)
	require.NoError(t, h.Submit())
	h.CheckIfRunning()
	require.Eventually(t, func() bool { return h.CheckIfCompleted() }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, h.CheckIfCompleted())
}

func TestLocalProcessTimeoutSynthesizesExit143(t *testing.T) {
	cfg, err := config.NewTaskConfig(map[string]any{"maxDuration": "50ms"})
	require.NoError(t, err)

	dir := t.TempDir()
	run := &task.Run{Name: "slow", WorkDirectory: dir, Type: task.Shell, Config: cfg}
	require.NoError(t, os.WriteFile(run.CmdWrapperFile(), []byte("#!/bin/bash\nsleep 5\n"), 0o755))

	h := NewLocalProcess(run)
	require.NoError(t, h.Submit())
	h.CheckIfRunning()

	require.Eventually(t, func() bool {
		return h.CheckIfCompleted()
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, StatusCompleted, h.Status())
	assert.Equal(t, 143, run.ExitStatus)
}

func TestLocalProcessKillIsIdempotent(t *testing.T) {
	run := newLocalRun(t, "sleep 5")
	h := NewLocalProcess(run)
	require.NoError(t, h.Submit())
	h.Kill()
	h.Kill()
}
