package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwork/taskexec/internal/config"
	"github.com/fluxwork/taskexec/internal/executor"
	"github.com/fluxwork/taskexec/internal/task"
	"github.com/fluxwork/taskexec/internal/wrapper"
)

func TestSessionSubmitLocalShellTaskRunsToCompletion(t *testing.T) {
	s := New(map[string]any{
		"executor": map[string]any{"pollInterval": "10ms"},
	}, nil)
	defer s.Shutdown()

	cfg, err := config.NewTaskConfig(nil)
	require.NoError(t, err)
	require.NoError(t, s.RegisterLocal("local", cfg))

	run := &task.Run{Name: "local-ok", WorkDirectory: t.TempDir(), Type: task.Shell, Script: "exit 0"}
	require.NoError(t, s.Submit("local", run, nil, nil))

	require.Eventually(t, func() bool { return s.ActiveCount("local") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, run.ExitStatusSet)
	assert.Equal(t, 0, run.ExitStatus)
}

func TestSessionSubmitNativeTask(t *testing.T) {
	s := New(map[string]any{
		"executor": map[string]any{"pollInterval": "10ms"},
	}, nil)
	defer s.Shutdown()

	cfg, err := config.NewTaskConfig(nil)
	require.NoError(t, err)
	require.NoError(t, s.RegisterLocal("local", cfg))

	run := &task.Run{
		Name: "native-ok",
		Type: task.Native,
		Code: func() (any, error) { return "done", nil },
	}
	require.NoError(t, s.Submit("local", run, nil, nil))

	require.Eventually(t, func() bool { return s.ActiveCount("local") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "done", run.NativeValue)
}

func TestSessionUnknownExecutorIsError(t *testing.T) {
	s := New(nil, nil)
	defer s.Shutdown()

	run := &task.Run{Name: "x", WorkDirectory: t.TempDir(), Type: task.Shell}
	err := s.Submit("ghost", run, nil, nil)
	assert.Error(t, err)
}

type fakeGridRunner struct{ jobID string }

func (r *fakeGridRunner) Run(_ context.Context, args []string) (string, error) {
	if len(args) > 0 && args[0] == "qsub" {
		return r.jobID, nil
	}
	return "job-ID prior name user state\n---\n", nil
}

func TestSessionRegisterGridAndSubmit(t *testing.T) {
	s := New(map[string]any{
		"executor": map[string]any{"pollInterval": "10ms"},
	}, nil)
	defer s.Shutdown()

	cfg, err := config.NewTaskConfig(nil)
	require.NoError(t, err)
	require.NoError(t, s.RegisterGrid("sge", cfg, executor.SGE{}, &fakeGridRunner{jobID: "42"}))

	dir := t.TempDir()
	run := &task.Run{Name: "grid-ok", WorkDirectory: dir, Type: task.Shell, Script: "exit 0"}
	require.NoError(t, s.Submit("sge", run, nil, []wrapper.StageFile{}))

	_, err = os.Stat(run.CmdWrapperFile())
	require.NoError(t, err)
	assert.Equal(t, 1, s.ActiveCount("sge"))
}
