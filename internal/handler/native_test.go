package handler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwork/taskexec/internal/task"
)

func TestNativeSuccessPopulatesStdout(t *testing.T) {
	run := &task.Run{
		Name: "native ok",
		Type: task.Native,
		Code: func() (any, error) { return 42, nil },
	}
	h := NewNative(run)
	require.NoError(t, h.Submit())

	require.Eventually(t, func() bool { return h.CheckIfCompleted() }, time.Second, time.Millisecond)
	assert.Equal(t, StatusCompleted, h.Status())
	assert.Equal(t, 42, run.NativeValue)
	assert.NoError(t, run.Err)
}

func TestNativeFailurePopulatesError(t *testing.T) {
	wantErr := errors.New("boom")
	run := &task.Run{
		Name: "native fail",
		Type: task.Native,
		Code: func() (any, error) { return nil, wantErr },
	}
	h := NewNative(run)
	require.NoError(t, h.Submit())

	require.Eventually(t, func() bool { return h.CheckIfCompleted() }, time.Second, time.Millisecond)
	assert.Equal(t, wantErr, run.Err)
	assert.Nil(t, run.NativeValue)
}

func TestNativeCheckIfRunningBecomesTrue(t *testing.T) {
	block := make(chan struct{})
	run := &task.Run{
		Name: "native block",
		Type: task.Native,
		Code: func() (any, error) { <-block; return nil, nil },
	}
	h := NewNative(run)
	require.NoError(t, h.Submit())

	require.Eventually(t, func() bool { return h.CheckIfRunning() }, time.Second, time.Millisecond)
	assert.False(t, h.CheckIfCompleted())
	close(block)
	require.Eventually(t, func() bool { return h.CheckIfCompleted() }, time.Second, time.Millisecond)
}
