package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario 5 from spec.md §8: per-executor override beats the
// executor-global default, which beats the caller default; a bare
// string `executor` value disables all per-executor settings.
func TestSessionGetQueueSizeResolution(t *testing.T) {
	s := NewSession(map[string]any{
		"executor": map[string]any{
			"queueSize": 321,
			"$sge": map[string]any{
				"queueSize": 789,
			},
		},
	})

	got, err := s.GetQueueSize("sge", 2)
	require.NoError(t, err)
	assert.Equal(t, 789, got)

	got, err = s.GetQueueSize("xxx", 2)
	require.NoError(t, err)
	assert.Equal(t, 321, got)

	got, err = s.GetQueueSize("", 2)
	require.NoError(t, err)
	assert.Equal(t, 321, got)
}

func TestSessionBareExecutorStringDisablesPerExecutorSettings(t *testing.T) {
	s := NewSession(map[string]any{
		"executor": "sge",
	})

	got, err := s.GetQueueSize("sge", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	d, err := s.GetPollInterval("sge", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestSessionGetPollIntervalAcceptsDurationOrMillis(t *testing.T) {
	s := NewSession(map[string]any{
		"executor": map[string]any{
			"pollInterval": "2s",
			"$local": map[string]any{
				"pollInterval": 500,
			},
		},
	})

	got, err := s.GetPollInterval("local", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, got)

	got, err = s.GetPollInterval("sge", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, got)
}

func TestSessionMissingExecutorTreeUsesDefault(t *testing.T) {
	s := NewSession(nil)
	got, err := s.GetQueueSize("sge", 9)
	require.NoError(t, err)
	assert.Equal(t, 9, got)
}

func TestSessionBadDurationIsConfigError(t *testing.T) {
	s := NewSession(map[string]any{
		"executor": map[string]any{
			"dumpInterval": "nope",
		},
	})
	_, err := s.GetDumpInterval("sge", time.Minute)
	assert.ErrorIs(t, err, ErrConfig)
}
