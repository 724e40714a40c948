package config

import (
	"fmt"
	"strings"
	"time"

	units "github.com/docker/go-units"
)

// TaskConfig holds the recognized per-task options from spec.md §3.
type TaskConfig struct {
	Queue   string
	Name    string
	// MaxMemory is the human-readable size as supplied ("2GB"); kept
	// verbatim because the SGE virtual_free rendering is a textual
	// transform (strip trailing "B") rather than a byte-accurate one.
	MaxMemory      string
	MaxMemoryBytes int64 // validated/normalized form, 0 if unset
	MaxDuration    time.Duration
	ClusterOptions string
	Shell          []string
	Env            map[string]string // SPEC_FULL.md §3 supplement
	Attempt        int                // SPEC_FULL.md §3 supplement, default 1
}

// DefaultShell is used when TaskConfig.Shell is unset.
var DefaultShell = []string{"bash"}

// NewTaskConfig builds a TaskConfig from a decoded options map (as
// produced by decoding a task descriptor's "config" object), applying
// defaults and parsing maxMemory/maxDuration.
func NewTaskConfig(raw map[string]any) (TaskConfig, error) {
	tc := TaskConfig{
		Shell:   append([]string(nil), DefaultShell...),
		Attempt: 1,
	}

	if v, ok := raw["queue"].(string); ok {
		tc.Queue = v
	}
	if v, ok := raw["name"].(string); ok {
		tc.Name = v
	}
	if v, ok := raw["clusterOptions"].(string); ok {
		tc.ClusterOptions = v
	}
	if v, ok := raw["attempt"]; ok {
		n, err := toInt(v)
		if err != nil {
			return TaskConfig{}, fmt.Errorf("%w: attempt: %v", ErrConfig, err)
		}
		tc.Attempt = n
	}

	if v, ok := raw["maxMemory"]; ok {
		s, ok := v.(string)
		if !ok {
			return TaskConfig{}, fmt.Errorf("%w: maxMemory must be a string, got %T", ErrConfig, v)
		}
		bytes, err := units.RAMInBytes(s)
		if err != nil {
			return TaskConfig{}, fmt.Errorf("%w: maxMemory %q: %v", ErrConfig, s, err)
		}
		tc.MaxMemory = s
		tc.MaxMemoryBytes = bytes
	}

	if v, ok := raw["maxDuration"]; ok {
		d, err := ParseDurationOrMillis(v)
		if err != nil {
			return TaskConfig{}, fmt.Errorf("%w: maxDuration: %v", ErrConfig, err)
		}
		tc.MaxDuration = d
	}

	if v, ok := raw["shell"]; ok {
		switch t := v.(type) {
		case []string:
			tc.Shell = t
		case []any:
			shell := make([]string, 0, len(t))
			for _, e := range t {
				s, ok := e.(string)
				if !ok {
					return TaskConfig{}, fmt.Errorf("%w: shell entries must be strings", ErrConfig)
				}
				shell = append(shell, s)
			}
			tc.Shell = shell
		default:
			return TaskConfig{}, fmt.Errorf("%w: shell must be a list of strings", ErrConfig)
		}
	}

	if v, ok := raw["env"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return TaskConfig{}, fmt.Errorf("%w: env must be a map", ErrConfig)
		}
		tc.Env = make(map[string]string, len(m))
		for k, val := range m {
			s, ok := val.(string)
			if !ok {
				return TaskConfig{}, fmt.Errorf("%w: env[%s] must be a string", ErrConfig, k)
			}
			tc.Env[k] = s
		}
	}

	return tc, nil
}

// VirtualFreeMemory renders MaxMemory into the SGE `virtual_free`
// shape from spec.md §4.4: the unit letter is preserved and a trailing
// "B" is stripped ("2GB" -> "2G").
func (tc TaskConfig) VirtualFreeMemory() string {
	if tc.MaxMemory == "" {
		return ""
	}
	return strings.TrimSuffix(tc.MaxMemory, "B")
}
