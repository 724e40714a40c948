package config

import (
	"fmt"
	"time"
)

// ErrConfig wraps configuration resolution failures (spec.md §7:
// ConfigError, fail fast at session start).
var ErrConfig = fmt.Errorf("config: invalid session configuration")

// Session is the nested session configuration tree described in
// spec.md §3/§6. It is decoded from YAML by the caller (see
// internal/cli) into a plain map so that `executor.$name.*` keys,
// whose names are not known in advance, can be represented.
//
// Recognized shape:
//
//	executor: "sge"                      // bare string form
//	executor:
//	  queueSize: 100                     // executor-global default
//	  pollInterval: "5s"
//	  sge:
//	    queueSize: 10                    // per-executor override, keyed "$name" or "name"
type Session struct {
	raw map[string]any
}

// NewSession wraps a decoded YAML/JSON tree (map[string]any, typically
// the result of yaml.Unmarshal into an `any`) as a Session.
func NewSession(raw map[string]any) *Session {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Session{raw: raw}
}

// executorNode returns the decoded `executor` entry, or nil if absent
// or if it is a bare string (meaning: no per-executor settings at all).
func (s *Session) executorNode() map[string]any {
	v, ok := s.raw["executor"]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		// Bare string form ("executor: sge"): no settings tree.
		return nil
	}
	return m
}

// lookup implements the two-level resolution rule from spec.md §4.1:
//  1. executor["$"+name][param] or executor[name][param], if present
//  2. else executor[param], if present
//  3. else (found=false)
func (s *Session) lookup(executorName, param string) (any, bool) {
	node := s.executorNode()
	if node == nil {
		return nil, false
	}

	if executorName != "" {
		for _, key := range []string{"$" + executorName, executorName} {
			if sub, ok := node[key].(map[string]any); ok {
				if v, ok := sub[param]; ok {
					return v, true
				}
				break
			}
		}
	}

	if v, ok := node[param]; ok {
		return v, true
	}
	return nil, false
}

// GetQueueSize resolves the queueSize setting for executorName, falling
// back to def per the two-level rule.
func (s *Session) GetQueueSize(executorName string, def int) (int, error) {
	v, ok := s.lookup(executorName, "queueSize")
	if !ok {
		return def, nil
	}
	return toInt(v)
}

// GetPollInterval resolves pollInterval, accepting either a duration
// string or a raw millisecond integer.
func (s *Session) GetPollInterval(executorName string, def time.Duration) (time.Duration, error) {
	return s.getDuration(executorName, "pollInterval", def)
}

// GetQueueStatInterval resolves queueStatInterval.
func (s *Session) GetQueueStatInterval(executorName string, def time.Duration) (time.Duration, error) {
	return s.getDuration(executorName, "queueStatInterval", def)
}

// GetDumpInterval resolves dumpInterval.
func (s *Session) GetDumpInterval(executorName string, def time.Duration) (time.Duration, error) {
	return s.getDuration(executorName, "dumpInterval", def)
}

// GetExitReadTimeout resolves exitReadTimeout.
func (s *Session) GetExitReadTimeout(executorName string, def time.Duration) (time.Duration, error) {
	return s.getDuration(executorName, "exitReadTimeout", def)
}

func (s *Session) getDuration(executorName, param string, def time.Duration) (time.Duration, error) {
	v, ok := s.lookup(executorName, param)
	if !ok {
		return def, nil
	}
	d, err := ParseDurationOrMillis(v)
	if err != nil {
		return 0, fmt.Errorf("%w: executor.%s: %v", ErrConfig, param, err)
	}
	return d, nil
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %v (%T)", ErrConfig, v, v)
	}
}
