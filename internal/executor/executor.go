// Package executor owns the per-backend command shaping and job
// status parsing (spec.md §4.4). Handler creation and the
// one-monitor-per-executor lifecycle live in internal/session.
package executor

import (
	"path/filepath"

	"github.com/fluxwork/taskexec/internal/config"
	"github.com/fluxwork/taskexec/internal/task"
)

// Status is a backend job's externally-observed state, as reported by
// a grid executor's queue-status query.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusPending Status = "PENDING"
	StatusHold    Status = "HOLD"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

// GridShaper is the contract a grid backend (SGE exemplar) must
// provide: submit command construction, job-id extraction, kill
// command construction, and queue-status command/parsing (spec.md
// §4.4 "Grid executor contract").
type GridShaper interface {
	SubmitCommandLine(run *task.Run, wrapperPath string) []string
	ParseJobID(output string) (string, error)
	KillCommand(jobID string) []string
	QueueStatusCommand(queue string) []string
	ParseQueueStatus(output string) (map[string]Status, error)
}

// Executor identifies a backend by its session-scoped name and kind.
// Handlers for incoming TaskRuns are created, and the monitor that
// drives them is owned one-per-executor, by the caller
// (internal/session), not by Executor itself.
type Executor interface {
	Name() string
	Kind() string
}

// Base holds the fields every concrete executor shares.
type Base struct {
	name   string
	config config.TaskConfig
}

// NewBase constructs the shared executor fields.
func NewBase(name string, cfg config.TaskConfig) Base {
	return Base{name: name, config: cfg}
}

// Name is the executor's session-scoped name (used in config
// resolution lookups, e.g. "sge" in executor.$sge.queueSize).
func (b Base) Name() string { return b.name }

// Config returns the executor's resolved task defaults.
func (b Base) Config() config.TaskConfig { return b.config }

// Local is the process-fork/exec executor; it has no submit-command
// shaping since LocalProcess handlers launch the child directly.
type Local struct{ Base }

// NewLocal constructs a Local executor.
func NewLocal(name string, cfg config.TaskConfig) *Local {
	return &Local{Base: NewBase(name, cfg)}
}

// Kind implements Executor.
func (*Local) Kind() string { return "local" }

// Grid is a grid-scheduler-backed executor parameterized by a
// GridShaper (SGE exemplar).
type Grid struct {
	Base
	Shaper GridShaper
}

// NewGrid constructs a Grid executor around the given shaper.
func NewGrid(name string, cfg config.TaskConfig, shaper GridShaper) *Grid {
	return &Grid{Base: NewBase(name, cfg), Shaper: shaper}
}

// Kind implements Executor.
func (*Grid) Kind() string { return "grid" }

// WrapperBasename is the basename of a task's wrapper script, the
// final positional argument in the SGE submit command line.
func WrapperBasename(run *task.Run) string {
	return filepath.Base(run.CmdWrapperFile())
}
