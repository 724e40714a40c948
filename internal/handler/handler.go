// Package handler implements the TaskHandler state machine (spec.md
// §4.2): LocalProcess (fork/exec), Native (shared worker pool), and
// GridSubmitted (SGE exemplar) variants, plus a FakeHandler test
// double used by monitor tests.
package handler

import (
	"errors"

	"github.com/fluxwork/taskexec/internal/task"
)

// Status is a TaskHandler's position in its monotonic forward-only
// lifecycle (spec.md §3 "TaskHandler").
type Status string

const (
	StatusNew       Status = "NEW"
	StatusSubmitted Status = "SUBMITTED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
)

// Error kinds per spec.md §7.
var (
	ErrSubmit  = errors.New("handler: submit failed")
	ErrExec    = errors.New("handler: execution failed")
	ErrTimeout = errors.New("handler: timeout")
)

// Handler drives one TaskRun through NEW→SUBMITTED→RUNNING→COMPLETED.
// CheckIfRunning and CheckIfCompleted are invoked by a monitor's poll
// goroutine; Submit runs on the goroutine that calls Monitor.Schedule,
// and Kill may be called from any goroutine.
type Handler interface {
	Run() *task.Run
	Status() Status

	// Submit begins execution; on success the handler moves to
	// SUBMITTED. It may write files under the run's work directory.
	Submit() error

	// CheckIfRunning transitions SUBMITTED→RUNNING once the
	// underlying execution is observably active. Idempotent once
	// RUNNING or later.
	CheckIfRunning() bool

	// CheckIfCompleted transitions RUNNING→COMPLETED once the backend
	// reports termination or a timeout is enforced, populating the
	// run's exit artifacts. Idempotent once COMPLETED.
	CheckIfCompleted() bool

	// Kill force-terminates the underlying execution. Idempotent and
	// safe to call in any state at or beyond SUBMITTED, including
	// COMPLETED.
	Kill()
}
