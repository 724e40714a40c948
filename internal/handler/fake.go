package handler

import (
	"sync"
	"time"

	"github.com/fluxwork/taskexec/internal/task"
)

// FakeHandler is a monitor test double. Unlike every real handler, it
// is free to jump RUNNING→COMPLETED on a single poll tick once its
// configured delays elapse; real handlers must always observe an
// external signal (a process exit, a grid queue-status change) first.
type FakeHandler struct {
	run *task.Run

	// RunningAfter/CompletedAfter count poll ticks before CheckIfRunning
	// / CheckIfCompleted report true; zero means "on the first tick".
	RunningAfter   int
	CompletedAfter int
	SubmitErr      error
	ExitCode       int

	mu             sync.Mutex
	status         Status
	runningTicks   int
	completedTicks int
}

// NewFakeHandler constructs a FakeHandler for run, not yet submitted.
func NewFakeHandler(run *task.Run) *FakeHandler {
	return &FakeHandler{run: run, status: StatusNew}
}

// Run implements Handler.
func (h *FakeHandler) Run() *task.Run { return h.run }

// Status implements Handler.
func (h *FakeHandler) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Submit implements Handler.
func (h *FakeHandler) Submit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.SubmitErr != nil {
		return h.SubmitErr
	}
	if h.status != StatusNew {
		return nil
	}
	h.status = StatusSubmitted
	h.run.SubmitTime = time.Now()
	return nil
}

// CheckIfRunning implements Handler.
func (h *FakeHandler) CheckIfRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.status {
	case StatusRunning, StatusCompleted:
		return true
	case StatusSubmitted:
		h.runningTicks++
		if h.runningTicks > h.RunningAfter {
			h.status = StatusRunning
			h.run.StartTime = time.Now()
			return true
		}
		return false
	default:
		return false
	}
}

// CheckIfCompleted implements Handler.
func (h *FakeHandler) CheckIfCompleted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusCompleted {
		return true
	}
	if h.status != StatusRunning {
		return false
	}
	h.completedTicks++
	if h.completedTicks > h.CompletedAfter {
		h.run.SetExitStatus(h.ExitCode)
		h.run.Stdout = h.run.CmdOutputFile()
		h.run.CompletionTime = time.Now()
		h.status = StatusCompleted
		return true
	}
	return false
}

// Kill implements Handler.
func (h *FakeHandler) Kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusCompleted {
		return
	}
	if !h.run.ExitStatusSet {
		h.run.SetExitStatus(137)
	}
	h.run.CompletionTime = time.Now()
	h.status = StatusCompleted
}
