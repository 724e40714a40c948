package handler

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fluxwork/taskexec/internal/executor"
	"github.com/fluxwork/taskexec/internal/task"
)

// DefaultExitReadTimeout is the spec.md §4.2 default grace period a
// grid handler tolerates an unreadable exit-code file before
// synthesizing a failure.
const DefaultExitReadTimeout = 90 * time.Second

// CommandRunner executes one backend command line and returns its
// captured stdout. Grid handlers depend on this instead of os/exec
// directly so tests can substitute a fake backend.
type CommandRunner interface {
	Run(ctx context.Context, args []string) (stdout string, err error)
}

// QueueStatusAware is implemented by handlers that consume a
// batch-fetched queue-status snapshot instead of issuing their own
// backend query every poll tick (spec.md §4.3 "Grid batch
// optimization").
type QueueStatusAware interface {
	UpdateQueueStatus(statuses map[string]executor.Status)
}

// GridSubmitted drives a task through an SGE-exemplar grid backend
// (spec.md §4.2 "Grid handler").
type GridSubmitted struct {
	run             *task.Run
	shaper          executor.GridShaper
	runner          CommandRunner
	exitReadTimeout time.Duration

	mu           sync.Mutex
	status       Status
	jobID        string
	killed       bool
	lastStatus   executor.Status
	lastKnown    bool
	missingSince time.Time
}

// NewGridSubmitted constructs a handler for run, not yet submitted.
// exitReadTimeout of zero uses DefaultExitReadTimeout.
func NewGridSubmitted(run *task.Run, shaper executor.GridShaper, runner CommandRunner, exitReadTimeout time.Duration) *GridSubmitted {
	if exitReadTimeout <= 0 {
		exitReadTimeout = DefaultExitReadTimeout
	}
	return &GridSubmitted{
		run:             run,
		shaper:          shaper,
		runner:          runner,
		exitReadTimeout: exitReadTimeout,
		status:          StatusNew,
	}
}

// Run implements Handler.
func (h *GridSubmitted) Run() *task.Run { return h.run }

// Status implements Handler.
func (h *GridSubmitted) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Submit implements Handler: runs the shaped submit command and
// parses the backend job id from its output (spec.md §4.4).
func (h *GridSubmitted) Submit() error {
	h.mu.Lock()
	if h.status != StatusNew {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	args := h.shaper.SubmitCommandLine(h.run, h.run.CmdWrapperFile())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := h.runner.Run(ctx, args)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	jobID, err := h.shaper.ParseJobID(out)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmit, err)
	}

	h.mu.Lock()
	h.jobID = jobID
	h.run.SubmitTime = time.Now()
	h.status = StatusSubmitted
	h.mu.Unlock()
	return nil
}

// UpdateQueueStatus implements QueueStatusAware.
func (h *GridSubmitted) UpdateQueueStatus(statuses map[string]executor.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := statuses[h.jobID]
	h.lastStatus, h.lastKnown = st, ok
}

// CheckIfRunning implements Handler: becomes RUNNING once the
// monitor's last queue-status snapshot reports the job as running.
func (h *GridSubmitted) CheckIfRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.status {
	case StatusRunning, StatusCompleted:
		return true
	case StatusSubmitted:
		if h.lastKnown && h.lastStatus == executor.StatusRunning {
			h.status = StatusRunning
			h.run.StartTime = time.Now()
			return true
		}
		return false
	default:
		return false
	}
}

// CheckIfCompleted implements Handler: the job is complete once it
// has disappeared from the queue-status snapshot AND the exit-code
// file is present and readable. If the file stays unreadable past
// exitReadTimeout, the handler synthesizes a failure (spec.md §4.2).
func (h *GridSubmitted) CheckIfCompleted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusCompleted {
		return true
	}
	if h.status != StatusRunning {
		return false
	}
	if h.lastKnown {
		// Still present in the last snapshot; not done yet.
		return false
	}

	data, err := os.ReadFile(h.run.CmdExitFile())
	if err != nil {
		if h.missingSince.IsZero() {
			h.missingSince = time.Now()
		}
		if time.Since(h.missingSince) > h.exitReadTimeout {
			h.finishLocked(143)
			return true
		}
		return false
	}

	code, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil {
		code = 1
	}
	h.finishLocked(code)
	return true
}

func (h *GridSubmitted) finishLocked(exitCode int) {
	h.run.SetExitStatus(exitCode)
	h.run.Stdout = h.run.CmdOutputFile()
	h.run.CompletionTime = time.Now()
	h.status = StatusCompleted
}

// Kill implements Handler.
func (h *GridSubmitted) Kill() {
	h.mu.Lock()
	if h.killed || h.status == StatusCompleted {
		h.mu.Unlock()
		return
	}
	h.killed = true
	jobID := h.jobID
	h.mu.Unlock()

	if jobID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = h.runner.Run(ctx, h.shaper.KillCommand(jobID))
}
