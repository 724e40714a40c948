package handler

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/fluxwork/taskexec/internal/config"
	"github.com/fluxwork/taskexec/internal/task"
)

// LocalProcess is a fork/exec handler: the wrapper script runs as a
// child process rooted at the task's work directory. The wrapper
// script itself owns the combined stdout+stderr redirect to
// cmdOutputFile (spec.md §4.5); the child's own top-level streams are
// left unconnected so the two never race over the same file.
type LocalProcess struct {
	run *task.Run

	mu         sync.Mutex
	status     Status
	cmd        *exec.Cmd
	submitTime time.Time
	done       chan struct{}
	waitErr    error
	killed     bool
}

// NewLocalProcess constructs a handler for run, not yet submitted.
func NewLocalProcess(run *task.Run) *LocalProcess {
	return &LocalProcess{run: run, status: StatusNew}
}

// Run implements Handler.
func (h *LocalProcess) Run() *task.Run { return h.run }

// Status implements Handler.
func (h *LocalProcess) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Submit implements Handler.
func (h *LocalProcess) Submit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusNew {
		return nil
	}

	shell := h.run.Config.Shell
	if len(shell) == 0 {
		shell = config.DefaultShell
	}
	args := append(append([]string{}, shell[1:]...), h.run.CmdWrapperFile())
	cmd := exec.Command(shell[0], args...)
	cmd.Dir = h.run.WorkDirectory
	if len(h.run.Config.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range h.run.Config.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	if len(h.run.Stdin) > 0 {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("%w: stdin pipe: %v", ErrSubmit, err)
		}
		go func() {
			defer stdin.Close()
			if _, err := stdin.Write(h.run.Stdin); err != nil {
				slog.Warn("handler: failed writing task stdin", "task", h.run.Name, "error", err)
			}
		}()
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmit, err)
	}

	h.cmd = cmd
	h.submitTime = time.Now()
	h.run.SubmitTime = h.submitTime
	h.done = make(chan struct{})
	h.status = StatusSubmitted

	go func() {
		waitErr := cmd.Wait()
		h.mu.Lock()
		h.waitErr = waitErr
		h.mu.Unlock()
		close(h.done)
	}()

	return nil
}

// CheckIfRunning implements Handler: a spawned local process is
// observable immediately after submit.
func (h *LocalProcess) CheckIfRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.status {
	case StatusSubmitted:
		h.status = StatusRunning
		h.run.StartTime = time.Now()
		return true
	case StatusRunning, StatusCompleted:
		return true
	default:
		return false
	}
}

// CheckIfCompleted implements Handler. On the maxDuration timeout
// path it kills the process and synthesizes exit status 143 rather
// than trusting a process state observed before the child actually
// exited.
func (h *LocalProcess) CheckIfCompleted() bool {
	h.mu.Lock()
	if h.status == StatusCompleted {
		h.mu.Unlock()
		return true
	}
	if h.status != StatusRunning {
		h.mu.Unlock()
		return false
	}

	select {
	case <-h.done:
		code := exitCodeFromWait(h.waitErr)
		h.finishLocked(code)
		h.mu.Unlock()
		return true
	default:
	}

	maxDuration := h.run.Config.MaxDuration
	timedOut := maxDuration > 0 && time.Since(h.submitTime) >= maxDuration
	h.mu.Unlock()

	if !timedOut {
		return false
	}

	h.killProcess()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusCompleted {
		return true
	}
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
	}
	h.finishLocked(143)
	return true
}

// Kill implements Handler.
func (h *LocalProcess) Kill() {
	h.mu.Lock()
	if h.killed || h.status == StatusCompleted {
		h.mu.Unlock()
		return
	}
	h.killed = true
	h.mu.Unlock()
	h.killProcess()
}

func (h *LocalProcess) killProcess() {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// finishLocked must be called with h.mu held.
func (h *LocalProcess) finishLocked(exitCode int) {
	h.run.SetExitStatus(exitCode)
	h.run.Stdout = h.run.CmdOutputFile()
	h.run.CompletionTime = time.Now()
	h.status = StatusCompleted
}

func exitCodeFromWait(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
