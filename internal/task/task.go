// Package task defines the TaskRun data model: identity, working
// directory, script/closure payload, and the execution artifacts a
// handler populates as it drives a task to completion (spec.md §3).
package task

import (
	"path/filepath"
	"regexp"
	"time"

	"github.com/fluxwork/taskexec/internal/config"
)

// Type distinguishes shell tasks (driven through a wrapper script) from
// native in-process closures.
type Type string

const (
	// Shell tasks run a script through a shell under the configured
	// working directory.
	Shell Type = "SHELL"
	// Native tasks submit a deferred Go closure to a shared worker
	// pool instead of spawning a process.
	Native Type = "NATIVE"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SanitizeName replaces runs of non-alphanumeric characters in name
// with a single underscore, per spec.md §3.
func SanitizeName(name string) string {
	return nonAlnum.ReplaceAllString(name, "_")
}

// NativeFunc is the deferred computation behind a Native TaskRun. It
// returns a result value or an error; spec.md §3 models this as "any
// value or raising".
type NativeFunc func() (any, error)

// Run is a TaskRun: one unit of work handed to an executor. Only the
// owning handler mutates ExitStatus/Stdout/Err/timestamps after
// creation (spec.md §3 "Lifecycles").
type Run struct {
	ID            string
	Name          string
	WorkDirectory string
	Type          Type

	Script string     // for Shell
	Code   NativeFunc // for Native

	Stdin []byte // optional, piped to the child process

	Config config.TaskConfig

	// Populated by the owning handler on transition to COMPLETED.
	ExitStatus    int
	ExitStatusSet bool
	Stdout        string // path to captured output (Shell); Native results go to NativeValue
	NativeValue   any    // Native success result
	Err           error  // Native failure

	SubmitTime     time.Time
	StartTime      time.Time
	CompletionTime time.Time
}

// SanitizedName is the job name used by executors when shaping
// backend commands (spec.md §3: "derive sanitized job names").
func (r *Run) SanitizedName() string {
	return SanitizeName(r.Name)
}

// Elapsed returns the time since the run was submitted, or zero if it
// has not been submitted yet. Used for dump diagnostics (spec.md §4.3).
func (r *Run) Elapsed() time.Duration {
	if r.SubmitTime.IsZero() {
		return 0
	}
	end := r.CompletionTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.SubmitTime)
}

// CmdWrapperFile is the wrapper script path rooted in WorkDirectory
// (spec.md §4.5, §6).
func (r *Run) CmdWrapperFile() string {
	return filepath.Join(r.WorkDirectory, ".command.sh")
}

// CmdOutputFile is the captured combined stdout+stderr path.
func (r *Run) CmdOutputFile() string {
	return filepath.Join(r.WorkDirectory, ".command.out")
}

// CmdExitFile is the exit-code sentinel file path.
func (r *Run) CmdExitFile() string {
	return filepath.Join(r.WorkDirectory, ".command.exitcode")
}

// SetExitStatus records the handler-observed exit status.
func (r *Run) SetExitStatus(code int) {
	r.ExitStatus = code
	r.ExitStatusSet = true
}
