// Package wrapper materializes the files a LocalProcess or
// GridSubmitted handler treats as authoritative completion signals
// (spec.md §4.5): the wrapper script itself, and the staging/
// unstaging hooks that run around the user script.
package wrapper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/fluxwork/taskexec/internal/task"
)

// StageFile describes one file to copy/symlink/move between the
// task's work directory and an external location, used by the
// staging prologue (inputs) and unstaging epilogue (outputs).
type StageFile struct {
	Name string // basename within the work directory
	Path string // external source (stage-in) or destination (stage-out)
}

// Builder produces the wrapper script content for a task run. Callers
// materialize the result under task.CmdWrapperFile().
type Builder interface {
	// Build renders the wrapper script for run, staging the given
	// inputs before the user script runs and collecting the given
	// outputs after it completes.
	Build(run *task.Run, stageIn, stageOut []StageFile) (string, error)
}

// DefaultBuilder is the default wrapper, adapted to spec.md §4.5: it
// runs the user script in a subshell whose combined output is
// redirected to cmdOutputFile, captures the subshell's exit status
// directly (no EXIT trap is installed), and writes that code
// atomically to cmdExitFile.
type DefaultBuilder struct{}

var wrapperTemplate = template.Must(template.New("wrapper").Parse(`#!/bin/bash
# Generated wrapper; do not edit by hand.
set -uo pipefail

nxf_stage() {
{{- range .StageIn}}
	ln -s '{{.Path}}' '{{.Name}}' 2>/dev/null || cp -r '{{.Path}}' '{{.Name}}'
{{- end}}
	:
}

nxf_unstage() {
{{- range .StageOut}}
	[ -e '{{.Name}}' ] && cp -r '{{.Name}}' '{{.Path}}'
{{- end}}
	:
}

nxf_stage

(
{{.Script}}
) > '{{.OutputFile}}' 2>&1
nxf_exit_status=$?

nxf_unstage

# Atomic write of the exit code, the bash analogue of write-to-tmp-
# then-rename: a reader never observes a partially written file.
printf '%s' "$nxf_exit_status" > '{{.ExitFile}}.tmp'
mv '{{.ExitFile}}.tmp' '{{.ExitFile}}'

exit "$nxf_exit_status"
`))

type wrapperData struct {
	Script     string
	OutputFile string
	ExitFile   string
	StageIn    []StageFile
	StageOut   []StageFile
}

// Build implements Builder.
func (DefaultBuilder) Build(run *task.Run, stageIn, stageOut []StageFile) (string, error) {
	var buf strings.Builder
	data := wrapperData{
		Script:     run.Script,
		OutputFile: run.CmdOutputFile(),
		ExitFile:   run.CmdExitFile(),
		StageIn:    stageIn,
		StageOut:   stageOut,
	}
	if err := wrapperTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("wrapper: render: %w", err)
	}
	return buf.String(), nil
}

// Write renders and writes the wrapper script under run's work
// directory with executable permissions.
func Write(b Builder, run *task.Run, stageIn, stageOut []StageFile) error {
	content, err := b.Build(run, stageIn, stageOut)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(run.CmdWrapperFile()), 0o755); err != nil {
		return fmt.Errorf("wrapper: create work directory: %w", err)
	}
	return os.WriteFile(run.CmdWrapperFile(), []byte(content), 0o755)
}
