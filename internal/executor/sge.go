package executor

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fluxwork/taskexec/internal/task"
)

// SGE is the GridShaper for Sun Grid Engine, built the way
// edirooss-zmux-server's pkg/remuxcmd.Builder shapes an argv: append
// tokens in a fixed, documented order and let zero-value options fall
// out naturally.
type SGE struct{}

// SubmitCommandLine implements GridShaper per spec.md §4.4 and the
// exact token sequence in §8 scenario 1.
func (SGE) SubmitCommandLine(run *task.Run, wrapperPath string) []string {
	cfg := run.Config
	args := []string{
		"qsub",
		"-wd", run.WorkDirectory,
		"-N", "nf-" + run.SanitizedName(),
		"-o", "/dev/null",
		"-j", "y",
		"-terse",
		"-V",
	}
	if cfg.Queue != "" {
		args = append(args, "-q", cfg.Queue)
	}
	if cfg.MaxDuration > 0 {
		args = append(args, "-l", "h_rt="+formatHMS(cfg.MaxDuration))
	}
	if vf := cfg.VirtualFreeMemory(); vf != "" {
		args = append(args, "-l", "virtual_free="+vf)
	}
	if cfg.ClusterOptions != "" {
		args = append(args, strings.Fields(cfg.ClusterOptions)...)
	}
	args = append(args, filepath.Base(wrapperPath))
	return args
}

// formatHMS renders d as zero-padded HH:MM:SS, per spec.md §4.4
// "h_rt format".
func formatHMS(d time.Duration) string {
	total := int64(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseJobID implements GridShaper: the job id is the last all-digit
// token on any line of the submit command's output (spec.md §4.4,
// §8 scenario 2).
func (SGE) ParseJobID(output string) (string, error) {
	var last string
	for _, line := range strings.Split(output, "\n") {
		for _, tok := range strings.Fields(line) {
			if isAllDigits(tok) {
				last = tok
			}
		}
	}
	if last == "" {
		return "", fmt.Errorf("executor: no job id found in submit output")
	}
	return last, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// KillCommand implements GridShaper (spec.md §4.4, §8 scenario 3).
func (SGE) KillCommand(jobID string) []string {
	return []string{"qdel", "-j", jobID}
}

// QueueStatusCommand implements GridShaper.
func (SGE) QueueStatusCommand(queue string) []string {
	if queue == "" {
		return []string{"qstat"}
	}
	return []string{"qstat", "-q", queue}
}

// ParseQueueStatus implements GridShaper per spec.md §4.4's state-code
// table and §8 scenario 4. It skips every line up to and including
// the dashes separator line, then maps the 5th whitespace-separated
// field of each remaining non-empty line.
func (SGE) ParseQueueStatus(output string) (map[string]Status, error) {
	result := make(map[string]Status)
	lines := strings.Split(output, "\n")

	seenSeparator := false
	for _, line := range lines {
		if !seenSeparator {
			if strings.Contains(line, "---") {
				seenSeparator = true
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		id := fields[0]
		result[id] = sgeStateStatus(fields[4])
	}
	return result, nil
}

func sgeStateStatus(code string) Status {
	switch code {
	case "r", "t", "s", "R":
		return StatusRunning
	case "qw":
		return StatusPending
	case "hqw", "hRwq":
		return StatusHold
	case "Eqw":
		return StatusError
	default:
		if strings.HasPrefix(code, "E") {
			return StatusError
		}
		return StatusUnknown
	}
}
