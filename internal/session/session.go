// Package session wires config resolution, executors, and monitors
// together for one run (spec.md §3 "Session config tree", §6
// "Session configuration surface") — the object a CLI command
// constructs once and shuts down once.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/fluxwork/taskexec/internal/config"
	"github.com/fluxwork/taskexec/internal/executor"
	"github.com/fluxwork/taskexec/internal/handler"
	"github.com/fluxwork/taskexec/internal/metrics"
	"github.com/fluxwork/taskexec/internal/monitor"
	"github.com/fluxwork/taskexec/internal/task"
	"github.com/fluxwork/taskexec/internal/wrapper"
)

// Caller defaults used when the session config tree doesn't override
// a setting for a given executor (spec.md §4.1 step 3).
const (
	DefaultLocalQueueSize = 1000
	DefaultGridQueueSize  = 100
	DefaultPollInterval   = 5 * time.Second
)

// registration is the bookkeeping a Session keeps per named executor.
type registration struct {
	exec    executor.Executor
	monitor *monitor.Monitor
	runner  handler.CommandRunner // nil for local
}

// Session owns one Executor+Monitor pair per executor name and
// dispatches submitted TaskRuns to the right handler kind.
type Session struct {
	cfg     *config.Session
	metrics *metrics.Collector
	builder wrapper.Builder

	mu    sync.Mutex
	execs map[string]*registration
}

// New constructs a Session from a decoded session config tree.
// metrics may be nil to disable metric recording.
func New(raw map[string]any, metricsCollector *metrics.Collector) *Session {
	return &Session{
		cfg:     config.NewSession(raw),
		metrics: metricsCollector,
		builder: wrapper.DefaultBuilder{},
		execs:   make(map[string]*registration),
	}
}

// RegisterLocal adds a fork/exec executor under name.
func (s *Session) RegisterLocal(name string, taskCfg config.TaskConfig) error {
	return s.register(name, executor.NewLocal(name, taskCfg), monitor.Options{Metrics: s.metrics})
}

// RegisterGrid adds a grid-backed executor (SGE exemplar) under name,
// driven by runner for submit/kill/qstat commands.
func (s *Session) RegisterGrid(name string, taskCfg config.TaskConfig, shaper executor.GridShaper, runner handler.CommandRunner) error {
	grid := executor.NewGrid(name, taskCfg, shaper)
	reg := monitor.Options{GridShaper: shaper, GridRunner: runner, Metrics: s.metrics}
	if err := s.register(name, grid, reg); err != nil {
		return err
	}
	s.mu.Lock()
	s.execs[name].runner = runner
	s.mu.Unlock()
	return nil
}

func (s *Session) register(name string, exec executor.Executor, opts monitor.Options) error {
	defaultQueueSize := DefaultLocalQueueSize
	if exec.Kind() == "grid" {
		defaultQueueSize = DefaultGridQueueSize
	}

	m, err := monitor.New(s.cfg, name, defaultQueueSize, DefaultPollInterval, s.onComplete, opts)
	if err != nil {
		return fmt.Errorf("session: register executor %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.execs[name]; exists {
		m.Shutdown()
		return fmt.Errorf("session: executor %q already registered", name)
	}
	s.execs[name] = &registration{exec: exec, monitor: m}
	return nil
}

// Submit hands run to the named executor: for Shell tasks it
// materializes the wrapper script (spec.md §4.5) before creating the
// handler variant appropriate to the executor's kind, then schedules
// it on that executor's monitor.
func (s *Session) Submit(executorName string, run *task.Run, stageIn, stageOut []wrapper.StageFile) error {
	s.mu.Lock()
	reg, ok := s.execs[executorName]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: unknown executor %q", executorName)
	}

	if run.Type == task.Shell {
		if err := wrapper.Write(s.builder, run, stageIn, stageOut); err != nil {
			return err
		}
	}

	h, err := s.newHandler(reg, run)
	if err != nil {
		return err
	}

	if err := reg.monitor.Schedule(h); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordSubmitted()
	}
	return nil
}

func (s *Session) newHandler(reg *registration, run *task.Run) (handler.Handler, error) {
	if run.Type == task.Native {
		return handler.NewNative(run), nil
	}

	switch e := reg.exec.(type) {
	case *executor.Local:
		return handler.NewLocalProcess(run), nil
	case *executor.Grid:
		exitReadTimeout, err := s.cfg.GetExitReadTimeout(e.Name(), handler.DefaultExitReadTimeout)
		if err != nil {
			return nil, err
		}
		return handler.NewGridSubmitted(run, e.Shaper, reg.runner, exitReadTimeout), nil
	default:
		return nil, fmt.Errorf("session: executor %q has unsupported kind %T", reg.exec.Name(), reg.exec)
	}
}

func (s *Session) onComplete(h handler.Handler) {
	run := h.Run()
	latency := run.Elapsed().Seconds()
	if s.metrics != nil {
		if run.Err != nil || (run.ExitStatusSet && run.ExitStatus != 0) {
			s.metrics.RecordFailed(latency)
		} else {
			s.metrics.RecordCompleted(latency)
		}
	}
}

// ActiveCount returns the number of handlers currently admitted to
// the named executor's monitor, or -1 if the executor is unknown.
func (s *Session) ActiveCount(executorName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.execs[executorName]
	if !ok {
		return -1
	}
	return reg.monitor.ActiveCount()
}

// Shutdown stops every registered executor's monitor.
func (s *Session) Shutdown() {
	s.mu.Lock()
	regs := make([]*registration, 0, len(s.execs))
	for _, reg := range s.execs {
		regs = append(regs, reg)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, reg := range regs {
		wg.Add(1)
		go func(m *monitor.Monitor) {
			defer wg.Done()
			m.Shutdown()
		}(reg.monitor)
	}
	wg.Wait()
}
