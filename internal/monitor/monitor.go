// Package monitor implements the TaskPollingMonitor: a bounded
// admission queue drained by a dedicated poll-loop goroutine that
// steps each active handler's checkIfRunning/checkIfCompleted and
// fires completion callbacks (spec.md §4.3).
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fluxwork/taskexec/internal/config"
	"github.com/fluxwork/taskexec/internal/diag"
	"github.com/fluxwork/taskexec/internal/executor"
	"github.com/fluxwork/taskexec/internal/handler"
	"github.com/fluxwork/taskexec/internal/metrics"
)

// ErrShutdown is returned by Schedule once the monitor has begun
// shutting down (spec.md §7 "ShutdownError").
var ErrShutdown = errors.New("monitor: shut down")

// CompletionFunc is invoked once per handler, exactly once, after it
// reaches COMPLETED and is removed from the admission queue.
type CompletionFunc func(h handler.Handler)

// Options configures grid batch-status collapsing (spec.md §4.3 "Grid
// batch optimization"); zero-value Options disables it, appropriate
// for Local and Native monitors.
type Options struct {
	GridShaper executor.GridShaper
	GridRunner handler.CommandRunner
	GridQueue  string

	// DumpPath, if non-empty, receives an atomically-written JSON
	// diagnostic dump every dumpInterval tick.
	DumpPath string
	Logger   *slog.Logger

	// Metrics, if non-nil, receives the per-tick Prometheus
	// observations SPEC_FULL §4.3 requires: active count, queue
	// capacity, RUNNING transitions, kills, and poll tick latency.
	Metrics *metrics.Collector
}

// Monitor is the TaskPollingMonitor for one executor within one
// session (spec.md §3 "lives the session's duration").
type Monitor struct {
	executorName      string
	pollInterval      time.Duration
	dumpInterval      time.Duration
	queueStatInterval time.Duration
	onComplete        CompletionFunc
	opts              Options

	sem chan struct{}

	mu       sync.Mutex
	handlers []handler.Handler
	stopped  bool
	lastDump time.Time

	lastStatusFetch time.Time
	lastQueueStatus map[string]executor.Status
	sf              singleflight.Group

	stopCh chan struct{}
	wake   chan struct{}
	wg     sync.WaitGroup
}

// New constructs and starts a Monitor for executorName, resolving
// queueSize/pollInterval/dumpInterval/queueStatInterval from session
// per spec.md §4.1, falling back to the given defaults.
func New(session *config.Session, executorName string, defaultQueueSize int, defaultPollInterval time.Duration, onComplete CompletionFunc, opts Options) (*Monitor, error) {
	queueSize, err := session.GetQueueSize(executorName, defaultQueueSize)
	if err != nil {
		return nil, err
	}
	pollInterval, err := session.GetPollInterval(executorName, defaultPollInterval)
	if err != nil {
		return nil, err
	}
	dumpInterval, err := session.GetDumpInterval(executorName, 0)
	if err != nil {
		return nil, err
	}
	queueStatInterval, err := session.GetQueueStatInterval(executorName, defaultPollInterval)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		executorName:      executorName,
		pollInterval:      pollInterval,
		dumpInterval:      dumpInterval,
		queueStatInterval: queueStatInterval,
		onComplete:        onComplete,
		opts:              opts,
		sem:               make(chan struct{}, queueSize),
		stopCh:            make(chan struct{}),
		wake:              make(chan struct{}, 1),
	}
	if opts.Metrics != nil {
		opts.Metrics.SetQueueCapacity(queueSize)
	}

	m.wg.Add(1)
	go m.pollLoop()
	return m, nil
}

// ActiveCount returns the number of handlers currently admitted.
func (m *Monitor) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// Schedule blocks the caller until free admission capacity exists,
// then submits h while holding the slot. If Submit fails the slot is
// released and the error propagated (spec.md §4.3 "Admission").
func (m *Monitor) Schedule(h handler.Handler) error {
	select {
	case m.sem <- struct{}{}:
	case <-m.stopCh:
		return ErrShutdown
	}

	if err := h.Submit(); err != nil {
		<-m.sem
		return err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		h.Kill()
		m.recordKilled()
		<-m.sem
		return ErrShutdown
	}
	m.handlers = append(m.handlers, h)
	active := len(m.handlers)
	m.mu.Unlock()
	m.recordActiveCount(active)

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Shutdown stops admission, kills every active handler, and waits for
// the poll loop to exit. Idempotent (spec.md §4.3 "Shutdown").
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	handlers := append([]handler.Handler{}, m.handlers...)
	m.mu.Unlock()

	close(m.stopCh)
	for _, h := range handlers {
		h.Kill()
		m.recordKilled()
	}
	m.wg.Wait()
}

func (m *Monitor) pollLoop() {
	defer m.wg.Done()
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-timer.C:
		case <-m.wake:
		}
		m.tick()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(m.pollInterval)
	}
}

func (m *Monitor) tick() {
	tickStart := time.Now()

	m.mu.Lock()
	snapshot := append([]handler.Handler{}, m.handlers...)
	m.mu.Unlock()

	statuses := m.maybeRefreshQueueStatus()

	var completed []handler.Handler
	for _, h := range snapshot {
		if qa, ok := h.(handler.QueueStatusAware); ok && statuses != nil {
			qa.UpdateQueueStatus(statuses)
		}
		prevStatus := h.Status()
		m.stepHandler(h)
		if prevStatus != handler.StatusRunning && h.Status() == handler.StatusRunning {
			if m.opts.Metrics != nil {
				m.opts.Metrics.RecordRunning()
			}
		}
		if h.Status() == handler.StatusCompleted {
			completed = append(completed, h)
		}
	}

	if len(completed) > 0 {
		m.removeAndRelease(completed)
	}
	m.recordActiveCount(m.ActiveCount())
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetQueueCapacity(cap(m.sem))
		m.opts.Metrics.ObservePollTick(time.Since(tickStart).Seconds())
	}

	if m.dumpInterval > 0 && time.Since(m.lastDump) >= m.dumpInterval {
		m.lastDump = time.Now()
		m.dump(snapshot)
	}
}

// recordActiveCount publishes the current admission-queue depth to the
// Prometheus gauge, if a collector is configured (spec.md §4.3; kept
// current on admission and on every poll tick, not just at submit).
func (m *Monitor) recordActiveCount(active int) {
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetActiveCount(active)
	}
}

func (m *Monitor) recordKilled() {
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordKilled()
	}
}

// stepHandler advances one handler by one poll tick. A panic from the
// handler's check methods is logged and the handler is force-killed
// rather than allowed to halt the monitor (spec.md §7 general policy).
func (m *Monitor) stepHandler(h handler.Handler) {
	defer func() {
		if r := recover(); r != nil {
			m.logger().Error("monitor: handler check panicked",
				"executor", m.executorName, "task", h.Run().Name, "panic", r)
			h.Kill()
			m.recordKilled()
		}
	}()
	h.CheckIfRunning()
	h.CheckIfCompleted()
}

func (m *Monitor) removeAndRelease(completed []handler.Handler) {
	completedSet := make(map[handler.Handler]struct{}, len(completed))
	for _, h := range completed {
		completedSet[h] = struct{}{}
	}

	m.mu.Lock()
	remaining := m.handlers[:0:0]
	for _, h := range m.handlers {
		if _, done := completedSet[h]; !done {
			remaining = append(remaining, h)
		}
	}
	m.handlers = remaining
	m.mu.Unlock()

	for _, h := range completed {
		<-m.sem
		if m.onComplete != nil {
			m.onComplete(h)
		}
	}
}

// maybeRefreshQueueStatus batch-fetches one qstat snapshot shared by
// every grid handler in this monitor, collapsing concurrent/rapid
// refreshes via singleflight so N handlers cost one external call per
// queueStatInterval (spec.md §4.3 "Grid batch optimization").
func (m *Monitor) maybeRefreshQueueStatus() map[string]executor.Status {
	if m.opts.GridShaper == nil || m.opts.GridRunner == nil {
		return nil
	}
	if m.lastQueueStatus != nil && time.Since(m.lastStatusFetch) < m.queueStatInterval {
		return m.lastQueueStatus
	}

	v, err, _ := m.sf.Do("qstat", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		out, runErr := m.opts.GridRunner.Run(ctx, m.opts.GridShaper.QueueStatusCommand(m.opts.GridQueue))
		if runErr != nil {
			return nil, runErr
		}
		return m.opts.GridShaper.ParseQueueStatus(out)
	})
	if err != nil {
		m.logger().Warn("monitor: qstat refresh failed", "executor", m.executorName, "error", err)
		return m.lastQueueStatus
	}

	statuses, _ := v.(map[string]executor.Status)
	m.lastQueueStatus = statuses
	m.lastStatusFetch = time.Now()
	return statuses
}

func (m *Monitor) dump(snapshot []handler.Handler) {
	entries := make([]diag.Entry, 0, len(snapshot))
	for _, h := range snapshot {
		run := h.Run()
		entries = append(entries, diag.Entry{
			ID:      run.ID,
			Name:    run.Name,
			Status:  string(h.Status()),
			Elapsed: run.Elapsed(),
		})
	}
	snap := diag.Snapshot{
		ExecutorName: m.executorName,
		TakenAt:      time.Now(),
		ActiveCount:  len(snapshot),
		Entries:      entries,
	}
	diag.Log(m.logger(), snap)
	if m.opts.DumpPath != "" {
		if err := diag.NewWriter(m.opts.DumpPath).Write(snap); err != nil {
			m.logger().Warn("monitor: failed writing diagnostic dump", "executor", m.executorName, "error", err)
		}
	}
}

func (m *Monitor) logger() *slog.Logger {
	if m.opts.Logger != nil {
		return m.opts.Logger
	}
	return slog.Default()
}
