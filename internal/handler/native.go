package handler

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/fluxwork/taskexec/internal/task"
)

// ErrCancelled is the Native handler's error result when Kill
// interrupts a closure before it returns a value.
var ErrCancelled = errors.New("handler: native task cancelled")

// pool is a process-wide worker pool for Native tasks, sized by
// available cores (spec.md §5 "shared worker pool for native tasks").
type pool struct {
	jobs chan func()
	once sync.Once
}

func newPool(size int) *pool {
	if size < 1 {
		size = 1
	}
	p := &pool{jobs: make(chan func(), size*4)}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	for fn := range p.jobs {
		fn()
	}
}

func (p *pool) submit(fn func()) {
	p.jobs <- fn
}

var nativePool = newPool(runtime.GOMAXPROCS(0))

// Native submits task.Code to the shared worker pool instead of
// spawning a process (spec.md §4.2 "Native handler").
type Native struct {
	run *task.Run

	mu         sync.Mutex
	status     Status
	submitTime time.Time
	done       chan struct{}
	cancelled  chan struct{}
}

// NewNative constructs a handler for run, not yet submitted.
func NewNative(run *task.Run) *Native {
	return &Native{run: run, status: StatusNew}
}

// Run implements Handler.
func (h *Native) Run() *task.Run { return h.run }

// Status implements Handler.
func (h *Native) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Submit implements Handler.
func (h *Native) Submit() error {
	h.mu.Lock()
	if h.status != StatusNew {
		h.mu.Unlock()
		return nil
	}
	h.status = StatusSubmitted
	h.submitTime = time.Now()
	h.run.SubmitTime = h.submitTime
	h.done = make(chan struct{})
	h.cancelled = make(chan struct{})
	h.mu.Unlock()

	nativePool.submit(h.execute)
	return nil
}

func (h *Native) execute() {
	h.mu.Lock()
	if h.status == StatusSubmitted {
		h.status = StatusRunning
		h.run.StartTime = time.Now()
	}
	cancelled := h.cancelled
	h.mu.Unlock()

	value, err := h.run.Code()

	select {
	case <-cancelled:
		err = ErrCancelled
		value = nil
	default:
	}

	h.mu.Lock()
	if err != nil {
		h.run.Err = err
	} else {
		h.run.NativeValue = value
	}
	h.run.CompletionTime = time.Now()
	h.status = StatusCompleted
	h.mu.Unlock()
	close(h.done)
}

// CheckIfRunning implements Handler.
func (h *Native) CheckIfRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status == StatusRunning || h.status == StatusCompleted
}

// CheckIfCompleted implements Handler.
func (h *Native) CheckIfCompleted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusCompleted {
		return true
	}
	if h.done == nil {
		return false
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Kill implements Handler: it signals cancellation, observed by the
// running closure only at completion time (a bare func() (any, error)
// has no interruption point of its own).
func (h *Native) Kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled == nil {
		return
	}
	select {
	case <-h.cancelled:
	default:
		close(h.cancelled)
	}
}
