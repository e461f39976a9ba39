// internal/sched/scheduler.go

package sched

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNoTasks is returned by Start when the loader reported no applications.
	ErrNoTasks = errors.New("sched: no tasks loaded")
	// ErrAllCompleted is the fatal halt: a dispatch was required but no task is Ready.
	ErrAllCompleted = errors.New("sched: all applications completed")
	// ErrTaskExited tells the caller of DispatchNext that its own task is gone
	// and control has been handed off; the caller must terminate.
	ErrTaskExited = errors.New("sched: current task exited")
	// ErrInvalidPriority is returned by SetPriority for values below the floor.
	ErrInvalidPriority = errors.New("sched: priority below minimum")
)

// Loader is the application loader as seen by the scheduler.
type Loader interface {
	TaskCount() int
	InitContext(i int) *TaskContext
	MemoryExtent(i int) (start, end, stackTop uint64)
}

// PriorityLoader is implemented by loaders that assign initial priorities.
type PriorityLoader interface {
	InitialPriority(i int) int64
}

// Manager implements a stride scheduler over a fixed table of task slots.
type Manager struct {
	mu       sync.Mutex // protects everything below; released before any switch
	cfg      Config
	loader   Loader
	numApp   int
	tasks    [MaxAppNum]TaskControlBlock
	current  int
	started  bool
	err      error
	done     chan struct{}
	observer Observer
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver streams task state changes to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager builds the task table from the loader: every loaded slot is
// primed with its initial context and marked Ready.
func NewManager(ld Loader, cfg Config, opts ...Option) (*Manager, error) {
	cfg = cfg.Normalize()

	n := ld.TaskCount()
	if n > MaxAppNum {
		return nil, fmt.Errorf("sched: %d tasks exceed capacity %d", n, MaxAppNum)
	}

	m := &Manager{
		cfg:    cfg,
		loader: ld,
		numApp: n,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	pl, _ := ld.(PriorityLoader)
	for i := 0; i < n; i++ {
		prio := cfg.DefaultPriority
		if pl != nil {
			if p := pl.InitialPriority(i); p >= cfg.MinPriority {
				prio = p
			}
		}
		m.tasks[i] = newTaskControlBlock(ld.InitContext(i), prio)
	}
	return m, nil
}

// Start marks slot 0 Running and hands the CPU to it from a throwaway
// bootstrap context. It must be called exactly once.
func (m *Manager) Start() error {
	m.mu.Lock()
	next, err := m.begin()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	Handoff(next)
	return nil
}

func (m *Manager) begin() (*TaskContext, error) {
	if m.started {
		return nil, errors.New("sched: already started")
	}
	if m.numApp == 0 {
		return nil, ErrNoTasks
	}
	m.started = true
	m.current = 0
	m.tasks[0].Status = StatusRunning
	m.emit(EventStart, 0)
	return m.tasks[0].Context, nil
}

// SelectNext returns the Ready slot with the smallest stride, scanning one
// full cycle starting right after the current slot. Ties go to the slot
// reached first. ok is false when nothing is Ready.
func (m *Manager) SelectNext() (next int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectNext()
}

func (m *Manager) selectNext() (int, bool) {
	next := -1
	var best uint64
	for i := 1; i <= m.numApp; i++ {
		id := (m.current + i) % m.numApp
		t := &m.tasks[id]
		if t.Status != StatusReady {
			continue
		}
		if next < 0 || t.Stride < best {
			next, best = id, t.Stride
		}
	}
	return next, next >= 0
}

// DispatchNext picks the next task, charges its stride and switches to it.
//
// For a caller whose task is still alive, DispatchNext returns nil once that
// task is switched back in. If the caller's task has exited, the CPU is handed
// off and ErrTaskExited is returned immediately. If no task is Ready the
// manager halts and ErrAllCompleted is returned.
func (m *Manager) DispatchNext() error {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return m.err
	}
	prev, next, err := m.advance()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	retire := m.tasks[prev].Status == StatusExited
	cur, nxt := m.tasks[prev].Context, m.tasks[next].Context
	m.mu.Unlock()

	if retire {
		Handoff(nxt)
		return ErrTaskExited
	}
	Switch(cur, nxt)
	return nil
}

// advance performs the bookkeeping half of a dispatch.
func (m *Manager) advance() (prev, next int, err error) {
	prev = m.current
	next, ok := m.selectNext()
	if !ok {
		m.halt(ErrAllCompleted)
		return prev, -1, ErrAllCompleted
	}

	t := &m.tasks[next]
	t.Status = StatusRunning
	t.Stride += m.increment(t.Priority)
	m.current = next
	m.emit(EventDispatch, next)
	return prev, next, nil
}

func (m *Manager) increment(priority int64) uint64 {
	return uint64(m.cfg.BigStride / priority)
}

// Halt stops scheduling from outside the task set. Tasks that are parked
// stay parked; the running one is refused its next dispatch.
func (m *Manager) Halt(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.halt(err)
}

func (m *Manager) halt(err error) {
	if m.err != nil {
		return
	}
	m.err = err
	m.emit(EventHalt, m.current)
	close(m.done)
}

// SuspendCurrent moves the running task back to Ready. A task that keeps
// suspending past the configured cap is exited instead.
func (m *Manager) SuspendCurrent() {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &m.tasks[m.current]
	t.Status = StatusReady
	t.SuspendCount++
	if t.SuspendCount > m.cfg.MaxSuspend {
		t.Status = StatusExited
		m.emit(EventKill, m.current)
		return
	}
	m.emit(EventSuspend, m.current)
}

// ExitCurrent marks the running task Exited. Irreversible.
func (m *Manager) ExitCurrent() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[m.current].Status = StatusExited
	m.emit(EventExit, m.current)
}

// SetPriority changes the running task's priority. Values below the floor
// are rejected without touching any state.
func (m *Manager) SetPriority(prio int64) (int64, error) {
	if prio < m.cfg.MinPriority {
		return 0, fmt.Errorf("%w: %d < %d", ErrInvalidPriority, prio, m.cfg.MinPriority)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[m.current].Priority = prio
	m.emit(EventPriorityUpdate, m.current)
	return prio, nil
}

// CheckBounds reports whether [addr, addr+length) lies wholly inside the
// current task's image or wholly inside its stack.
func (m *Manager) CheckBounds(addr, length uint64) bool {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	start, end, stackTop := m.loader.MemoryExtent(current)
	if within(addr, length, start, end) {
		return true
	}
	if stackTop < m.cfg.StackSize {
		return false
	}
	return within(addr, length, stackTop-m.cfg.StackSize, stackTop)
}

// within is overflow safe: addr+length is never computed.
func within(addr, length, lo, hi uint64) bool {
	return lo <= addr && addr <= hi && length <= hi-addr
}

// Current returns the index of the running task.
func (m *Manager) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// NumTasks returns the number of loaded slots.
func (m *Manager) NumTasks() int { return m.numApp }

// Task returns a copy of slot i.
func (m *Manager) Task(i int) (TaskControlBlock, bool) {
	if i < 0 || i >= m.numApp {
		return TaskControlBlock{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[i], true
}

// Done is closed when the manager halts.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Err returns the halt reason, nil while scheduling is still live.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Config returns the normalized policy the manager runs with.
func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) emit(kind EventKind, id int) {
	if m.observer == nil {
		return
	}
	t := m.tasks[id]
	m.observer.Observe(Event{
		Time:         time.Now(),
		Kind:         kind,
		Task:         id,
		Status:       t.Status,
		Stride:       t.Stride,
		Priority:     t.Priority,
		SuspendCount: t.SuspendCount,
	})
}
