package sched

// TaskContext is the saved execution state of a task.
//
// A task runs on its own goroutine. While switched out, that goroutine is
// parked on resume; the first wake starts entry on a fresh goroutine, which
// plays the role of a context primed with the task's entry point.
type TaskContext struct {
	entry   func()
	resume  chan struct{}
	started bool
}

// NewTaskContext primes a context that begins executing entry on its first resume.
func NewTaskContext(entry func()) *TaskContext {
	return &TaskContext{
		entry:  entry,
		resume: make(chan struct{}),
	}
}

// Started reports whether the context has ever been resumed.
func (c *TaskContext) Started() bool { return c.started }

func (c *TaskContext) wake() {
	if !c.started {
		c.started = true
		go c.entry()
		return
	}
	// unbuffered: blocks until the target goroutine is parked in Switch
	c.resume <- struct{}{}
}

// Switch saves the caller into cur and resumes next. It returns only when
// some other task later switches back into cur.
func Switch(cur, next *TaskContext) {
	if cur == next {
		return
	}
	next.wake()
	<-cur.resume
}

// Handoff resumes next without saving the caller. The caller must not touch
// scheduler state afterwards and is expected to terminate.
func Handoff(next *TaskContext) {
	next.wake()
}
