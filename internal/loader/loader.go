// Package loader places batch applications in memory and primes their
// initial task contexts.
package loader

import (
	"errors"
	"fmt"
	"log/slog"

	"strideos/internal/abi"
	"strideos/internal/job"
	"strideos/internal/mem"
	"strideos/internal/sched"
)

// Memory layout. Images sit in fixed-size slots from AppBase; user stacks
// are spaced two stack sizes apart so an unmapped guard gap sits below each.
const (
	AppBase       uint64 = 0x80400000
	AppSizeLimit  uint64 = 0x20000
	UserStackBase uint64 = 0x80800000
	pageSize      uint64 = 0x1000
)

// ErrTooManyApps is returned when the manifest exceeds the task table.
var ErrTooManyApps = errors.New("loader: too many applications")

// App is one manifest entry.
type App struct {
	Program  job.Program
	Priority int64 // 0 means the scheduler default
}

type slot struct {
	app    App
	layout job.Layout
}

// Loader implements sched.Loader over a fixed set of programs.
type Loader struct {
	memory    *mem.Memory
	stackSize uint64
	slots     []slot
	trap      abi.Trap
	logger    *slog.Logger
}

// New maps every app's image and stack into memory.
func New(memory *mem.Memory, apps []App, stackSize uint64, logger *slog.Logger) (*Loader, error) {
	if len(apps) > sched.MaxAppNum {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyApps, len(apps), sched.MaxAppNum)
	}
	if stackSize == 0 {
		stackSize = sched.DefaultConfig().StackSize
	}

	l := &Loader{
		memory:    memory,
		stackSize: stackSize,
		logger:    logger.With("component", "loader"),
	}
	for i, app := range apps {
		lay, err := l.place(i, app.Program)
		if err != nil {
			return nil, fmt.Errorf("loader: app %d (%s): %w", i, app.Program.Name, err)
		}
		l.slots = append(l.slots, slot{app: app, layout: lay})
		l.logger.Debug("app loaded",
			"task", i,
			"program", app.Program.Name,
			"start", fmt.Sprintf("%#x", lay.Start),
			"end", fmt.Sprintf("%#x", lay.End),
			"stack_top", fmt.Sprintf("%#x", lay.StackTop),
		)
	}
	return l, nil
}

func (l *Loader) place(i int, p job.Program) (job.Layout, error) {
	size := roundUp(uint64(len(p.Image)), pageSize)
	if size == 0 {
		size = pageSize
	}
	if size > AppSizeLimit {
		return job.Layout{}, fmt.Errorf("image of %d bytes exceeds slot size %#x", len(p.Image), AppSizeLimit)
	}

	start := AppBase + uint64(i)*AppSizeLimit
	if _, err := l.memory.Map(start, size); err != nil {
		return job.Layout{}, err
	}
	if len(p.Image) > 0 {
		if err := l.memory.Write(start, p.Image); err != nil {
			return job.Layout{}, err
		}
	}

	stackTop := UserStackBase + uint64(2*i+2)*l.stackSize
	if _, err := l.memory.Map(stackTop-l.stackSize, l.stackSize); err != nil {
		return job.Layout{}, err
	}

	return job.Layout{Start: start, End: start + size, StackTop: stackTop}, nil
}

func roundUp(n, align uint64) uint64 {
	return (n + align - 1) / align * align
}

// SetTrap installs the kernel entry used by every user environment.
// It must be called before the first task runs.
func (l *Loader) SetTrap(t abi.Trap) { l.trap = t }

// TaskCount implements sched.Loader.
func (l *Loader) TaskCount() int { return len(l.slots) }

// MemoryExtent implements sched.Loader.
func (l *Loader) MemoryExtent(i int) (start, end, stackTop uint64) {
	lay := l.slots[i].layout
	return lay.Start, lay.End, lay.StackTop
}

// InitialPriority implements sched.PriorityLoader.
func (l *Loader) InitialPriority(i int) int64 { return l.slots[i].app.Priority }

// Layout returns where app i was placed.
func (l *Loader) Layout(i int) job.Layout { return l.slots[i].layout }

// Name returns the program name of app i.
func (l *Loader) Name(i int) string { return l.slots[i].app.Program.Name }

// InitContext implements sched.Loader. The context runs the program and
// exits on its behalf if it returns; a program that crashes is killed
// with code -1.
func (l *Loader) InitContext(i int) *sched.TaskContext {
	env := &userEnv{loader: l, layout: l.slots[i].layout}
	prog := l.slots[i].app.Program

	return sched.NewTaskContext(func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("application faulted, killing it", "task", i, "program", prog.Name, "panic", r)
				job.Exit(env, -1)
			}
		}()
		prog.Main(env)
		job.Exit(env, 0)
	})
}

// userEnv is the job.Env handed to a running program.
type userEnv struct {
	loader *Loader
	layout job.Layout
}

func (e *userEnv) Syscall(id uint64, a0, a1, a2 uint64) int64 {
	if e.loader.trap == nil {
		return -1
	}
	return e.loader.trap(id, [3]uint64{a0, a1, a2})
}

func (e *userEnv) Poke(addr uint64, p []byte) error { return e.loader.memory.Write(addr, p) }

func (e *userEnv) Peek(addr, n uint64) ([]byte, error) { return e.loader.memory.Read(addr, n) }

func (e *userEnv) Layout() job.Layout { return e.layout }
