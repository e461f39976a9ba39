// Package kernel wires the loader, scheduler and syscall layer into a
// bootable batch system.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"strideos/internal/config"
	"strideos/internal/console"
	"strideos/internal/job"
	"strideos/internal/loader"
	"strideos/internal/logging"
	"strideos/internal/mem"
	"strideos/internal/sched"
	"strideos/internal/syscalls"
	"strideos/internal/timer"
	"strideos/internal/trace"
)

// Kernel is one boot of the system.
type Kernel struct {
	id       uuid.UUID
	cfg      config.Config
	logger   *slog.Logger
	console  console.Console
	clock    timer.Clock
	ticker   *timer.TickClock // set when the config asked for a tick clock
	memory   *mem.Memory
	loader   *loader.Loader
	mgr      *sched.Manager
	handler  *syscalls.Handler
	recorder *trace.Recorder
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) { k.logger = l }
}

// WithConsole replaces the stdout console.
func WithConsole(c console.Console) Option {
	return func(k *Kernel) { k.console = c }
}

// WithClock replaces the clock chosen by the config.
func WithClock(c timer.Clock) Option {
	return func(k *Kernel) { k.clock = c }
}

// New resolves the manifest and loads every app. When cfg names no apps
// the demo manifest is used.
func New(cfg config.Config, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		id:     uuid.New(),
		cfg:    cfg,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.With("boot_id", k.id.String())

	if k.console == nil {
		k.console = console.Stdout()
	}
	if k.clock == nil {
		if cfg.Clock == config.ClockTick {
			k.ticker = timer.NewTickClock(cfg.TickUS)
			k.clock = k.ticker
		} else {
			k.clock = timer.NewMonotonic()
		}
	}

	specs := cfg.Apps
	if len(specs) == 0 {
		specs = config.DemoApps()
	}
	apps, err := resolve(specs)
	if err != nil {
		return nil, err
	}

	k.memory = mem.New()
	k.loader, err = loader.New(k.memory, apps, cfg.Sched.Normalize().StackSize, k.logger)
	if err != nil {
		return nil, err
	}

	k.recorder = trace.NewRecorder(k.logger, k.loader.Name)
	if cfg.Trace.CSV != "" {
		if err := k.recorder.EnableCSVLogging(cfg.Trace.CSV); err != nil {
			return nil, err
		}
	}

	k.mgr, err = sched.NewManager(k.loader, cfg.Sched, sched.WithObserver(k.recorder))
	if err != nil {
		k.recorder.Close()
		return nil, err
	}
	k.handler = syscalls.New(k.mgr, k.memory, k.clock, k.console, k.logger)
	k.loader.SetTrap(k.handler.Dispatch)
	return k, nil
}

func resolve(specs []config.AppSpec) ([]loader.App, error) {
	apps := make([]loader.App, 0, len(specs))
	for i, spec := range specs {
		p, err := job.Lookup(spec.Program, spec.Args)
		if err != nil {
			return nil, fmt.Errorf("kernel: app %d: %w", i, err)
		}
		if spec.Name != "" {
			p.Name = spec.Name
		}
		apps = append(apps, loader.App{Program: p, Priority: spec.Priority})
	}
	return apps, nil
}

// Run boots the first task and blocks until every app has finished or ctx
// is cancelled. Running out of Ready tasks is the normal end of a batch and
// returns nil.
func (k *Kernel) Run(ctx context.Context) error {
	defer k.recorder.Close()

	policy := k.mgr.Config()
	k.logger.Info("kernel booting",
		"apps", k.loader.TaskCount(),
		"mapped_bytes", k.MappedBytes(),
		"big_stride", policy.BigStride,
		"max_suspend", policy.MaxSuspend,
	)
	if k.ticker != nil {
		k.ticker.Start(time.Duration(k.cfg.TickUS) * time.Microsecond)
		defer k.ticker.Stop()
	}

	if err := k.mgr.Start(); err != nil {
		return fmt.Errorf("kernel: start: %w", err)
	}

	select {
	case <-k.mgr.Done():
		if err := k.mgr.Err(); !errors.Is(err, sched.ErrAllCompleted) {
			return fmt.Errorf("kernel: halted: %w", err)
		}
		k.logger.Info("all applications completed")
		return nil
	case <-ctx.Done():
		k.logger.Warn("kernel stopping (context cancelled)")
		// Parked tasks are never resumed and the running one is retired at its
		// next syscall; output it produces before that may follow Run's return.
		k.mgr.Halt(ctx.Err())
		return ctx.Err()
	}
}

// MappedBytes is the total size of every image and stack the loader mapped.
func (k *Kernel) MappedBytes() uint64 {
	var n uint64
	for _, r := range k.memory.Regions() {
		n += r.Size()
	}
	return n
}

// Summary returns per-task totals for the run so far.
func (k *Kernel) Summary() []trace.TaskStats { return k.recorder.Summary() }

// Manager exposes the task manager, mainly for inspection after Run.
func (k *Kernel) Manager() *sched.Manager { return k.mgr }

// ID returns the boot identifier attached to every log line.
func (k *Kernel) ID() uuid.UUID { return k.id }
