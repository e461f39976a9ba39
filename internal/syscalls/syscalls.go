// Package syscalls is the kernel side of the trap interface.
package syscalls

import (
	"log/slog"
	"runtime"

	"strideos/internal/abi"
	"strideos/internal/console"
	"strideos/internal/mem"
	"strideos/internal/sched"
	"strideos/internal/timer"
)

// Handler translates traps into Task Manager operations. Every user pointer
// is bounds checked against the current task before memory is touched.
type Handler struct {
	mgr     *sched.Manager
	memory  *mem.Memory
	clock   timer.Clock
	console console.Console
	logger  *slog.Logger

	// retire ends the calling task's goroutine once it can never be resumed.
	retire func()
}

// New creates a Handler.
func New(mgr *sched.Manager, memory *mem.Memory, clock timer.Clock, cons console.Console, logger *slog.Logger) *Handler {
	return &Handler{
		mgr:     mgr,
		memory:  memory,
		clock:   clock,
		console: cons,
		logger:  logger.With("component", "syscall"),
		retire:  runtime.Goexit,
	}
}

// Dispatch is the abi.Trap entry point.
func (h *Handler) Dispatch(id uint64, args [3]uint64) int64 {
	// a halted kernel never returns to user code
	if h.mgr.Err() != nil {
		h.retire()
		return -1
	}

	switch id {
	case abi.SysWrite:
		return h.Write(args[0], args[1], args[2])
	case abi.SysExit:
		h.Exit(int32(args[0]))
		return 0
	case abi.SysYield:
		return h.Yield()
	case abi.SysGetTime:
		return h.GetTime(args[0])
	case abi.SysSetPriority:
		return h.SetPriority(int64(args[0]))
	default:
		h.logger.Warn("unsupported syscall", "id", id, "task", h.mgr.Current())
		return -1
	}
}
