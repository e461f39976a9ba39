package syscalls

import (
	"errors"

	"strideos/internal/abi"
	"strideos/internal/sched"
	"strideos/internal/timer"
)

// Exit terminates the calling task. It never returns: an exited task is
// always retired by next.
func (h *Handler) Exit(code int32) {
	h.logger.Info("application exited", "task", h.mgr.Current(), "code", code)
	h.mgr.ExitCurrent()
	h.next()
}

// Yield suspends the calling task and returns 0 once it is scheduled again.
func (h *Handler) Yield() int64 {
	h.mgr.SuspendCurrent()
	h.next()
	return 0
}

// next dispatches the next task and retires the caller if it will never be
// resumed: it exited, was killed at the suspend cap, or nothing is left.
func (h *Handler) next() {
	err := h.mgr.DispatchNext()
	if err == nil {
		return
	}
	if !errors.Is(err, sched.ErrAllCompleted) && !errors.Is(err, sched.ErrTaskExited) {
		h.logger.Debug("task stopped", "task", h.mgr.Current(), "error", err)
	}
	h.retire()
}

// GetTime stores the current time as a TimeVal at dst.
func (h *Handler) GetTime(dst uint64) int64 {
	if !h.mgr.CheckBounds(dst, abi.TimeValSize) {
		h.logger.Debug("get_time rejected: destination out of bounds", "task", h.mgr.Current(), "dst", dst)
		return -1
	}

	sec, usec := timer.Split(h.clock.NowMicros())
	tv := abi.TimeVal{Sec: sec, Usec: usec}
	if err := h.memory.Write(dst, tv.Encode()); err != nil {
		h.logger.Debug("get_time rejected", "task", h.mgr.Current(), "error", err)
		return -1
	}
	return 0
}

// SetPriority returns the new priority, or -1 for values below the floor.
func (h *Handler) SetPriority(prio int64) int64 {
	p, err := h.mgr.SetPriority(prio)
	if err != nil {
		h.logger.Debug("set_priority rejected", "task", h.mgr.Current(), "error", err)
		return -1
	}
	return p
}
