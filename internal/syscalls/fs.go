package syscalls

import (
	"unicode/utf8"

	"strideos/internal/abi"
)

// Write copies n bytes at buf to the console. Only stdout is served; any
// buffer outside the caller's image or stack, or not valid UTF-8, fails.
func (h *Handler) Write(fd, buf, n uint64) int64 {
	if !h.mgr.CheckBounds(buf, n) {
		h.logger.Debug("write rejected: buffer out of bounds", "task", h.mgr.Current(), "buf", buf, "len", n)
		return -1
	}

	switch fd {
	case abi.FDStdout:
		data, err := h.memory.Read(buf, n)
		if err != nil {
			h.logger.Debug("write rejected", "task", h.mgr.Current(), "error", err)
			return -1
		}
		if !utf8.Valid(data) {
			h.logger.Debug("write rejected: invalid utf-8", "task", h.mgr.Current())
			return -1
		}
		if err := h.console.WriteBytes(data); err != nil {
			h.logger.Error("console write failed", "error", err)
			return -1
		}
		return int64(n)
	default:
		return -1
	}
}
