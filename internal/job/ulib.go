package job

import (
	"unicode/utf8"

	"strideos/internal/abi"
)

const (
	// scratchSize bytes just under the stack top are used to stage
	// strings for Print.
	scratchSize = 1024
	timeSlot    = scratchSize + abi.TimeValSize
)

// Write issues write(fd, buf, n).
func Write(env Env, fd, buf, n uint64) int64 {
	return env.Syscall(abi.SysWrite, fd, buf, n)
}

// Exit issues exit(code). It does not return when running under the kernel.
func Exit(env Env, code int32) {
	env.Syscall(abi.SysExit, uint64(int64(code)), 0, 0)
}

// Yield gives up the CPU.
func Yield(env Env) int64 {
	return env.Syscall(abi.SysYield, 0, 0, 0)
}

// GetTime asks the kernel to store a TimeVal at dst.
func GetTime(env Env, dst uint64) int64 {
	return env.Syscall(abi.SysGetTime, dst, 0, 0)
}

// SetPriority changes the caller's scheduling priority.
func SetPriority(env Env, prio int64) int64 {
	return env.Syscall(abi.SysSetPriority, uint64(prio), 0, 0)
}

// Now reads the kernel clock through a slot on the caller's stack.
func Now(env Env) (abi.TimeVal, bool) {
	dst := env.Layout().StackTop - timeSlot
	if GetTime(env, dst) != 0 {
		return abi.TimeVal{}, false
	}
	b, err := env.Peek(dst, abi.TimeValSize)
	if err != nil {
		return abi.TimeVal{}, false
	}
	return abi.DecodeTimeVal(b), true
}

// Print writes s to stdout, staging it on the user stack in chunks that
// never split a UTF-8 sequence. It returns the bytes written or -1.
func Print(env Env, s string) int64 {
	buf := env.Layout().StackTop - scratchSize
	var total int64
	for len(s) > 0 {
		n := len(s)
		if n > scratchSize {
			n = scratchSize
			for n > 0 && !utf8.RuneStart(s[n]) {
				n--
			}
			if n == 0 {
				n = scratchSize
			}
		}
		if err := env.Poke(buf, []byte(s[:n])); err != nil {
			return -1
		}
		ret := Write(env, abi.FDStdout, buf, uint64(n))
		if ret < 0 {
			return ret
		}
		total += ret
		s = s[n:]
	}
	return total
}
