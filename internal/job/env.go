// Package job holds the user side of the kernel: the ABI a program sees,
// a small syscall library, and the built-in batch programs.
package job

// Layout is where the loader placed an application.
type Layout struct {
	Start    uint64 // first byte of the image
	End      uint64 // one past the last byte of the image
	StackTop uint64 // user stack grows down from here
}

// Env is everything a running program can touch.
type Env interface {
	// Syscall traps into the kernel.
	Syscall(id uint64, a0, a1, a2 uint64) int64
	// Poke and Peek access memory directly, without the kernel's bounds
	// check; only unmapped addresses fail.
	Poke(addr uint64, p []byte) error
	Peek(addr, n uint64) ([]byte, error)
	Layout() Layout
}

// Program is a loadable application.
type Program struct {
	Name  string
	Image []byte // static data, placed at Layout.Start
	Main  func(env Env)
}
