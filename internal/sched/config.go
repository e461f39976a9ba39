package sched

// Config holds the scheduling policy knobs.
type Config struct {
	BigStride       int64  `yaml:"big_stride"`       // 151200 (by default)
	DefaultPriority int64  `yaml:"default_priority"` // 16 (by default)
	MinPriority     int64  `yaml:"min_priority"`     // 2 (by default), never lower
	MaxSuspend      int    `yaml:"max_suspend"`      // 1000 (by default)
	StackSize       uint64 `yaml:"stack_size"`       // 4096 (by default)
}

// DefaultConfig returns the values the kernel boots with when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		BigStride:       151200,
		DefaultPriority: 16,
		MinPriority:     2,
		MaxSuspend:      1000,
		StackSize:       4096,
	}
}

// Normalize applies sanity clamps so a partially filled config is still usable.
func (c Config) Normalize() Config {
	def := DefaultConfig()

	if c.BigStride <= 0 {
		c.BigStride = def.BigStride
	}
	if c.MinPriority < def.MinPriority {
		c.MinPriority = def.MinPriority
	}
	if c.DefaultPriority < c.MinPriority {
		c.DefaultPriority = def.DefaultPriority
		if c.DefaultPriority < c.MinPriority {
			c.DefaultPriority = c.MinPriority
		}
	}
	// the suspend cap can be tuned but never switched off
	if c.MaxSuspend <= 0 {
		c.MaxSuspend = def.MaxSuspend
	}
	if c.StackSize == 0 {
		c.StackSize = def.StackSize
	}

	return c
}
