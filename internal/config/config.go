// Package config loads the kernel's YAML configuration and app manifest.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	yaml "github.com/goccy/go-yaml"

	"strideos/internal/sched"
)

// Clock sources.
const (
	ClockMonotonic = "monotonic"
	ClockTick      = "tick"
)

// Config mirrors strideos.yml.
type Config struct {
	Sched  sched.Config `yaml:"sched"`
	Log    LogConfig    `yaml:"log"`
	Trace  TraceConfig  `yaml:"trace"`
	Clock  string       `yaml:"clock"`   // monotonic (by default) or tick
	TickUS uint64       `yaml:"tick_us"` // 1000 (by default), microseconds per tick
	TTY    string       `yaml:"tty"`     // console device; empty means stdout
	Apps   []AppSpec    `yaml:"apps"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TraceConfig controls the event trace.
type TraceConfig struct {
	CSV string `yaml:"csv"` // path of the CSV event stream; empty disables it
}

// AppSpec is one manifest entry.
type AppSpec struct {
	Name     string   `yaml:"name"`
	Program  string   `yaml:"program"`
	Args     []string `yaml:"args"`
	Priority int64    `yaml:"priority"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Sched:  sched.DefaultConfig(),
		Log:    LogConfig{Level: "info", Format: "text"},
		Clock:  ClockMonotonic,
		TickUS: 1000,
	}
}

// DemoApps is the manifest run when the config names no apps.
func DemoApps() []AppSpec {
	return []AppSpec{
		{Name: "hello", Program: "hello"},
		{Name: "low", Program: "counter", Args: []string{"3", "low"}, Priority: 4},
		{Name: "high", Program: "counter", Args: []string{"3", "high"}, Priority: 32},
		{Name: "renice", Program: "priority", Args: []string{"8", "3"}},
		{Name: "badptr", Program: "badptr"},
	}
}

// Load reads YAML over the defaults. An empty path or a missing file yields
// defaults only; a file that does not parse is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize applies sanity clamps.
func (c *Config) normalize() {
	c.Sched = c.Sched.Normalize()
	c.Clock = strings.ToLower(c.Clock)
	if c.Clock == "" {
		c.Clock = ClockMonotonic
	}
	if c.TickUS == 0 {
		c.TickUS = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	for i := range c.Apps {
		if c.Apps[i].Name == "" {
			c.Apps[i].Name = c.Apps[i].Program
		}
	}
}

// Validate reports settings that cannot be clamped into something sensible.
func (c Config) Validate() error {
	if c.Clock != ClockMonotonic && c.Clock != ClockTick {
		return fmt.Errorf("config: unknown clock %q", c.Clock)
	}
	if len(c.Apps) > sched.MaxAppNum {
		return fmt.Errorf("config: %d apps exceed the limit of %d", len(c.Apps), sched.MaxAppNum)
	}
	for i, app := range c.Apps {
		if app.Program == "" {
			return fmt.Errorf("config: app %d has no program", i)
		}
		if app.Priority != 0 && app.Priority < c.Sched.MinPriority {
			return fmt.Errorf("config: app %d (%s): priority %d below minimum %d", i, app.Name, app.Priority, c.Sched.MinPriority)
		}
	}
	return nil
}
