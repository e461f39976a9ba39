// Package console is the kernel's byte-oriented terminal output.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	tty "github.com/mattn/go-tty"
)

// Console accepts bytes destined for the terminal.
type Console interface {
	WriteBytes(p []byte) error
}

// Writer is a Console backed by any io.Writer.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Stdout returns a console on the process's standard output.
func Stdout() *Writer { return NewWriter(os.Stdout) }

// WriteBytes implements Console.
func (c *Writer) WriteBytes(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write(p)
	return err
}

// TTY is a Console on a serial or terminal device.
type TTY struct {
	mu sync.Mutex
	io *tty.TTY
}

// OpenTTY opens the device at path for console output.
func OpenTTY(path string) (*TTY, error) {
	t, err := tty.OpenDevice(path)
	if err != nil {
		return nil, fmt.Errorf("console: open %s: %w", path, err)
	}
	return &TTY{io: t}, nil
}

// WriteBytes implements Console.
func (c *TTY) WriteBytes(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.io.Output().Write(p)
	return err
}

// Close releases the device.
func (c *TTY) Close() error {
	return c.io.Close()
}
