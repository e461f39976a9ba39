// Package trace records scheduler events: structured logs, an optional CSV
// stream and per-task totals.
package trace

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"

	"strideos/internal/sched"
)

// TaskStats summarizes one task over a run.
type TaskStats struct {
	Task       int
	Name       string
	Dispatches int
	Suspends   int
	Stride     uint64
	Priority   int64
	Status     sched.TaskStatus
	Killed     bool
}

// Recorder implements sched.Observer.
type Recorder struct {
	mu     sync.Mutex
	logger *slog.Logger
	names  func(int) string
	stats  *redblacktree.Tree // task index -> *TaskStats

	// logging-related
	csvFile   *os.File
	csvWriter *csv.Writer
}

// NewRecorder creates a recorder. names maps a task index to its program
// name for log lines and may be nil.
func NewRecorder(logger *slog.Logger, names func(int) string) *Recorder {
	return &Recorder{
		logger: logger.With("component", "sched"),
		names:  names,
		stats:  redblacktree.NewWithIntComparator(),
	}
}

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before the kernel starts.
func (r *Recorder) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"timestamp", "event", "task", "status", "stride", "priority", "suspends"}); err != nil {
		f.Close()
		return fmt.Errorf("trace: %w", err)
	}
	w.Flush()
	r.csvFile = f
	r.csvWriter = w
	return nil
}

// Observe implements sched.Observer.
func (r *Recorder) Observe(ev sched.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tally(ev)
	r.log(ev)

	if r.csvWriter != nil {
		rec := []string{
			ev.Time.Format(time.RFC3339Nano),
			ev.Kind.String(),
			strconv.Itoa(ev.Task),
			ev.Status.String(),
			strconv.FormatUint(ev.Stride, 10),
			strconv.FormatInt(ev.Priority, 10),
			strconv.Itoa(ev.SuspendCount),
		}
		if err := r.csvWriter.Write(rec); err != nil {
			r.logger.Error("csv trace write failed", "error", err)
		}
		r.csvWriter.Flush()
	}
}

func (r *Recorder) tally(ev sched.Event) {
	if ev.Kind == sched.EventHalt {
		return
	}
	var st *TaskStats
	if v, ok := r.stats.Get(ev.Task); ok {
		st = v.(*TaskStats)
	} else {
		st = &TaskStats{Task: ev.Task, Name: r.name(ev.Task)}
		r.stats.Put(ev.Task, st)
	}

	switch ev.Kind {
	case sched.EventStart, sched.EventDispatch:
		st.Dispatches++
	case sched.EventKill:
		st.Killed = true
	}
	st.Suspends = ev.SuspendCount
	st.Stride = ev.Stride
	st.Priority = ev.Priority
	st.Status = ev.Status
}

func (r *Recorder) log(ev sched.Event) {
	attrs := []any{
		"task", ev.Task,
		"program", r.name(ev.Task),
		"stride", ev.Stride,
		"priority", ev.Priority,
	}
	switch ev.Kind {
	case sched.EventDispatch, sched.EventSuspend:
		r.logger.Debug(ev.Kind.String(), attrs...)
	case sched.EventKill:
		r.logger.Warn("task exceeded suspend limit, killed", append(attrs, "suspends", ev.SuspendCount)...)
	case sched.EventHalt:
		r.logger.Info("scheduler halted", "task", ev.Task)
	default:
		r.logger.Info(ev.Kind.String(), attrs...)
	}
}

func (r *Recorder) name(i int) string {
	if r.names == nil {
		return ""
	}
	return r.names(i)
}

// Summary returns per-task totals ordered by task index.
func (r *Recorder) Summary() []TaskStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TaskStats, 0, r.stats.Size())
	it := r.stats.Iterator()
	for it.Next() {
		out = append(out, *it.Value().(*TaskStats))
	}
	return out
}

// Close flushes and closes the CSV stream, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.csvFile == nil {
		return nil
	}
	r.csvWriter.Flush()
	err := r.csvWriter.Error()
	if cerr := r.csvFile.Close(); err == nil {
		err = cerr
	}
	r.csvFile, r.csvWriter = nil, nil
	return err
}
