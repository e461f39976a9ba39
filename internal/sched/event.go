// internal/sched/event.go

package sched

import (
	"time"
)

// EventKind represents the type of scheduler event
type EventKind int

const (
	EventStart EventKind = iota
	EventDispatch
	EventSuspend
	EventExit
	EventKill
	EventPriorityUpdate
	EventHalt
)

// Event is emitted on every task state change.
type Event struct {
	Time         time.Time
	Kind         EventKind
	Task         int
	Status       TaskStatus
	Stride       uint64
	Priority     int64
	SuspendCount int
}

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "Start"
	case EventDispatch:
		return "Dispatch"
	case EventSuspend:
		return "Suspend"
	case EventExit:
		return "Exit"
	case EventKill:
		return "Kill"
	case EventPriorityUpdate:
		return "Priority"
	case EventHalt:
		return "Halt"
	default:
		return "Unknown"
	}
}

// Observer receives scheduler events. Observe is called synchronously by
// whichever task currently holds the CPU, so implementations must not call
// back into the Manager.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }
