package sched

// MaxAppNum is the number of task slots the kernel can hold.
const MaxAppNum = 16

// TaskStatus is the lifecycle state of one task slot.
type TaskStatus int

const (
	StatusUninit TaskStatus = iota
	StatusReady
	StatusRunning
	StatusExited
)

func (s TaskStatus) String() string {
	switch s {
	case StatusUninit:
		return "UnInit"
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// TaskControlBlock represents one application slot.
type TaskControlBlock struct {
	Context      *TaskContext // saved execution state, only touched by Switch/Handoff
	Status       TaskStatus
	Stride       uint64 // accumulated pass value, never decreases
	Priority     int64  // >= MinPriority; stride grows by BigStride / Priority per turn
	SuspendCount int    // voluntary suspensions so far
}

// newTaskControlBlock creates a Ready slot primed with the loader's context.
func newTaskControlBlock(ctx *TaskContext, priority int64) TaskControlBlock {
	return TaskControlBlock{
		Context:  ctx,
		Status:   StatusReady,
		Priority: priority,
	}
}
