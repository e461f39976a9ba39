package syscalls

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"strideos/internal/abi"
	"strideos/internal/console"
	"strideos/internal/job"
	"strideos/internal/loader"
	"strideos/internal/mem"
	"strideos/internal/sched"
	"strideos/internal/timer"
)

type testKernel struct {
	h       *Handler
	mgr     *sched.Manager
	memory  *mem.Memory
	loader  *loader.Loader
	clock   *timer.TickClock
	out     *bytes.Buffer
	retired int
}

// setup loads the given programs without starting them; task 0 is current.
func setup(t *testing.T, cfg sched.Config, progs ...job.Program) *testKernel {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	apps := make([]loader.App, len(progs))
	for i, p := range progs {
		apps[i] = loader.App{Program: p}
	}
	memory := mem.New()
	ld, err := loader.New(memory, apps, cfg.Normalize().StackSize, logger)
	if err != nil {
		t.Fatalf("loader.New: %v", err)
	}
	mgr, err := sched.NewManager(ld, cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tk := &testKernel{
		mgr:    mgr,
		memory: memory,
		loader: ld,
		clock:  timer.NewTickClock(1),
		out:    &bytes.Buffer{},
	}
	tk.h = New(mgr, memory, tk.clock, console.NewWriter(tk.out), logger)
	tk.h.retire = func() { tk.retired++ }
	return tk
}

func program(image string) job.Program {
	return job.Program{Name: "test", Image: []byte(image), Main: func(job.Env) {}}
}

func TestWrite(t *testing.T) {
	tk := setup(t, sched.DefaultConfig(), program("hi there\n"), program("other\n"))
	l0 := tk.loader.Layout(0)
	l1 := tk.loader.Layout(1)

	if err := tk.memory.Write(l0.StackTop-16, []byte("from stack")); err != nil {
		t.Fatalf("stage stack: %v", err)
	}
	if err := tk.memory.Write(l0.Start+0x10, []byte{0xff, 0xfe}); err != nil {
		t.Fatalf("stage bad utf-8: %v", err)
	}

	tests := []struct {
		name string
		fd   uint64
		buf  uint64
		n    uint64
		want int64
	}{
		{"image to stdout", abi.FDStdout, l0.Start, 9, 9},
		{"stack to stdout", abi.FDStdout, l0.StackTop - 16, 10, 10},
		{"empty write", abi.FDStdout, l0.Start, 0, 0},
		{"unsupported fd", 2, l0.Start, 9, -1},
		{"straddles image end", abi.FDStdout, l0.End - 4, 8, -1},
		{"beyond stack top", abi.FDStdout, l0.StackTop - 4, 8, -1},
		{"another task's image", abi.FDStdout, l1.Start, 6, -1},
		{"unmapped address", abi.FDStdout, 0x10, 4, -1},
		{"invalid utf-8", abi.FDStdout, l0.Start + 0x10, 2, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tk.h.Write(tt.fd, tt.buf, tt.n); got != tt.want {
				t.Errorf("Write(%d, %#x, %d) = %d, want %d", tt.fd, tt.buf, tt.n, got, tt.want)
			}
		})
	}

	if got, want := tk.out.String(), "hi there\nfrom stack"; got != want {
		t.Errorf("console = %q, want %q", got, want)
	}
}

func TestGetTime(t *testing.T) {
	tk := setup(t, sched.DefaultConfig(), program(""))
	l := tk.loader.Layout(0)
	tk.clock.Advance(3_000_042)

	dst := l.StackTop - abi.TimeValSize
	if got := tk.h.GetTime(dst); got != 0 {
		t.Fatalf("GetTime = %d, want 0", got)
	}
	b, err := tk.memory.Read(dst, abi.TimeValSize)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tv := abi.DecodeTimeVal(b); tv.Sec != 3 || tv.Usec != 42 {
		t.Errorf("TimeVal = %+v, want {3 42}", tv)
	}

	if got := tk.h.GetTime(l.End - 8); got != -1 {
		t.Errorf("GetTime straddling image end = %d, want -1", got)
	}
	if got := tk.h.GetTime(0); got != -1 {
		t.Errorf("GetTime(0) = %d, want -1", got)
	}
}

func TestSetPriority(t *testing.T) {
	tk := setup(t, sched.DefaultConfig(), program(""))

	if got := tk.h.SetPriority(1); got != -1 {
		t.Errorf("SetPriority(1) = %d, want -1", got)
	}
	if tcb, _ := tk.mgr.Task(0); tcb.Priority != 16 {
		t.Errorf("priority after rejected call = %d, want 16", tcb.Priority)
	}
	if got := tk.h.SetPriority(10); got != 10 {
		t.Errorf("SetPriority(10) = %d, want 10", got)
	}
}

func TestYieldSingleTask(t *testing.T) {
	cfg := sched.DefaultConfig()
	cfg.MaxSuspend = 2
	tk := setup(t, cfg, program(""))

	for i := 0; i < 2; i++ {
		if got := tk.h.Yield(); got != 0 {
			t.Fatalf("Yield #%d = %d, want 0", i+1, got)
		}
	}
	if tk.retired != 0 {
		t.Fatalf("task retired after %d yields", 2)
	}

	tk.h.Yield()
	if tk.retired != 1 {
		t.Errorf("retired = %d after passing the suspend cap, want 1", tk.retired)
	}
	if tcb, _ := tk.mgr.Task(0); tcb.Status != sched.StatusExited {
		t.Errorf("status = %v, want Exited", tcb.Status)
	}
	if !errors.Is(tk.mgr.Err(), sched.ErrAllCompleted) {
		t.Errorf("manager err = %v, want ErrAllCompleted", tk.mgr.Err())
	}
}

func TestExitHaltsWhenLastTask(t *testing.T) {
	tk := setup(t, sched.DefaultConfig(), program(""))

	tk.h.Exit(7)
	if tk.retired != 1 {
		t.Errorf("retired = %d, want exactly 1", tk.retired)
	}
	select {
	case <-tk.mgr.Done():
	default:
		t.Error("manager did not halt")
	}
}

func TestExitRetiresOnceWithOthersReady(t *testing.T) {
	tk := setup(t, sched.DefaultConfig(), program(""), program(""))

	tk.h.Exit(0)
	if tk.retired != 1 {
		t.Errorf("retired = %d, want exactly 1", tk.retired)
	}
	if tcb, _ := tk.mgr.Task(0); tcb.Status != sched.StatusExited {
		t.Errorf("task 0 status = %v, want Exited", tcb.Status)
	}
	if got := tk.mgr.Current(); got != 1 {
		t.Errorf("current = %d, want 1", got)
	}
	if tk.mgr.Err() != nil {
		t.Errorf("manager halted with a task still ready: %v", tk.mgr.Err())
	}
}

func TestDispatch(t *testing.T) {
	tk := setup(t, sched.DefaultConfig(), program("abc"))
	l := tk.loader.Layout(0)

	if got := tk.h.Dispatch(abi.SysWrite, [3]uint64{abi.FDStdout, l.Start, 3}); got != 3 {
		t.Errorf("Dispatch(write) = %d, want 3", got)
	}
	if got := tk.h.Dispatch(abi.SysSetPriority, [3]uint64{uint64(5)}); got != 5 {
		t.Errorf("Dispatch(set_priority) = %d, want 5", got)
	}
	neg := int64(-3)
	if got := tk.h.Dispatch(abi.SysSetPriority, [3]uint64{uint64(neg)}); got != -1 {
		t.Errorf("Dispatch(set_priority, -3) = %d, want -1", got)
	}
	if got := tk.h.Dispatch(999, [3]uint64{}); got != -1 {
		t.Errorf("Dispatch(999) = %d, want -1", got)
	}
}
