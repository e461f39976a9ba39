package job

import (
	"strings"
	"testing"
	"unicode/utf8"

	"strideos/internal/abi"
)

// fakeEnv records syscalls and serves memory from a flat buffer at base.
type fakeEnv struct {
	base   uint64
	memory []byte
	calls  []uint64
	out    strings.Builder
	now    abi.TimeVal
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{base: 0x1000, memory: make([]byte, 0x2000)}
}

func (e *fakeEnv) Layout() Layout {
	return Layout{Start: e.base, End: e.base + 0x1000, StackTop: e.base + 0x2000}
}

func (e *fakeEnv) Poke(addr uint64, p []byte) error {
	copy(e.memory[addr-e.base:], p)
	return nil
}

func (e *fakeEnv) Peek(addr, n uint64) ([]byte, error) {
	out := make([]byte, n)
	copy(out, e.memory[addr-e.base:])
	return out, nil
}

func (e *fakeEnv) Syscall(id uint64, a0, a1, a2 uint64) int64 {
	e.calls = append(e.calls, id)
	switch id {
	case abi.SysWrite:
		b, _ := e.Peek(a1, a2)
		if !utf8.Valid(b) {
			return -1
		}
		e.out.Write(b)
		return int64(a2)
	case abi.SysGetTime:
		e.Poke(a0, e.now.Encode())
		return 0
	}
	return 0
}

func TestPrintChunksOnRuneBoundaries(t *testing.T) {
	env := newFakeEnv()
	msg := strings.Repeat("é", scratchSize) // two bytes per rune

	if got := Print(env, msg); got != int64(len(msg)) {
		t.Fatalf("Print returned %d, want %d", got, len(msg))
	}
	if env.out.String() != msg {
		t.Error("printed output does not match input")
	}
	if len(env.calls) != 2 {
		t.Errorf("expected 2 write calls, got %d", len(env.calls))
	}
}

func TestNowReadsTimeVal(t *testing.T) {
	env := newFakeEnv()
	env.now = abi.TimeVal{Sec: 3, Usec: 42}

	tv, ok := Now(env)
	if !ok {
		t.Fatal("Now failed")
	}
	if tv != env.now {
		t.Errorf("Now = %+v, want %+v", tv, env.now)
	}
}

func TestCounterPrintsAndYields(t *testing.T) {
	p, err := Lookup("counter", []string{"2", "tick"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	env := newFakeEnv()
	p.Main(env)

	if got, want := env.out.String(), "tick 1/2\ntick 2/2\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	want := []uint64{abi.SysWrite, abi.SysYield, abi.SysWrite, abi.SysYield}
	if len(env.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", env.calls, want)
	}
	for i := range want {
		if env.calls[i] != want[i] {
			t.Errorf("calls[%d] = %d, want %d", i, env.calls[i], want[i])
		}
	}
}

func TestLookupErrors(t *testing.T) {
	if _, err := Lookup("nope", nil); err == nil {
		t.Error("expected error for unknown program")
	}
	if _, err := Lookup("counter", []string{"many"}); err == nil {
		t.Error("expected error for non-numeric argument")
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	if len(names) != len(registry) {
		t.Fatalf("Names() returned %d entries, want %d", len(names), len(registry))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}
}
