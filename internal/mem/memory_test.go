package mem

import (
	"bytes"
	"errors"
	"testing"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := New()
	if _, err := m.Map(0x1000, 0x1000); err != nil {
		t.Fatalf("Map image: %v", err)
	}
	if _, err := m.Map(0x8000, 0x1000); err != nil {
		t.Fatalf("Map stack: %v", err)
	}
	return m
}

func TestWriteThenRead(t *testing.T) {
	m := newTestMemory(t)

	if err := m.Write(0x1ff0, []byte("0123456789abcdef")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := m.Read(0x1ff4, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte("4567")) {
		t.Errorf("Read = %q, want %q", got, "4567")
	}
}

func TestAccessFaults(t *testing.T) {
	m := newTestMemory(t)

	tests := []struct {
		name string
		addr uint64
		n    uint64
	}{
		{"below first region", 0x0, 4},
		{"gap between regions", 0x4000, 4},
		{"straddles region end", 0x1ff0, 0x20},
		{"past last region", 0x9000, 1},
		{"huge length", 0x1000, ^uint64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Read(tt.addr, tt.n); !errors.Is(err, ErrFault) {
				t.Errorf("Read(%#x, %#x) err = %v, want ErrFault", tt.addr, tt.n, err)
			}
		})
	}

	if err := m.Write(0x8ffe, []byte{1, 2, 3}); !errors.Is(err, ErrFault) {
		t.Errorf("Write across stack end err = %v, want ErrFault", err)
	}
}

func TestMapRejectsOverlap(t *testing.T) {
	m := newTestMemory(t)

	if _, err := m.Map(0x1800, 0x1000); !errors.Is(err, ErrOverlap) {
		t.Errorf("overlapping tail err = %v, want ErrOverlap", err)
	}
	if _, err := m.Map(0x7800, 0x1000); !errors.Is(err, ErrOverlap) {
		t.Errorf("overlapping head err = %v, want ErrOverlap", err)
	}
	if _, err := m.Map(0x2000, 0x1000); err != nil {
		t.Errorf("adjacent region: %v", err)
	}
	if _, err := m.Map(0x3000, 0); err == nil {
		t.Error("expected error for empty region")
	}
}

func TestRegionsAreOrdered(t *testing.T) {
	m := New()
	for _, start := range []uint64{0x9000, 0x1000, 0x5000} {
		if _, err := m.Map(start, 0x100); err != nil {
			t.Fatalf("Map(%#x): %v", start, err)
		}
	}
	regions := m.Regions()
	if len(regions) != 3 {
		t.Fatalf("got %d regions, want 3", len(regions))
	}
	for i, want := range []uint64{0x1000, 0x5000, 0x9000} {
		if regions[i].Start != want {
			t.Errorf("regions[%d].Start = %#x, want %#x", i, regions[i].Start, want)
		}
		if regions[i].Size() != 0x100 {
			t.Errorf("regions[%d].Size() = %#x, want 0x100", i, regions[i].Size())
		}
	}
}
