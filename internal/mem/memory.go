// Package mem simulates the kernel's flat physical memory.
//
// There is no paging: every mapped region is visible at its own address.
// Translation fails only for addresses nothing was mapped at, so it is not
// a protection mechanism; callers must bounds check user pointers first.
package mem

import (
	"errors"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

var (
	// ErrFault is returned for accesses that touch unmapped memory.
	ErrFault = errors.New("mem: access fault")
	// ErrOverlap is returned when mapping a region over an existing one.
	ErrOverlap = errors.New("mem: region overlaps existing mapping")
)

// Region is one contiguous mapped range [Start, End).
type Region struct {
	Start uint64
	End   uint64
	data  []byte
}

// Size returns the length of the region in bytes.
func (r *Region) Size() uint64 { return r.End - r.Start }

// Memory is a set of non-overlapping regions ordered by start address.
type Memory struct {
	mu      sync.RWMutex
	regions *redblacktree.Tree // start address -> *Region
}

// New returns an empty memory.
func New() *Memory {
	return &Memory{regions: redblacktree.NewWith(utils.UInt64Comparator)}
}

// Map allocates a zeroed region of size bytes at start.
func (m *Memory) Map(start, size uint64) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("mem: map %#x: empty region", start)
	}
	end := start + size
	if end < start {
		return nil, fmt.Errorf("mem: map %#x+%#x: wraps address space", start, size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if node, ok := m.regions.Floor(end - 1); ok {
		if r := node.Value.(*Region); r.End > start {
			return nil, fmt.Errorf("%w: [%#x, %#x) hits [%#x, %#x)", ErrOverlap, start, end, r.Start, r.End)
		}
	}

	r := &Region{Start: start, End: end, data: make([]byte, size)}
	m.regions.Put(start, r)
	return r, nil
}

// lookup finds the region holding [addr, addr+n). A range spanning two
// adjacent regions is still a fault.
func (m *Memory) lookup(addr, n uint64) (*Region, error) {
	node, ok := m.regions.Floor(addr)
	if !ok {
		return nil, fmt.Errorf("%w at %#x", ErrFault, addr)
	}
	r := node.Value.(*Region)
	if addr >= r.End || n > r.End-addr {
		return nil, fmt.Errorf("%w at %#x+%#x", ErrFault, addr, n)
	}
	return r, nil
}

// Read copies n bytes starting at addr.
func (m *Memory) Read(addr, n uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, err := m.lookup(addr, n)
	if err != nil {
		return nil, err
	}
	off := addr - r.Start
	out := make([]byte, n)
	copy(out, r.data[off:off+n])
	return out, nil
}

// Write copies p to addr.
func (m *Memory) Write(addr uint64, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.lookup(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(r.data[addr-r.Start:], p)
	return nil
}

// Regions returns the mapped regions in address order.
func (m *Memory) Regions() []Region {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Region, 0, m.regions.Size())
	it := m.regions.Iterator()
	for it.Next() {
		r := it.Value().(*Region)
		out = append(out, Region{Start: r.Start, End: r.End})
	}
	return out
}
