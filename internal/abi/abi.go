// Package abi defines the user/kernel calling convention shared by the
// syscall layer and user programs.
package abi

import "encoding/binary"

// Syscall numbers, RISC-V Linux numbering.
const (
	SysWrite       uint64 = 64
	SysExit        uint64 = 93
	SysYield       uint64 = 124
	SysSetPriority uint64 = 140
	SysGetTime     uint64 = 169
)

// FDStdout is the only file descriptor the kernel serves.
const FDStdout uint64 = 1

// TimeValSize is the in-memory size of a TimeVal.
const TimeValSize = 16

// Trap enters the kernel with a syscall number and up to three arguments.
type Trap func(id uint64, args [3]uint64) int64

// TimeVal is the {seconds, microseconds} pair written by get_time.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// Encode lays the pair out as two little-endian words.
func (tv TimeVal) Encode() []byte {
	b := make([]byte, TimeValSize)
	binary.LittleEndian.PutUint64(b[0:8], tv.Sec)
	binary.LittleEndian.PutUint64(b[8:16], tv.Usec)
	return b
}

// DecodeTimeVal is the inverse of Encode. Short input decodes to zero.
func DecodeTimeVal(b []byte) TimeVal {
	if len(b) < TimeValSize {
		return TimeVal{}
	}
	return TimeVal{
		Sec:  binary.LittleEndian.Uint64(b[0:8]),
		Usec: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// Micros returns the pair as a single microsecond count.
func (tv TimeVal) Micros() uint64 {
	return tv.Sec*1_000_000 + tv.Usec
}
