package memsec

import (
	"fmt"

	"rv32fp/trace"
)

// RegisterCount is the number of architectural RV32 registers (x0..x31).
const RegisterCount = 32

// Aux1Index, Aux2Index are the two scratch register slots appended after
// the 32 architectural registers, at register_base+0x80 and +0x84.
const (
	Aux1Index = RegisterCount
	Aux2Index = RegisterCount + 1
	TotalRegisters = RegisterCount + 2
)

// registerWindowSize is the size in bytes of the reserved, 256-byte-aligned
// register section: 34 entries * 4 bytes, rounded up to the 256-byte
// boundary the spec requires.
const registerWindowSize = 256

// RegisterFile is the 34-entry register window: 32 architectural registers
// (index 0 hard-wired to zero) plus AUX1/AUX2, addressed as a Section so the
// rest of memsec's causal tracking applies uniformly.
type RegisterFile struct {
	Base uint32
	sec  *Section
}

// NewRegisterFile allocates the register window at base, which must be
// 256-byte aligned (low byte zero).
func NewRegisterFile(base uint32) (*RegisterFile, error) {
	if base&0xFF != 0 {
		return nil, fmt.Errorf("memsec: register_base %#08x is not 256-byte aligned", base)
	}
	sec, err := NewSection("register", base, registerWindowSize, false, true, true, true)
	if err != nil {
		return nil, err
	}
	return &RegisterFile{Base: base, sec: sec}, nil
}

// Address returns the byte address of register index i (0..31 architectural,
// Aux1Index/Aux2Index for the scratch registers).
func (rf *RegisterFile) Address(i int) uint32 {
	if i < RegisterCount {
		return rf.Base + uint32(i)*4
	}
	return rf.Base + 0x80 + uint32(i-RegisterCount)*4
}

// Read returns a TraceRead for register i.
func (rf *RegisterFile) Read(i int) (trace.TraceRead, error) {
	return rf.sec.Read(rf.Address(i))
}

// Write sets register i to value at the given step. Writing register 0 is a
// programming error -- the spec requires it to be hard-wired zero at every
// step -- and panics rather than silently discarding the write.
func (rf *RegisterFile) Write(i int, value uint32, step uint64) error {
	if i == 0 {
		panic("memsec: write to register 0 (hard-wired zero) is a programming error")
	}
	return rf.sec.Write(rf.Address(i), value, step)
}

// Section exposes the underlying Section, e.g. for boundary-challenge
// partitioning.
func (rf *RegisterFile) Section() *Section { return rf.sec }

// Snapshot captures the register file's state for checkpointing.
func (rf *RegisterFile) Snapshot() SectionSnapshot { return rf.sec.Snapshot() }

// RestoreRegisterFile rebuilds a RegisterFile from a section snapshot taken
// by Snapshot.
func RestoreRegisterFile(base uint32, snap SectionSnapshot) *RegisterFile {
	return &RegisterFile{Base: base, sec: RestoreSection(snap)}
}
