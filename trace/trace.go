// Package trace defines the fraud-proof data model: the per-step read/write
// witnesses a prover commits to, the memory-access-shape tag that lets a
// verifier predicate check those witnesses cheaply, and the Blake3 rolling
// hash chain that binds an entire execution into a single 20-byte digest.
package trace

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/blake3"
)

// ProgramCounter is the (address, micro) pair identifying a position within
// a possibly multi-micro-step instruction.
type ProgramCounter struct {
	Address uint32
	Micro   uint8
}

func (pc ProgramCounter) String() string {
	return fmt.Sprintf("%08x.%d", pc.Address, pc.Micro)
}

// TraceRead is a pure read witness: the address read, the value found
// there, and the step at which that value was last written (or
// NeverWritten if the word has been untouched since program load).
type TraceRead struct {
	Address  uint32
	Value    uint32
	LastStep uint64
}

// NeverWritten is the sentinel LastStep value for a word that has not been
// written since the program image was loaded.
const NeverWritten = ^uint64(0)

// TraceReadPC is the instruction fetch witness for a step: the program
// counter the step executed at, and the 32-bit opcode word found there.
type TraceReadPC struct {
	PC     ProgramCounter
	Opcode uint32
}

// TraceWrite is the single memory-shaped write a step performs.
type TraceWrite struct {
	Address uint32
	Value   uint32
}

// TraceStep is the write half of a step's trace: what was written, and
// where the program counter moves to next.
type TraceStep struct {
	Write   TraceWrite
	WritePC ProgramCounter
}

// Bytes serializes a TraceStep as 4-byte big-endian write address, 4-byte
// big-endian write value, 4-byte big-endian write-PC address, and a single
// write-PC micro byte -- 13 bytes total.
//
// The originating prose describes this as a "17-byte" serialization, but
// the reference Rust implementation's own to_bytes() produces exactly these
// four fields (13 bytes); there is no fifth field to pad the count to 17.
// This implementation follows the Rust source, which is unambiguous.
func (ts TraceStep) Bytes() []byte {
	buf := make([]byte, 13)
	binary.BigEndian.PutUint32(buf[0:4], ts.Write.Address)
	binary.BigEndian.PutUint32(buf[4:8], ts.Write.Value)
	binary.BigEndian.PutUint32(buf[8:12], ts.WritePC.Address)
	buf[12] = ts.WritePC.Micro
	return buf
}

// MemoryAccessKind tags what a read or write targets.
type MemoryAccessKind uint8

const (
	AccessRegister MemoryAccessKind = 0
	AccessMemory   MemoryAccessKind = 1
	AccessUnused   MemoryAccessKind = 2
)

// MemoryWitness packs the shape of a step's two reads and one write into a
// single byte: (read1<<4)|(read2<<2)|write.
type MemoryWitness struct {
	byte uint8
}

// NewMemoryWitness packs the three access kinds into a MemoryWitness.
func NewMemoryWitness(read1, read2, write MemoryAccessKind) MemoryWitness {
	return MemoryWitness{byte: (uint8(read1) << 4) | (uint8(read2) << 2) | uint8(write)}
}

// MemoryWitnessFromByte reconstructs a MemoryWitness from its packed form.
func MemoryWitnessFromByte(b uint8) MemoryWitness { return MemoryWitness{byte: b} }

// Byte returns the packed representation.
func (w MemoryWitness) Byte() uint8 { return w.byte }

// Read1, Read2, Write unpack the three access-kind fields.
func (w MemoryWitness) Read1() MemoryAccessKind { return MemoryAccessKind((w.byte >> 4) & 0x3) }
func (w MemoryWitness) Read2() MemoryAccessKind { return MemoryAccessKind((w.byte >> 2) & 0x3) }
func (w MemoryWitness) Write() MemoryAccessKind { return MemoryAccessKind(w.byte & 0x3) }

// NoWrite is the common shape for instructions that read but do not write
// (branches): both reads from registers, no write.
func NoWrite() MemoryWitness { return NewMemoryWitness(AccessRegister, AccessRegister, AccessUnused) }

// RegisterUnusedRegister is the shape for single-operand register
// instructions where only the first read and the write are registers.
func RegisterUnusedRegister() MemoryWitness {
	return NewMemoryWitness(AccessRegister, AccessUnused, AccessRegister)
}

// DefaultWitness is the shape for steps whose reads and write carry no
// semantic weight for the verifier -- fence, ebreak, and any ecall syscall
// other than halt are committed this way, all three fields unused.
func DefaultWitness() MemoryWitness {
	return NewMemoryWitness(AccessUnused, AccessUnused, AccessUnused)
}

// RegistersWitness is the shape for a step whose two reads and one write all
// target registers -- the ecall halt syscall, which writes A0 back to
// itself to record the exit code in the trace.
func RegistersWitness() MemoryWitness {
	return NewMemoryWitness(AccessRegister, AccessRegister, AccessRegister)
}

// TraceRWStep is the full per-step commitment a prover makes: the step
// number, the two read witnesses, the instruction fetch witness, the write
// half, an optional non-deterministic hint (divide/remainder opcodes only),
// and the memory-access-shape byte.
type TraceRWStep struct {
	StepNumber uint64
	Read1      TraceRead
	Read2      TraceRead
	ReadPC     TraceReadPC
	Step       TraceStep
	Witness    *uint32
	MemWitness MemoryWitness
}

// CSV renders a TraceRWStep as a semicolon-joined hex debug line, mirroring
// the original implementation's to_csv() used by its golden-file tests.
func (s TraceRWStep) CSV() string {
	witness := "-"
	if s.Witness != nil {
		witness = fmt.Sprintf("%08x", *s.Witness)
	}
	return fmt.Sprintf(
		"%d;%08x;%08x;%d;%08x;%08x;%d;%08x;%08x;%08x;%d;%s;%02x",
		s.StepNumber,
		s.Read1.Address, s.Read1.Value, s.Read1.LastStep,
		s.Read2.Address, s.Read2.Value, s.Read2.LastStep,
		s.ReadPC.PC.Address, s.ReadPC.Opcode,
		s.Step.Write.Address, s.Step.Write.Value,
		witness,
		s.MemWitness.Byte(),
	)
}

// digestSize is the truncated Blake3 output length used throughout the
// rolling hash chain.
const digestSize = 20

// InitialHash returns h0 = Blake3(0xFF)[0:20], the seed every execution's
// hash chain starts from.
func InitialHash() [digestSize]byte {
	full := blake3.Sum256([]byte{0xff})
	var out [digestSize]byte
	copy(out[:], full[:digestSize])
	return out
}

// StepHash computes h_k = Blake3(h_{k-1} || serialize(trace_step_k))[0:20].
func StepHash(previous [digestSize]byte, step TraceStep) [digestSize]byte {
	h := blake3.New(digestSize, nil)
	h.Write(previous[:])
	h.Write(step.Bytes())
	var out [digestSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
