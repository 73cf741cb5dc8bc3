package faultkind

import (
	"rv32fp/memsec"
	"rv32fp/trace"
)

// EntryPointFault is the evidence for Kind EntryPoint: the step's own
// committed fetch witness, its step number (always 0), and the address the
// program was actually configured to start at.
type EntryPointFault struct {
	ReadPC     trace.TraceReadPC
	Step       uint64
	EntryPoint uint32
}

// TraceHashFault is the evidence for Kind TraceHash: the previous step's
// hash the prover should have chained from, the disputed step's write half
// (the thing that got hashed), and the hash the prover actually committed
// to.
type TraceHashFault struct {
	ProverPrevHash string
	Step           trace.TraceStep
	ClaimedHash    string
}

// TraceHashZeroFault is TraceHash's step-0 counterpart; the previous hash is
// always the fixed initial hash, so it isn't carried as a field.
type TraceHashZeroFault struct {
	Step        trace.TraceStep
	ClaimedHash string
}

// ProgramCounterFault is the evidence for Kind ProgramCounter: the
// previous step's write half (whose WritePC the disputed step should have
// read as its own ReadPC), and what the disputed step actually committed.
type ProgramCounterFault struct {
	PreviousStep trace.TraceStep
	ReadPC       trace.TraceReadPC
}

// OpcodeFault is the evidence for Kind Opcode: the committed fetch witness
// and a window of the code section's actual words around the disputed PC,
// for the verifying side to check the disagreement against directly.
type OpcodeFault struct {
	ReadPC           trace.TraceReadPC
	ChunkIndex       uint32
	ChunkBaseAddress uint32
	OpcodesChunk     []uint32
}

// HaltFault is the evidence for Kind Halt: the claimed-halting step's fetch
// witness and its two reads (a7, a0 by the system-call calling convention),
// which together fail to describe the ecall-halt (syscall 93) shape.
type HaltFault struct {
	ReadPC trace.TraceReadPC
	A7     trace.TraceRead
	A0     trace.TraceRead
}

// InputDataFault is the evidence for Kind InputData: the read the prover
// committed to against the input section, and the read the verifier itself
// produced from the actual input bytes.
type InputDataFault struct {
	Committed trace.TraceRead
	Expected  trace.TraceRead
}

// AddressesSectionsFault is the evidence for Kind AddressesSections: the
// disputed step's full read/write/witness shape plus one section of each of
// the program's four permission classes (read-write, read-only, register,
// code), filled in whichever class the violation involves. A nil field
// means the program has no section of that class.
type AddressesSectionsFault struct {
	Read1             trace.TraceRead
	Read2             trace.TraceRead
	Write             trace.TraceWrite
	MemWitness        trace.MemoryWitness
	WritePC           trace.ProgramCounter
	ReadWriteSection  *memsec.SectionDefinition
	ReadOnlySection   *memsec.SectionDefinition
	RegisterSection   *memsec.SectionDefinition
	CodeSection       *memsec.SectionDefinition
}

// Challenge is the outcome of Classify: which Kind applies, plus the one
// payload field matching it. Every other payload field is nil.
type Challenge struct {
	Kind Kind

	EntryPoint        *EntryPointFault
	TraceHash         *TraceHashFault
	TraceHashZero     *TraceHashZeroFault
	ProgramCounter    *ProgramCounterFault
	Opcode            *OpcodeFault
	Halt              *HaltFault
	InputData         *InputDataFault
	AddressesSections *AddressesSectionsFault
}
