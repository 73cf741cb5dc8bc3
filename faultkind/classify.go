package faultkind

import (
	"encoding/hex"

	"rv32fp/emulator"
	"rv32fp/memsec"
	"rv32fp/riscv"
	"rv32fp/trace"
)

// chunkWords is the number of code-section words an Opcode fault bundles
// around the disputed address, giving the verifying side a small window to
// check the disagreement against rather than a single word.
const chunkWords = 8

// Request is everything Classify needs to judge the single step a
// bisection has converged on. VerifierStep is the same step number computed
// independently by re-executing Program from a trusted prefix (Program
// reflects the state immediately before that step, i.e. Program.Hash is
// hash_{k-1} and Program.PC is the PC the step should have read); Classify
// never re-executes anything itself, it only compares.
type Request struct {
	ProverStep       trace.TraceRWStep
	ProverPrevHash   [20]byte
	ProverClaimedHash [20]byte
	ProverClaimsHalt bool

	VerifierStep trace.TraceRWStep
	Program      *emulator.Program

	EntryPoint       uint32
	InputSectionName string
}

// Classify picks the single fault kind a converged step exhibits, checking
// in the fixed priority order spec lists: entry point, hash continuity,
// program counter, opcode, halt validity, input data, then section
// permissions. The first check that disagrees wins; Classify never reports
// more than one kind for the same step.
func Classify(req Request) Challenge {
	if req.ProverStep.StepNumber == 0 {
		want := trace.ProgramCounter{Address: req.EntryPoint, Micro: 0}
		if req.ProverStep.ReadPC.PC != want {
			return Challenge{Kind: EntryPoint, EntryPoint: &EntryPointFault{
				ReadPC:     req.ProverStep.ReadPC,
				Step:       req.ProverStep.StepNumber,
				EntryPoint: req.EntryPoint,
			}}
		}
	}

	if c, ok := classifyHash(req); ok {
		return c
	}

	if req.ProverStep.ReadPC.PC != req.VerifierStep.ReadPC.PC {
		return Challenge{Kind: ProgramCounter, ProgramCounter: &ProgramCounterFault{
			PreviousStep: req.VerifierStep.Step,
			ReadPC:       req.ProverStep.ReadPC,
		}}
	}

	if req.ProverStep.ReadPC.Opcode != req.VerifierStep.ReadPC.Opcode {
		idx, base, words := fetchCodeChunk(req.Program, req.ProverStep.ReadPC.PC.Address)
		return Challenge{Kind: Opcode, Opcode: &OpcodeFault{
			ReadPC:           req.ProverStep.ReadPC,
			ChunkIndex:       idx,
			ChunkBaseAddress: base,
			OpcodesChunk:     words,
		}}
	}

	if req.ProverClaimsHalt && !isHaltShape(req.ProverStep) {
		return Challenge{Kind: Halt, Halt: &HaltFault{
			ReadPC: req.ProverStep.ReadPC,
			A7:     req.ProverStep.Read1,
			A0:     req.ProverStep.Read2,
		}}
	}

	if req.InputSectionName != "" {
		if c, ok := classifyInputData(req); ok {
			return c
		}
	}

	if c, ok := classifyAddressesSections(req); ok {
		return c
	}

	return Challenge{Kind: None}
}

func classifyHash(req Request) (Challenge, bool) {
	claimed := hex.EncodeToString(req.ProverClaimedHash[:])
	if req.ProverStep.StepNumber == 0 {
		expected := trace.StepHash(trace.InitialHash(), req.ProverStep.Step)
		if expected != req.ProverClaimedHash {
			return Challenge{Kind: TraceHashZero, TraceHashZero: &TraceHashZeroFault{
				Step:        req.ProverStep.Step,
				ClaimedHash: claimed,
			}}, true
		}
		return Challenge{}, false
	}

	expected := trace.StepHash(req.ProverPrevHash, req.ProverStep.Step)
	if expected != req.ProverClaimedHash {
		return Challenge{Kind: TraceHash, TraceHash: &TraceHashFault{
			ProverPrevHash: hex.EncodeToString(req.ProverPrevHash[:]),
			Step:           req.ProverStep.Step,
			ClaimedHash:    claimed,
		}}, true
	}
	return Challenge{}, false
}

// isHaltShape reports whether step's committed opcode and a7 read describe
// a halting instruction: ecall with a7 carrying the halt syscall number.
// ebreak and fence are NOPs, never a halt, matching the reference emulator.
func isHaltShape(step trace.TraceRWStep) bool {
	opcode := step.ReadPC.Opcode & 0x7F
	if opcode != riscv.OpSystem {
		return false
	}
	imm := (step.ReadPC.Opcode >> 20) & 0xFFF
	return imm == riscv.SystemEcall && step.Read1.Value == riscv.EcallHaltSyscall
}

func classifyInputData(req Request) (Challenge, bool) {
	check := func(proverRead, verifierRead trace.TraceRead) (Challenge, bool) {
		sec, err := req.Program.SectionFor(proverRead.Address)
		if err != nil || sec.Name != req.InputSectionName {
			return Challenge{}, false
		}
		if proverRead == verifierRead {
			return Challenge{}, false
		}
		return Challenge{Kind: InputData, InputData: &InputDataFault{
			Committed: proverRead,
			Expected:  verifierRead,
		}}, true
	}

	if c, ok := check(req.ProverStep.Read1, req.VerifierStep.Read1); ok {
		return c, true
	}
	return check(req.ProverStep.Read2, req.VerifierStep.Read2)
}

func classifyAddressesSections(req Request) (Challenge, bool) {
	step := req.ProverStep
	violated := false

	if step.MemWitness.Write() == trace.AccessMemory {
		sec, err := req.Program.SectionFor(step.Step.Write.Address)
		if err != nil || sec.IsCode || !sec.IsWritable {
			violated = true
		}
	}
	if step.MemWitness.Read1() == trace.AccessMemory {
		if _, err := req.Program.SectionFor(step.Read1.Address); err != nil {
			violated = true
		}
	}
	if step.MemWitness.Read2() == trace.AccessMemory {
		if _, err := req.Program.SectionFor(step.Read2.Address); err != nil {
			violated = true
		}
	}
	if !violated {
		return Challenge{}, false
	}

	rw, ro, reg, code := sectionsByKind(req.Program)
	return Challenge{Kind: AddressesSections, AddressesSections: &AddressesSectionsFault{
		Read1:            step.Read1,
		Read2:            step.Read2,
		Write:            step.Step.Write,
		MemWitness:       step.MemWitness,
		WritePC:          step.Step.WritePC,
		ReadWriteSection: rw,
		ReadOnlySection:  ro,
		RegisterSection:  reg,
		CodeSection:      code,
	}}, true
}

// sectionsByKind picks one representative section per permission class --
// writable data, read-only data, the register window, and code -- the four
// classes an AddressesSections fault's evidence names regardless of which
// one the disputed step actually violated.
func sectionsByKind(program *emulator.Program) (rw, ro, reg, code *memsec.SectionDefinition) {
	if program.Registers != nil {
		def := program.Registers.Section().Definition()
		reg = &def
	}
	for _, sec := range program.Sections {
		def := sec.Definition()
		switch {
		case sec.IsCode && code == nil:
			code = &def
		case !sec.IsCode && sec.IsWritable && rw == nil:
			rw = &def
		case !sec.IsCode && !sec.IsWritable && ro == nil:
			ro = &def
		}
	}
	return rw, ro, reg, code
}

// fetchCodeChunk reads up to chunkWords words of the code section containing
// pc, starting at the chunkWords-aligned boundary pc falls in. Returns a
// zero index, zero base, and nil words if pc isn't in any section.
func fetchCodeChunk(program *emulator.Program, pc uint32) (chunkIndex, chunkBase uint32, words []uint32) {
	sec, err := program.SectionFor(pc)
	if err != nil {
		return 0, 0, nil
	}
	wordIndex := (pc - sec.Start) / 4
	chunkIndex = wordIndex / chunkWords
	chunkBase = sec.Start + chunkIndex*chunkWords*4

	for i := uint32(0); i < chunkWords; i++ {
		addr := chunkBase + i*4
		if !sec.Contains(addr) {
			break
		}
		rd, err := sec.Read(addr)
		if err != nil {
			break
		}
		words = append(words, rd.Value)
	}
	return chunkIndex, chunkBase, words
}
