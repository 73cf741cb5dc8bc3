package emulator

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"go.uber.org/zap"

	"rv32fp/memsec"
	"rv32fp/trace"
)

// ExecutionResultKind tags how ExecuteProgram's run loop terminated.
type ExecutionResultKind int

const (
	ResultHalt ExecutionResultKind = iota
	ResultLimitStepReached
)

// ExecutionResult is the outcome of a run-to-completion call: either the
// program halted (ecall syscall 93) with an exit code, or the step budget
// was exhausted first.
type ExecutionResult struct {
	Kind     ExecutionResultKind
	ExitCode uint32
	LastStep uint64
	Limit    uint64
}

// Checkpointer persists a binary Program snapshot keyed by step number. A
// nil Checkpointer disables checkpointing entirely.
type Checkpointer interface {
	SaveCheckpoint(step uint64, snapshot []byte) error
}

// ProgramSnapshot is the gob-encodable serialization of a Program's full
// state, matching spec's "binary-serialized Program snapshot" checkpoint
// format.
type ProgramSnapshot struct {
	Sections     []memsec.SectionSnapshot
	Registers    memsec.SectionSnapshot
	RegisterBase uint32
	PC           trace.ProgramCounter
	StepNumber   uint64
	Hash         [20]byte
	Halted       bool
	ExitCode     uint32
}

// Snapshot captures p's full state as a ProgramSnapshot.
func (p *Program) Snapshot() ProgramSnapshot {
	sections := make([]memsec.SectionSnapshot, len(p.Sections))
	for i, s := range p.Sections {
		sections[i] = s.Snapshot()
	}
	return ProgramSnapshot{
		Sections:     sections,
		Registers:    p.Registers.Snapshot(),
		RegisterBase: p.registerBase,
		PC:           p.PC,
		StepNumber:   p.StepNumber,
		Hash:         p.Hash,
		Halted:       p.Halted,
		ExitCode:     p.ExitCode,
	}
}

// RestoreProgram rebuilds a Program from a snapshot, reusing cfg and logger
// (neither of which is part of the persisted state).
func RestoreProgram(snap ProgramSnapshot, cfg Config, logger *zap.Logger) *Program {
	if logger == nil {
		logger = zap.NewNop()
	}
	sections := make([]*memsec.Section, len(snap.Sections))
	for i, s := range snap.Sections {
		sections[i] = memsec.RestoreSection(s)
	}
	return &Program{
		Sections:     sections,
		Registers:    memsec.RestoreRegisterFile(snap.RegisterBase, snap.Registers),
		PC:           snap.PC,
		StepNumber:   snap.StepNumber,
		Hash:         snap.Hash,
		Halted:       snap.Halted,
		ExitCode:     snap.ExitCode,
		Config:       cfg,
		registerBase: snap.RegisterBase,
		log:          logger,
	}
}

// EncodeSnapshot gob-encodes a ProgramSnapshot to bytes, the form persisted
// as checkpoint_{step}.bin.
func EncodeSnapshot(snap ProgramSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("emulator: encoding checkpoint: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (ProgramSnapshot, error) {
	var snap ProgramSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return ProgramSnapshot{}, fmt.Errorf("emulator: decoding checkpoint: %w", err)
	}
	return snap, nil
}

// ExecuteOptions configures a single ExecuteProgram call.
type ExecuteOptions struct {
	InputSectionName string
	InputBytes       []byte

	// LimitStep stops the run once the program's step number reaches it
	// (an absolute step number, not a count of steps taken by this call);
	// 0 means unlimited (run to Halt or error).
	LimitStep uint64

	// SparseSteps, if non-nil, restricts the returned trace to only these
	// step numbers. A nil set collects every step.
	SparseSteps map[uint64]bool

	Checkpointer Checkpointer
}

// ExecuteProgram seeds the named input section, then loops Program.Step
// until Halt, LimitStep is reached, or a step errors, checkpointing every
// Config.CheckpointEvery steps and once more on termination.
func ExecuteProgram(p *Program, opts ExecuteOptions) (ExecutionResult, []trace.TraceRWStep, error) {
	if opts.InputSectionName != "" {
		if err := p.SeedInput(opts.InputSectionName, opts.InputBytes); err != nil {
			return ExecutionResult{}, nil, err
		}
	}

	var collected []trace.TraceRWStep
	checkpointEvery := p.Config.checkpointEvery()

	for {
		if opts.LimitStep != 0 && p.StepNumber >= opts.LimitStep {
			return ExecutionResult{Kind: ResultLimitStepReached, LastStep: p.StepNumber, Limit: opts.LimitStep}, collected, nil
		}

		rw, err := p.Step()
		if err != nil {
			p.checkpoint(opts.Checkpointer)
			return ExecutionResult{}, collected, err
		}

		if opts.SparseSteps == nil || opts.SparseSteps[rw.StepNumber] {
			collected = append(collected, rw)
		}

		if p.StepNumber%checkpointEvery == 0 {
			if err := p.checkpoint(opts.Checkpointer); err != nil {
				return ExecutionResult{}, collected, err
			}
		}

		if p.Halted {
			if err := p.checkpoint(opts.Checkpointer); err != nil {
				return ExecutionResult{}, collected, err
			}
			return ExecutionResult{Kind: ResultHalt, ExitCode: p.ExitCode, LastStep: p.StepNumber}, collected, nil
		}
	}
}

func (p *Program) checkpoint(c Checkpointer) error {
	if c == nil {
		return nil
	}
	data, err := EncodeSnapshot(p.Snapshot())
	if err != nil {
		return err
	}
	return c.SaveCheckpoint(p.StepNumber, data)
}
