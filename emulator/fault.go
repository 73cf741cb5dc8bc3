package emulator

import "rv32fp/trace"

// FailConfiguration corrupts exactly one field of exactly one step's
// TraceRWStep after it is otherwise computed honestly. It exists so the
// bisection protocol's negative tests can exercise every challenge kind in
// faultkind against a deliberately dishonest prover, without duplicating
// the entire fetch/decode/execute pipeline in test code.
type FailConfiguration struct {
	AtStep uint64

	CorruptOpcode *uint32
	CorruptRead1  *trace.TraceRead
	CorruptRead2  *trace.TraceRead
	CorruptWrite  *trace.TraceWrite
	CorruptPC     *trace.ProgramCounter
	CorruptHash   *[20]byte
}

// applyFailConfiguration mutates rw and p.Hash in place if Fail names the
// step that was just produced. preHash is the chain's hash immediately
// before this step, needed to re-fold the hash if the corruption changes
// what TraceStep.Bytes() would serialize. Only one Program.Step call is
// ever touched per configuration, matching how a single deliberately-wrong
// step is injected into an otherwise-honest execution for a bisection test.
func (p *Program) applyFailConfiguration(preHash [20]byte, rw *trace.TraceRWStep) {
	f := p.Fail
	if f == nil || rw.StepNumber != f.AtStep {
		return
	}
	stepChanged := false
	if f.CorruptOpcode != nil {
		rw.ReadPC.Opcode = *f.CorruptOpcode
	}
	if f.CorruptRead1 != nil {
		rw.Read1 = *f.CorruptRead1
	}
	if f.CorruptRead2 != nil {
		rw.Read2 = *f.CorruptRead2
	}
	if f.CorruptWrite != nil {
		rw.Step.Write = *f.CorruptWrite
		stepChanged = true
	}
	if f.CorruptPC != nil {
		rw.Step.WritePC = *f.CorruptPC
		p.PC = *f.CorruptPC
		stepChanged = true
	}
	if f.CorruptHash != nil {
		p.Hash = *f.CorruptHash
	} else if stepChanged {
		p.Hash = trace.StepHash(preHash, rw.Step)
	}
}
