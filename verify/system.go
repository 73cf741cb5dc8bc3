package verify

import (
	"rv32fp/decode"
	"rv32fp/riscv"
	"rv32fp/trace"
)

// nopShapePredicate is the shared acceptance test for every SYSTEM-family
// instruction that commits as a pure NOP: no write, default (all-unused)
// memory witness, pc+4.
func nopShapePredicate(step trace.TraceRWStep) bool {
	if step.Step.Write != (trace.TraceWrite{}) {
		return false
	}
	if step.MemWitness.Byte() != trace.DefaultWitness().Byte() {
		return false
	}
	return step.Step.WritePC == pcPlus4(step)
}

// ebreakPredicate accepts ebreak's fixed NOP shape: ebreak never halts (it
// shares fence's commitment shape exactly, per the reference emulator).
func ebreakPredicate(registerBase uint32) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeSystem(step.ReadPC.Opcode, registerBase)
		if err != nil || f.Imm != riscv.SystemEbreak {
			return false
		}
		if step.Read1 != (trace.TraceRead{}) || step.Read2 != (trace.TraceRead{}) {
			return false
		}
		return nopShapePredicate(step)
	}
}

// ecallPredicate branches on the committed a7 value: syscall 93 (halt)
// requires the write-A0-to-itself, frozen-pc shape; every other syscall
// (116's console write included) commits as a NOP, matching op_ecall's
// match arms exactly.
func ecallPredicate(registerBase uint32) Predicate {
	a7Addr := decode.RegisterAddress(registerBase, 17)
	a0Addr := decode.RegisterAddress(registerBase, 10)
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeSystem(step.ReadPC.Opcode, registerBase)
		if err != nil || f.Imm != riscv.SystemEcall {
			return false
		}
		if step.Read1.Address != a7Addr || step.Read2.Address != a0Addr {
			return false
		}
		if step.Read1.Value == riscv.EcallHaltSyscall {
			wantWrite := trace.TraceWrite{Address: a0Addr, Value: step.Read2.Value}
			if step.Step.Write != wantWrite {
				return false
			}
			if step.MemWitness.Byte() != trace.RegistersWitness().Byte() {
				return false
			}
			return step.Step.WritePC == step.ReadPC.PC
		}
		return nopShapePredicate(step)
	}
}

// fencePredicate accepts fence's fixed NOP shape, identical to ebreak's.
func fencePredicate(step trace.TraceRWStep) bool {
	if _, err := decode.DecodeFence(step.ReadPC.Opcode); err != nil {
		return false
	}
	if step.Read1 != (trace.TraceRead{}) || step.Read2 != (trace.TraceRead{}) {
		return false
	}
	return nopShapePredicate(step)
}

func addSystemPredicates(m map[string]MappingEntry, registerBase uint32) {
	m["ecall"] = MappingEntry{Predicate: ecallPredicate(registerBase)}
	m["ebreak"] = MappingEntry{Predicate: ebreakPredicate(registerBase)}
	m["fence"] = MappingEntry{Predicate: fencePredicate}
}
