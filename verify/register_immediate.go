package verify

import (
	"rv32fp/arith"
	"rv32fp/decode"
	"rv32fp/riscv"
	"rv32fp/trace"
)

// registerArithCompute is the pure function a register-register predicate
// evaluates once both reads are known.
type registerArithCompute func(a, b uint32) uint32

// registerArithPredicate builds the single-step predicate for one
// register-register arithmetic opcode: decode, check both read addresses
// against the reconstructed register commitments, recompute the result, and
// compare the (possibly NOP-collapsed) write and the pc+4 transition.
func registerArithPredicate(registerBase, funct3, funct7 uint32, compute registerArithCompute) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeRType(step.ReadPC.Opcode, registerBase, riscv.OpRegArith, funct3, funct7)
		if err != nil {
			return false
		}
		if step.Read1.Address != f.Rs1Addr || step.Read2.Address != f.Rs2Addr {
			return false
		}
		out := compute(step.Read1.Value, step.Read2.Value)
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: out},
			trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessRegister))
		if step.Step.Write != wantWrite {
			return false
		}
		if step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}
}

func addRegisterArithPredicates(m map[string]MappingEntry, registerBase uint32) {
	entries := []struct {
		key     string
		funct3  uint32
		funct7  uint32
		compute registerArithCompute
	}{
		{"add", riscv.Funct3Add, riscv.Funct7Base, func(a, b uint32) uint32 { return arith.AddWithBitExtension(a, b, 0) }},
		{"sub", riscv.Funct3Add, riscv.Funct7Alt, arith.Sub},
		{"sll", riscv.Funct3Sll, riscv.Funct7Base, func(a, b uint32) uint32 { return arith.ShiftWithTables(a, b, false, false) }},
		{"slt", riscv.Funct3Slt, riscv.Funct7Base, func(a, b uint32) uint32 { return boolToWord(arith.IsLowerThan(a, b, false)) }},
		{"sltu", riscv.Funct3Sltu, riscv.Funct7Base, func(a, b uint32) uint32 { return boolToWord(arith.IsLowerThan(a, b, true)) }},
		{"xor", riscv.Funct3Xor, riscv.Funct7Base, func(a, b uint32) uint32 { return arith.LogicWithBitExtension(a, b, arith.OpXor) }},
		{"srl", riscv.Funct3Srl, riscv.Funct7Base, func(a, b uint32) uint32 { return arith.ShiftWithTables(a, b, true, false) }},
		{"sra", riscv.Funct3Srl, riscv.Funct7Alt, func(a, b uint32) uint32 { return arith.ShiftWithTables(a, b, true, true) }},
		{"or", riscv.Funct3Or, riscv.Funct7Base, func(a, b uint32) uint32 { return arith.LogicWithBitExtension(a, b, arith.OpOr) }},
		{"and", riscv.Funct3And, riscv.Funct7Base, func(a, b uint32) uint32 { return arith.LogicWithBitExtension(a, b, arith.OpAnd) }},
	}
	for _, e := range entries {
		m[e.key] = MappingEntry{Predicate: registerArithPredicate(registerBase, e.funct3, e.funct7, e.compute)}
	}
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// immArithPredicate builds the single-step predicate for one
// register-immediate arithmetic opcode (everything but the shift family,
// which forces a funct7 over the immediate field).
func immArithPredicate(registerBase, funct3 uint32, compute func(a, imm uint32) uint32) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeIType(step.ReadPC.Opcode, registerBase, riscv.OpImmArith, funct3)
		if err != nil {
			return false
		}
		if step.Read1.Address != f.Rs1Addr {
			return false
		}
		out := compute(step.Read1.Value, f.Imm)
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: out},
			trace.RegisterUnusedRegister())
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}
}

// shiftImmPredicate builds the predicate for slli/srli/srai, whose shamt
// comes from a forced-funct7 I-type encoding rather than a sign-extended
// immediate.
func shiftImmPredicate(registerBase, funct3, forcedFunct7 uint32, right, arithmetic bool) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeIShiftType(step.ReadPC.Opcode, registerBase, riscv.OpImmArith, funct3, forcedFunct7)
		if err != nil {
			return false
		}
		if step.Read1.Address != f.Rs1Addr {
			return false
		}
		out := arith.ShiftWithTables(step.Read1.Value, f.Shamt, right, arithmetic)
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: out},
			trace.RegisterUnusedRegister())
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}
}

func addImmediateArithPredicates(m map[string]MappingEntry, registerBase uint32) {
	entries := []struct {
		key     string
		funct3  uint32
		compute func(a, imm uint32) uint32
	}{
		{"addi", riscv.Funct3Add, func(a, imm uint32) uint32 { return arith.AddWithBitExtension(a, imm, 0) }},
		{"slti", riscv.Funct3Slt, func(a, imm uint32) uint32 { return boolToWord(arith.IsLowerThan(a, imm, false)) }},
		{"sltiu", riscv.Funct3Sltu, func(a, imm uint32) uint32 { return boolToWord(arith.IsLowerThan(a, imm, true)) }},
		{"xori", riscv.Funct3Xor, func(a, imm uint32) uint32 { return arith.LogicWithBitExtension(a, imm, arith.OpXor) }},
		{"ori", riscv.Funct3Or, func(a, imm uint32) uint32 { return arith.LogicWithBitExtension(a, imm, arith.OpOr) }},
		{"andi", riscv.Funct3And, func(a, imm uint32) uint32 { return arith.LogicWithBitExtension(a, imm, arith.OpAnd) }},
	}
	for _, e := range entries {
		m[e.key] = MappingEntry{Predicate: immArithPredicate(registerBase, e.funct3, e.compute)}
	}
	m["slli"] = MappingEntry{Predicate: shiftImmPredicate(registerBase, riscv.Funct3Sll, riscv.Funct7Base, false, false)}
	m["srli"] = MappingEntry{Predicate: shiftImmPredicate(registerBase, riscv.Funct3Srl, riscv.Funct7Base, true, false)}
	m["srai"] = MappingEntry{Predicate: shiftImmPredicate(registerBase, riscv.Funct3Srl, riscv.Funct7Alt, true, true)}
}

func addUpperPredicates(m map[string]MappingEntry, registerBase uint32) {
	m["lui"] = MappingEntry{Predicate: func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeUType(step.ReadPC.Opcode, registerBase, riscv.OpLui)
		if err != nil {
			return false
		}
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: f.Imm},
			trace.NewMemoryWitness(trace.AccessUnused, trace.AccessUnused, trace.AccessRegister))
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}}
	m["auipc"] = MappingEntry{Predicate: func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeUType(step.ReadPC.Opcode, registerBase, riscv.OpAuipc)
		if err != nil {
			return false
		}
		out := arith.AddWithBitExtension(step.ReadPC.PC.Address, f.Imm, 0)
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: out},
			trace.NewMemoryWitness(trace.AccessUnused, trace.AccessUnused, trace.AccessRegister))
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}}
}
