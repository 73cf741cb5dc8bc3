package verify

import (
	"rv32fp/arith"
	"rv32fp/decode"
	"rv32fp/riscv"
	"rv32fp/trace"
)

func branchPredicate(registerBase, funct3 uint32, taken func(a, b uint32) bool) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeBType(step.ReadPC.Opcode, registerBase, riscv.OpBranch, funct3)
		if err != nil {
			return false
		}
		if step.Read1.Address != f.Rs1Addr || step.Read2.Address != f.Rs2Addr {
			return false
		}
		if step.Step.Write != (trace.TraceWrite{}) {
			return false
		}
		if step.MemWitness.Byte() != trace.NoWrite().Byte() {
			return false
		}
		want := pcPlus4(step)
		if taken(step.Read1.Value, step.Read2.Value) {
			want = trace.ProgramCounter{Address: arith.AddWithBitExtension(step.ReadPC.PC.Address, f.Imm, f.BitExtension), Micro: 0}
		}
		return step.Step.WritePC == want
	}
}

func addBranchPredicates(m map[string]MappingEntry, registerBase uint32) {
	entries := []struct {
		key    string
		funct3 uint32
		taken  func(a, b uint32) bool
	}{
		{"beq", riscv.Funct3Beq, func(a, b uint32) bool { return arith.IsEqualTo(a, b) }},
		{"bne", riscv.Funct3Bne, func(a, b uint32) bool { return !arith.IsEqualTo(a, b) }},
		{"blt", riscv.Funct3Blt, func(a, b uint32) bool { return arith.IsLowerThan(a, b, false) }},
		{"bge", riscv.Funct3Bge, func(a, b uint32) bool { return !arith.IsLowerThan(a, b, false) }},
		{"bltu", riscv.Funct3Bltu, func(a, b uint32) bool { return arith.IsLowerThan(a, b, true) }},
		{"bgeu", riscv.Funct3Bgeu, func(a, b uint32) bool { return !arith.IsLowerThan(a, b, true) }},
	}
	for _, e := range entries {
		m[e.key] = MappingEntry{Predicate: branchPredicate(registerBase, e.funct3, e.taken)}
	}
}

func addJumpPredicates(m map[string]MappingEntry, registerBase uint32) {
	m["jal"] = MappingEntry{Predicate: func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeJType(step.ReadPC.Opcode, registerBase, riscv.OpJal)
		if err != nil {
			return false
		}
		target := arith.AddWithBitExtension(step.ReadPC.PC.Address, f.Imm, f.BitExtension)
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: step.ReadPC.PC.Address + riscv.InstructionSize},
			trace.NewMemoryWitness(trace.AccessUnused, trace.AccessUnused, trace.AccessRegister))
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == trace.ProgramCounter{Address: target, Micro: 0}
	}}
	m["jalr"] = MappingEntry{Predicate: func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeIType(step.ReadPC.Opcode, registerBase, riscv.OpJalr, 0x0)
		if err != nil {
			return false
		}
		if step.Read1.Address != f.Rs1Addr {
			return false
		}
		target := arith.AddWithBitExtension(step.Read1.Value, f.Imm, f.BitExtension) &^ 1
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: step.ReadPC.PC.Address + riscv.InstructionSize},
			trace.RegisterUnusedRegister())
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == trace.ProgramCounter{Address: target, Micro: 0}
	}}
}
