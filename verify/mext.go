package verify

import (
	"rv32fp/arith"
	"rv32fp/decode"
	"rv32fp/nibble"
	"rv32fp/riscv"
	"rv32fp/trace"
)

// negate64 mirrors the emulator's two's-complement negation across a
// (low,high) 64-bit pair, used to fix up the sign of mulh/mulhsu's high word
// after a magnitude-only multiply.
func negate64(lo, hi uint32) (uint32, uint32) {
	invLo := arith.LogicWithBitExtension(lo, 0xFFFF_FFFF, arith.OpXor)
	invHi := arith.LogicWithBitExtension(hi, 0xFFFF_FFFF, arith.OpXor)
	newLo := arith.AddWithBitExtension(invLo, 1, 0)
	carry := uint32(0)
	if newLo == 0 && invLo == 0xFFFF_FFFF {
		carry = 1
	}
	newHi := arith.AddWithBitExtension(invHi, carry, 0)
	return newLo, newHi
}

func mulPredicate(registerBase, funct3 uint32, compute func(a, b uint32) uint32) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeRType(step.ReadPC.Opcode, registerBase, riscv.OpRegArith, funct3, riscv.Funct7MExt)
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
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}
}

// divPredicate builds the predicate for one of div/divu/rem/remu: it
// requires a witness nibble sequence, validates every nibble falls in
// [0,15], then checks the witness-checking arith function both accepts it
// and produces exactly the committed write value.
func divPredicate(registerBase, funct3 uint32, check func(dividend, divisor, witness uint32) (uint32, bool)) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeRType(step.ReadPC.Opcode, registerBase, riscv.OpRegArith, funct3, riscv.Funct7MExt)
		if err != nil {
			return false
		}
		if step.Read1.Address != f.Rs1Addr || step.Read2.Address != f.Rs2Addr {
			return false
		}
		if step.Witness == nil {
			return false
		}
		witnessValue := *step.Witness
		witnessNibbles := nibble.Explode(witnessValue)
		if !(arith.Witness{Nibbles: witnessNibbles[:]}).Validate() {
			return false
		}
		out, ok := check(step.Read1.Value, step.Read2.Value, witnessValue)
		if !ok {
			return false
		}
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: out},
			trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessRegister))
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}
}

func addMExtPredicates(m map[string]MappingEntry, registerBase uint32) {
	m["mul"] = MappingEntry{Predicate: mulPredicate(registerBase, riscv.Funct3Mul, func(a, b uint32) uint32 {
		lo, _ := arith.Multiply(a, b)
		return lo
	})}
	m["mulhu"] = MappingEntry{Predicate: mulPredicate(registerBase, riscv.Funct3Mulhu, func(a, b uint32) uint32 {
		_, hi := arith.Multiply(a, b)
		return hi
	})}
	m["mulh"] = MappingEntry{Predicate: mulPredicate(registerBase, riscv.Funct3Mulh, func(a, b uint32) uint32 {
		negA, negB := a&0x8000_0000 != 0, b&0x8000_0000 != 0
		absA := arith.TwosComplementConditional(a, negA)
		absB := arith.TwosComplementConditional(b, negB)
		lo, hi := arith.Multiply(absA, absB)
		if negA != negB {
			_, hi = negate64(lo, hi)
		}
		return hi
	})}
	m["mulhsu"] = MappingEntry{Predicate: mulPredicate(registerBase, riscv.Funct3Mulhsu, func(a, b uint32) uint32 {
		negA := a&0x8000_0000 != 0
		absA := arith.TwosComplementConditional(a, negA)
		lo, hi := arith.Multiply(absA, b)
		if negA {
			_, hi = negate64(lo, hi)
		}
		return hi
	})}
	m["div"] = MappingEntry{NeedsWitness: true, Predicate: divPredicate(registerBase, riscv.Funct3Div, func(dividend, divisor, w uint32) (uint32, bool) {
		return arith.Div(dividend, divisor, w)
	})}
	m["divu"] = MappingEntry{NeedsWitness: true, Predicate: divPredicate(registerBase, riscv.Funct3Divu, arith.Divu)}
	m["rem"] = MappingEntry{NeedsWitness: true, Predicate: divPredicate(registerBase, riscv.Funct3Rem, func(dividend, divisor, w uint32) (uint32, bool) {
		return arith.Rem(dividend, divisor, w)
	})}
	m["remu"] = MappingEntry{NeedsWitness: true, Predicate: divPredicate(registerBase, riscv.Funct3Remu, arith.Remu)}
}
