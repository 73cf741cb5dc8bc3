// Package verify builds, once per register_base, the map from
// instruction_key to the predicate a challenge evaluates a committed
// TraceRWStep against. A predicate's only outcome is accept or reject: it
// independently re-derives the semantic write and next-PC an instruction
// must have produced from nothing but the committed instruction word and
// the two committed reads, and compares that derivation against what the
// prover actually committed.
//
// Per the generator's own design notes, the predicate evaluator is free to
// be "plain host-language code" rather than a compiled stack-machine
// program, provided the external (instruction_key -> predicate,
// needs_witness) mapping has the same acceptance set; these predicates are
// that host-language realization, built directly on the same arith/decode
// primitives the reference emulator uses.
package verify

import "rv32fp/trace"

// Predicate reports whether step is the unique legal commitment for its
// instruction at its micro-step, given nothing but the fields step itself
// commits to.
type Predicate func(step trace.TraceRWStep) bool

// MappingEntry pairs a predicate with whether its instruction requires a
// prover-supplied, range-checked witness nibble sequence (div/divu/rem/remu
// only).
type MappingEntry struct {
	Predicate    Predicate
	NeedsWitness bool
}

// CreateVerificationScriptMapping builds the full instruction_key -> predicate
// table for a program committed to registerBase. Every supported RV32IM
// opcode family contributes its entries; the set of keys is fixed given
// registerBase and does not depend on any particular execution.
func CreateVerificationScriptMapping(registerBase uint32) map[string]MappingEntry {
	m := make(map[string]MappingEntry)
	addRegisterArithPredicates(m, registerBase)
	addImmediateArithPredicates(m, registerBase)
	addUpperPredicates(m, registerBase)
	addBranchPredicates(m, registerBase)
	addJumpPredicates(m, registerBase)
	addMExtPredicates(m, registerBase)
	addLoadPredicates(m, registerBase)
	addStorePredicates(m, registerBase)
	addSystemPredicates(m, registerBase)
	return m
}

// collapseNop mirrors the reference emulator's nopCollapse: a write destined
// for register 0 is committed as the spec's "default NOP shape" (no write)
// rather than a TraceWrite whose address equals register_base -- the
// register invariant forbids the latter ever appearing in a valid step, so a
// predicate must expect the former when rdAddr is x0.
func collapseNop(rdAddr, registerBase uint32, write trace.TraceWrite, memWitness trace.MemoryWitness) (trace.TraceWrite, trace.MemoryWitness) {
	if rdAddr != registerBase {
		return write, memWitness
	}
	return trace.TraceWrite{}, trace.NewMemoryWitness(memWitness.Read1(), memWitness.Read2(), trace.AccessUnused)
}

// pcPlus4 returns the terminal (micro=0, address+4) next-PC every
// single-micro instruction produces on acceptance.
func pcPlus4(step trace.TraceRWStep) trace.ProgramCounter {
	return trace.ProgramCounter{Address: step.ReadPC.PC.Address + 4, Micro: 0}
}
