package verify

import (
	"fmt"

	"rv32fp/arith"
	"rv32fp/decode"
	"rv32fp/memsec"
	"rv32fp/riscv"
	"rv32fp/trace"
)

// storeAlignedPredicate handles the one store shape with no existing-word
// dependency at all: a full 4-byte sw at a 4-byte-aligned address. Every
// other store width/offset combination needs the pre-existing word's value
// to reconstruct the bytes its write must leave untouched, so it runs
// through one of the read-modify-write dances below instead.
func storeAlignedPredicate(registerBase uint32) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeSType(step.ReadPC.Opcode, registerBase, riscv.OpStore, riscv.Funct3Sw)
		if err != nil {
			return false
		}
		if step.Read1.Address != f.Rs1Addr || step.Read2.Address != f.Rs2Addr {
			return false
		}
		addr := arith.AddWithBitExtension(step.Read1.Value, f.Imm, f.BitExtension)
		if addr&3 != 0 {
			return false
		}
		wantWrite := trace.TraceWrite{Address: addr, Value: step.Read2.Value}
		wantWitness := trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessMemory)
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}
}

// wordDance runs one local state (0-3) of a read-modify-write merge against
// a particular aligned word, given microOffset (the trace micro value of
// this dance's local state 0) and terminal (the next-PC local state 3
// commits to on acceptance):
//
//   - state 0: read rs1 and the existing word; stage the bits OUTSIDE
//     fieldMask (the ones this store must not disturb) into AUX1.
//   - state 1: read rs1 and rs2; stage the source value's bits, masked and
//     shifted into fieldMask's position, into AUX2.
//   - state 2: read AUX1 and AUX2 (disjoint masks, so OR == ADD); merge into
//     AUX1.
//   - state 3: read rs1 and AUX1; commit the merged word to wordAddr.
//
// It is run once for a fully-contained sub-word store and twice (low word
// then high word) for a cross-word one.
func wordDance(registerBase uint32, f decode.Fields, wordAddr, fieldMask uint32, localState uint8, microOffset uint8, terminal trace.ProgramCounter, stagedFieldValue func(rs2 uint32) uint32) Predicate {
	aux1 := decode.RegisterAddress(registerBase, memsec.Aux1Index)
	aux2 := decode.RegisterAddress(registerBase, memsec.Aux2Index)
	return func(step trace.TraceRWStep) bool {
		switch localState {
		case 0:
			if step.Read1.Address != f.Rs1Addr || step.Read2.Address != wordAddr {
				return false
			}
			preserveMask := arith.LogicWithBitExtension(fieldMask, 0xFFFF_FFFF, arith.OpXor)
			keep := arith.LogicWithBitExtension(step.Read2.Value, preserveMask, arith.OpAnd)
			wantWrite := trace.TraceWrite{Address: aux1, Value: keep}
			wantWitness := trace.NewMemoryWitness(trace.AccessRegister, trace.AccessMemory, trace.AccessRegister)
			if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
				return false
			}
			return step.Step.WritePC == trace.ProgramCounter{Address: step.ReadPC.PC.Address, Micro: microOffset + 1}
		case 1:
			if step.Read1.Address != f.Rs1Addr || step.Read2.Address != f.Rs2Addr {
				return false
			}
			staged := stagedFieldValue(step.Read2.Value)
			wantWrite := trace.TraceWrite{Address: aux2, Value: staged}
			wantWitness := trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessRegister)
			if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
				return false
			}
			return step.Step.WritePC == trace.ProgramCounter{Address: step.ReadPC.PC.Address, Micro: microOffset + 2}
		case 2:
			if step.Read1.Address != aux1 || step.Read2.Address != aux2 {
				return false
			}
			merged := arith.LogicWithBitExtension(step.Read1.Value, step.Read2.Value, arith.OpOr)
			wantWrite := trace.TraceWrite{Address: aux1, Value: merged}
			wantWitness := trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessRegister)
			if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
				return false
			}
			return step.Step.WritePC == trace.ProgramCounter{Address: step.ReadPC.PC.Address, Micro: microOffset + 3}
		case 3:
			if step.Read1.Address != f.Rs1Addr || step.Read2.Address != aux1 {
				return false
			}
			wantWrite := trace.TraceWrite{Address: wordAddr, Value: step.Read2.Value}
			wantWitness := trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessMemory)
			if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
				return false
			}
			return step.Step.WritePC == terminal
		default:
			return false
		}
	}
}

// containedStoreMicro is the 4-state dance for a sub-word store fully
// contained in one aligned word: any sb, or sh at offset 0/1/2.
func containedStoreMicro(registerBase, funct3 uint32, widthBytes int, micro uint8) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeSType(step.ReadPC.Opcode, registerBase, riscv.OpStore, funct3)
		if err != nil {
			return false
		}
		// Local state 2 reads AUX1/AUX2, not rs1, so step.Read1 here carries
		// no address information at all -- nothing below depends on addr or
		// fieldMask in that branch, and the dance itself validates read
		// addresses independently of what is computed here.
		addr := arith.AddWithBitExtension(step.Read1.Value, f.Imm, f.BitExtension)
		if micro != 2 && int(addr&3)+widthBytes > 4 {
			return false // straddles; belongs to the cross-word dance instead
		}
		base := addr &^ 3
		widthBits := uint32(widthBytes) * 8
		offsetBits := byteLaneShift(addr, widthBytes)
		mask := uint32(1)<<widthBits - 1
		fieldMask := arith.ShiftWithTables(mask, offsetBits, false, false)

		stage := func(rs2 uint32) uint32 {
			valueField := arith.LogicWithBitExtension(rs2, mask, arith.OpAnd)
			return arith.ShiftWithTables(valueField, offsetBits, false, false)
		}
		terminal := pcPlus4(step)
		return wordDance(registerBase, f, base, fieldMask, micro, 0, terminal, stage)(step)
	}
}

// straddleStoreMicro is the 8-state dance for a store whose field spans two
// aligned words (sh at offset 3; sw at any non-zero offset): states 0-3 are
// the low word's read-modify-write, states 4-7 the high word's, each using
// the shared 4-state merge dance with that half's mask and source slice.
func straddleStoreMicro(registerBase, funct3 uint32, widthBytes int, micro uint8) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeSType(step.ReadPC.Opcode, registerBase, riscv.OpStore, funct3)
		if err != nil {
			return false
		}
		// Local state 2 of either half reads AUX1/AUX2, not rs1; step.Read1
		// carries no address information there and nothing below depends on
		// addr/spillBytes in that branch.
		addr := arith.AddWithBitExtension(step.Read1.Value, f.Imm, f.BitExtension)
		offset := int(addr & 3)
		lowBytes := 4 - offset
		spillBytes := widthBytes - lowBytes
		if micro%4 != 2 && spillBytes <= 0 {
			return false // doesn't straddle; belongs to the contained dance
		}
		base := addr &^ 3
		widthBits := uint32(widthBytes) * 8
		fullMask := uint32(1)<<widthBits - 1

		if micro < 4 {
			lowMask := uint32(1)<<uint(lowBytes*8) - 1
			stage := func(rs2 uint32) uint32 {
				valueField := arith.LogicWithBitExtension(rs2, fullMask, arith.OpAnd)
				return arith.ShiftWithTables(valueField, uint32(spillBytes*8), true, false)
			}
			toHighHalf := trace.ProgramCounter{Address: step.ReadPC.PC.Address, Micro: 4}
			return wordDance(registerBase, f, base, lowMask, micro, 0, toHighHalf, stage)(step)
		}

		spillMask := uint32(1)<<uint(spillBytes*8) - 1
		shift := uint32((4 - spillBytes) * 8)
		fieldMask := arith.ShiftWithTables(spillMask, shift, false, false)
		stage := func(rs2 uint32) uint32 {
			valueField := arith.LogicWithBitExtension(rs2, fullMask, arith.OpAnd)
			highPart := arith.LogicWithBitExtension(valueField, spillMask, arith.OpAnd)
			return arith.ShiftWithTables(highPart, shift, false, false)
		}
		terminal := pcPlus4(step)
		return wordDance(registerBase, f, base+4, fieldMask, micro-4, 4, terminal, stage)(step)
	}
}

func addStorePredicates(m map[string]MappingEntry, registerBase uint32) {
	m["sw"] = MappingEntry{Predicate: storeAlignedPredicate(registerBase)}

	for micro := uint8(0); micro < 4; micro++ {
		m[fmt.Sprintf("sb_%d", micro)] = MappingEntry{Predicate: containedStoreMicro(registerBase, riscv.Funct3Sb, 1, micro)}
		m[fmt.Sprintf("sh_%d", micro)] = MappingEntry{Predicate: containedStoreMicro(registerBase, riscv.Funct3Sh, 2, micro)}
	}
	for micro := uint8(0); micro < 8; micro++ {
		m[fmt.Sprintf("sh_x%d", micro)] = MappingEntry{Predicate: straddleStoreMicro(registerBase, riscv.Funct3Sh, 2, micro)}
		m[fmt.Sprintf("sw_%d", micro)] = MappingEntry{Predicate: straddleStoreMicro(registerBase, riscv.Funct3Sw, 4, micro)}
	}
}
