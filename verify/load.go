package verify

import (
	"fmt"

	"rv32fp/arith"
	"rv32fp/decode"
	"rv32fp/memsec"
	"rv32fp/riscv"
	"rv32fp/trace"
)

// byteLaneShift mirrors the emulator's own helper: the right-shift distance
// that brings a widthBytes field at addr's sub-word offset down to the low
// bits of its containing word, consistent with the big-endian byte-lane
// convention (offset 0 = the word's most significant byte).
func byteLaneShift(addr uint32, widthBytes int) uint32 {
	offset := addr & 3
	return uint32(4-widthBytes)*8 - offset*8
}

func extractField(word uint32, addr uint32, widthBytes int, signed bool) uint32 {
	shifted := arith.ShiftWithTables(word, byteLaneShift(addr, widthBytes), true, false)
	widthBits := widthBytes * 8
	var masked uint32
	if widthBits >= 32 {
		masked = shifted
	} else {
		mask := uint32(1)<<uint(widthBits) - 1
		masked = arith.LogicWithBitExtension(shifted, mask, arith.OpAnd)
	}
	if signed {
		masked = arith.BitExtend(masked, widthBytes*2)
	}
	return masked
}

// loadAlignedPredicate handles every load whose field is fully contained in
// one aligned word -- this is the only shape the reference emulator ever
// produces, since it resolves a whole load inside one atomic Step.
func loadAlignedPredicate(registerBase, funct3 uint32, width int, signed bool) Predicate {
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeIType(step.ReadPC.Opcode, registerBase, riscv.OpLoad, funct3)
		if err != nil {
			return false
		}
		if step.Read1.Address != f.Rs1Addr {
			return false
		}
		addr := arith.AddWithBitExtension(step.Read1.Value, f.Imm, f.BitExtension)
		if int(addr&3)+width > 4 {
			return false // this key only accepts the non-straddling shape
		}
		if step.Read2.Address != addr&^3 {
			return false
		}
		value := extractField(step.Read2.Value, addr, width, signed)
		wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
			trace.TraceWrite{Address: f.RdAddr, Value: value},
			trace.NewMemoryWitness(trace.AccessRegister, trace.AccessMemory, trace.AccessRegister))
		if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
			return false
		}
		return step.Step.WritePC == pcPlus4(step)
	}
}

// straddleLoadMicro builds the predicate for one of the four micro-states a
// cross-word lh/lhu/lw takes when its field spans two aligned words: micro 0
// stages the low word's contribution into AUX1, micro 1 stages the high
// word's contribution into AUX2, micro 2 ORs them together into AUX1, micro 3
// sign/zero-extends and commits to rd. Field assembly follows the same
// byte-lane convention as the single-word case: an addr with non-zero
// spillBytes has its first (4-offset) bytes as the field's high-order part
// and the next spillBytes bytes, from the following word, as its low-order
// part.
func straddleLoadMicro(registerBase, funct3 uint32, width int, signed bool, micro uint8) Predicate {
	aux1 := decode.RegisterAddress(registerBase, memsec.Aux1Index)
	aux2 := decode.RegisterAddress(registerBase, memsec.Aux2Index)
	return func(step trace.TraceRWStep) bool {
		f, err := decode.DecodeIType(step.ReadPC.Opcode, registerBase, riscv.OpLoad, funct3)
		if err != nil {
			return false
		}
		addr := arith.AddWithBitExtension(step.Read1.Value, f.Imm, f.BitExtension)
		offset := int(addr & 3)
		lowBytes := 4 - offset
		spillBytes := width - lowBytes
		if spillBytes <= 0 {
			return false // not actually straddling; belongs to the aligned key
		}
		base := addr &^ 3

		switch micro {
		case 0:
			if step.Read1.Address != f.Rs1Addr || step.Read2.Address != base {
				return false
			}
			mask := uint32(1)<<uint(lowBytes*8) - 1
			lowPart := arith.LogicWithBitExtension(step.Read2.Value, mask, arith.OpAnd)
			staged := arith.ShiftWithTables(lowPart, uint32(spillBytes*8), false, false)
			wantWrite := trace.TraceWrite{Address: aux1, Value: staged}
			wantWitness := trace.NewMemoryWitness(trace.AccessRegister, trace.AccessMemory, trace.AccessRegister)
			if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
				return false
			}
			return step.Step.WritePC == trace.ProgramCounter{Address: step.ReadPC.PC.Address, Micro: 1}
		case 1:
			if step.Read2.Address != base+4 {
				return false
			}
			shift := uint32((4 - spillBytes) * 8)
			highPart := arith.ShiftWithTables(step.Read2.Value, shift, true, false)
			mask := uint32(1)<<uint(spillBytes*8) - 1
			highPart = arith.LogicWithBitExtension(highPart, mask, arith.OpAnd)
			wantWrite := trace.TraceWrite{Address: aux2, Value: highPart}
			wantWitness := trace.NewMemoryWitness(trace.AccessRegister, trace.AccessMemory, trace.AccessRegister)
			if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
				return false
			}
			return step.Step.WritePC == trace.ProgramCounter{Address: step.ReadPC.PC.Address, Micro: 2}
		case 2:
			if step.Read1.Address != aux1 || step.Read2.Address != aux2 {
				return false
			}
			combined := arith.LogicWithBitExtension(step.Read1.Value, step.Read2.Value, arith.OpOr)
			wantWrite := trace.TraceWrite{Address: aux1, Value: combined}
			wantWitness := trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessRegister)
			if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
				return false
			}
			return step.Step.WritePC == trace.ProgramCounter{Address: step.ReadPC.PC.Address, Micro: 3}
		case 3:
			if step.Read1.Address != aux1 {
				return false
			}
			value := step.Read1.Value
			if signed {
				value = arith.BitExtend(value, width*2)
			} else if width < 4 {
				mask := uint32(1)<<uint(width*8) - 1
				value = arith.LogicWithBitExtension(value, mask, arith.OpAnd)
			}
			wantWrite, wantWitness := collapseNop(f.RdAddr, registerBase,
				trace.TraceWrite{Address: f.RdAddr, Value: value},
				trace.RegisterUnusedRegister())
			if step.Step.Write != wantWrite || step.MemWitness.Byte() != wantWitness.Byte() {
				return false
			}
			return step.Step.WritePC == pcPlus4(step)
		default:
			return false
		}
	}
}

func addLoadPredicates(m map[string]MappingEntry, registerBase uint32) {
	families := []struct {
		key    string
		funct3 uint32
		width  int
		signed bool
	}{
		{"lb", riscv.Funct3Lb, 1, true},
		{"lbu", riscv.Funct3Lbu, 1, false},
		{"lh", riscv.Funct3Lh, 2, true},
		{"lhu", riscv.Funct3Lhu, 2, false},
		{"lw", riscv.Funct3Lw, 4, false},
	}
	for _, fam := range families {
		m[fam.key] = MappingEntry{Predicate: loadAlignedPredicate(registerBase, fam.funct3, fam.width, fam.signed)}
		if fam.width == 1 {
			continue // a single byte never spans a word boundary
		}
		for micro := uint8(0); micro < 4; micro++ {
			key := fmt.Sprintf("%s_%d", fam.key, micro)
			m[key] = MappingEntry{Predicate: straddleLoadMicro(registerBase, fam.funct3, fam.width, fam.signed, micro)}
		}
	}
}
