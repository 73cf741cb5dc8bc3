// Package decode implements the per-format RV32 instruction decoders: one
// decoder per instruction format (I/R/S/B/U/J), each asserting the format's
// constant fields and producing the semantic fields -- register addresses,
// sign-extended immediates, and bit-extension nibbles -- the verifiers and
// emulator consume.
package decode

import (
	"fmt"

	"rv32fp/riscv"
)

// RegisterAddress is the reconstructed, commitment-validating address of an
// architectural register: register_base[31:8] || (index*4). Producing it
// this way (rather than trusting a runtime-computed address) ties every
// register access back to the program's committed register_base.
func RegisterAddress(registerBase uint32, index uint8) uint32 {
	return (registerBase &^ 0xFF) | (uint32(index) * 4)
}

// Fields is the union of every field a decoder might produce; each decoder
// populates only the subset relevant to its format, leaving the rest zero.
type Fields struct {
	Opcode       uint32
	Funct3       uint32
	Funct7       uint32
	Rs1Addr      uint32
	Rs2Addr      uint32
	RdAddr       uint32
	Imm          uint32 // sign-extended where applicable
	BitExtension uint8  // 0x0 or 0xF
	Shamt        uint32 // valid for slli/srli/srai
}

func opcode(instr uint32) uint32 { return instr & 0x7F }
func rd(instr uint32) uint8      { return uint8((instr >> 7) & 0x1F) }
func funct3(instr uint32) uint32 { return (instr >> 12) & 0x7 }
func rs1(instr uint32) uint8     { return uint8((instr >> 15) & 0x1F) }
func rs2(instr uint32) uint8     { return uint8((instr >> 20) & 0x1F) }
func funct7(instr uint32) uint32 { return (instr >> 25) & 0x7F }

func signExtend(value uint32, bits int) uint32 {
	shift := 32 - bits
	return uint32(int32(value<<shift) >> shift)
}

func bitExtensionFor(imm uint32) uint8 {
	if imm&0x8000_0000 != 0 {
		return 0xF
	}
	return 0x0
}

// DecodeIType decodes an I-type instruction (loads, arithmetic-immediate,
// jalr), asserting opcode and funct3 match wantOpcode/wantFunct3.
func DecodeIType(instr uint32, registerBase uint32, wantOpcode, wantFunct3 uint32) (Fields, error) {
	if opcode(instr) != wantOpcode {
		return Fields{}, fmt.Errorf("decode: I-type opcode mismatch: got %#x want %#x", opcode(instr), wantOpcode)
	}
	if funct3(instr) != wantFunct3 {
		return Fields{}, fmt.Errorf("decode: I-type funct3 mismatch: got %#x want %#x", funct3(instr), wantFunct3)
	}
	imm := signExtend(instr>>20, 12)
	return Fields{
		Opcode:       opcode(instr),
		Funct3:       wantFunct3,
		Rs1Addr:      RegisterAddress(registerBase, rs1(instr)),
		RdAddr:       RegisterAddress(registerBase, rd(instr)),
		Imm:          imm,
		BitExtension: bitExtensionFor(imm),
	}, nil
}

// DecodeIShiftType decodes the forced-funct7 I-type variant used by
// slli/srli/srai: bits above the 5-bit shamt must equal forcedFunct7.
func DecodeIShiftType(instr uint32, registerBase uint32, wantOpcode, wantFunct3, forcedFunct7 uint32) (Fields, error) {
	if opcode(instr) != wantOpcode {
		return Fields{}, fmt.Errorf("decode: I-shift opcode mismatch: got %#x want %#x", opcode(instr), wantOpcode)
	}
	if funct3(instr) != wantFunct3 {
		return Fields{}, fmt.Errorf("decode: I-shift funct3 mismatch: got %#x want %#x", funct3(instr), wantFunct3)
	}
	if funct7(instr) != forcedFunct7 {
		return Fields{}, fmt.Errorf("decode: I-shift forced funct7 mismatch: got %#x want %#x", funct7(instr), forcedFunct7)
	}
	shamt := (instr >> 20) & 0x1F
	return Fields{
		Opcode:  opcode(instr),
		Funct3:  wantFunct3,
		Funct7:  forcedFunct7,
		Rs1Addr: RegisterAddress(registerBase, rs1(instr)),
		RdAddr:  RegisterAddress(registerBase, rd(instr)),
		Shamt:   shamt,
	}, nil
}

// DecodeRType decodes an R-type instruction (register-register arithmetic,
// RV32M), asserting opcode, funct3, and funct7 match.
func DecodeRType(instr uint32, registerBase uint32, wantOpcode, wantFunct3, wantFunct7 uint32) (Fields, error) {
	if opcode(instr) != wantOpcode {
		return Fields{}, fmt.Errorf("decode: R-type opcode mismatch: got %#x want %#x", opcode(instr), wantOpcode)
	}
	if funct3(instr) != wantFunct3 {
		return Fields{}, fmt.Errorf("decode: R-type funct3 mismatch: got %#x want %#x", funct3(instr), wantFunct3)
	}
	if funct7(instr) != wantFunct7 {
		return Fields{}, fmt.Errorf("decode: R-type funct7 mismatch: got %#x want %#x", funct7(instr), wantFunct7)
	}
	return Fields{
		Opcode:  opcode(instr),
		Funct3:  wantFunct3,
		Funct7:  wantFunct7,
		Rs1Addr: RegisterAddress(registerBase, rs1(instr)),
		Rs2Addr: RegisterAddress(registerBase, rs2(instr)),
		RdAddr:  RegisterAddress(registerBase, rd(instr)),
	}, nil
}

// DecodeSType decodes an S-type instruction (stores), asserting opcode and
// funct3 match.
func DecodeSType(instr uint32, registerBase uint32, wantOpcode, wantFunct3 uint32) (Fields, error) {
	if opcode(instr) != wantOpcode {
		return Fields{}, fmt.Errorf("decode: S-type opcode mismatch: got %#x want %#x", opcode(instr), wantOpcode)
	}
	if funct3(instr) != wantFunct3 {
		return Fields{}, fmt.Errorf("decode: S-type funct3 mismatch: got %#x want %#x", funct3(instr), wantFunct3)
	}
	immHi := (instr >> 25) & 0x7F
	immLo := (instr >> 7) & 0x1F
	imm := signExtend((immHi<<5)|immLo, 12)
	return Fields{
		Opcode:       opcode(instr),
		Funct3:       wantFunct3,
		Rs1Addr:      RegisterAddress(registerBase, rs1(instr)),
		Rs2Addr:      RegisterAddress(registerBase, rs2(instr)),
		Imm:          imm,
		BitExtension: bitExtensionFor(imm),
	}, nil
}

// DecodeBType decodes a B-type instruction (branches), asserting opcode and
// funct3 match. The immediate is sign-extended to a full 32-bit word.
func DecodeBType(instr uint32, registerBase uint32, wantOpcode, wantFunct3 uint32) (Fields, error) {
	if opcode(instr) != wantOpcode {
		return Fields{}, fmt.Errorf("decode: B-type opcode mismatch: got %#x want %#x", opcode(instr), wantOpcode)
	}
	if funct3(instr) != wantFunct3 {
		return Fields{}, fmt.Errorf("decode: B-type funct3 mismatch: got %#x want %#x", funct3(instr), wantFunct3)
	}
	bit11 := (instr >> 7) & 0x1
	bits4_1 := (instr >> 8) & 0xF
	bits10_5 := (instr >> 25) & 0x3F
	bit12 := (instr >> 31) & 0x1
	raw := (bit12 << 12) | (bit11 << 11) | (bits10_5 << 5) | (bits4_1 << 1)
	imm := signExtend(raw, 13)
	return Fields{
		Opcode:       opcode(instr),
		Funct3:       wantFunct3,
		Rs1Addr:      RegisterAddress(registerBase, rs1(instr)),
		Rs2Addr:      RegisterAddress(registerBase, rs2(instr)),
		Imm:          imm,
		BitExtension: bitExtensionFor(imm),
	}, nil
}

// DecodeUType decodes a U-type instruction (lui/auipc), asserting opcode
// matches. Imm carries bits[31:12] with the low 12 bits zeroed.
func DecodeUType(instr uint32, registerBase uint32, wantOpcode uint32) (Fields, error) {
	if opcode(instr) != wantOpcode {
		return Fields{}, fmt.Errorf("decode: U-type opcode mismatch: got %#x want %#x", opcode(instr), wantOpcode)
	}
	imm := instr & 0xFFFFF000
	return Fields{
		Opcode: opcode(instr),
		RdAddr: RegisterAddress(registerBase, rd(instr)),
		Imm:    imm,
	}, nil
}

// DecodeJType decodes a J-type instruction (jal), asserting opcode matches.
// The immediate is sign-extended to a full 32-bit word.
func DecodeJType(instr uint32, registerBase uint32, wantOpcode uint32) (Fields, error) {
	if opcode(instr) != wantOpcode {
		return Fields{}, fmt.Errorf("decode: J-type opcode mismatch: got %#x want %#x", opcode(instr), wantOpcode)
	}
	bit20 := (instr >> 31) & 0x1
	bits10_1 := (instr >> 21) & 0x3FF
	bit11 := (instr >> 20) & 0x1
	bits19_12 := (instr >> 12) & 0xFF
	raw := (bit20 << 20) | (bits19_12 << 12) | (bit11 << 11) | (bits10_1 << 1)
	imm := signExtend(raw, 21)
	return Fields{
		Opcode: opcode(instr),
		RdAddr: RegisterAddress(registerBase, rd(instr)),
		Imm:    imm,
	}, nil
}

// DecodeSystem decodes a SYSTEM instruction (ecall/ebreak), asserting only
// the opcode and returning the immediate (distinguishes ecall from ebreak).
// funct3 is not checked and registerBase is unused: no register address is
// produced.
func DecodeSystem(instr uint32, registerBase uint32) (Fields, error) {
	if opcode(instr) != riscv.OpSystem {
		return Fields{}, fmt.Errorf("decode: SYSTEM opcode mismatch: got %#x", opcode(instr))
	}
	imm := instr >> 20
	return Fields{
		Opcode: opcode(instr),
		Imm:    imm,
	}, nil
}

// DecodeFence decodes a MISC-MEM instruction (fence/fence.i), asserting only
// the opcode: every fence variant is a NOP here, so no funct3/operand field
// is meaningful to a caller.
func DecodeFence(instr uint32) (Fields, error) {
	if opcode(instr) != riscv.OpMiscMem {
		return Fields{}, fmt.Errorf("decode: MISC-MEM opcode mismatch: got %#x", opcode(instr))
	}
	return Fields{Opcode: opcode(instr)}, nil
}
