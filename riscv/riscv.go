// Package riscv holds the shared RV32IM opcode/funct3/funct7 constants used
// by the decoders, verifiers, and reference emulator.
package riscv

// Base opcodes (instr[6:0]).
const (
	OpLoad     = 0x03
	OpImmArith = 0x13
	OpAuipc    = 0x17
	OpStore    = 0x23
	OpRegArith = 0x33
	OpLui      = 0x37
	OpBranch   = 0x63
	OpJalr     = 0x67
	OpJal      = 0x6F
	OpSystem   = 0x73
	OpMiscMem  = 0x0F
)

// funct3 values shared across the arithmetic-immediate and
// register-register opcode families.
const (
	Funct3Add   = 0x0
	Funct3Sll   = 0x1
	Funct3Slt   = 0x2
	Funct3Sltu  = 0x3
	Funct3Xor   = 0x4
	Funct3Srl   = 0x5
	Funct3Or    = 0x6
	Funct3And   = 0x7
)

// funct3 values for the branch family.
const (
	Funct3Beq  = 0x0
	Funct3Bne  = 0x1
	Funct3Blt  = 0x4
	Funct3Bge  = 0x5
	Funct3Bltu = 0x6
	Funct3Bgeu = 0x7
)

// funct3 values for the load family.
const (
	Funct3Lb  = 0x0
	Funct3Lh  = 0x1
	Funct3Lw  = 0x2
	Funct3Lbu = 0x4
	Funct3Lhu = 0x5
)

// funct3 values for the store family.
const (
	Funct3Sb = 0x0
	Funct3Sh = 0x1
	Funct3Sw = 0x2
)

// funct7 values distinguishing register-register sub-families.
const (
	Funct7Base = 0x00
	Funct7Alt  = 0x20 // SUB, SRA
	Funct7MExt = 0x01 // RV32M multiply/divide extension
)

// RV32M funct3 values (valid only when funct7 == Funct7MExt).
const (
	Funct3Mul    = 0x0
	Funct3Mulh   = 0x1
	Funct3Mulhsu = 0x2
	Funct3Mulhu  = 0x3
	Funct3Div    = 0x4
	Funct3Divu   = 0x5
	Funct3Rem    = 0x6
	Funct3Remu   = 0x7
)

// SYSTEM immediates (instr[31:20]) distinguishing ecall/ebreak.
const (
	SystemEcall  = 0x000
	SystemEbreak = 0x001
)

// EcallHaltSyscall is the a7 value for "halt" (RISC-V Linux syscall 93,
// exit): a0 carries the exit code.
const EcallHaltSyscall = 93

// EcallConsoleSyscall writes a single byte to a debug console -- modeled as
// a no-op for the verifier and emulator-side stdout only for the emulator.
const EcallConsoleSyscall = 116

// ConsoleAddress is the memory-mapped debug console word; the high byte of
// the word found there is the byte an EcallConsoleSyscall prints.
const ConsoleAddress = 0xA000_1000

// RegisterCount is the architectural register count (x0..x31); two scratch
// registers (AUX1, AUX2) are appended by memsec for a total of 34 entries.
const RegisterCount = 32

// InstructionSize is the fixed RV32 instruction width in bytes (no
// compressed-instruction support, per non-goals).
const InstructionSize = 4
