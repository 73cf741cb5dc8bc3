package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rv32fp/decode"
	"rv32fp/riscv"
	"rv32fp/trace"
)

const testRegisterBase = 0x8000
const testCodeStart = 0x1000
const testDataStart = 0x2000

func encodeR(opcode, funct3, funct7, rs1, rs2, rd uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeI(opcode, funct3, rs1, rd uint32, imm uint32) uint32 {
	return (imm&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeS(opcode, funct3, rs1, rs2 uint32, imm uint32) uint32 {
	immLo := imm & 0x1F
	immHi := (imm >> 5) & 0x7F
	return immHi<<25 | rs2<<20 | rs1<<15 | funct3<<12 | immLo<<7 | opcode
}

func encodeB(opcode, funct3, rs1, rs2 uint32, imm uint32) uint32 {
	bit12 := (imm >> 12) & 1
	bit11 := (imm >> 11) & 1
	bits10_5 := (imm >> 5) & 0x3F
	bits4_1 := (imm >> 1) & 0xF
	return bit12<<31 | bits10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | bits4_1<<8 | bit11<<7 | opcode
}

func encodeU(opcode, rd uint32, imm uint32) uint32 {
	return (imm & 0xFFFFF000) | rd<<7 | opcode
}

func encodeJ(opcode, rd uint32, imm uint32) uint32 {
	bit20 := (imm >> 20) & 1
	bits19_12 := (imm >> 12) & 0xFF
	bit11 := (imm >> 11) & 1
	bits10_1 := (imm >> 1) & 0x3FF
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | rd<<7 | opcode
}

// newTestProgram builds a Program with a code section at testCodeStart
// holding instrs, a writable data section at testDataStart, and the
// register window at testRegisterBase.
func newTestProgram(t *testing.T, instrs []uint32, cfg Config) *Program {
	t.Helper()
	code := make([]byte, len(instrs)*4)
	for i, w := range instrs {
		code[i*4+0] = byte(w >> 24)
		code[i*4+1] = byte(w >> 16)
		code[i*4+2] = byte(w >> 8)
		code[i*4+3] = byte(w)
	}
	p, err := NewProgram(testRegisterBase, testCodeStart, []SectionImage{
		{Name: "code", Start: testCodeStart, Size: 0x1000, IsCode: true, IsWritable: false, IsInitialized: true, Data: code},
		{Name: "data", Start: testDataStart, Size: 0x100, IsWritable: true, IsInitialized: true},
	}, cfg, nil)
	require.NoError(t, err)
	return p
}

func regAddr(idx uint32) uint32 { return decode.RegisterAddress(testRegisterBase, uint8(idx)) }

func TestStepAddiAndAdd(t *testing.T) {
	p := newTestProgram(t, []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 2, 10), // addi x2,x0,10
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 3, 5),  // addi x3,x0,5
		encodeR(riscv.OpRegArith, riscv.Funct3Add, riscv.Funct7Base, 2, 3, 1), // add x1,x2,x3
	}, Config{})

	_, err := p.Step()
	require.NoError(t, err)
	_, err = p.Step()
	require.NoError(t, err)
	rw, err := p.Step()
	require.NoError(t, err)

	r1, err := p.Registers.Section().Read(regAddr(1))
	require.NoError(t, err)
	assert.Equal(t, uint32(15), r1.Value)
	assert.Equal(t, uint32(testCodeStart+12), rw.Step.WritePC.Address)
}

func TestStepAddiNegativeImmediate(t *testing.T) {
	p := newTestProgram(t, []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 3, uint32(int32(-1))&0xFFF), // addi x3,x0,-1
	}, Config{})
	_, err := p.Step()
	require.NoError(t, err)
	r3, err := p.Registers.Section().Read(regAddr(3))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), r3.Value)
}

func TestStepShiftImmediateArithmeticRight(t *testing.T) {
	p := newTestProgram(t, []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 2, uint32(int32(-8))&0xFFF), // addi x2,x0,-8
		(riscv.Funct7Alt << 25) | (1 << 20) | (2 << 15) | (riscv.Funct3Srl << 12) | (4 << 7) | riscv.OpImmArith, // srai x4,x2,1
	}, Config{})
	_, err := p.Step()
	require.NoError(t, err)
	_, err = p.Step()
	require.NoError(t, err)
	r4, err := p.Registers.Section().Read(regAddr(4))
	require.NoError(t, err)
	assert.Equal(t, uint32(int32(-4)), r4.Value)
}

func TestStepBranchLoopAndStore(t *testing.T) {
	// x2 = 10, x3 = 3, then x1 += x2 while x3-- != 0 (computes 10*3 = 30),
	// lui x4,0x2000; sw x1,0(x4).
	instrs := []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 2, 10), // 0: addi x2,x0,10
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 3, 3),  // 4: addi x3,x0,3
		encodeR(riscv.OpRegArith, riscv.Funct3Add, riscv.Funct7Base, 1, 2, 1),     // 8: add x1,x1,x2  (loop)
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 3, 3, uint32(int32(-1))&0xFFF), // 12: addi x3,x3,-1
		encodeB(riscv.OpBranch, riscv.Funct3Bne, 3, 0, uint32(int32(-8))&0x1FFF),  // 16: bne x3,x0,loop
		encodeU(riscv.OpLui, 4, testDataStart),                                    // 20: lui x4,0x2000
		encodeS(riscv.OpStore, riscv.Funct3Sw, 4, 1, 0),                           // 24: sw x1,0(x4)
	}
	p := newTestProgram(t, instrs, Config{})
	for i := 0; i < 2+3*3+2; i++ {
		_, err := p.Step()
		require.NoError(t, err, "step %d", i)
	}
	r1, err := p.Registers.Section().Read(regAddr(1))
	require.NoError(t, err)
	assert.Equal(t, uint32(30), r1.Value)

	dataSec, err := p.SectionFor(testDataStart)
	require.NoError(t, err)
	mem, err := dataSec.Read(testDataStart)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), mem.Value)
}

func TestStepByteStorePreservesNeighboringBytes(t *testing.T) {
	instrs := []uint32{
		encodeU(riscv.OpLui, 4, testDataStart),
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 1, 0xFF), // addi x1,x0,0xFF (low byte 0xFF)
		encodeS(riscv.OpStore, riscv.Funct3Sb, 4, 1, 1),        // sb x1,1(x4)
	}
	p := newTestProgram(t, instrs, Config{})
	dataSec, err := p.SectionFor(testDataStart)
	require.NoError(t, err)
	require.NoError(t, dataSec.Write(testDataStart, 0x11223344, 0))

	for i := 0; i < 3; i++ {
		_, err := p.Step()
		require.NoError(t, err)
	}
	w, err := dataSec.Read(testDataStart)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11FF3344), w.Value)
}

func TestStepLoadByteSignExtends(t *testing.T) {
	instrs := []uint32{
		encodeU(riscv.OpLui, 4, testDataStart),
		encodeI(riscv.OpLoad, riscv.Funct3Lb, 4, 1, 1), // lb x1,1(x4)
		encodeI(riscv.OpLoad, riscv.Funct3Lbu, 4, 2, 1),
	}
	p := newTestProgram(t, instrs, Config{})
	dataSec, err := p.SectionFor(testDataStart)
	require.NoError(t, err)
	require.NoError(t, dataSec.Write(testDataStart, 0x11FF3344, 0))

	for i := 0; i < 3; i++ {
		_, err := p.Step()
		require.NoError(t, err)
	}
	r1, err := p.Registers.Section().Read(regAddr(1))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), r1.Value) // lb sign-extends 0xFF

	r2, err := p.Registers.Section().Read(regAddr(2))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFF), r2.Value) // lbu zero-extends
}

func TestStepJalAndJalr(t *testing.T) {
	instrs := []uint32{
		encodeJ(riscv.OpJal, 1, 8),  // 0: jal x1, +8  -> pc=8, x1=4
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 2, 99), // 4: (skipped) addi x2,x0,99
		encodeI(riscv.OpJalr, 0x0, 1, 3, 0),                  // 8: jalr x3,x1,0 -> pc=4, x3=12
	}
	p := newTestProgram(t, instrs, Config{})
	_, err := p.Step()
	require.NoError(t, err)
	assert.Equal(t, uint32(testCodeStart+8), p.PC.Address)

	_, err = p.Step()
	require.NoError(t, err)
	assert.Equal(t, uint32(testCodeStart+4), p.PC.Address)

	r3, err := p.Registers.Section().Read(regAddr(3))
	require.NoError(t, err)
	assert.Equal(t, uint32(testCodeStart+12), r3.Value)
}

func TestStepMExtMulAndDivu(t *testing.T) {
	instrs := []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 1, 6),
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 2, 7),
		encodeR(riscv.OpRegArith, riscv.Funct3Mul, riscv.Funct7MExt, 1, 2, 3),  // mul x3,x1,x2
		encodeR(riscv.OpRegArith, riscv.Funct3Divu, riscv.Funct7MExt, 2, 1, 4), // divu x4,x2,x1
	}
	p := newTestProgram(t, instrs, Config{})
	for i := 0; i < 4; i++ {
		_, err := p.Step()
		require.NoError(t, err)
	}
	r3, err := p.Registers.Section().Read(regAddr(3))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), r3.Value)

	r4, err := p.Registers.Section().Read(regAddr(4))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), r4.Value) // 7/6 = 1
}

func TestStepDivideByZeroUnsignedIsAllOnes(t *testing.T) {
	instrs := []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 1, 5),
		encodeR(riscv.OpRegArith, riscv.Funct3Divu, riscv.Funct7MExt, 1, 0, 2), // divu x2,x1,x0
	}
	p := newTestProgram(t, instrs, Config{})
	_, err := p.Step()
	require.NoError(t, err)
	_, err = p.Step()
	require.NoError(t, err)
	r2, err := p.Registers.Section().Read(regAddr(2))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF), r2.Value)
}

func TestStepDivideByZeroFailsWhenConfigured(t *testing.T) {
	instrs := []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 1, 5),
		encodeR(riscv.OpRegArith, riscv.Funct3Divu, riscv.Funct7MExt, 1, 0, 2),
	}
	p := newTestProgram(t, instrs, Config{FailOnDivZero: true})
	_, err := p.Step()
	require.NoError(t, err)
	_, err = p.Step()
	require.Error(t, err)
	execErr, ok := err.(*ExecError)
	require.True(t, ok)
	assert.Equal(t, "DivisionByZero", execErr.Kind)
}

func TestStepEcallHaltSetsExitCode(t *testing.T) {
	instrs := []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 17, riscv.EcallHaltSyscall),
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 10, 7),
		encodeI(riscv.OpSystem, 0, 0, 0, riscv.SystemEcall),
	}
	p := newTestProgram(t, instrs, Config{})
	for i := 0; i < 3; i++ {
		_, err := p.Step()
		require.NoError(t, err)
	}
	assert.True(t, p.Halted)
	assert.Equal(t, uint32(7), p.ExitCode)
}

func TestStepEcallHaltFreezesPC(t *testing.T) {
	instrs := []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 17, riscv.EcallHaltSyscall),
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 10, 7),
		encodeI(riscv.OpSystem, 0, 0, 0, riscv.SystemEcall),
	}
	p := newTestProgram(t, instrs, Config{})
	for i := 0; i < 2; i++ {
		_, err := p.Step()
		require.NoError(t, err)
	}
	pcBefore := p.PC
	rw, err := p.Step()
	require.NoError(t, err)
	assert.Equal(t, pcBefore, p.PC)
	assert.Equal(t, pcBefore, rw.Step.WritePC)
	a0 := decode.RegisterAddress(testRegisterBase, 10)
	assert.Equal(t, trace.TraceWrite{Address: a0, Value: 7}, rw.Step.Write)
}

func TestStepEbreakIsNopNotHalt(t *testing.T) {
	instrs := []uint32{
		encodeI(riscv.OpSystem, 0, 0, 0, riscv.SystemEbreak),
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 1, 1),
	}
	p := newTestProgram(t, instrs, Config{})
	pcBefore := p.PC
	rw, err := p.Step()
	require.NoError(t, err)
	assert.False(t, p.Halted)
	assert.Equal(t, trace.ProgramCounter{Address: pcBefore.Address + 4}, p.PC)
	assert.Equal(t, trace.TraceWrite{}, rw.Step.Write)
	assert.Equal(t, trace.DefaultWitness().Byte(), rw.MemWitness.Byte())
}

func TestStepUnknownSyscallIsNop(t *testing.T) {
	instrs := []uint32{
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 17, 999),
		encodeI(riscv.OpSystem, 0, 0, 0, riscv.SystemEcall),
	}
	p := newTestProgram(t, instrs, Config{})
	_, err := p.Step()
	require.NoError(t, err)
	rw, err := p.Step()
	require.NoError(t, err)
	assert.False(t, p.Halted)
	assert.Equal(t, trace.TraceWrite{}, rw.Step.Write)
	assert.Equal(t, trace.DefaultWitness().Byte(), rw.MemWitness.Byte())
}

func TestStepFenceIsNop(t *testing.T) {
	instrs := []uint32{
		uint32(riscv.OpMiscMem),
	}
	p := newTestProgram(t, instrs, Config{})
	pcBefore := p.PC
	rw, err := p.Step()
	require.NoError(t, err)
	assert.Equal(t, trace.ProgramCounter{Address: pcBefore.Address + 4}, p.PC)
	assert.Equal(t, trace.TraceWrite{}, rw.Step.Write)
	assert.Equal(t, trace.DefaultWitness().Byte(), rw.MemWitness.Byte())
}

func TestStepWriteToReadOnlySectionFails(t *testing.T) {
	instrs := []uint32{
		encodeU(riscv.OpLui, 4, testCodeStart),
		encodeI(riscv.OpImmArith, riscv.Funct3Add, 0, 1, 1),
		encodeS(riscv.OpStore, riscv.Funct3Sw, 4, 1, 0),
	}
	p := newTestProgram(t, instrs, Config{})
	_, err := p.Step()
	require.NoError(t, err)
	_, err = p.Step()
	require.NoError(t, err)
	_, err = p.Step()
	require.Error(t, err)
}

func TestNewProgramRejectsMisalignedRegisterBase(t *testing.T) {
	_, err := NewProgram(0x8001, testCodeStart, nil, Config{}, nil)
	assert.Error(t, err)
}

func TestSectionForMissingAddressErrors(t *testing.T) {
	p := newTestProgram(t, []uint32{0}, Config{})
	_, err := p.SectionFor(0xFFFF_0000)
	assert.Error(t, err)
}
