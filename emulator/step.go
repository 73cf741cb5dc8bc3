package emulator

import (
	"go.uber.org/zap"

	"rv32fp/arith"
	"rv32fp/decode"
	"rv32fp/riscv"
	"rv32fp/trace"
)

// stepResult is the raw material a single instruction handler produces;
// Step assembles it into a trace.TraceRWStep and applies side effects the
// handler could not apply itself (the write, the hash update, the PC
// advance) in one place so every handler follows the same shape.
type stepResult struct {
	read1      trace.TraceRead
	read2      trace.TraceRead
	write      trace.TraceWrite
	memWitness trace.MemoryWitness
	witness    *uint32
	nextPC     trace.ProgramCounter
	halt       bool
	exitCode   uint32
}

func (p *Program) readRegister(addr uint32) (trace.TraceRead, error) {
	return p.Registers.Section().Read(addr)
}

// writeRegister writes value to the register at addr, silently discarding
// writes to register 0 per RV32 semantics (x0 is hard-wired zero).
func (p *Program) writeRegister(addr uint32, value uint32, step uint64) error {
	if addr == p.registerBase {
		return nil
	}
	return p.Registers.Section().Write(addr, value, step)
}

// Step executes exactly one instruction, returning the TraceRWStep
// committing its reads, write, and PC transition, and advancing Program's
// own PC/Step/Hash/Halted state. Every control-flow path reaches through a
// single write slot and a single next-PC, matching the one-step-one-write
// shape the trace format requires; multi-word accesses (unaligned loads and
// stores) are resolved within this one Step by reading/writing the
// containing aligned word, rather than split across several Step calls --
// the per-instruction atomicity a single-threaded reference emulator needs,
// same idiom as the teacher's own Cpu.Step single-instruction dispatch.
func (p *Program) Step() (trace.TraceRWStep, error) {
	if p.Halted {
		return trace.TraceRWStep{}, &ExecError{Kind: "AlreadyHalted", Address: p.PC.Address}
	}

	codeSec, err := p.SectionFor(p.PC.Address)
	if err != nil {
		return trace.TraceRWStep{}, err
	}
	fetch, err := codeSec.Read(p.PC.Address)
	if err != nil {
		return trace.TraceRWStep{}, err
	}
	instr := fetch.Value
	opcode := instr & 0x7F

	var (
		res stepResult
		dErr error
	)
	switch opcode {
	case riscv.OpImmArith:
		res, dErr = p.execImmArith(instr)
	case riscv.OpRegArith:
		res, dErr = p.execRegArith(instr)
	case riscv.OpLui, riscv.OpAuipc:
		res, dErr = p.execUpper(instr, opcode)
	case riscv.OpBranch:
		res, dErr = p.execBranch(instr)
	case riscv.OpJal:
		res, dErr = p.execJal(instr)
	case riscv.OpJalr:
		res, dErr = p.execJalr(instr)
	case riscv.OpLoad:
		res, dErr = p.execLoad(instr)
	case riscv.OpStore:
		res, dErr = p.execStore(instr)
	case riscv.OpSystem:
		res, dErr = p.execSystem(instr)
	case riscv.OpMiscMem:
		res, dErr = p.execFence(instr)
	default:
		dErr = errInstructionNotImplemented(p.PC.Address, opcode)
	}
	if dErr != nil {
		return trace.TraceRWStep{}, dErr
	}

	{
		if res.memWitness.Write() == trace.AccessMemory {
			sec, err := p.SectionFor(res.write.Address)
			if err != nil {
				return trace.TraceRWStep{}, err
			}
			if sec.IsCode {
				return trace.TraceRWStep{}, errWriteToCodeSection(p.PC.Address)
			}
			if p.Config.StackLimit != 0 && res.write.Address < p.Config.StackLimit {
				return trace.TraceRWStep{}, errStackOverflow(p.PC.Address)
			}
			if err := sec.Write(res.write.Address, res.write.Value, p.StepNumber); err != nil {
				return trace.TraceRWStep{}, errWriteToReadOnlySection(p.PC.Address)
			}
		} else if res.memWitness.Write() == trace.AccessRegister {
			if err := p.writeRegister(res.write.Address, res.write.Value, p.StepNumber); err != nil {
				return trace.TraceRWStep{}, errRegistersSectionFail(p.PC.Address)
			}
		}
	}

	step := trace.TraceStep{Write: res.write, WritePC: res.nextPC}
	rw := trace.TraceRWStep{
		StepNumber: p.StepNumber,
		Read1:      res.read1,
		Read2:      res.read2,
		ReadPC:     trace.TraceReadPC{PC: p.PC, Opcode: instr},
		Step:       step,
		Witness:    res.witness,
		MemWitness: res.memWitness,
	}

	preHash := p.Hash
	p.Hash = trace.StepHash(preHash, step)
	p.StepNumber++
	p.PC = res.nextPC
	if res.halt {
		p.Halted = true
		p.ExitCode = res.exitCode
	}
	p.applyFailConfiguration(preHash, &rw)
	return rw, nil
}

func (p *Program) pcPlus4() trace.ProgramCounter {
	return trace.ProgramCounter{Address: p.PC.Address + riscv.InstructionSize, Micro: 0}
}

// --- register-immediate / register-register arithmetic ---

func (p *Program) execImmArith(instr uint32) (stepResult, error) {
	funct3 := (instr >> 12) & 0x7
	switch funct3 {
	case riscv.Funct3Sll, riscv.Funct3Srl:
		return p.execShiftImm(instr, funct3)
	default:
		f, err := decode.DecodeIType(instr, p.registerBase, riscv.OpImmArith, funct3)
		if err != nil {
			return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
		}
		r1, err := p.readRegister(f.Rs1Addr)
		if err != nil {
			return stepResult{}, errRegistersSectionFail(p.PC.Address)
		}
		var out uint32
		switch funct3 {
		case riscv.Funct3Add:
			out = arith.AddWithBitExtension(r1.Value, f.Imm, f.BitExtension)
		case riscv.Funct3Slt:
			out = boolToWord(arith.IsLowerThan(r1.Value, f.Imm, false))
		case riscv.Funct3Sltu:
			out = boolToWord(arith.IsLowerThan(r1.Value, f.Imm, true))
		case riscv.Funct3Xor:
			out = arith.LogicWithBitExtension(r1.Value, f.Imm, arith.OpXor)
		case riscv.Funct3Or:
			out = arith.LogicWithBitExtension(r1.Value, f.Imm, arith.OpOr)
		case riscv.Funct3And:
			out = arith.LogicWithBitExtension(r1.Value, f.Imm, arith.OpAnd)
		default:
			return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
		}
		write, memWitness := p.nopCollapse(f.RdAddr, trace.TraceWrite{Address: f.RdAddr, Value: out}, trace.RegisterUnusedRegister())
		return stepResult{
			read1:      r1,
			read2:      zeroRead(),
			write:      write,
			memWitness: memWitness,
			nextPC:     p.pcPlus4(),
		}, nil
	}
}

func (p *Program) execShiftImm(instr uint32, funct3 uint32) (stepResult, error) {
	funct7 := (instr >> 25) & 0x7F
	wantFunct7 := riscv.Funct7Base
	arithmetic := false
	if funct3 == riscv.Funct3Srl && funct7 == riscv.Funct7Alt {
		wantFunct7 = riscv.Funct7Alt
		arithmetic = true
	}
	f, err := decode.DecodeIShiftType(instr, p.registerBase, riscv.OpImmArith, funct3, uint32(wantFunct7))
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	r1, err := p.readRegister(f.Rs1Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	right := funct3 == riscv.Funct3Srl
	out := arith.ShiftWithTables(r1.Value, f.Shamt, right, arithmetic)
	write, memWitness := p.nopCollapse(f.RdAddr, trace.TraceWrite{Address: f.RdAddr, Value: out}, trace.RegisterUnusedRegister())
	return stepResult{
		read1:      r1,
		read2:      zeroRead(),
		write:      write,
		memWitness: memWitness,
		nextPC:     p.pcPlus4(),
	}, nil
}

func (p *Program) execRegArith(instr uint32) (stepResult, error) {
	funct3 := (instr >> 12) & 0x7
	funct7 := (instr >> 25) & 0x7F
	if funct7 == riscv.Funct7MExt {
		return p.execMExt(instr, funct3)
	}
	wantFunct7 := uint32(riscv.Funct7Base)
	if (funct3 == riscv.Funct3Add || funct3 == riscv.Funct3Srl) && funct7 == riscv.Funct7Alt {
		wantFunct7 = riscv.Funct7Alt
	}
	f, err := decode.DecodeRType(instr, p.registerBase, riscv.OpRegArith, funct3, wantFunct7)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	r1, err := p.readRegister(f.Rs1Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	r2, err := p.readRegister(f.Rs2Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	var out uint32
	switch funct3 {
	case riscv.Funct3Add:
		if wantFunct7 == riscv.Funct7Alt {
			out = arith.Sub(r1.Value, r2.Value)
		} else {
			out = arith.AddWithBitExtension(r1.Value, r2.Value, 0)
		}
	case riscv.Funct3Sll:
		out = arith.ShiftWithTables(r1.Value, r2.Value, false, false)
	case riscv.Funct3Slt:
		out = boolToWord(arith.IsLowerThan(r1.Value, r2.Value, false))
	case riscv.Funct3Sltu:
		out = boolToWord(arith.IsLowerThan(r1.Value, r2.Value, true))
	case riscv.Funct3Xor:
		out = arith.LogicWithBitExtension(r1.Value, r2.Value, arith.OpXor)
	case riscv.Funct3Srl:
		out = arith.ShiftWithTables(r1.Value, r2.Value, true, wantFunct7 == riscv.Funct7Alt)
	case riscv.Funct3Or:
		out = arith.LogicWithBitExtension(r1.Value, r2.Value, arith.OpOr)
	case riscv.Funct3And:
		out = arith.LogicWithBitExtension(r1.Value, r2.Value, arith.OpAnd)
	default:
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	write, memWitness := p.nopCollapse(f.RdAddr, trace.TraceWrite{Address: f.RdAddr, Value: out}, trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessRegister))
	return stepResult{
		read1:      r1,
		read2:      r2,
		write:      write,
		memWitness: memWitness,
		nextPC:     p.pcPlus4(),
	}, nil
}

func (p *Program) execMExt(instr uint32, funct3 uint32) (stepResult, error) {
	f, err := decode.DecodeRType(instr, p.registerBase, riscv.OpRegArith, funct3, riscv.Funct7MExt)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	r1, err := p.readRegister(f.Rs1Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	r2, err := p.readRegister(f.Rs2Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	a, b := r1.Value, r2.Value
	var out uint32
	var witness *uint32
	switch funct3 {
	case riscv.Funct3Mul:
		lo, _ := arith.Multiply(a, b)
		out = lo
	case riscv.Funct3Mulhu:
		_, hi := arith.Multiply(a, b)
		out = hi
	case riscv.Funct3Mulh:
		negA, negB := a&0x8000_0000 != 0, b&0x8000_0000 != 0
		absA := arith.TwosComplementConditional(a, negA)
		absB := arith.TwosComplementConditional(b, negB)
		lo, hi := arith.Multiply(absA, absB)
		if negA != negB {
			_, hi = negate64(lo, hi)
		}
		out = hi
	case riscv.Funct3Mulhsu:
		negA := a&0x8000_0000 != 0
		absA := arith.TwosComplementConditional(a, negA)
		lo, hi := arith.Multiply(absA, b)
		if negA {
			_, hi = negate64(lo, hi)
		}
		out = hi
	case riscv.Funct3Div:
		out, witness = divWitness(int32(a), int32(b))
	case riscv.Funct3Divu:
		out, witness = divuWitness(a, b)
	case riscv.Funct3Rem:
		out, witness = remWitness(int32(a), int32(b))
	case riscv.Funct3Remu:
		out, witness = remuWitness(a, b)
	default:
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	if p.Config.FailOnDivZero && b == 0 && isDivideFunct3(funct3) {
		return stepResult{}, errDivisionByZero(p.PC.Address)
	}
	write, memWitness := p.nopCollapse(f.RdAddr, trace.TraceWrite{Address: f.RdAddr, Value: out}, trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessRegister))
	return stepResult{
		read1:      r1,
		read2:      r2,
		write:      write,
		memWitness: memWitness,
		witness:    witness,
		nextPC:     p.pcPlus4(),
	}, nil
}

func isDivideFunct3(f uint32) bool {
	switch f {
	case riscv.Funct3Div, riscv.Funct3Divu, riscv.Funct3Rem, riscv.Funct3Remu:
		return true
	}
	return false
}

// negate64 applies two's-complement negation across a 64-bit (low,high)
// pair, used by the signed*signed and signed*unsigned multiply-high
// variants after computing the magnitude product.
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

// divWitness/remWitness/divuWitness/remuWitness compute the RV32M-defined
// result directly (the reference emulator is the trusted prover: it always
// knows the exact quotient/remainder, rather than checking a claimed one),
// applying the divide-by-zero and MIN_INT32/-1 overflow edge cases verbatim.
// The witness returned is exactly the committed result, so arith.Div's
// witness-checking counterpart in the verify package always accepts it.
func divWitness(dividend, divisor int32) (uint32, *uint32) {
	var q int32
	switch {
	case divisor == 0:
		q = -1
	case dividend == int32(minInt32Signed) && divisor == -1:
		q = dividend
	default:
		q = dividend / divisor
	}
	w := uint32(q)
	return w, &w
}

func remWitness(dividend, divisor int32) (uint32, *uint32) {
	var r int32
	switch {
	case divisor == 0:
		r = dividend
	case dividend == int32(minInt32Signed) && divisor == -1:
		r = 0
	default:
		r = dividend % divisor
	}
	w := uint32(r)
	return w, &w
}

func divuWitness(dividend, divisor uint32) (uint32, *uint32) {
	var q uint32
	if divisor == 0 {
		q = 0xFFFF_FFFF
	} else {
		q = dividend / divisor
	}
	return q, &q
}

func remuWitness(dividend, divisor uint32) (uint32, *uint32) {
	var r uint32
	if divisor == 0 {
		r = dividend
	} else {
		r = dividend % divisor
	}
	return r, &r
}

const minInt32Signed = int32(-2147483648)

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func zeroRead() trace.TraceRead {
	return trace.TraceRead{Address: 0, Value: 0, LastStep: trace.NeverWritten}
}

// nopCollapse replaces a write destined for register 0 with the spec's
// "default NOP shape" -- no write at all -- rather than a TraceWrite whose
// address equals register_base, which the register invariant (spec §8)
// forbids appearing in any committed step.
func (p *Program) nopCollapse(rdAddr uint32, write trace.TraceWrite, memWitness trace.MemoryWitness) (trace.TraceWrite, trace.MemoryWitness) {
	if rdAddr != p.registerBase {
		return write, memWitness
	}
	return trace.TraceWrite{}, trace.NewMemoryWitness(memWitness.Read1(), memWitness.Read2(), trace.AccessUnused)
}

// --- upper-immediate: lui / auipc ---

func (p *Program) execUpper(instr uint32, opcode uint32) (stepResult, error) {
	f, err := decode.DecodeUType(instr, p.registerBase, opcode)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	out := f.Imm
	if opcode == riscv.OpAuipc {
		out = arith.AddWithBitExtension(p.PC.Address, f.Imm, 0)
	}
	write, memWitness := p.nopCollapse(f.RdAddr, trace.TraceWrite{Address: f.RdAddr, Value: out}, trace.NewMemoryWitness(trace.AccessUnused, trace.AccessUnused, trace.AccessRegister))
	return stepResult{
		read1:      zeroRead(),
		read2:      zeroRead(),
		write:      write,
		memWitness: memWitness,
		nextPC:     p.pcPlus4(),
	}, nil
}

// --- branches ---

func (p *Program) execBranch(instr uint32) (stepResult, error) {
	funct3 := (instr >> 12) & 0x7
	f, err := decode.DecodeBType(instr, p.registerBase, riscv.OpBranch, funct3)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	r1, err := p.readRegister(f.Rs1Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	r2, err := p.readRegister(f.Rs2Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	var taken bool
	switch funct3 {
	case riscv.Funct3Beq:
		taken = arith.IsEqualTo(r1.Value, r2.Value)
	case riscv.Funct3Bne:
		taken = !arith.IsEqualTo(r1.Value, r2.Value)
	case riscv.Funct3Blt:
		taken = arith.IsLowerThan(r1.Value, r2.Value, false)
	case riscv.Funct3Bge:
		taken = !arith.IsLowerThan(r1.Value, r2.Value, false)
	case riscv.Funct3Bltu:
		taken = arith.IsLowerThan(r1.Value, r2.Value, true)
	case riscv.Funct3Bgeu:
		taken = !arith.IsLowerThan(r1.Value, r2.Value, true)
	default:
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	next := p.pcPlus4()
	if taken {
		next = trace.ProgramCounter{Address: arith.AddWithBitExtension(p.PC.Address, f.Imm, f.BitExtension), Micro: 0}
	}
	return stepResult{
		read1:      r1,
		read2:      r2,
		memWitness: trace.NoWrite(),
		nextPC:     next,
	}, nil
}

// --- jumps ---

func (p *Program) execJal(instr uint32) (stepResult, error) {
	f, err := decode.DecodeJType(instr, p.registerBase, riscv.OpJal)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	target := arith.AddWithBitExtension(p.PC.Address, f.Imm, f.BitExtension)
	write, memWitness := p.nopCollapse(f.RdAddr, trace.TraceWrite{Address: f.RdAddr, Value: p.PC.Address + riscv.InstructionSize}, trace.NewMemoryWitness(trace.AccessUnused, trace.AccessUnused, trace.AccessRegister))
	return stepResult{
		read1:      zeroRead(),
		read2:      zeroRead(),
		write:      write,
		memWitness: memWitness,
		nextPC:     trace.ProgramCounter{Address: target, Micro: 0},
	}, nil
}

func (p *Program) execJalr(instr uint32) (stepResult, error) {
	f, err := decode.DecodeIType(instr, p.registerBase, riscv.OpJalr, 0x0)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	r1, err := p.readRegister(f.Rs1Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	target := arith.AddWithBitExtension(r1.Value, f.Imm, f.BitExtension) &^ 1
	write, memWitness := p.nopCollapse(f.RdAddr, trace.TraceWrite{Address: f.RdAddr, Value: p.PC.Address + riscv.InstructionSize}, trace.RegisterUnusedRegister())
	return stepResult{
		read1:      r1,
		read2:      zeroRead(),
		write:      write,
		memWitness: memWitness,
		nextPC:     trace.ProgramCounter{Address: target, Micro: 0},
	}, nil
}

// --- loads / stores ---

// byteLaneShift returns the right-shift distance that brings the widthBytes
// field starting at addr's sub-word offset down into the low bits of the
// word. Byte offset 0 is the word's most significant byte, matching
// Section.LoadBytes' big-endian packing -- so a widthBytes=1 access at
// offset 0 needs the largest shift (24), and an access at the word's own
// width (no sub-word offset) needs none.
func byteLaneShift(addr uint32, widthBytes int) uint32 {
	offset := addr & 3
	return uint32(4-widthBytes) * 8 - offset*8
}

// alignedLoad reads the aligned word containing addr and extracts the
// byte/half/word at addr's sub-word offset, sign- or zero-extending per
// signed.
func alignedLoad(sec interface{ Read(uint32) (trace.TraceRead, error) }, addr uint32, widthBytes int, signed bool) (trace.TraceRead, uint32, error) {
	base := addr &^ 3
	rd, err := sec.Read(base)
	if err != nil {
		return trace.TraceRead{}, 0, err
	}
	offsetBits := byteLaneShift(addr, widthBytes)
	shifted := arith.ShiftWithTables(rd.Value, offsetBits, true, false)
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
	return rd, masked, nil
}

func (p *Program) execLoad(instr uint32) (stepResult, error) {
	funct3 := (instr >> 12) & 0x7
	f, err := decode.DecodeIType(instr, p.registerBase, riscv.OpLoad, funct3)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	r1, err := p.readRegister(f.Rs1Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	addr := arith.AddWithBitExtension(r1.Value, f.Imm, f.BitExtension)
	sec, err := p.SectionFor(addr &^ 3)
	if err != nil {
		return stepResult{}, errSectionNotFound(p.PC.Address)
	}
	if sec.IsRegisters {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	var width int
	var signed bool
	switch funct3 {
	case riscv.Funct3Lb:
		width, signed = 1, true
	case riscv.Funct3Lh:
		width, signed = 2, true
	case riscv.Funct3Lw:
		width, signed = 4, false
	case riscv.Funct3Lbu:
		width, signed = 1, false
	case riscv.Funct3Lhu:
		width, signed = 2, false
	default:
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	memRead, value, err := alignedLoad(sec, addr, width, signed)
	if err != nil {
		return stepResult{}, errSectionNotFound(p.PC.Address)
	}
	write, memWitness := p.nopCollapse(f.RdAddr, trace.TraceWrite{Address: f.RdAddr, Value: value}, trace.NewMemoryWitness(trace.AccessRegister, trace.AccessMemory, trace.AccessRegister))
	return stepResult{
		read1:      r1,
		read2:      trace.TraceRead{Address: addr &^ 3, Value: memRead.Value, LastStep: memRead.LastStep},
		write:      write,
		memWitness: memWitness,
		nextPC:     p.pcPlus4(),
	}, nil
}

func (p *Program) execStore(instr uint32) (stepResult, error) {
	funct3 := (instr >> 12) & 0x7
	f, err := decode.DecodeSType(instr, p.registerBase, riscv.OpStore, funct3)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	r1, err := p.readRegister(f.Rs1Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	r2, err := p.readRegister(f.Rs2Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	addr := arith.AddWithBitExtension(r1.Value, f.Imm, f.BitExtension)
	base := addr &^ 3
	sec, err := p.SectionFor(base)
	if err != nil {
		return stepResult{}, errSectionNotFound(p.PC.Address)
	}
	existing, err := sec.Read(base)
	if err != nil {
		return stepResult{}, errSectionNotFound(p.PC.Address)
	}
	var widthBytes int
	switch funct3 {
	case riscv.Funct3Sb:
		widthBytes = 1
	case riscv.Funct3Sh:
		widthBytes = 2
	case riscv.Funct3Sw:
		widthBytes = 4
	default:
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	widthBits := uint32(widthBytes) * 8
	offsetBits := byteLaneShift(addr, widthBytes)
	var newWord uint32
	if widthBits >= 32 {
		newWord = r2.Value
	} else {
		mask := uint32(1)<<widthBits - 1
		valueField := arith.LogicWithBitExtension(r2.Value, mask, arith.OpAnd)
		shiftedValue := arith.ShiftWithTables(valueField, offsetBits, false, false)
		clearMask := arith.LogicWithBitExtension(arith.ShiftWithTables(mask, offsetBits, false, false), 0xFFFF_FFFF, arith.OpXor)
		cleared := arith.LogicWithBitExtension(existing.Value, clearMask, arith.OpAnd)
		newWord = arith.LogicWithBitExtension(cleared, shiftedValue, arith.OpOr)
	}
	return stepResult{
		read1:      r1,
		read2:      r2,
		write:      trace.TraceWrite{Address: base, Value: newWord},
		memWitness: trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessMemory),
		nextPC:     p.pcPlus4(),
	}, nil
}

// --- system: ecall / ebreak / fence ---

// consoleByte reads the high byte of the memory-mapped debug console word,
// defaulting to 0 if that address isn't backed by any section -- the
// console is a side-channel for emulator-side stdout, never a committed
// read, so a missing mapping is not a fault.
func (p *Program) consoleByte() uint8 {
	sec, err := p.SectionFor(riscv.ConsoleAddress)
	if err != nil {
		return 0
	}
	word, err := sec.Read(riscv.ConsoleAddress)
	if err != nil {
		return 0
	}
	return uint8(word.Value >> 24)
}

func (p *Program) execSystem(instr uint32) (stepResult, error) {
	f, err := decode.DecodeSystem(instr, p.registerBase)
	if err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}

	if f.Imm == riscv.SystemEbreak {
		p.log.Debug("ebreak", zap.Uint32("pc", p.PC.Address))
		return stepResult{
			memWitness: trace.DefaultWitness(),
			nextPC:     p.pcPlus4(),
		}, nil
	}

	a7Addr := decode.RegisterAddress(p.registerBase, 17)
	a0Addr := decode.RegisterAddress(p.registerBase, 10)
	a7, err := p.readRegister(a7Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}
	a0, err := p.readRegister(a0Addr)
	if err != nil {
		return stepResult{}, errRegistersSectionFail(p.PC.Address)
	}

	switch a7.Value {
	case riscv.EcallHaltSyscall:
		return stepResult{
			read1:      a7,
			read2:      a0,
			write:      trace.TraceWrite{Address: a0Addr, Value: a0.Value},
			memWitness: trace.RegistersWitness(),
			nextPC:     p.PC,
			halt:       true,
			exitCode:   a0.Value,
		}, nil
	case riscv.EcallConsoleSyscall:
		p.log.Info("console", zap.Uint32("byte", uint32(p.consoleByte())))
		return stepResult{
			read1:      a7,
			read2:      a0,
			memWitness: trace.DefaultWitness(),
			nextPC:     p.pcPlus4(),
		}, nil
	default:
		p.log.Debug("unimplemented syscall treated as nop", zap.Uint32("syscall", a7.Value))
		return stepResult{
			read1:      a7,
			read2:      a0,
			memWitness: trace.DefaultWitness(),
			nextPC:     p.pcPlus4(),
		}, nil
	}
}

// execFence handles the MISC-MEM family (fence, fence.i): both are NOPs
// here, with no memory-ordering semantics to enforce in a single-threaded
// reference emulator.
func (p *Program) execFence(instr uint32) (stepResult, error) {
	if _, err := decode.DecodeFence(instr); err != nil {
		return stepResult{}, errInstructionNotImplemented(p.PC.Address, instr)
	}
	return stepResult{
		memWitness: trace.DefaultWitness(),
		nextPC:     p.pcPlus4(),
	}, nil
}
