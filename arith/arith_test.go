package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddWithBitExtension(t *testing.T) {
	assert.Equal(t, uint32(7), AddWithBitExtension(3, 4, 0))
	assert.Equal(t, uint32(0), AddWithBitExtension(0xFFFFFFFF, 1, 0))
	// x2 + (-0x60) from the worked example in the spec.
	assert.Equal(t, uint32(0xDFFF_FFA0), AddWithBitExtension(0xE000_0000, 0xFFFF_FFA0, 0xF))
}

func TestAddWithBitExtensionRejectsBadExtension(t *testing.T) {
	assert.Panics(t, func() { AddWithBitExtension(1, 2, 0x3) })
}

func TestSub(t *testing.T) {
	assert.Equal(t, uint32(1), Sub(3, 2))
	assert.Equal(t, uint32(0xFFFFFFFF), Sub(0, 1))
}

func TestLogicWithBitExtension(t *testing.T) {
	assert.Equal(t, uint32(0x000000FF)&0x0000_00F0, LogicWithBitExtension(0x000000FF, 0x000000F0, OpAnd))
	assert.Equal(t, uint32(0xFAFAFAFA), LogicWithBitExtension(0xAAAAAAAA, 0x5A5A5A5A, OpOr))
	assert.Equal(t, uint32(0)^0, LogicWithBitExtension(0x12345678, 0x12345678, OpXor))
}

func TestShiftLogicalLeft(t *testing.T) {
	assert.Equal(t, uint32(0x24), ShiftWithTables(0x12, 1, false, false))
	assert.Equal(t, uint32(8), ShiftWithTables(1, 3, false, false))
}

func TestShiftLogicalRight(t *testing.T) {
	assert.Equal(t, uint32(0x09), ShiftWithTables(0x12, 1, true, false))
	assert.Equal(t, uint32(0x7FFFFFFF), ShiftWithTables(0xFFFFFFFF, 1, true, false))
}

func TestShiftArithmeticRight(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), ShiftWithTables(0xFFFFFFFF, 1, true, true))
	assert.Equal(t, uint32(0xC0000000), ShiftWithTables(0x80000000, 1, true, true))
	assert.Equal(t, uint32(0x40000000), ShiftWithTables(0x80000000, 1, true, false))
}

func TestShiftByWholeNibbles(t *testing.T) {
	assert.Equal(t, uint32(0x00001234), ShiftWithTables(0x12340000, 16, true, false))
	assert.Equal(t, uint32(0x12340000), ShiftWithTables(0x00001234, 16, false, false))
}

func TestIsLowerThan(t *testing.T) {
	assert.True(t, IsLowerThan(1, 2, true))
	assert.False(t, IsLowerThan(2, 1, true))
	assert.True(t, IsLowerThan(0xFFFFFFFF, 1, false)) // -1 < 1 signed
	assert.False(t, IsLowerThan(0xFFFFFFFF, 1, true))  // huge unsigned
}

func TestIsEqualTo(t *testing.T) {
	assert.True(t, IsEqualTo(5, 5))
	assert.False(t, IsEqualTo(5, 6))
}

func TestBitExtend(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), BitExtend(0xFFF, 3))
	assert.Equal(t, uint32(0x0000007F), BitExtend(0x07F, 3))
}

func TestTwosComplement(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), TwosComplement(1))
	assert.Equal(t, uint32(1), TwosComplement(0xFFFFFFFF))
	assert.Equal(t, uint32(0), TwosComplement(0))
}

func TestTwosComplementConditional(t *testing.T) {
	assert.Equal(t, uint32(5), TwosComplementConditional(5, false))
	assert.Equal(t, TwosComplement(5), TwosComplementConditional(5, true))
}

func TestMultiplyBasic(t *testing.T) {
	low, high := Multiply(2, 3)
	assert.Equal(t, uint32(6), low)
	assert.Equal(t, uint32(0), high)
}

func TestMultiplyOverflowsIntoHigh(t *testing.T) {
	low, high := Multiply(0xFFFFFFFF, 2)
	assert.Equal(t, uint32(0xFFFFFFFE), low)
	assert.Equal(t, uint32(1), high)
}

func TestDivCheck(t *testing.T) {
	assert.True(t, DivCheck(10, 3, 3, 1))
	assert.False(t, DivCheck(10, 3, 3, 2))
	assert.False(t, DivCheck(10, 3, 3, 3)) // remainder must be < divisor
}

func TestLeftRotate(t *testing.T) {
	assert.Equal(t, uint32(0x000000FF), LeftRotate(0xFF000000, 1))
	assert.Equal(t, uint32(0xFF000000), LeftRotate(0xFF000000, 0))
}

func TestDivuEdgeCases(t *testing.T) {
	q, ok := Divu(10, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xFFFFFFFF), q)

	q, ok = Divu(10, 3, 3)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), q)
}

func TestRemuEdgeCases(t *testing.T) {
	r, ok := Remu(10, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(10), r)

	r, ok = Remu(10, 3, 1)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), r)
}

func TestDivSignedEdgeCases(t *testing.T) {
	q, ok := Div(10, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xFFFFFFFF), q)

	q, ok = Div(0x80000000, 0xFFFFFFFF, 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x80000000), q)

	q, ok = Div(10, 3, 3)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), q)

	// -10 / 3 = -3 remainder -1
	q, ok = Div(uint32(int32(-10)), 3, uint32(int32(-3)))
	assert.True(t, ok)
	assert.Equal(t, uint32(int32(-3)), q)
}

func TestRemSignedEdgeCases(t *testing.T) {
	r, ok := Rem(10, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(10), r)

	r, ok = Rem(0x80000000, 0xFFFFFFFF, 0)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), r)

	r, ok = Rem(10, 3, 1)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), r)
}

func TestWitnessValidate(t *testing.T) {
	assert.True(t, Witness{Nibbles: []uint8{0, 1, 0xF}}.Validate())
	assert.False(t, Witness{Nibbles: []uint8{0, 0x10}}.Validate())
}
