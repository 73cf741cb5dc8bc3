package nibblevm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTablesInitialized(t *testing.T) {
	assert.Equal(t, uint8(5), Modulo16[21])
	assert.Equal(t, uint8(1), Quotient16[21])
	assert.Equal(t, uint8(0xA), ShiftLeft[1][5]) // 5<<1 = 10
	assert.Equal(t, uint8(2), ShiftRight[1][5])  // 5>>1 = 2
	assert.Equal(t, uint8(0xA), AndTable[0xB*16+0xE])
	assert.Equal(t, uint8(0xF), OrTable[0xB*16+0xE])
	assert.Equal(t, uint8(5), XorTable[0xB*16+0xE])
}

func TestHalfLookupSymmetric(t *testing.T) {
	i1 := sortedOffset(3, 9)
	i2 := sortedOffset(9, 3)
	assert.Equal(t, i1, i2)
	assert.Equal(t, [2]uint8{3, 9}, HalfLookup[i1])
}

func TestPushPeekDrop(t *testing.T) {
	m := New()
	m.Push("a", []uint8{1, 2, 3, 4})
	assert.Equal(t, []uint8{1, 2, 3, 4}, m.Peek("a"))
	m.Drop("a")
	assert.Equal(t, 0, m.Depth())
}

func TestToAltFromAlt(t *testing.T) {
	m := New()
	m.Push("a", []uint8{1, 2})
	m.ToAlt(2)
	assert.Equal(t, 0, m.Depth())
	m.FromAlt(2)
	assert.Equal(t, []uint8{1, 2}, m.Peek("a"))
}

func TestDupSwapRot(t *testing.T) {
	m := New()
	m.pushRaw(1)
	m.pushRaw(2)
	m.Dup(1)
	assert.Equal(t, []uint8{1, 2, 2}, m.stack)

	m2 := New()
	m2.pushRaw(1)
	m2.pushRaw(2)
	m2.Swap(1)
	assert.Equal(t, []uint8{2, 1}, m2.stack)

	m3 := New()
	m3.pushRaw(1)
	m3.pushRaw(2)
	m3.pushRaw(3)
	m3.Rot(1)
	assert.Equal(t, []uint8{2, 3, 1}, m3.stack)
}

func TestEqual(t *testing.T) {
	m := New()
	m.Push("a", []uint8{1, 2, 3})
	m.Push("b", []uint8{1, 2, 3})
	m.vars = m.vars[:0] // raw test, bypass named shape
	got := m.Equal(3)
	assert.Equal(t, uint8(1), got)
}

func TestOpenIfShapeMismatchPanics(t *testing.T) {
	m := New()
	assert.Panics(t, func() {
		m.OpenIf(func(mm *Machine) {
			mm.Push("out", []uint8{1})
		}, func(mm *Machine) {
			mm.Push("out", []uint8{1, 2})
		})
	})
}

func TestOpenIfEndIf(t *testing.T) {
	m := New()
	mt, mf := m.OpenIf(func(mm *Machine) {
		mm.Push("out", []uint8{9})
	}, func(mm *Machine) {
		mm.Push("out", []uint8{0})
	})
	result := m.EndIf(true, mt, mf)
	assert.Equal(t, []uint8{9}, result.Peek("out"))
}

func TestGetFromTable(t *testing.T) {
	m := New()
	v := m.GetFromTable("modulo16", 21)
	assert.Equal(t, uint8(5), v)
}
