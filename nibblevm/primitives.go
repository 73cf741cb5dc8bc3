package nibblevm

// Primitive ops over the raw nibble stack, independent of variable naming.
// Each declares (in its doc comment) the nibble-count delta it produces, the
// convention the Machine's variable-shape bookkeeping in machine.go assumes.

// Dup duplicates the top n nibbles (delta +n).
func (m *Machine) Dup(n int) {
	top := m.stack[len(m.stack)-n:]
	m.stack = append(m.stack, append([]uint8(nil), top...)...)
	m.trace("dup")
}

// Swap exchanges the top two n-nibble groups (delta 0).
func (m *Machine) Swap(n int) {
	l := len(m.stack)
	a := append([]uint8(nil), m.stack[l-2*n:l-n]...)
	b := append([]uint8(nil), m.stack[l-n:]...)
	copy(m.stack[l-2*n:l-n], b)
	copy(m.stack[l-n:], a)
	m.trace("swap")
}

// Rot rotates the top three n-nibble groups so the third-from-top becomes
// top (delta 0).
func (m *Machine) Rot(n int) {
	l := len(m.stack)
	a := append([]uint8(nil), m.stack[l-3*n:l-2*n]...)
	b := append([]uint8(nil), m.stack[l-2*n:l-n]...)
	c := append([]uint8(nil), m.stack[l-n:]...)
	copy(m.stack[l-3*n:l-3*n+len(b)], b)
	copy(m.stack[l-3*n+len(b):l-3*n+len(b)+len(c)], c)
	copy(m.stack[l-n:], a)
	m.trace("rot")
}

// Pick copies the n-nibble group starting `depth` groups of size n below the
// top to the top (delta +n).
func (m *Machine) Pick(depth, n int) {
	l := len(m.stack)
	start := l - (depth+1)*n
	grp := append([]uint8(nil), m.stack[start:start+n]...)
	m.stack = append(m.stack, grp...)
	m.trace("pick")
}

// Roll moves the n-nibble group starting `depth` groups below the top to
// the top, removing it from its original position (delta 0).
func (m *Machine) Roll(depth, n int) {
	l := len(m.stack)
	start := l - (depth+1)*n
	grp := append([]uint8(nil), m.stack[start:start+n]...)
	rest := append([]uint8(nil), m.stack[start+n:]...)
	m.stack = append(m.stack[:start], append(rest, grp...)...)
	m.trace("roll")
}

// Drop primitive (nameless): discards the top n raw nibbles. Named-variable
// Drop in machine.go also clears shape bookkeeping; this is the raw version
// used inside multi-step primitive implementations.
func (m *Machine) DropN(n int) {
	m.stack = m.stack[:len(m.stack)-n]
	m.trace("dropn")
}

// Not computes the nibble-wise boolean complement of the top n nibbles
// (delta 0; each nibble becomes 0xF-n, i.e. one's complement per nibble,
// matching the decoder's all-ones immediate fields).
func (m *Machine) Not(n int) {
	l := len(m.stack)
	for i := l - n; i < l; i++ {
		m.stack[i] = (^m.stack[i]) & 0xF
	}
	m.trace("not")
}

// Equal pops two n-nibble groups and pushes 1 if equal else 0 (delta
// 2n -> 1).
func (m *Machine) Equal(n int) uint8 {
	b := m.popN(n)
	a := m.popN(n)
	result := uint8(1)
	for i := range a {
		if a[i] != b[i] {
			result = 0
			break
		}
	}
	m.pushRaw(result)
	m.trace("equal")
	return result
}

func (m *Machine) popN(n int) []uint8 {
	l := len(m.stack)
	v := append([]uint8(nil), m.stack[l-n:]...)
	m.stack = m.stack[:l-n]
	return v
}
