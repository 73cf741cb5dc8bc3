// Package nibblevm implements the abstract nibble stack machine that the
// instruction verifiers are built on: a named, typed stack of 4-bit nibbles
// with a parallel alt-stack for carries/borrows, straight-line emission of
// primitive ops, and a conditional open_if/end_if with shape reconciliation.
//
// The machine is a purely-combinational simulator. Per the design notes
// carried over from the original bitcoin-script-targeting generator, an
// implementation is free to target a different evaluator as long as the
// external acceptance set stays identical -- this one runs the primitives
// directly in Go rather than compiling them to an external script byte-code,
// since there is no on-chain target in this repository.
package nibblevm

import "fmt"

// Var names a contiguous run of nibbles on the stack.
type Var struct {
	Name string
	Size int // nibble count
}

// Machine holds the stack, the alt-stack, and the named variable shape of
// the current stack -- the bookkeeping needed to address variables by name
// after a sequence of primitive ops.
type Machine struct {
	stack    []uint8
	alt      []uint8
	vars     []Var // shape of the Push-ed variables, base to top; GetFromTable's pushes are not recorded
	program  []string
}

// New creates an empty machine.
func New() *Machine {
	return &Machine{}
}

// Depth returns the number of live nibbles on the main stack.
func (m *Machine) Depth() int { return len(m.stack) }

// trace records a primitive op name for debugging/testing -- mirrors the
// teacher's habit of keeping a human-readable operation log alongside state.
func (m *Machine) trace(op string) { m.program = append(m.program, op) }

// Program returns the ops emitted so far, in order.
func (m *Machine) Program() []string { return append([]string(nil), m.program...) }

// table is a named constant table. Tables are never pushed onto the stack;
// GetFromTable looks one up by name among those added with RegisterTable.
type table struct {
	name string
	data []uint8
}

var registeredTables = map[string][]uint8{}

// RegisterTable makes a table available to GetFromTable under name.
func RegisterTable(name string, data []uint8) {
	registeredTables[name] = data
}

func init() {
	RegisterTable("modulo16", Modulo16[:])
	RegisterTable("quotient16", Quotient16[:])
	RegisterTable("and", AndTable[:])
	RegisterTable("or", OrTable[:])
	RegisterTable("xor", XorTable[:])
	RegisterTable("mul_mod", MulModTable[:])
	RegisterTable("mul_quot", MulQuotTable[:])
}

// GetFromTable implements get_value_from_table: looks up offset in the
// named table and pushes the result. The offset is passed as an argument;
// nothing is popped from the stack.
func (m *Machine) GetFromTable(name string, offset uint8) uint8 {
	t, ok := registeredTables[name]
	if !ok {
		panic(fmt.Sprintf("nibblevm: unknown table %q", name))
	}
	if int(offset) >= len(t) {
		panic(fmt.Sprintf("nibblevm: table %q offset %d out of range", name, offset))
	}
	v := t[offset]
	m.pushRaw(v)
	m.trace(fmt.Sprintf("table(%s,%d)", name, offset))
	return v
}

func (m *Machine) pushRaw(n uint8) {
	m.stack = append(m.stack, n&0xF)
}

func (m *Machine) popRaw() uint8 {
	if len(m.stack) == 0 {
		panic("nibblevm: pop from empty stack -- programming error")
	}
	n := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return n
}

// Push declares a new named variable of the given nibbles (MSB-first within
// the slice, top of stack is the last nibble pushed).
func (m *Machine) Push(name string, nibbles []uint8) {
	for _, n := range nibbles {
		m.pushRaw(n)
	}
	m.vars = append(m.vars, Var{Name: name, Size: len(nibbles)})
	m.trace(fmt.Sprintf("push(%s,%d)", name, len(nibbles)))
}

// Peek returns the nibbles of the named variable without consuming it. The
// variable must currently be addressable (on the stack, not yet dropped).
func (m *Machine) Peek(name string) []uint8 {
	off := 0
	for i := len(m.vars) - 1; i >= 0; i-- {
		v := m.vars[i]
		if v.Name == name {
			start := len(m.stack) - off - v.Size
			return append([]uint8(nil), m.stack[start:start+v.Size]...)
		}
		off += v.Size
	}
	panic(fmt.Sprintf("nibblevm: unknown variable %q", name))
}

// Drop removes the named variable from the shape bookkeeping. It must be the
// top-most variable on the stack (the machine never permits unwinding into
// the middle of the shape, mirroring the original "pick/roll to the top,
// then drop" discipline).
func (m *Machine) Drop(name string) {
	if len(m.vars) == 0 || m.vars[len(m.vars)-1].Name != name {
		panic(fmt.Sprintf("nibblevm: Drop(%q): not top of stack", name))
	}
	v := m.vars[len(m.vars)-1]
	m.vars = m.vars[:len(m.vars)-1]
	m.stack = m.stack[:len(m.stack)-v.Size]
	m.trace("drop(" + name + ")")
}

// ToAlt moves n nibbles from the top of the main stack to the alt-stack one
// at a time, which reverses their order: the former top of main ends up
// deepest of the moved nibbles on alt. FromAlt reverses them back.
func (m *Machine) ToAlt(n int) {
	for i := 0; i < n; i++ {
		m.alt = append(m.alt, m.popRaw())
	}
	m.trace(fmt.Sprintf("toalt(%d)", n))
}

// FromAlt moves n nibbles back from the alt-stack to the main stack.
func (m *Machine) FromAlt(n int) {
	for i := 0; i < n; i++ {
		m.pushRaw(m.alt[len(m.alt)-1])
		m.alt = m.alt[:len(m.alt)-1]
	}
	m.trace(fmt.Sprintf("fromalt(%d)", n))
}

// Shape reconciliation for OpenIf/EndIf.

// Branch is a closure run on a forked copy of the machine; it must return
// the same named-variable shape (names and sizes, in order) as its sibling
// branch. Mismatched shapes are a programming error, per the spec's "only
// decoder assertions may abort at runtime" design note -- everything else
// is caught here, eagerly, as a panic.
type Branch func(m *Machine)

// OpenIf runs trueBranch and falseBranch each against a snapshot of the
// current machine and returns both resulting machines, or panics if the two
// branches disagree on shape.
func (m *Machine) OpenIf(trueBranch, falseBranch Branch) (*Machine, *Machine) {
	mt := m.clone()
	mf := m.clone()
	trueBranch(mt)
	falseBranch(mf)
	shapeEqual := len(mt.vars) == len(mf.vars)
	if shapeEqual {
		for i := range mt.vars {
			if mt.vars[i] != mf.vars[i] {
				shapeEqual = false
				break
			}
		}
	}
	if !shapeEqual {
		panic("nibblevm: OpenIf branches produced different stack shapes")
	}
	return mt, mf
}

// EndIf picks one of the two branch machines by the runtime condition flag:
// trueMachine when cond is true, falseMachine otherwise. m itself is not
// changed.
func (m *Machine) EndIf(cond bool, trueMachine, falseMachine *Machine) *Machine {
	if cond {
		return trueMachine
	}
	return falseMachine
}

func (m *Machine) clone() *Machine {
	return &Machine{
		stack: append([]uint8(nil), m.stack...),
		alt:   append([]uint8(nil), m.alt...),
		vars:  append([]Var(nil), m.vars...),
	}
}
