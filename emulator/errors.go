package emulator

import "fmt"

// ExecError is a synchronous emulator fault -- distinct from a verifier
// predicate's pass/fail outcome, which never errors.
type ExecError struct {
	Kind    string
	Address uint32
	Detail  string
}

func (e *ExecError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("emulator: %s at %#08x: %s", e.Kind, e.Address, e.Detail)
	}
	return fmt.Sprintf("emulator: %s at %#08x", e.Kind, e.Address)
}

func errInstructionNotImplemented(addr uint32, opcode uint32) error {
	return &ExecError{Kind: "InstructionNotImplemented", Address: addr, Detail: fmt.Sprintf("opcode %#08x", opcode)}
}

func errSectionNotFound(addr uint32) error {
	return &ExecError{Kind: "SectionNotFound", Address: addr}
}

func errWriteToReadOnlySection(addr uint32) error {
	return &ExecError{Kind: "WriteToReadOnlySection", Address: addr}
}

func errWriteToCodeSection(addr uint32) error {
	return &ExecError{Kind: "WriteToCodeSection", Address: addr}
}

func errStackOverflow(addr uint32) error {
	return &ExecError{Kind: "StackOverflow", Address: addr}
}

func errRegistersSectionFail(addr uint32) error {
	return &ExecError{Kind: "RegistersSectionFail", Address: addr}
}

func errDivisionByZero(addr uint32) error {
	return &ExecError{Kind: "DivisionByZero", Address: addr}
}
