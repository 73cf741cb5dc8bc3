package traceview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"rv32fp/trace"
)

func TestFormatFetchIncludesPCAndOpcode(t *testing.T) {
	step := trace.TraceRWStep{
		ReadPC: trace.TraceReadPC{PC: trace.ProgramCounter{Address: 0x1000, Micro: 1}, Opcode: 0xDEADBEEF},
	}
	out := formatFetch(step)
	assert.Contains(t, out, "00001000.1")
	assert.Contains(t, out, "deadbeef")
}

func TestFormatReadsIncludesBothWitnesses(t *testing.T) {
	step := trace.TraceRWStep{
		Read1: trace.TraceRead{Address: 0x8004, Value: 7, LastStep: 3},
		Read2: trace.TraceRead{Address: 0x8008, Value: 9, LastStep: trace.NeverWritten},
	}
	out := formatReads(step)
	assert.Contains(t, out, "00008004")
	assert.Contains(t, out, "00008008")
}

func TestFormatWriteShowsNoHintAsDash(t *testing.T) {
	step := trace.TraceRWStep{
		Step:       trace.TraceStep{Write: trace.TraceWrite{Address: 0x2000, Value: 1}, WritePC: trace.ProgramCounter{Address: 0x1004}},
		MemWitness: trace.NewMemoryWitness(trace.AccessRegister, trace.AccessRegister, trace.AccessMemory),
	}
	out := formatWrite(step)
	assert.Contains(t, out, "00002000")
	assert.Contains(t, out, "hint   -")
}

func TestFormatWriteShowsWitnessWhenPresent(t *testing.T) {
	w := uint32(0x42)
	step := trace.TraceRWStep{Witness: &w}
	out := formatWrite(step)
	assert.Contains(t, out, "00000042")
}

func TestFormatHashRowHighlightsCursor(t *testing.T) {
	row := formatHashRow(2, []byte{0xAB, 0xCD}, 2)
	other := formatHashRow(3, []byte{0xAB, 0xCD}, 2)
	assert.Contains(t, strings.ToLower(row), "abcd")
	assert.NotEqual(t, row, other)
}

func TestViewStepRendersWithoutPanicking(t *testing.T) {
	m := NewStepBrowser([]trace.TraceRWStep{{StepNumber: 0}, {StepNumber: 1}})
	out := m.View()
	assert.Contains(t, out, "step 0 / 1")
}

func TestViewHashesRendersWithoutPanicking(t *testing.T) {
	m := NewHashBrowser([][]byte{{1, 2}, {3, 4}})
	out := m.View()
	assert.Contains(t, out, "hash 0 / 1")
}

func TestViewEmptyModel(t *testing.T) {
	m := NewStepBrowser(nil)
	assert.Equal(t, "(empty)\n", m.View())
}
