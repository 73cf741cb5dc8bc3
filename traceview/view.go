package traceview

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"rv32fp/trace"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cursorStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
)

// formatFetch renders a step's instruction-fetch witness.
func formatFetch(step trace.TraceRWStep) string {
	return fmt.Sprintf("pc     %s\nopcode %08x", step.ReadPC.PC, step.ReadPC.Opcode)
}

// formatReads renders a step's two read witnesses.
func formatReads(step trace.TraceRWStep) string {
	return fmt.Sprintf(
		"read1  %08x = %08x (last %d)\nread2  %08x = %08x (last %d)",
		step.Read1.Address, step.Read1.Value, step.Read1.LastStep,
		step.Read2.Address, step.Read2.Value, step.Read2.LastStep,
	)
}

// formatWrite renders a step's write half and the memory-access shape byte.
func formatWrite(step trace.TraceRWStep) string {
	witness := "-"
	if step.Witness != nil {
		witness = fmt.Sprintf("%08x", *step.Witness)
	}
	return fmt.Sprintf(
		"write  %08x = %08x\nnextpc %s\nshape  %02x\nhint   %s",
		step.Step.Write.Address, step.Step.Write.Value,
		step.Step.WritePC, step.MemWitness.Byte(), witness,
	)
}

func (m model) viewStep() string {
	step := m.steps[m.cursor]
	header := headerStyle.Render(fmt.Sprintf("step %d / %d", m.cursor, len(m.steps)-1))
	panels := lipgloss.JoinHorizontal(
		lipgloss.Top,
		panelStyle.Render(formatFetch(step)),
		panelStyle.Render(formatReads(step)),
		panelStyle.Render(formatWrite(step)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, header, panels, "", spew.Sdump(step))
}

// formatHashRow renders one hash-list entry, in reverse video if it is at
// cursor -- a restyling of the bracket highlighting the teacher's page table
// used for the current program counter.
func formatHashRow(index int, h []byte, cursor int) string {
	encoded := hex.EncodeToString(h)
	row := fmt.Sprintf("%3d | %s", index, encoded)
	if index == cursor {
		return cursorStyle.Render(row)
	}
	return row
}

func (m model) viewHashes() string {
	header := headerStyle.Render(fmt.Sprintf("hash %d / %d", m.cursor, len(m.hashes)-1))
	rows := make([]string, len(m.hashes))
	for i, h := range m.hashes {
		rows[i] = formatHashRow(i, h, m.cursor)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(rows, "\n"))
}

// View renders the browser's current entry; it is called again after every
// Update.
func (m model) View() string {
	if len(m.steps) > 0 {
		return m.viewStep()
	}
	if len(m.hashes) > 0 {
		return m.viewHashes()
	}
	return "(empty)\n"
}
