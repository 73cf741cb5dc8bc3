// Package traceview is a read-only bubbletea program for stepping through a
// completed execution trace or a bisection round's hash list, the same
// model/Init/Update/View shape the teacher's 6502 debugger used, restyled
// with lipgloss panels instead of a raw hex page table.
package traceview

import (
	tea "github.com/charmbracelet/bubbletea"

	"rv32fp/bisect"
	"rv32fp/trace"
)

// model is the bubbletea model: either a TraceRWStep list or a bisection
// round's hash list is populated, never both, and View branches on which.
type model struct {
	steps  []trace.TraceRWStep
	hashes bisect.ExecutionHashes

	cursor int
}

// NewStepBrowser builds a model that steps through steps one TraceRWStep at
// a time.
func NewStepBrowser(steps []trace.TraceRWStep) model {
	return model{steps: steps}
}

// NewHashBrowser builds a model that steps through a single bisection
// round's hash list, one entry at a time.
func NewHashBrowser(hashes bisect.ExecutionHashes) model {
	return model{hashes: hashes}
}

func (m model) length() int {
	if len(m.steps) > 0 {
		return len(m.steps)
	}
	return len(m.hashes)
}

// Init is the first function bubbletea calls; there is nothing to kick off,
// the data is already in hand.
func (m model) Init() tea.Cmd { return nil }

// Update is called when a message is received. j/k (or the arrow keys, or
// space) move the cursor one entry, g and G jump to the first and last
// entry, and q quits; there is no other state to mutate, the trace itself
// is fixed.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down", " ":
		if m.cursor < m.length()-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "g":
		m.cursor = 0
	case "G":
		m.cursor = m.length() - 1
	}
	return m, nil
}

// Run starts the interactive browser and blocks until the user quits.
func Run(m model) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
