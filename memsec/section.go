// Package memsec implements the section-based memory model: aligned,
// permissioned byte ranges with per-word causal tracking, and the register
// file as a specialized, always-present section.
package memsec

import (
	"fmt"

	"rv32fp/trace"
)

// wordAlign is the alignment (in bytes) every section start/size and every
// access must satisfy.
const wordAlign = 4

// Section is a contiguous, 4-byte-aligned byte range [Start, Start+Size)
// with access permissions and a 32-bit word array plus parallel per-word
// last-write-step tracking.
type Section struct {
	Name            string
	Start           uint32
	Size            uint32
	IsCode          bool
	IsWritable      bool
	IsInitialized   bool
	IsRegisters     bool
	words           []uint32
	lastStep        []uint64
}

// NewSection allocates a zero-filled section of the given size (bytes),
// which must be word-aligned.
func NewSection(name string, start, size uint32, isCode, isWritable, isInitialized, isRegisters bool) (*Section, error) {
	if start%wordAlign != 0 || size%wordAlign != 0 {
		return nil, fmt.Errorf("memsec: section %q start/size must be 4-byte aligned", name)
	}
	n := size / wordAlign
	s := &Section{
		Name: name, Start: start, Size: size,
		IsCode: isCode, IsWritable: isWritable, IsInitialized: isInitialized, IsRegisters: isRegisters,
		words:    make([]uint32, n),
		lastStep: make([]uint64, n),
	}
	for i := range s.lastStep {
		s.lastStep[i] = trace.NeverWritten
	}
	return s, nil
}

// Contains reports whether addr falls within this section's range.
func (s *Section) Contains(addr uint32) bool {
	return addr >= s.Start && addr < s.Start+s.Size
}

func (s *Section) wordIndex(addr uint32) (int, error) {
	if addr%wordAlign != 0 {
		return 0, fmt.Errorf("memsec: unaligned access at %#08x", addr)
	}
	if !s.Contains(addr) {
		return 0, fmt.Errorf("memsec: address %#08x outside section %q", addr, s.Name)
	}
	return int((addr - s.Start) / wordAlign), nil
}

// Read returns a TraceRead witness for the word at addr.
func (s *Section) Read(addr uint32) (trace.TraceRead, error) {
	i, err := s.wordIndex(addr)
	if err != nil {
		return trace.TraceRead{}, err
	}
	return trace.TraceRead{Address: addr, Value: s.words[i], LastStep: s.lastStep[i]}, nil
}

// Write sets the word at addr to value, recording step as its last-write
// step. Fails if the section is not writable.
func (s *Section) Write(addr uint32, value uint32, step uint64) error {
	if !s.IsWritable {
		return fmt.Errorf("memsec: write to read-only section %q at %#08x", s.Name, addr)
	}
	if s.IsCode {
		return fmt.Errorf("memsec: write to code section %q at %#08x", s.Name, addr)
	}
	i, err := s.wordIndex(addr)
	if err != nil {
		return err
	}
	s.words[i] = value
	s.lastStep[i] = step
	return nil
}

// LoadBytes seeds the section's contents from a big-endian-packed byte
// slice starting at the section's base (used for program images and
// execute_program's input-section seeding).
func (s *Section) LoadBytes(data []byte) error {
	if uint32(len(data)) > s.Size {
		return fmt.Errorf("memsec: data (%d bytes) exceeds section %q size (%d bytes)", len(data), s.Name, s.Size)
	}
	for i := 0; i < len(s.words); i++ {
		off := i * wordAlign
		var w uint32
		for b := 0; b < wordAlign; b++ {
			if off+b < len(data) {
				w = (w << 8) | uint32(data[off+b])
			} else {
				w = w << 8
			}
		}
		s.words[i] = w
	}
	return nil
}

// SectionDefinition is the immutable boundary descriptor used by the
// AddressesSections fault-kind challenge: a named Start..End range. It
// carries no permission flags; the fault records a section's permission
// class by which of its fields holds it.
type SectionDefinition struct {
	Name  string
	Start uint32
	End   uint32
}

func (s *Section) Definition() SectionDefinition {
	return SectionDefinition{Name: s.Name, Start: s.Start, End: s.Start + s.Size}
}

// SectionSnapshot is the exported, gob-encodable form of a Section used by
// checkpoint persistence.
type SectionSnapshot struct {
	Name                                          string
	Start, Size                                   uint32
	IsCode, IsWritable, IsInitialized, IsRegisters bool
	Words                                          []uint32
	LastStep                                       []uint64
}

// Snapshot captures the section's full state for checkpointing.
func (s *Section) Snapshot() SectionSnapshot {
	words := make([]uint32, len(s.words))
	copy(words, s.words)
	lastStep := make([]uint64, len(s.lastStep))
	copy(lastStep, s.lastStep)
	return SectionSnapshot{
		Name: s.Name, Start: s.Start, Size: s.Size,
		IsCode: s.IsCode, IsWritable: s.IsWritable, IsInitialized: s.IsInitialized, IsRegisters: s.IsRegisters,
		Words: words, LastStep: lastStep,
	}
}

// RestoreSection rebuilds a Section from a snapshot taken by Snapshot.
func RestoreSection(snap SectionSnapshot) *Section {
	s := &Section{
		Name: snap.Name, Start: snap.Start, Size: snap.Size,
		IsCode: snap.IsCode, IsWritable: snap.IsWritable, IsInitialized: snap.IsInitialized, IsRegisters: snap.IsRegisters,
		words:    make([]uint32, len(snap.Words)),
		lastStep: make([]uint64, len(snap.LastStep)),
	}
	copy(s.words, snap.Words)
	copy(s.lastStep, snap.LastStep)
	return s
}
