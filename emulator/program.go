// Package emulator implements the reference RV32IM emulator: the
// fetch-decode-execute loop that produces exactly one TraceRWStep per call
// to Step, the rolling Blake3 hash chain, program-image loading, and
// execute_program's run-to-completion driver with checkpointing and
// fault-injection hooks for negative property tests of the bisection
// protocol.
package emulator

import (
	"fmt"

	"go.uber.org/zap"

	"rv32fp/memsec"
	"rv32fp/trace"
)

// Config carries the run-time knobs spec.md leaves open.
type Config struct {
	// FailOnDivZero makes a divide-by-zero a synchronous emulator error
	// instead of following the RV32M-defined all-ones/dividend result.
	// Defaults to false (RV32M semantics).
	FailOnDivZero bool

	// CheckpointEvery is the step interval at which Program state is
	// persisted. Zero selects the spec default of 1,000,000.
	CheckpointEvery uint64

	// StackLimit is the lowest address a memory write may target, in any
	// section; a write below it is a StackOverflow. Zero disables the check.
	StackLimit uint32
}

const defaultCheckpointEvery = 1_000_000

func (c Config) checkpointEvery() uint64 {
	if c.CheckpointEvery == 0 {
		return defaultCheckpointEvery
	}
	return c.CheckpointEvery
}

// SectionImage describes one section of a program image to be loaded.
type SectionImage struct {
	Name          string
	Start         uint32
	Size          uint32
	IsCode        bool
	IsWritable    bool
	IsInitialized bool
	Data          []byte
}

// Program is the full emulator state: its memory sections, register file,
// program counter, step count, rolling hash, and halt/exit status.
type Program struct {
	Sections     []*memsec.Section
	Registers    *memsec.RegisterFile
	PC           trace.ProgramCounter
	StepNumber   uint64
	Hash         [20]byte
	Halted       bool
	ExitCode     uint32
	Config       Config
	Fail         *FailConfiguration
	registerBase uint32

	log *zap.Logger
}

// NewProgram builds a Program from a register base and a set of section
// images, seeding the entry PC at entryPoint.
func NewProgram(registerBase uint32, entryPoint uint32, images []SectionImage, cfg Config, logger *zap.Logger) (*Program, error) {
	rf, err := memsec.NewRegisterFile(registerBase)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Program{
		Registers:    rf,
		PC:           trace.ProgramCounter{Address: entryPoint, Micro: 0},
		Hash:         trace.InitialHash(),
		Config:       cfg,
		registerBase: registerBase,
		log:          logger,
	}
	for _, img := range images {
		sec, err := memsec.NewSection(img.Name, img.Start, img.Size, img.IsCode, img.IsWritable, img.IsInitialized, false)
		if err != nil {
			return nil, fmt.Errorf("emulator: loading section %q: %w", img.Name, err)
		}
		if len(img.Data) > 0 {
			if err := sec.LoadBytes(img.Data); err != nil {
				return nil, fmt.Errorf("emulator: loading section %q data: %w", img.Name, err)
			}
		}
		p.Sections = append(p.Sections, sec)
	}
	p.log.Debug("program loaded", zap.Uint32("entry", entryPoint), zap.Int("sections", len(p.Sections)))
	return p, nil
}

// SectionFor returns the section containing addr, or an error if none does.
func (p *Program) SectionFor(addr uint32) (*memsec.Section, error) {
	for _, s := range p.Sections {
		if s.Contains(addr) {
			return s, nil
		}
	}
	return nil, errSectionNotFound(addr)
}

// SeedInput loads inputBytes (big-endian 4-byte packed) into the named
// input section, as execute_program does before its run loop.
func (p *Program) SeedInput(sectionName string, inputBytes []byte) error {
	for _, s := range p.Sections {
		if s.Name == sectionName {
			return s.LoadBytes(inputBytes)
		}
	}
	return fmt.Errorf("emulator: input section %q not found", sectionName)
}
