package bisect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InputDefinition describes one input section's shape: how many bytes it
// holds and which side of the dispute is responsible for supplying them.
type InputDefinition struct {
	Size  uint64 `yaml:"size"`
	Owner string `yaml:"owner"`
}

// ProgramDefinition is the YAML-configured description of a single
// verifiable program: which binary image to load, the n-ary bisection
// geometry to run it under, and its input section's shape. Image names the
// program's section-image file without this package parsing it itself --
// ELF loading is out of scope here, same as the rest of this module; a
// caller resolves Image into the []emulator.SectionImage a Program actually
// needs however it sees fit.
type ProgramDefinition struct {
	ConfigPath       string            `yaml:"-"`
	Image            string            `yaml:"image"`
	NarySearch       uint8             `yaml:"nary_search"`
	MaxSteps         uint64            `yaml:"max_steps"`
	InputSectionName string            `yaml:"input_section_name"`
	Inputs           []InputDefinition `yaml:"inputs"`
}

// LoadProgramDefinition reads and parses a ProgramDefinition from path,
// recording path itself as ConfigPath so a caller resolving Image can find
// it relative to the config file, the same convention the reference
// implementation's from_config uses.
func LoadProgramDefinition(path string) (*ProgramDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bisect: reading program definition %q: %w", path, err)
	}
	var def ProgramDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("bisect: parsing program definition %q: %w", path, err)
	}
	def.ConfigPath = path
	return &def, nil
}

// NaryDef derives the bisection round geometry this program definition
// configures.
func (d *ProgramDefinition) NaryDef() NArySearchDefinition {
	return NewNArySearchDefinition(d.MaxSteps, d.NarySearch)
}
