package bisect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNArySearchDefinitions(t *testing.T) {
	d := NewNArySearchDefinition(500_000_000, 8)
	assert.EqualValues(t, 9, d.FullRounds)
	assert.EqualValues(t, 4, d.NaryLastRound)
	assert.EqualValues(t, 3, d.BitsNary())
	assert.EqualValues(t, 2, d.BitsLastRound())

	d = NewNArySearchDefinition(64, 8)
	assert.EqualValues(t, 2, d.FullRounds)
	assert.EqualValues(t, 0, d.NaryLastRound)
	assert.EqualValues(t, 3, d.BitsNary())
	assert.EqualValues(t, 0, d.BitsLastRound())

	d = NewNArySearchDefinition(128, 8)
	assert.EqualValues(t, 2, d.FullRounds)
	assert.EqualValues(t, 2, d.NaryLastRound)
	assert.EqualValues(t, 3, d.BitsNary())
	assert.EqualValues(t, 1, d.BitsLastRound())

	d = NewNArySearchDefinition(256, 8)
	assert.EqualValues(t, 2, d.FullRounds)
	assert.EqualValues(t, 4, d.NaryLastRound)
}

func TestRequiredSteps(t *testing.T) {
	d := NewNArySearchDefinition(64, 8)
	assert.Equal(t, []uint64{8, 16, 24, 32, 40, 48, 56}, d.RequiredSteps(1, 0))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7}, d.RequiredSteps(2, 0))
	assert.Equal(t, []uint64{57, 58, 59, 60, 61, 62, 63}, d.RequiredSteps(2, 56))

	d = NewNArySearchDefinition(128, 8)
	assert.Equal(t, []uint64{16, 32, 48, 64, 80, 96, 112}, d.RequiredSteps(1, 0))
	assert.Equal(t, []uint64{114, 116, 118, 120, 122, 124, 126}, d.RequiredSteps(2, 112))
	assert.Equal(t, []uint64{125}, d.RequiredSteps(3, 124))

	d = NewNArySearchDefinition(200, 8)
	assert.Equal(t, []uint64{32, 64, 96, 128, 160, 192, 224}, d.RequiredSteps(1, 0))
	assert.Equal(t, []uint64{36, 40, 44, 48, 52, 56, 60}, d.RequiredSteps(2, 32))
	assert.Equal(t, []uint64{41, 42, 43}, d.RequiredSteps(3, 40))
}

func TestStepBitsForRound(t *testing.T) {
	d := NewNArySearchDefinition(64, 8)
	assert.EqualValues(t, 0, d.StepBitsForRound(1, 0))
	assert.EqualValues(t, 1, d.StepBitsForRound(1, 8))
	assert.EqualValues(t, 1, d.StepBitsForRound(1, 9))
	assert.EqualValues(t, 7, d.StepBitsForRound(1, 58))

	assert.EqualValues(t, 0, d.StepBitsForRound(2, 0))
	assert.EqualValues(t, 0, d.StepBitsForRound(2, 8))
	assert.EqualValues(t, 1, d.StepBitsForRound(2, 9))
	assert.EqualValues(t, 2, d.StepBitsForRound(2, 58))

	d = NewNArySearchDefinition(128, 8)
	assert.EqualValues(t, 4, d.StepBitsForRound(1, 75))
	assert.EqualValues(t, 5, d.StepBitsForRound(2, 75))
	assert.EqualValues(t, 1, d.StepBitsForRound(3, 75))
}

func TestStepFromBaseAndBits(t *testing.T) {
	d := NewNArySearchDefinition(64, 8)
	assert.EqualValues(t, 56, d.StepFromBaseAndBits(1, 0, 7))
	assert.EqualValues(t, 0, d.StepFromBaseAndBits(1, 0, 0))
	assert.EqualValues(t, 0, d.StepFromBaseAndBits(2, 0, 0))
	assert.EqualValues(t, 57, d.StepFromBaseAndBits(2, 1, 56))

	d = NewNArySearchDefinition(128, 8)
	assert.EqualValues(t, 80, d.StepFromBaseAndBits(1, 0, 5))
	assert.EqualValues(t, 90, d.StepFromBaseAndBits(2, 80, 5))
	assert.EqualValues(t, 90, d.StepFromBaseAndBits(3, 90, 0))
	assert.EqualValues(t, 91, d.StepFromBaseAndBits(3, 90, 1))
}

// testVector builds a hash list of size entries, each entry's sole byte
// equal to its index, except at diffIndex (if set) where it is bumped by
// one -- enough to make ChooseSegment's first-mismatch scan land exactly
// there.
func testVector(size int, diffIndex int) ExecutionHashes {
	v := make(ExecutionHashes, size)
	for i := 0; i < size; i++ {
		b := byte(i)
		if i == diffIndex {
			b = byte(i + 1)
		}
		v[i] = []byte{b}
	}
	return v
}

func testSelection(t *testing.T, nary uint8, max, baseStep, selectedStep uint64, round uint8, diffIndex int, expBits uint32, expStep, expChoice uint64) {
	t.Helper()
	def := NewNArySearchDefinition(max, nary)
	hashes := int(def.HashesForRound(round))
	proverHashes := testVector(hashes, -1)
	myHashes := testVector(hashes, diffIndex)

	bits, base, choice := ChooseSegment(def, baseStep, selectedStep, round, proverHashes, myHashes)
	assert.Equal(t, expBits, bits)
	assert.Equal(t, expStep, base)
	assert.Equal(t, expChoice, choice)
}

func TestChooseSegment(t *testing.T) {
	// no inferior limit selected, all hashes match -> selects the max-1|max transition
	testSelection(t, 8, 64, 0, 63, 1, -1, 7, 56, 63)
	testSelection(t, 8, 64, 56, 63, 2, -1, 7, 63, 63)

	testSelection(t, 8, 128, 0, 127, 1, -1, 7, 112, 127)
	testSelection(t, 8, 128, 112, 127, 2, -1, 7, 126, 127)
	testSelection(t, 8, 128, 126, 127, 3, -1, 1, 127, 127)

	// difference in the first step should choose 0
	testSelection(t, 8, 64, 0, 63, 1, 0, 0, 0, 7)
	testSelection(t, 8, 64, 0, 7, 2, 0, 0, 0, 0)

	// choose something in the middle
	testSelection(t, 8, 64, 0, 63, 1, 1, 1, 8, 15)
	testSelection(t, 8, 64, 8, 15, 2, 2, 2, 10, 10)

	// selected_step limits the choice
	testSelection(t, 8, 128, 0, 10, 1, -1, 0, 0, 10)
	testSelection(t, 8, 128, 0, 10, 2, -1, 5, 10, 10)
	testSelection(t, 8, 128, 10, 10, 3, -1, 0, 10, 10)
	testSelection(t, 8, 128, 10, 10, 3, 1, 0, 10, 10)

	testSelection(t, 8, 128, 0, 9, 1, -1, 0, 0, 9)
	testSelection(t, 8, 128, 0, 9, 2, -1, 4, 8, 9)
	testSelection(t, 8, 128, 8, 9, 3, -1, 1, 9, 9)
	testSelection(t, 8, 128, 8, 9, 3, 0, 0, 8, 8)
	testSelection(t, 8, 128, 8, 9, 3, 1, 1, 9, 9)

	testSelection(t, 8, 128, 0, 9, 1, 0, 0, 0, 9)
	testSelection(t, 8, 128, 0, 9, 2, 1, 1, 2, 3)
	testSelection(t, 8, 128, 2, 3, 3, 0, 0, 2, 2)
}
