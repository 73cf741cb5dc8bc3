// Package bisect implements the n-ary interactive bisection protocol that
// narrows a disputed execution down to the single TraceRWStep a fraud proof
// will ultimately adjudicate: round geometry (NArySearchDefinition), segment
// selection from mismatching hash lists (ChooseSegment), the prover/verifier
// challenge logs persisted between rounds, and the five operations that
// drive one round apiece.
package bisect

import "math"

// NArySearchDefinition fixes the shape of a bisection: how many steps the
// disputed execution can span (rounded up to a power of two), how many-ary
// each round's hash comparison is, and how many full nary rounds it takes to
// narrow that range down to a single step (with one final, narrower round
// absorbing whatever power-of-two remainder doesn't divide evenly).
type NArySearchDefinition struct {
	MaxSteps      uint64
	Nary          uint8
	FullRounds    uint8
	NaryLastRound uint8
}

// NewNArySearchDefinition rounds approxMaxSteps up to the next power of two
// and splits its bit-length into as many full nary-wide rounds as fit, with
// the leftover bits (if any) forming one final, narrower round.
func NewNArySearchDefinition(approxMaxSteps uint64, nary uint8) NArySearchDefinition {
	if nary <= 1 {
		panic("bisect: nary must be greater than 1")
	}
	maxBits := math.Ceil(math.Log2(float64(approxMaxSteps)))
	maxSteps := uint64(math.Pow(2, maxBits))
	naryBits := math.Log2(float64(nary))
	fullRounds := math.Floor(maxBits / naryBits)
	bitsLeft := maxBits - fullRounds*naryBits
	var naryLastRound uint8
	if uint8(bitsLeft) != 0 {
		naryLastRound = uint8(math.Pow(2, bitsLeft))
	}
	return NArySearchDefinition{
		MaxSteps:      maxSteps,
		Nary:          nary,
		FullRounds:    uint8(fullRounds),
		NaryLastRound: naryLastRound,
	}
}

// BitsNary is the number of bits a full-width round's selection carries.
func (d NArySearchDefinition) BitsNary() uint8 { return uint8(math.Log2(float64(d.Nary))) }

// BitsLastRound is the number of bits the final, narrower round carries (0
// if MaxSteps divided evenly and there is no final round).
func (d NArySearchDefinition) BitsLastRound() uint8 {
	if d.NaryLastRound == 0 {
		return 0
	}
	return uint8(math.Log2(float64(d.NaryLastRound)))
}

// TotalRounds is the number of rounds a bisection against this definition
// runs: every full round, plus one more if a final narrower round exists.
func (d NArySearchDefinition) TotalRounds() uint8 {
	if d.NaryLastRound > 0 {
		return d.FullRounds + 1
	}
	return d.FullRounds
}

// BitsForRound is the bit width of round's selection.
func (d NArySearchDefinition) BitsForRound(round uint8) uint8 {
	if round <= d.FullRounds {
		return d.BitsNary()
	}
	return d.BitsLastRound()
}

// HashesForRound is the number of intermediate hashes the prover must
// produce for round: one fewer than that round's arity, since the segment
// boundaries (not the endpoints, which both sides already agree on) are
// what gets compared.
func (d NArySearchDefinition) HashesForRound(round uint8) uint8 {
	if round <= d.FullRounds {
		return d.Nary - 1
	}
	return d.NaryLastRound - 1
}

// RequiredSteps lists the step numbers round must produce a hash for,
// evenly spaced across the current [start, start+interval*nary) segment.
func (d NArySearchDefinition) RequiredSteps(round uint8, start uint64) []uint64 {
	var steps []uint64
	if round <= d.FullRounds {
		interval := d.MaxSteps / pow64(uint64(d.Nary), uint(round))
		for i := uint64(1); i < uint64(d.Nary); i++ {
			steps = append(steps, start+i*interval)
		}
	} else {
		for i := uint64(1); i < uint64(d.NaryLastRound); i++ {
			steps = append(steps, start+i)
		}
	}
	return steps
}

// StepBitsForRound extracts the bits of step that round's selection covers,
// masked and shifted down to the low bits.
func (d NArySearchDefinition) StepBitsForRound(round uint8, step uint64) uint32 {
	if round <= d.FullRounds {
		shift := uint((d.FullRounds-round)*d.BitsNary() + d.BitsLastRound())
		mask := uint64(d.Nary-1) << shift
		return uint32((step & mask) >> shift)
	}
	mask := uint64(d.NaryLastRound - 1)
	return uint32(step & mask)
}

// StepFromBaseAndBits rebuilds a step number from a running base and the
// bits chosen for round, the inverse of StepBitsForRound.
func (d NArySearchDefinition) StepFromBaseAndBits(round uint8, base uint64, bits uint32) uint64 {
	if round <= d.FullRounds {
		shift := uint((d.FullRounds-round)*d.BitsNary() + d.BitsLastRound())
		return base + (uint64(bits) << shift)
	}
	return base + uint64(bits)
}

// StepMapping correlates every step number that will ever be requested
// across a full bisection with the (round, index-within-round) that
// produces it, given the sequence of bit selections already made. Used by a
// prover orchestrating a whole run to figure out which round will ask for
// which of its already-computed hashes.
func (d NArySearchDefinition) StepMapping(bits []uint32) map[uint64][2]uint8 {
	if len(bits) != int(d.TotalRounds()) {
		panic("bisect: bits must have one entry per round")
	}
	mapping := make(map[uint64][2]uint8)
	base := uint64(0)
	for round := uint8(1); round <= d.TotalRounds(); round++ {
		for n, step := range d.RequiredSteps(round, base) {
			mapping[step] = [2]uint8{round, uint8(n)}
		}
		base = d.StepFromBaseAndBits(round, base, bits[round-1])
	}
	return mapping
}

func pow64(base uint64, exp uint) uint64 {
	result := uint64(1)
	for i := uint(0); i < exp; i++ {
		result *= base
	}
	return result
}

// ExecutionHashes is the ordered list of intermediate hashes one side
// contributes to a round, compared element-by-element against the other
// side's list by ChooseSegment.
type ExecutionHashes [][]byte

// ChooseSegment finds the first point where proverHashes and myHashes
// disagree (or, if they agree everywhere, falls back to the last
// transition) and narrows the search to the bit-range, base step, and
// selected step that segment corresponds to. selectedStep is assumed
// agreed-upon by both parties going into this round; it bounds the choice
// from above so a challenger never drifts past a step it already
// committed to disputing.
func ChooseSegment(def NArySearchDefinition, baseStep, selectedStep uint64, round uint8, proverHashes, myHashes ExecutionHashes) (bits uint32, newBase uint64, choice uint64) {
	selection := len(proverHashes) + 1
	for i := range proverHashes {
		if !bytesEqual(proverHashes[i], myHashes[i]) {
			selection = i + 1
			break
		}
	}

	mismatchStep := def.StepFromBaseAndBits(round, baseStep, uint32(selection)) - 1

	var lowerLimitBits uint32
	if selectedStep < mismatchStep {
		lowerLimitBits = def.StepBitsForRound(round, selectedStep)
	} else {
		lowerLimitBits = uint32(selection) - 1
	}
	choice = min64(mismatchStep, selectedStep)
	newBase = def.StepFromBaseAndBits(round, baseStep, lowerLimitBits)
	return lowerLimitBits, newBase, choice
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
