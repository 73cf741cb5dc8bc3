package bisect

import (
	"encoding/hex"
	"errors"
	"fmt"

	"rv32fp/emulator"
	"rv32fp/trace"
)

// Replayer is whatever can re-run a fixed program against a fixed input far
// enough to answer the three questions a bisection round needs answered. A
// program definition (entry point, register base, section layout, nary
// geometry) is resolved once by the caller into a Replayer bound to that
// program; the round-driving operations below never load programs or parse
// configuration themselves, they only drive rounds against whatever
// Replayer they are handed.
type Replayer interface {
	// Execute runs the program to completion against input, returning its
	// termination result, the step it stopped at, and the hash at that step.
	Execute(input []byte) (result emulator.ExecutionResult, lastStep uint64, lastHash [20]byte, err error)

	// HashesAtSteps returns the rolling hash at each of steps, in order,
	// without re-running from scratch for each one (a Replayer is expected
	// to use Program checkpoints the way the reference executor does).
	HashesAtSteps(steps []uint64) ([][20]byte, error)

	// TraceAtStep returns the single committed step at stepNumber.
	TraceAtStep(stepNumber uint64) (trace.TraceRWStep, error)
}

func hexEncodeAll(hashes [][20]byte) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = hex.EncodeToString(h[:])
	}
	return out
}

// ProverExecute runs the program against input and persists a fresh
// ProverChallengeLog recording the claim. A non-halting or non-zero-exit
// result is an error unless force is set, matching the reference
// implementation's refusal to let an operator commit a failing claim
// on-chain by accident.
func ProverExecute(r Replayer, input []byte, checkpointPath string, force bool) (emulator.ExecutionResult, uint64, string, error) {
	result, lastStep, lastHash, err := r.Execute(input)
	if err != nil {
		return emulator.ExecutionResult{}, 0, "", err
	}
	hashHex := hex.EncodeToString(lastHash[:])

	if result.Kind != emulator.ResultHalt || result.ExitCode != 0 {
		if !force {
			return result, lastStep, hashHex, fmt.Errorf("bisect: execution did not halt cleanly: %+v", result)
		}
	}

	log := NewProverChallengeLog(ExecutionLog{Result: result, LastStep: lastStep, LastHash: hashHex}, input)
	if err := log.Save(checkpointPath); err != nil {
		return result, lastStep, hashHex, err
	}
	return result, lastStep, hashHex, nil
}

// ProverGetHashesForRound advances the prover's persisted base step using
// the previous round's verifier decision, computes the required hashes for
// round against the new base, and appends them to the log.
func ProverGetHashesForRound(def NArySearchDefinition, r Replayer, checkpointPath string, round uint8, verifierDecision uint32) ([]string, error) {
	log, err := LoadProverChallengeLog(checkpointPath)
	if err != nil {
		return nil, err
	}

	base := log.BaseStep
	if round != 1 {
		base = def.StepFromBaseAndBits(round-1, base, verifierDecision)
	}
	log.BaseStep = base

	steps := def.RequiredSteps(round, base)
	hashes, err := r.HashesAtSteps(steps)
	if err != nil {
		return nil, err
	}
	hexHashes := hexEncodeAll(hashes)

	log.HashRounds = append(log.HashRounds, hexHashes)
	log.VerifierDecisions = append(log.VerifierDecisions, verifierDecision)
	if err := log.Save(checkpointPath); err != nil {
		return nil, err
	}
	return hexHashes, nil
}

// VerifierCheckExecution re-runs the program itself and compares the result
// against the prover's claim. If both agree there is nothing to challenge
// (nil, nil is returned) unless force is set; otherwise it persists a fresh
// VerifierChallengeLog and returns the step the bisection should start
// narrowing from.
func VerifierCheckExecution(r Replayer, input []byte, checkpointPath string, claimLastStep uint64, claimLastHash string, force bool) (*uint64, error) {
	result, lastStep, lastHash, err := r.Execute(input)
	if err != nil {
		return nil, err
	}
	hashHex := hex.EncodeToString(lastHash[:])

	agrees := result.Kind == emulator.ResultHalt && result.ExitCode == 0
	matchesClaim := claimLastStep == lastStep && claimLastHash == hashHex

	if agrees && !force {
		return nil, nil
	}
	if matchesClaim && !force {
		return nil, nil
	}

	stepToChallenge := min64(claimLastStep, lastStep)

	claimLog := ExecutionLog{
		Result:   emulator.ExecutionResult{Kind: emulator.ResultHalt, LastStep: claimLastStep},
		LastStep: claimLastStep,
		LastHash: claimLastHash,
	}
	myLog := ExecutionLog{Result: result, LastStep: lastStep, LastHash: hashHex}

	log := NewVerifierChallengeLog(claimLog, myLog, input, stepToChallenge)
	if err := log.Save(checkpointPath); err != nil {
		return nil, err
	}
	return &stepToChallenge, nil
}

// VerifierChooseSegment computes this round's hashes itself, compares them
// against the prover's reported hashes via ChooseSegment, and persists the
// narrowed (base step, step-to-challenge, bit selection) for the next round.
func VerifierChooseSegment(def NArySearchDefinition, r Replayer, checkpointPath string, round uint8, proverLastHashesHex []string) (uint32, error) {
	log, err := LoadVerifierChallengeLog(checkpointPath)
	if err != nil {
		return 0, err
	}

	base := log.BaseStep
	steps := def.RequiredSteps(round, base)
	myHashes, err := r.HashesAtSteps(steps)
	if err != nil {
		return 0, err
	}
	myHashesHex := hexEncodeAll(myHashes)

	proverHashes, err := hashesFromHex(proverLastHashesHex)
	if err != nil {
		return 0, err
	}
	myHashesDecoded, err := hashesFromHex(myHashesHex)
	if err != nil {
		return 0, err
	}

	bits, newBase, newSelected := ChooseSegment(def, base, log.StepToChallenge, round, proverHashes, myHashesDecoded)

	log.BaseStep = newBase
	log.StepToChallenge = newSelected
	log.VerifierDecisions = append(log.VerifierDecisions, bits)
	log.ProverHashRounds = append(log.ProverHashRounds, proverLastHashesHex)
	log.VerifierHashRounds = append(log.VerifierHashRounds, myHashesHex)
	if err := log.Save(checkpointPath); err != nil {
		return 0, err
	}
	return bits, nil
}

// ProverFinalTrace resolves the last round's bit selection to the single
// disputed step number and returns its full committed trace, persisting it
// into the log for the verifier to later fetch off-chain.
func ProverFinalTrace(def NArySearchDefinition, r Replayer, checkpointPath string, finalBits uint32) (trace.TraceRWStep, error) {
	log, err := LoadProverChallengeLog(checkpointPath)
	if err != nil {
		return trace.TraceRWStep{}, err
	}

	totalRounds := def.TotalRounds()
	if totalRounds == 0 {
		return trace.TraceRWStep{}, errors.New("bisect: nary search definition has no rounds")
	}
	finalStep := def.StepFromBaseAndBits(totalRounds, log.BaseStep, finalBits)

	log.BaseStep = finalStep
	log.VerifierDecisions = append(log.VerifierDecisions, finalBits)

	finalTrace, err := r.TraceAtStep(finalStep)
	if err != nil {
		return trace.TraceRWStep{}, err
	}
	log.FinalTrace = finalTrace
	if err := log.Save(checkpointPath); err != nil {
		return trace.TraceRWStep{}, err
	}
	return finalTrace, nil
}

func hashesFromHex(hexes []string) (ExecutionHashes, error) {
	out := make(ExecutionHashes, len(hexes))
	for i, h := range hexes {
		decoded, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("bisect: decoding hash %q: %w", h, err)
		}
		out[i] = decoded
	}
	return out, nil
}
