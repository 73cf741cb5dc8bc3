package bisect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rv32fp/emulator"
	"rv32fp/trace"
)

// ExecutionLog is one side's claimed (or actual) outcome of running a
// program to completion: the termination result, the step it stopped at,
// and the hex-encoded rolling hash at that step.
type ExecutionLog struct {
	Result   emulator.ExecutionResult `json:"result"`
	LastStep uint64                   `json:"last_step"`
	LastHash string                   `json:"last_hash"`
}

// ProverChallengeLog is the state a prover persists between bisection
// rounds: its own execution claim, the input it ran against, the running
// base step the n-ary search has narrowed to so far, every round's verifier
// decision and hash list, and (once the protocol concludes) the single
// disputed step's full trace.
type ProverChallengeLog struct {
	Execution         ExecutionLog        `json:"execution"`
	Input             []byte               `json:"input"`
	BaseStep          uint64               `json:"base_step"`
	VerifierDecisions []uint32             `json:"verifier_decisions"`
	HashRounds        [][]string           `json:"hash_rounds"`
	FinalTrace        trace.TraceRWStep    `json:"final_trace"`
}

// NewProverChallengeLog starts a fresh log from an initial execution claim.
func NewProverChallengeLog(execution ExecutionLog, input []byte) *ProverChallengeLog {
	return &ProverChallengeLog{Execution: execution, Input: input}
}

func (l *ProverChallengeLog) Save(path string) error { return saveChallengeLog(path, l) }

// LoadProverChallengeLog reads back a log previously saved with Save.
func LoadProverChallengeLog(path string) (*ProverChallengeLog, error) {
	var l ProverChallengeLog
	if err := loadChallengeLog(path, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// VerifierChallengeLog mirrors ProverChallengeLog from the verifier's side:
// it additionally carries the prover's claimed execution (to compare
// against its own) and the single step it intends to challenge, which
// narrows round by round exactly as BaseStep does.
type VerifierChallengeLog struct {
	ProverClaimExecution ExecutionLog      `json:"prover_claim_execution"`
	Execution            ExecutionLog      `json:"execution"`
	Input                 []byte            `json:"input"`
	BaseStep              uint64            `json:"base_step"`
	StepToChallenge       uint64            `json:"step_to_challenge"`
	VerifierDecisions     []uint32          `json:"verifier_decisions"`
	ProverHashRounds      [][]string        `json:"prover_hash_rounds"`
	VerifierHashRounds    [][]string        `json:"verifier_hash_rounds"`
	FinalTrace            trace.TraceRWStep `json:"final_trace"`
}

// NewVerifierChallengeLog starts a fresh log once the verifier has decided
// to challenge a particular step.
func NewVerifierChallengeLog(proverExecution, execution ExecutionLog, input []byte, stepToChallenge uint64) *VerifierChallengeLog {
	return &VerifierChallengeLog{
		ProverClaimExecution: proverExecution,
		Execution:            execution,
		Input:                input,
		StepToChallenge:      stepToChallenge,
	}
}

func (l *VerifierChallengeLog) Save(path string) error { return saveChallengeLog(path, l) }

// LoadVerifierChallengeLog reads back a log previously saved with Save.
func LoadVerifierChallengeLog(path string) (*VerifierChallengeLog, error) {
	var l VerifierChallengeLog
	if err := loadChallengeLog(path, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func saveChallengeLog(path string, data any) error {
	serialized, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("bisect: encoding challenge log: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("bisect: creating checkpoint dir %q: %w", path, err)
	}
	return os.WriteFile(filepath.Join(path, "challenge_log.json"), serialized, 0o644)
}

func loadChallengeLog(path string, out any) error {
	serialized, err := os.ReadFile(filepath.Join(path, "challenge_log.json"))
	if err != nil {
		return fmt.Errorf("bisect: loading challenge log from %q: %w", path, err)
	}
	if err := json.Unmarshal(serialized, out); err != nil {
		return fmt.Errorf("bisect: decoding challenge log: %w", err)
	}
	return nil
}
