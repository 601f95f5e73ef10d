package domain

import "math/big"

// Step identifies a scenario state.
type Step string

// Scenario steps, in execution order.
const (
	StepDeployedCheck     Step = "DEPLOYED_CHECK"
	StepLiquidityAdded    Step = "LIQUIDITY_ADDED"
	StepBought1           Step = "BOUGHT_1"
	StepSoldLarge         Step = "SOLD_LARGE"
	StepSoldSmallRejected Step = "SOLD_SMALL_REJECTED"
	StepBought2           Step = "BOUGHT_2"
	StepDone              Step = "DONE"
)

// Steps lists the executable steps in order. DONE is terminal and not executed.
var Steps = []Step{
	StepDeployedCheck,
	StepLiquidityAdded,
	StepBought1,
	StepSoldLarge,
	StepSoldSmallRejected,
	StepBought2,
}

// ErrorKind classifies a remote failure.
type ErrorKind string

// Error kinds.
const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindReverted  ErrorKind = "REVERTED"  // contract revert
	ErrorKindTransport ErrorKind = "TRANSPORT" // network, encoding, node errors
)

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Step       Step             `json:"step"`
	Passed     bool             `json:"passed"`
	Skipped    bool             `json:"skipped"`
	ErrorKind  ErrorKind        `json:"error_kind,omitempty"` // set on a pass when the step expects a failure
	Error      string           `json:"error,omitempty"`
	Sample     *MarketCapSample `json:"sample,omitempty"`
	StartedAt  int64            `json:"started_at"`  // Unix ms
	FinishedAt int64            `json:"finished_at"` // Unix ms
}

// ScenarioRun is the record of one full scenario execution.
type ScenarioRun struct {
	RunID       string       `json:"run_id"`
	Token       string       `json:"token"`   // hex address
	Account     string       `json:"account"` // hex address
	StartedAt   int64        `json:"started_at"`
	FinishedAt  int64        `json:"finished_at"`
	InitialMcap *big.Int     `json:"initial_mcap,omitempty"`
	Steps       []StepResult `json:"steps"`
	Passed      bool         `json:"passed"`
}

// LastStep returns the furthest step that passed, or empty if none.
func (r *ScenarioRun) LastStep() Step {
	var last Step
	for _, s := range r.Steps {
		if !s.Passed {
			break
		}
		last = s.Step
	}
	if last == StepBought2 {
		return StepDone
	}
	return last
}

// FailedStep returns the first failed step result, or nil.
func (r *ScenarioRun) FailedStep() *StepResult {
	for i := range r.Steps {
		if !r.Steps[i].Passed && !r.Steps[i].Skipped {
			return &r.Steps[i]
		}
	}
	return nil
}
