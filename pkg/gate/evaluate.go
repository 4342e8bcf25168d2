// Package gate reduces a turn's readiness signals to a single execution
// verdict with one deterministic root cause.
//
// Invariants:
//   - Every gate is evaluated; there is no short-circuit.
//   - ExecutionAllowed holds iff every gate holds.
//   - The root cause is the first failing gate in Precedence.
//   - Tool and simulation dispatch are never both allowed.
package gate

import (
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

// Request is the gate capability input.
type Request struct {
	Envelope contracts.Envelope `json:"envelope"`
	Signals  Signals            `json:"signals"`
}

// Result is the verdict of one gate.
type Result struct {
	Name   Name `json:"name"`
	Passed bool `json:"passed"`
}

// Outcome is the gate outcome set.
type Outcome struct {
	Results                   []Result         `json:"results"`
	Governance                []DomainDecision `json:"governance"`
	ContradictionDetected     bool             `json:"governance_contradiction_detected"`
	FailedGates               []Name           `json:"failed_gates,omitempty"`
	RootCause                 Name             `json:"root_cause,omitempty"`
	ReasonCode                reasoncode.Code  `json:"reason_code"`
	ExecutionAllowed          bool             `json:"execution_allowed"`
	ToolDispatchAllowed       bool             `json:"tool_dispatch_allowed"`
	SimulationDispatchAllowed bool             `json:"simulation_dispatch_allowed"`
	ToolRequested             bool             `json:"tool_requested"`
	SimulationRequested       bool             `json:"simulation_requested"`
	GuardFailures             []string         `json:"guard_failures,omitempty"`
}

// Passed reports the verdict of gate n. Unknown names are reported as failed.
func (o *Outcome) Passed(n Name) bool {
	for _, r := range o.Results {
		if r.Name == n {
			return r.Passed
		}
	}
	return false
}

// Evaluate runs every gate against req.
//
// Errors are a *contracts.Refusal for schema or budget violations, or a
// *contracts.InternalError if the outcome contradicts its own invariants.
// A failing gate is not an error: it is reported in the outcome.
func Evaluate(req Request) (*Outcome, error) {
	// 1. Structure
	if r := req.Envelope.Check(contracts.CapabilityGate); r != nil {
		return nil, r
	}
	if err := req.Signals.Validate(); err != nil {
		return nil, contracts.SchemaRefusal(contracts.CapabilityGate, err)
	}

	// 2. Envelope budgets, before any gate logic
	s := req.Signals
	env := req.Envelope
	if n := len(s.GuardFailures); n > env.MaxGuardFailures {
		return nil, contracts.Refuse(contracts.CapabilityGate, reasoncode.ContractBudgetExceeded,
			"%d guard failures exceeds cap %d", n, env.MaxGuardFailures)
	}
	if n := len(s.Outcomes); n > env.MaxOutcomeEntries {
		return nil, contracts.Refuse(contracts.CapabilityGate, reasoncode.ContractBudgetExceeded,
			"%d outcome entries exceeds cap %d", n, env.MaxOutcomeEntries)
	}

	// 3. Every gate, no short-circuit
	verdicts := evaluateAll(s)
	out := &Outcome{
		Results:               make([]Result, 0, len(Precedence)),
		Governance:            s.Governance.Ordered(),
		ContradictionDetected: s.Governance.Contradiction(),
		ToolRequested:         s.ToolRequested,
		SimulationRequested:   s.SimulationRequested,
		GuardFailures:         append([]string(nil), s.GuardFailures...),
	}
	upstreamOK := true
	for _, n := range Precedence {
		ok := verdicts[n]
		out.Results = append(out.Results, Result{Name: n, Passed: ok})
		if !ok {
			out.FailedGates = append(out.FailedGates, n)
			if n.Upstream() {
				upstreamOK = false
			}
		}
	}
	if n := len(out.FailedGates); n > env.MaxDiagnostics {
		return nil, contracts.Refuse(contracts.CapabilityGate, reasoncode.ContractBudgetExceeded,
			"%d failing gates exceeds diagnostics cap %d", n, env.MaxDiagnostics)
	}

	// 4. Root cause by fixed precedence
	out.ExecutionAllowed = len(out.FailedGates) == 0
	if out.ExecutionAllowed {
		out.ReasonCode = reasoncode.OKGatesPassed
	} else {
		out.RootCause = out.FailedGates[0]
		out.ReasonCode = out.RootCause.FailureCode()
	}

	// 5. Dispatch narrowing
	out.ToolDispatchAllowed = s.ToolRequested && !s.SimulationRequested && upstreamOK
	out.SimulationDispatchAllowed = s.SimulationRequested && out.ExecutionAllowed

	if err := out.checkConsistency(); err != nil {
		return nil, err
	}
	return out, nil
}

func evaluateAll(s Signals) map[Name]bool {
	classified, resolved := true, true
	for _, e := range s.Outcomes {
		if !e.Classified() {
			classified = false
		}
		if e.Unresolved() {
			resolved = false
		}
	}
	return map[Name]bool{
		NameSession:                 s.SessionActive,
		NameUnderstanding:           s.UnderstandingConfident,
		NameConfirmation:            s.ConfirmationSatisfied,
		NamePromptPolicy:            s.PromptPolicyAllowed,
		NameGovernanceContradiction: !s.Governance.Contradiction(),
		NamePolicy:                  s.Governance.Policy == Allow,
		NameTenant:                  s.Governance.Tenant == Allow,
		NameGov:                     s.Governance.Gov == Allow,
		NameQuota:                   s.Governance.Quota == Allow,
		NameWork:                    s.Governance.Work == Allow,
		NameCapReq:                  s.Governance.CapReq == Allow,
		NameAccess:                  s.AccessAllowed,
		NameBlueprint:               s.BlueprintReady,
		NameSimulation:              s.SimulationReady,
		NameIdempotency:             s.IdempotencyClear,
		NameLease:                   s.LeaseHeld,
		NameOutcomeClassification:   classified,
		NameOutcomeUnresolved:       resolved,
		NameOptionalBudget:          s.OptionalBudget.Reconciled(),
	}
}

func (o *Outcome) checkConsistency() error {
	if len(o.Results) != len(Precedence) {
		return contracts.Internal(contracts.CapabilityGate, "%d gate results, want %d", len(o.Results), len(Precedence))
	}
	all := true
	for _, r := range o.Results {
		all = all && r.Passed
	}
	if all != o.ExecutionAllowed {
		return contracts.Internal(contracts.CapabilityGate, "execution_allowed=%t disagrees with gate results", o.ExecutionAllowed)
	}
	if o.ExecutionAllowed != o.ReasonCode.IsOK() {
		return contracts.Internal(contracts.CapabilityGate, "execution_allowed=%t with reason %s", o.ExecutionAllowed, o.ReasonCode)
	}
	if o.ToolDispatchAllowed && o.SimulationDispatchAllowed {
		return contracts.Internal(contracts.CapabilityGate, "tool and simulation dispatch both allowed")
	}
	if o.SimulationDispatchAllowed && !o.ExecutionAllowed {
		return contracts.Internal(contracts.CapabilityGate, "simulation dispatch allowed without execution")
	}
	if o.ContradictionDetected && o.ExecutionAllowed {
		return contracts.Internal(contracts.CapabilityGate, "governance contradiction with execution allowed")
	}
	return nil
}
