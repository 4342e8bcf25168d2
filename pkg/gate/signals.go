package gate

import (
	"fmt"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
)

// ActionClass classifies what a downstream consumer did with an engine output.
// The empty class means the entry was never classified.
type ActionClass string

const (
	ActionUnclassified ActionClass = ""
	ActionActNow       ActionClass = "act_now"
	ActionQueueLearn   ActionClass = "queue_learn"
	ActionAuditOnly    ActionClass = "audit_only"
	ActionDrop         ActionClass = "drop"
)

func (a ActionClass) known() bool {
	switch a {
	case ActionUnclassified, ActionActNow, ActionQueueLearn, ActionAuditOnly, ActionDrop:
		return true
	default:
		return false
	}
}

// NeedsConsumer reports whether entries of class a must name a consumer.
func (a ActionClass) NeedsConsumer() bool {
	return a == ActionActNow || a == ActionQueueLearn
}

// UtilizationEntry records whether an upstream engine output was consumed.
type UtilizationEntry struct {
	EngineID    string      `json:"engine_id"`
	OutputID    string      `json:"output_id"`
	ActionClass ActionClass `json:"action_class,omitempty"`
	ConsumedBy  string      `json:"consumed_by,omitempty"`
}

// Classified reports whether e carries an action class.
func (e UtilizationEntry) Classified() bool { return e.ActionClass != ActionUnclassified }

// Unresolved reports whether e demands a consumer but has none.
func (e UtilizationEntry) Unresolved() bool {
	return e.ActionClass.NeedsConsumer() && e.ConsumedBy == ""
}

// OptionalBudget is the optional-invocation accounting for the turn.
type OptionalBudget struct {
	Requested          uint32 `json:"requested"`
	Budget             uint32 `json:"budget"`
	Skipped            uint32 `json:"skipped"`
	EstimatedLatencyMs uint32 `json:"estimated_latency_ms"`
	BudgetLatencyMs    uint32 `json:"budget_latency_ms"`
}

// ExpectedSkipped is requested minus budget, saturating at zero.
func (b OptionalBudget) ExpectedSkipped() uint32 {
	if b.Requested <= b.Budget {
		return 0
	}
	return b.Requested - b.Budget
}

// Reconciled reports whether the skip count and latency estimate match the budget.
func (b OptionalBudget) Reconciled() bool {
	return b.Skipped == b.ExpectedSkipped() && b.EstimatedLatencyMs <= b.BudgetLatencyMs
}

// Signals are the readiness inputs for one turn.
type Signals struct {
	SessionActive          bool               `json:"session_active"`
	UnderstandingConfident bool               `json:"understanding_confident"`
	ConfirmationSatisfied  bool               `json:"confirmation_satisfied"`
	PromptPolicyAllowed    bool               `json:"prompt_policy_allowed"`
	Governance             GovernanceSet      `json:"governance"`
	AccessAllowed          bool               `json:"access_allowed"`
	BlueprintReady         bool               `json:"blueprint_ready"`
	SimulationReady        bool               `json:"simulation_ready"`
	IdempotencyClear       bool               `json:"idempotency_clear"`
	LeaseHeld              bool               `json:"lease_held"`
	Outcomes               []UtilizationEntry `json:"outcomes,omitempty"`
	OptionalBudget         OptionalBudget     `json:"optional_budget"`
	ToolRequested          bool               `json:"tool_requested"`
	SimulationRequested    bool               `json:"simulation_requested"`
	GuardFailures          []string           `json:"guard_failures,omitempty"`
}

// PassingSignals returns signals for which every gate holds.
func PassingSignals() Signals {
	return Signals{
		SessionActive:          true,
		UnderstandingConfident: true,
		ConfirmationSatisfied:  true,
		PromptPolicyAllowed:    true,
		Governance:             AllowAll(),
		AccessAllowed:          true,
		BlueprintReady:         true,
		SimulationReady:        true,
		IdempotencyClear:       true,
		LeaseHeld:              true,
	}
}

// Validate checks structure only. Gate failures are not validation errors.
func (s Signals) Validate() error {
	var v contracts.Validator
	if err := s.Governance.validate(); err != nil {
		v.Add("governance", contracts.CodeInvalidValue, "%v", err)
	}
	for i, e := range s.Outcomes {
		field := fmt.Sprintf("outcomes[%d]", i)
		v.RequireText(field+".engine_id", e.EngineID, contracts.MaxIDLen)
		v.RequireText(field+".output_id", e.OutputID, contracts.MaxIDLen)
		v.OptionalText(field+".consumed_by", e.ConsumedBy, contracts.MaxIDLen)
		if !e.ActionClass.known() {
			v.Add(field+".action_class", contracts.CodeInvalidValue, "unknown action class %q", e.ActionClass)
		}
	}
	for i, g := range s.GuardFailures {
		v.RequireText(fmt.Sprintf("guard_failures[%d]", i), g, contracts.MaxIDLen)
	}
	return v.Err()
}
