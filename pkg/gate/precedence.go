package gate

import "github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"

// Name identifies one gate, including the governance-contradiction pseudo-gate.
type Name string

const (
	NameSession                 Name = "session"
	NameUnderstanding           Name = "understanding"
	NameConfirmation            Name = "confirmation"
	NamePromptPolicy            Name = "prompt_policy"
	NameGovernanceContradiction Name = "governance_contradiction"
	NamePolicy                  Name = Name(DomainPolicy)
	NameTenant                  Name = Name(DomainTenant)
	NameGov                     Name = Name(DomainGov)
	NameQuota                   Name = Name(DomainQuota)
	NameWork                    Name = Name(DomainWork)
	NameCapReq                  Name = Name(DomainCapReq)
	NameAccess                  Name = "access"
	NameBlueprint               Name = "blueprint"
	NameSimulation              Name = "simulation"
	NameIdempotency             Name = "idempotency"
	NameLease                   Name = "lease"
	NameOutcomeClassification   Name = "outcome_classification"
	NameOutcomeUnresolved       Name = "outcome_unresolved"
	NameOptionalBudget          Name = "optional_budget"
)

// Precedence is the fixed root-cause order. Callers branch on the reported
// reason, so this order is part of the contract and must not change.
var Precedence = [...]Name{
	NameSession,
	NameUnderstanding,
	NameConfirmation,
	NamePromptPolicy,
	NameGovernanceContradiction,
	NamePolicy,
	NameTenant,
	NameGov,
	NameQuota,
	NameWork,
	NameCapReq,
	NameAccess,
	NameBlueprint,
	NameSimulation,
	NameIdempotency,
	NameLease,
	NameOutcomeClassification,
	NameOutcomeUnresolved,
	NameOptionalBudget,
}

// upstream is the subset tool dispatch depends on.
var upstream = map[Name]bool{
	NameSession:                 true,
	NameUnderstanding:           true,
	NameConfirmation:            true,
	NamePromptPolicy:            true,
	NameGovernanceContradiction: true,
	NamePolicy:                  true,
	NameTenant:                  true,
	NameGov:                     true,
	NameQuota:                   true,
	NameWork:                    true,
	NameCapReq:                  true,
	NameAccess:                  true,
}

// Upstream reports whether n belongs to the tool-dispatch subset.
func (n Name) Upstream() bool { return upstream[n] }

var failureCodes = map[Name]reasoncode.Code{
	NameSession:                 reasoncode.GateSessionInactive,
	NameUnderstanding:           reasoncode.GateUnderstandingLow,
	NameConfirmation:            reasoncode.GateConfirmationMissing,
	NamePromptPolicy:            reasoncode.GatePromptPolicyBlocked,
	NameGovernanceContradiction: reasoncode.GovContradiction,
	NamePolicy:                  reasoncode.GovPolicyNotAllowed,
	NameTenant:                  reasoncode.GovTenantNotAllowed,
	NameGov:                     reasoncode.GovGovNotAllowed,
	NameQuota:                   reasoncode.GovQuotaNotAllowed,
	NameWork:                    reasoncode.GovWorkNotAllowed,
	NameCapReq:                  reasoncode.GovCapReqNotAllowed,
	NameAccess:                  reasoncode.GateAccessDenied,
	NameBlueprint:               reasoncode.GateBlueprintNotReady,
	NameSimulation:              reasoncode.GateSimulationNotReady,
	NameIdempotency:             reasoncode.GateIdempotencyConflict,
	NameLease:                   reasoncode.GateLeaseNotHeld,
	NameOutcomeClassification:   reasoncode.OutcomeClassificationIncomplete,
	NameOutcomeUnresolved:       reasoncode.OutcomeUnresolvedEntries,
	NameOptionalBudget:          reasoncode.OutcomeOptionalBudgetMismatch,
}

// FailureCode returns the reason code reported when n is the root cause.
func (n Name) FailureCode() reasoncode.Code { return failureCodes[n] }
