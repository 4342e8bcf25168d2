// Package reasoncode defines the stable 32-bit reason codes reported by every
// turnkernel capability.
//
// A code's high 16 bits identify its family, so a caller can classify any code
// without decoding a message:
//
//	0x0A01xxxx  ok outcomes
//	0x0A02xxxx  admission gate failures (session, understanding, readiness)
//	0x0A03xxxx  governance failures, including contradiction
//	0x0A04xxxx  outcome-utilization accounting failures
//	0x0A05xxxx  turn-shape violations
//	0x0A06xxxx  thread-state, resume and identity violations
//	0x0AF0xxxx  schema, budget and internal errors
//
// Codes MUST NOT change between releases.
package reasoncode

import "fmt"

// Code is a stable, namespaced reason identifier.
type Code uint32

// Family is the high-order prefix of a Code.
type Family uint16

const (
	FamilyOK         Family = 0x0A01
	FamilyGate       Family = 0x0A02
	FamilyGovernance Family = 0x0A03
	FamilyOutcome    Family = 0x0A04
	FamilyTurnShape  Family = 0x0A05
	FamilyThread     Family = 0x0A06
	FamilyContract   Family = 0x0AF0
)

// --- OK ---
const (
	OKGatesPassed     Code = 0x0A010001
	OKMoveResolved    Code = 0x0A010002
	OKDirectiveBuilt  Code = 0x0A010003
	OKResumeBuffered  Code = 0x0A010004
	OKTurnCompleted   Code = 0x0A010005
	OKThreadStateSane Code = 0x0A010006
)

// --- Admission gates ---
const (
	GateSessionInactive     Code = 0x0A020001
	GateUnderstandingLow    Code = 0x0A020002
	GateConfirmationMissing Code = 0x0A020003
	GatePromptPolicyBlocked Code = 0x0A020004
	GateAccessDenied        Code = 0x0A020005
	GateBlueprintNotReady   Code = 0x0A020006
	GateSimulationNotReady  Code = 0x0A020007
	GateIdempotencyConflict Code = 0x0A020008
	GateLeaseNotHeld        Code = 0x0A020009
)

// --- Governance ---
const (
	GovContradiction    Code = 0x0A030001
	GovPolicyNotAllowed Code = 0x0A030002
	GovTenantNotAllowed Code = 0x0A030003
	GovGovNotAllowed    Code = 0x0A030004
	GovQuotaNotAllowed  Code = 0x0A030005
	GovWorkNotAllowed   Code = 0x0A030006
	GovCapReqNotAllowed Code = 0x0A030007
)

// --- Outcome utilization ---
const (
	OutcomeClassificationIncomplete Code = 0x0A040001
	OutcomeUnresolvedEntries        Code = 0x0A040002
	OutcomeOptionalBudgetMismatch   Code = 0x0A040003
)

// --- Turn shape ---
const (
	TurnOneTurnOneMove         Code = 0x0A050001
	TurnClarifyOwnerPrecedence Code = 0x0A050002
	TurnInFlight               Code = 0x0A050003
)

// --- Thread state, resume, identity ---
const (
	ThreadPendingInvalid          Code = 0x0A060001
	ThreadAttemptsExhausted       Code = 0x0A060002
	ThreadConfirmAnswerUnexpected Code = 0x0A060003
	ThreadResumeWithoutInterrupt  Code = 0x0A060004
	ThreadResumeCursorInvalid     Code = 0x0A060005
	ThreadSpeakerMismatch         Code = 0x0A060006
	ThreadIdentityInvalid         Code = 0x0A060007
	ThreadToolResultUnexpected    Code = 0x0A060008
)

// --- Contract ---
const (
	ContractSchemaInvalid         Code = 0x0AF00001
	ContractSchemaVersionMismatch Code = 0x0AF00002
	ContractBudgetExceeded        Code = 0x0AF00003
	ContractInternalPipeline      Code = 0x0AF00004
	ContractDirectiveInvalid      Code = 0x0AF00005
)

var names = map[Code]string{
	OKGatesPassed:     "OK_GATES_PASSED",
	OKMoveResolved:    "OK_MOVE_RESOLVED",
	OKDirectiveBuilt:  "OK_DIRECTIVE_BUILT",
	OKResumeBuffered:  "OK_RESUME_BUFFERED",
	OKTurnCompleted:   "OK_TURN_COMPLETED",
	OKThreadStateSane: "OK_THREAD_STATE_SANE",

	GateSessionInactive:     "GATE_SESSION_INACTIVE",
	GateUnderstandingLow:    "GATE_UNDERSTANDING_LOW",
	GateConfirmationMissing: "GATE_CONFIRMATION_MISSING",
	GatePromptPolicyBlocked: "GATE_PROMPT_POLICY_BLOCKED",
	GateAccessDenied:        "GATE_ACCESS_DENIED",
	GateBlueprintNotReady:   "GATE_BLUEPRINT_NOT_READY",
	GateSimulationNotReady:  "GATE_SIMULATION_NOT_READY",
	GateIdempotencyConflict: "GATE_IDEMPOTENCY_CONFLICT",
	GateLeaseNotHeld:        "GATE_LEASE_NOT_HELD",

	GovContradiction:    "GOV_CONTRADICTION",
	GovPolicyNotAllowed: "GOV_POLICY_NOT_ALLOWED",
	GovTenantNotAllowed: "GOV_TENANT_NOT_ALLOWED",
	GovGovNotAllowed:    "GOV_GOV_NOT_ALLOWED",
	GovQuotaNotAllowed:  "GOV_QUOTA_NOT_ALLOWED",
	GovWorkNotAllowed:   "GOV_WORK_NOT_ALLOWED",
	GovCapReqNotAllowed: "GOV_CAPREQ_NOT_ALLOWED",

	OutcomeClassificationIncomplete: "OUTCOME_CLASSIFICATION_INCOMPLETE",
	OutcomeUnresolvedEntries:        "OUTCOME_UNRESOLVED_ENTRIES",
	OutcomeOptionalBudgetMismatch:   "OUTCOME_OPTIONAL_BUDGET_MISMATCH",

	TurnOneTurnOneMove:         "TURN_ONE_TURN_ONE_MOVE",
	TurnClarifyOwnerPrecedence: "TURN_CLARIFY_OWNER_PRECEDENCE",
	TurnInFlight:               "TURN_IN_FLIGHT",

	ThreadPendingInvalid:          "THREAD_PENDING_INVALID",
	ThreadAttemptsExhausted:       "THREAD_ATTEMPTS_EXHAUSTED",
	ThreadConfirmAnswerUnexpected: "THREAD_CONFIRM_ANSWER_UNEXPECTED",
	ThreadResumeWithoutInterrupt:  "THREAD_RESUME_WITHOUT_INTERRUPT",
	ThreadResumeCursorInvalid:     "THREAD_RESUME_CURSOR_INVALID",
	ThreadSpeakerMismatch:         "THREAD_SPEAKER_MISMATCH",
	ThreadIdentityInvalid:         "THREAD_IDENTITY_INVALID",
	ThreadToolResultUnexpected:    "THREAD_TOOL_RESULT_UNEXPECTED",

	ContractSchemaInvalid:         "CONTRACT_SCHEMA_INVALID",
	ContractSchemaVersionMismatch: "CONTRACT_SCHEMA_VERSION_MISMATCH",
	ContractBudgetExceeded:        "CONTRACT_BUDGET_EXCEEDED",
	ContractInternalPipeline:      "CONTRACT_INTERNAL_PIPELINE",
	ContractDirectiveInvalid:      "CONTRACT_DIRECTIVE_INVALID",
}

// Family returns the high-order prefix of c.
func (c Code) Family() Family { return Family(uint32(c) >> 16) }

// IsOK reports whether c belongs to the ok family.
func (c Code) IsOK() bool { return c.Family() == FamilyOK }

// Name returns the stable symbolic name of c, or "" if c is not registered.
func (c Code) Name() string { return names[c] }

// Known reports whether c is a registered code.
func (c Code) Known() bool {
	_, ok := names[c]
	return ok
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return fmt.Sprintf("%s(0x%08X)", n, uint32(c))
	}
	return fmt.Sprintf("UNKNOWN(0x%08X)", uint32(c))
}

func (f Family) String() string {
	switch f {
	case FamilyOK:
		return "ok"
	case FamilyGate:
		return "gate"
	case FamilyGovernance:
		return "governance"
	case FamilyOutcome:
		return "outcome"
	case FamilyTurnShape:
		return "turn_shape"
	case FamilyThread:
		return "thread"
	case FamilyContract:
		return "contract"
	default:
		return fmt.Sprintf("family(0x%04X)", uint16(f))
	}
}

// All returns the full set of normative reason codes in family order.
func All() []Code {
	return []Code{
		OKGatesPassed,
		OKMoveResolved,
		OKDirectiveBuilt,
		OKResumeBuffered,
		OKTurnCompleted,
		OKThreadStateSane,
		GateSessionInactive,
		GateUnderstandingLow,
		GateConfirmationMissing,
		GatePromptPolicyBlocked,
		GateAccessDenied,
		GateBlueprintNotReady,
		GateSimulationNotReady,
		GateIdempotencyConflict,
		GateLeaseNotHeld,
		GovContradiction,
		GovPolicyNotAllowed,
		GovTenantNotAllowed,
		GovGovNotAllowed,
		GovQuotaNotAllowed,
		GovWorkNotAllowed,
		GovCapReqNotAllowed,
		OutcomeClassificationIncomplete,
		OutcomeUnresolvedEntries,
		OutcomeOptionalBudgetMismatch,
		TurnOneTurnOneMove,
		TurnClarifyOwnerPrecedence,
		TurnInFlight,
		ThreadPendingInvalid,
		ThreadAttemptsExhausted,
		ThreadConfirmAnswerUnexpected,
		ThreadResumeWithoutInterrupt,
		ThreadResumeCursorInvalid,
		ThreadSpeakerMismatch,
		ThreadIdentityInvalid,
		ThreadToolResultUnexpected,
		ContractSchemaInvalid,
		ContractSchemaVersionMismatch,
		ContractBudgetExceeded,
		ContractInternalPipeline,
		ContractDirectiveInvalid,
	}
}
