package contracts

import "github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"

// Envelope budget ceilings. Caller-supplied caps must stay within these.
const (
	MaxGuardFailuresCeiling  = 32
	MaxDiagnosticsCeiling    = 32
	MaxOutcomeEntriesCeiling = 256
	MaxIDLen                 = 128
)

// Envelope is the request envelope carried by every capability call.
type Envelope struct {
	SchemaVersion     string `json:"schema_version"`
	CorrelationID     string `json:"correlation_id"`
	TurnID            uint64 `json:"turn_id"`
	MaxGuardFailures  int    `json:"max_guard_failures"`
	MaxDiagnostics    int    `json:"max_diagnostics"`
	MaxOutcomeEntries int    `json:"max_outcome_entries"`
}

// DefaultEnvelope returns an envelope with the default caps.
func DefaultEnvelope(correlationID string, turnID uint64) Envelope {
	return Envelope{
		SchemaVersion:     SchemaVersion,
		CorrelationID:     correlationID,
		TurnID:            turnID,
		MaxGuardFailures:  8,
		MaxDiagnostics:    20,
		MaxOutcomeEntries: 64,
	}
}

// Validate checks envelope structure. A version mismatch is reported with
// its own code so callers can tell it apart from other schema failures.
func (e Envelope) Validate() error {
	var v Validator
	if err := CheckSchemaVersion(e.SchemaVersion); err != nil {
		v.Add("schema_version", CodeInvalidValue, "%v", err)
	}
	v.RequireText("correlation_id", e.CorrelationID, MaxIDLen)
	if e.TurnID == 0 {
		v.Add("turn_id", CodeRequired, "must be non-zero")
	}
	v.Range("max_guard_failures", e.MaxGuardFailures, 1, MaxGuardFailuresCeiling)
	v.Range("max_diagnostics", e.MaxDiagnostics, 1, MaxDiagnosticsCeiling)
	v.Range("max_outcome_entries", e.MaxOutcomeEntries, 1, MaxOutcomeEntriesCeiling)
	return v.Err()
}

// Check validates e and returns the matching refusal for capability.
func (e Envelope) Check(capability CapabilityID) *Refusal {
	if err := CheckSchemaVersion(e.SchemaVersion); err != nil {
		return Refuse(capability, reasoncode.ContractSchemaVersionMismatch, "%v", err)
	}
	if err := e.Validate(); err != nil {
		return SchemaRefusal(capability, err)
	}
	return nil
}
