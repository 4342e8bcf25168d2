package contracts

import (
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

// ErrInternalPipeline marks implementation defects. It is never a user-facing
// refusal and must never be converted into one.
var ErrInternalPipeline = errors.New("internal pipeline error")

// Refusal is the structured, fail-closed response of a capability.
type Refusal struct {
	Capability CapabilityID    `json:"capability"`
	ReasonCode reasoncode.Code `json:"reason_code"`
	Message    string          `json:"message"`
}

func (r *Refusal) Error() string {
	return fmt.Sprintf("%s refused: %s: %s", r.Capability, r.ReasonCode, r.Message)
}

// Refuse builds a Refusal.
func Refuse(capability CapabilityID, code reasoncode.Code, format string, args ...any) *Refusal {
	return &Refusal{Capability: capability, ReasonCode: code, Message: fmt.Sprintf(format, args...)}
}

// SchemaRefusal wraps a validation failure as an input-schema-invalid refusal.
func SchemaRefusal(capability CapabilityID, err error) *Refusal {
	return Refuse(capability, reasoncode.ContractSchemaInvalid, "%v", err)
}

// AsRefusal reports whether err is (or wraps) a Refusal.
func AsRefusal(err error) (*Refusal, bool) {
	var r *Refusal
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// InternalError reports a response that could not be constructed consistently
// with its own invariants.
type InternalError struct {
	Capability CapabilityID `json:"capability"`
	Detail     string       `json:"detail"`
}

// Internal builds an InternalError.
func Internal(capability CapabilityID, format string, args ...any) *InternalError {
	return &InternalError{Capability: capability, Detail: fmt.Sprintf(format, args...)}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Capability, ErrInternalPipeline, e.Detail)
}

// Is lets errors.Is(err, ErrInternalPipeline) match.
func (e *InternalError) Is(target error) bool { return target == ErrInternalPipeline }

// ReasonCode returns the reason code for internal defects.
func (e *InternalError) ReasonCode() reasoncode.Code { return reasoncode.ContractInternalPipeline }
