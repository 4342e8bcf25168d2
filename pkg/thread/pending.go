package thread

import (
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
)

// MaxAttempts is the retry ceiling for any pending cycle.
const MaxAttempts = 10

// MaxDeferredTextLen bounds the text held while awaiting memory permission.
const MaxDeferredTextLen = 1024

// ErrAttemptsExhausted is returned when a pending cycle would exceed MaxAttempts.
// Callers must escalate out of the retry loop.
var ErrAttemptsExhausted = errors.New("thread: pending attempts exhausted")

// PendingKind discriminates Pending variants on the wire.
type PendingKind string

const (
	KindClarify          PendingKind = "clarify"
	KindConfirm          PendingKind = "confirm"
	KindMemoryPermission PendingKind = "memory_permission"
	KindTool             PendingKind = "tool"
)

// Pending is the sealed set of awaited follow-ups. The variants are
// *ClarifyPending, *ConfirmPending, *MemoryPermissionPending and *ToolPending.
type Pending interface {
	Kind() PendingKind
	Attempts() int
	Validate() error
	withAttempt(n int) Pending
}

// ClarifyPending awaits one missing field.
type ClarifyPending struct {
	MissingField string `json:"missing_field"`
	Attempt      int    `json:"attempt"`
}

func (*ClarifyPending) Kind() PendingKind { return KindClarify }
func (p *ClarifyPending) Attempts() int   { return p.Attempt }

func (p *ClarifyPending) Validate() error {
	var v contracts.Validator
	v.RequireText("missing_field", p.MissingField, contracts.MaxFieldKeyLen)
	v.Range("attempt", p.Attempt, 1, MaxAttempts)
	return v.Err()
}

func (p *ClarifyPending) withAttempt(n int) Pending {
	c := *p
	c.Attempt = n
	return &c
}

// ConfirmPending awaits a yes/no on a fully understood intent. The snapshot
// never carries evidence spans.
type ConfirmPending struct {
	Intent  contracts.IntentDraft `json:"intent"`
	Attempt int                   `json:"attempt"`
}

// NewConfirmPending snapshots intent without its verbatim evidence.
func NewConfirmPending(intent contracts.IntentDraft) *ConfirmPending {
	return &ConfirmPending{Intent: intent.WithoutEvidence(), Attempt: 1}
}

func (*ConfirmPending) Kind() PendingKind { return KindConfirm }
func (p *ConfirmPending) Attempts() int   { return p.Attempt }

func (p *ConfirmPending) Validate() error {
	var v contracts.Validator
	v.Merge("intent", p.Intent.Validate())
	if !p.Intent.Understood() {
		v.Add("intent", contracts.CodeInvalidValue, "confirm snapshot must be high confidence with complete fields")
	}
	if len(p.Intent.EvidenceSpans) > 0 {
		v.Add("intent.evidence_spans", contracts.CodeForbidden, "confirm snapshot must not retain transcript excerpts")
	}
	v.Range("attempt", p.Attempt, 1, MaxAttempts)
	return v.Err()
}

func (p *ConfirmPending) withAttempt(n int) Pending {
	c := *p
	c.Intent = p.Intent.WithoutEvidence()
	c.Attempt = n
	return &c
}

// MemoryPermissionPending awaits permission to remember DeferredText.
type MemoryPermissionPending struct {
	DeferredText string `json:"deferred_text"`
	Attempt      int    `json:"attempt"`
}

func (*MemoryPermissionPending) Kind() PendingKind { return KindMemoryPermission }
func (p *MemoryPermissionPending) Attempts() int   { return p.Attempt }

func (p *MemoryPermissionPending) Validate() error {
	var v contracts.Validator
	v.RequireText("deferred_text", p.DeferredText, MaxDeferredTextLen)
	v.Range("attempt", p.Attempt, 1, MaxAttempts)
	return v.Err()
}

func (p *MemoryPermissionPending) withAttempt(n int) Pending {
	c := *p
	c.Attempt = n
	return &c
}

// ToolPending awaits the result of a dispatched tool request.
type ToolPending struct {
	RequestID string `json:"request_id"`
	Attempt   int    `json:"attempt"`
}

func (*ToolPending) Kind() PendingKind { return KindTool }
func (p *ToolPending) Attempts() int   { return p.Attempt }

func (p *ToolPending) Validate() error {
	var v contracts.Validator
	v.RequireText("request_id", p.RequestID, contracts.MaxIDLen)
	v.Range("attempt", p.Attempt, 1, MaxAttempts)
	return v.Err()
}

func (p *ToolPending) withAttempt(n int) Pending {
	c := *p
	c.Attempt = n
	return &c
}

// NextAttempt returns a copy of p with its attempt counter advanced by one.
// It fails with ErrAttemptsExhausted past MaxAttempts.
func NextAttempt(p Pending) (Pending, error) {
	if p == nil {
		return nil, fmt.Errorf("thread: next attempt: no pending state")
	}
	n := p.Attempts() + 1
	if n > MaxAttempts {
		return nil, fmt.Errorf("%w: %s at attempt %d", ErrAttemptsExhausted, p.Kind(), p.Attempts())
	}
	return p.withAttempt(n), nil
}
