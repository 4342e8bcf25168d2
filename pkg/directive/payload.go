package directive

import (
	"fmt"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

// Text bounds for outbound payloads.
const (
	MaxTextLen         = 2048
	MaxQuestionLen     = 512
	MaxReasonLen       = 256
	MaxToolNameLen     = 64
	MaxQueryLen        = 1024
	MinAcceptedFormats = 2
	MaxAcceptedFormats = 3
)

// Payload is the sealed set of directive bodies. Each variant maps to exactly
// one next move.
type Payload interface {
	Move() contracts.Move
	Validate() error
}

// Confirm asks the user to approve an action.
type Confirm struct {
	Text string `json:"text"`
}

func (Confirm) Move() contracts.Move { return contracts.MoveConfirm }

func (p Confirm) Validate() error {
	var v contracts.Validator
	v.RequireText("text", p.Text, MaxTextLen)
	return v.Err()
}

// Clarify asks for exactly one missing field.
type Clarify struct {
	Question        string   `json:"question"`
	MissingField    string   `json:"missing_field"`
	AcceptedFormats []string `json:"accepted_formats"`
	Owner           string   `json:"owner"`
}

func (Clarify) Move() contracts.Move { return contracts.MoveClarify }

func (p Clarify) Validate() error {
	var v contracts.Validator
	v.RequireText("question", p.Question, MaxQuestionLen)
	v.RequireText("missing_field", p.MissingField, contracts.MaxFieldKeyLen)
	v.Range("accepted_formats", len(p.AcceptedFormats), MinAcceptedFormats, MaxAcceptedFormats)
	for i, f := range p.AcceptedFormats {
		v.RequireText(fmt.Sprintf("accepted_formats[%d]", i), f, contracts.MaxFieldValueLen)
	}
	if p.Owner != contracts.ClarifyEngineID {
		v.Add("owner", contracts.CodeForbidden, "clarify owner %q is not %s", p.Owner, contracts.ClarifyEngineID)
	}
	return v.Err()
}

// Respond speaks or shows an answer.
type Respond struct {
	Text string `json:"text"`
}

func (Respond) Move() contracts.Move { return contracts.MoveRespond }

func (p Respond) Validate() error {
	var v contracts.Validator
	v.RequireText("text", p.Text, MaxTextLen)
	return v.Err()
}

// DispatchTool asks the runtime to run a read-only tool query.
type DispatchTool struct {
	RequestID string `json:"request_id"`
	ToolName  string `json:"tool_name"`
	Query     string `json:"query"`
}

func (DispatchTool) Move() contracts.Move { return contracts.MoveDispatchTool }

func (p DispatchTool) Validate() error {
	var v contracts.Validator
	v.RequireText("request_id", p.RequestID, contracts.MaxIDLen)
	v.RequireText("tool_name", p.ToolName, MaxToolNameLen)
	v.RequireText("query", p.Query, MaxQueryLen)
	return v.Err()
}

// DispatchSimulation hands a side-effecting intent to the simulation
// pipeline as a candidate. Evidence spans are not forwarded.
type DispatchSimulation struct {
	SimulationID string                `json:"simulation_id"`
	Intent       contracts.IntentDraft `json:"intent"`
}

func (DispatchSimulation) Move() contracts.Move { return contracts.MoveDispatchSimulation }

func (p DispatchSimulation) Validate() error {
	var v contracts.Validator
	v.RequireText("simulation_id", p.SimulationID, contracts.MaxIDLen)
	v.Merge("intent", p.Intent.Validate())
	switch t := p.Intent.Type; {
	case t.IsReadOnly():
		v.Add("intent.type", contracts.CodeForbidden, "read-only intent %q cannot be simulated", t)
	case t.IsConversationControl():
		v.Add("intent.type", contracts.CodeForbidden, "conversation-control intent %q cannot be simulated", t)
	}
	if !p.Intent.Understood() {
		v.Add("intent", contracts.CodeInvalidValue, "simulation candidate must be high confidence with complete fields")
	}
	return v.Err()
}

// Wait holds the turn, optionally saying why.
type Wait struct {
	Reason string `json:"reason,omitempty"`
}

func (Wait) Move() contracts.Move { return contracts.MoveWait }

func (p Wait) Validate() error {
	var v contracts.Validator
	v.OptionalText("reason", p.Reason, MaxReasonLen)
	return v.Err()
}

// Explain tells the user why something happened.
type Explain struct {
	Text string `json:"text"`
}

func (Explain) Move() contracts.Move { return contracts.MoveExplain }

func (p Explain) Validate() error {
	var v contracts.Validator
	v.RequireText("text", p.Text, MaxTextLen)
	return v.Err()
}

// Refuse declines the turn with a classified reason.
type Refuse struct {
	ReasonCode reasoncode.Code `json:"reason_code"`
	Message    string          `json:"message"`
}

func (Refuse) Move() contracts.Move { return contracts.MoveRefuse }

func (p Refuse) Validate() error {
	var v contracts.Validator
	if !p.ReasonCode.Known() || p.ReasonCode.IsOK() {
		v.Add("reason_code", contracts.CodeInvalidValue, "refusal needs a registered failure code, got %s", p.ReasonCode)
	}
	v.RequireText("message", p.Message, MaxTextLen)
	return v.Err()
}
