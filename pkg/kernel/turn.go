package kernel

import (
	"fmt"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/decision"
	"github.com/Mindburn-Labs/turnkernel/pkg/directive"
	"github.com/Mindburn-Labs/turnkernel/pkg/gate"
	"github.com/Mindburn-Labs/turnkernel/pkg/identity"
	"github.com/Mindburn-Labs/turnkernel/pkg/resume"
	"github.com/Mindburn-Labs/turnkernel/pkg/store"
	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

// Readiness carries the runtime-observed admission signals that the kernel
// cannot derive on its own.
type Readiness struct {
	SessionActive       bool `json:"session_active"`
	PromptPolicyAllowed bool `json:"prompt_policy_allowed"`
	AccessAllowed       bool `json:"access_allowed"`
	BlueprintReady      bool `json:"blueprint_ready"`
	SimulationReady     bool `json:"simulation_ready"`
	LeaseHeld           bool `json:"lease_held"`
}

// Ready returns readiness with every signal set.
func Ready() Readiness {
	return Readiness{
		SessionActive:       true,
		PromptPolicyAllowed: true,
		AccessAllowed:       true,
		BlueprintReady:      true,
		SimulationReady:     true,
		LeaseHeld:           true,
	}
}

// ConfirmAnswer is the user's yes/no to a pending confirmation or memory
// permission question.
type ConfirmAnswer struct {
	Accepted bool `json:"accepted"`
}

// ToolResult reports that a dispatched tool request finished.
type ToolResult struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
}

// Content is the runtime-authored text rendered into the directive for the
// resolved move. Fields not used by that move are ignored.
type Content struct {
	Text            string   `json:"text,omitempty"`
	Question        string   `json:"question,omitempty"`
	AcceptedFormats []string `json:"accepted_formats,omitempty"`
	ToolName        string   `json:"tool_name,omitempty"`
	ToolQuery       string   `json:"tool_query,omitempty"`
	WaitReason      string   `json:"wait_reason,omitempty"`
	// DeferredMemory turns a confirm move into a memory-permission question.
	DeferredMemory string `json:"deferred_memory,omitempty"`
}

// Turn is one user turn as presented to the kernel.
type Turn struct {
	Envelope      contracts.Envelope `json:"envelope"`
	ThreadID      string             `json:"thread_id"`
	TenantID      string             `json:"tenant_id"`
	Channel       directive.Channel  `json:"channel"`
	Identity      identity.Assertion `json:"identity"`
	ActiveSpeaker string             `json:"active_speaker"`

	Intent         *contracts.IntentDraft  `json:"intent,omitempty"`
	Moves          decision.Moves          `json:"moves"`
	ClarifyOwner   string                  `json:"clarify_owner,omitempty"`
	Readiness      Readiness               `json:"readiness"`
	Governance     *gate.GovernanceSet     `json:"governance,omitempty"`
	Attributes     map[string]string       `json:"attributes,omitempty"`
	Outcomes       []gate.UtilizationEntry `json:"outcomes,omitempty"`
	OptionalBudget gate.OptionalBudget     `json:"optional_budget"`
	GuardFailures  []string                `json:"guard_failures,omitempty"`

	ConfirmAnswer  *ConfirmAnswer    `json:"confirm_answer,omitempty"`
	ToolResult     *ToolResult       `json:"tool_result,omitempty"`
	Interruption   *resume.Candidate `json:"interruption,omitempty"`
	Speech         *resume.Snapshot  `json:"speech,omitempty"`
	SpeechInFlight bool              `json:"speech_in_flight"`

	Content  Content `json:"content"`
	TopicRef string  `json:"topic_ref,omitempty"`
}

// Validate checks the turn-level fields. Nested values are checked by the
// capability that consumes them.
func (t *Turn) Validate() error {
	var v contracts.Validator
	v.RequireText("thread_id", t.ThreadID, store.MaxThreadIDLen)
	v.RequireText("tenant_id", t.TenantID, contracts.MaxIDLen)
	if t.Channel != directive.ChannelVoice && t.Channel != directive.ChannelText {
		v.Add("channel", contracts.CodeInvalidValue, "unknown channel %q", t.Channel)
	}
	v.RequireText("active_speaker", t.ActiveSpeaker, contracts.MaxIDLen)
	if t.Intent != nil {
		v.Merge("intent", t.Intent.Validate())
	}
	if t.ConfirmAnswer != nil && t.ToolResult != nil {
		v.Add("tool_result", contracts.CodeConflict, "a turn answers at most one pending request")
	}
	if t.ToolResult != nil {
		v.RequireText("tool_result.request_id", t.ToolResult.RequestID, contracts.MaxIDLen)
	}
	if len(t.Attributes) > contracts.MaxIntentFields {
		v.Add("attributes", contracts.CodeOutOfRange, "%d attributes exceeds %d", len(t.Attributes), contracts.MaxIntentFields)
	}
	for k, val := range t.Attributes {
		field := fmt.Sprintf("attributes[%s]", k)
		v.RequireText(field, k, contracts.MaxFieldKeyLen)
		v.OptionalText(field, val, contracts.MaxFieldValueLen)
	}
	v.OptionalText("content.deferred_memory", t.Content.DeferredMemory, thread.MaxDeferredTextLen)
	v.OptionalText("topic_ref", t.TopicRef, thread.MaxTopicRefLen)
	return v.Err()
}

// TurnResult is everything the runtime needs to act on a turn.
type TurnResult struct {
	RequestID string               `json:"request_id"`
	Gates     *gate.Outcome        `json:"gates"`
	Decision  *decision.Outcome    `json:"decision"`
	Directive *directive.Directive `json:"directive"`
	State     thread.State         `json:"state"`
	// Remember is the deferred text the user just allowed to be stored.
	Remember string `json:"remember,omitempty"`
}
