package kernel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/turnkernel/pkg/canonical"
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/decision"
	"github.com/Mindburn-Labs/turnkernel/pkg/directive"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
	"github.com/Mindburn-Labs/turnkernel/pkg/resume"
	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

// defaultFormats are offered when the runtime names no accepted formats.
var defaultFormats = []string{"spoken answer", "typed answer"}

// unknownField is clarified when the intent itself was not understood.
const unknownField = "intent"

// renderPayload builds the directive body for the resolved move. Missing
// runtime content is not papered over: Build refuses an empty body.
func renderPayload(t *Turn, intent *contracts.IntentDraft, prev thread.Pending, dec *decision.Outcome, dispatchID string) directive.Payload {
	c := t.Content
	switch dec.NextMove {
	case contracts.MoveWait:
		return directive.Wait{Reason: c.WaitReason}
	case contracts.MoveClarify:
		field := missingField(intent, prev)
		q := c.Question
		if q == "" {
			q = fmt.Sprintf("Could you tell me the %s?", humanize(field))
		}
		formats := c.AcceptedFormats
		if len(formats) == 0 {
			formats = defaultFormats
		}
		return directive.Clarify{
			Question:        q,
			MissingField:    field,
			AcceptedFormats: formats,
			Owner:           contracts.ClarifyEngineID,
		}
	case contracts.MoveConfirm:
		text := c.Text
		if text == "" {
			text = confirmPrompt(intent, c.DeferredMemory)
		}
		return directive.Confirm{Text: text}
	case contracts.MoveDispatchTool:
		return directive.DispatchTool{RequestID: dispatchID, ToolName: c.ToolName, Query: c.ToolQuery}
	case contracts.MoveDispatchSimulation:
		var in contracts.IntentDraft
		if intent != nil {
			in = intent.WithoutEvidence()
		}
		return directive.DispatchSimulation{SimulationID: dispatchID, Intent: in}
	case contracts.MoveExplain:
		return directive.Explain{Text: c.Text}
	case contracts.MoveRefuse:
		return directive.Refuse{
			ReasonCode: dec.ReasonCode,
			Message:    fmt.Sprintf("turn refused: %s gate did not hold", dec.RootCause),
		}
	default:
		return directive.Respond{Text: c.Text}
	}
}

func missingField(intent *contracts.IntentDraft, prev thread.Pending) string {
	if intent != nil && len(intent.MissingFields) > 0 {
		return intent.MissingFields[0]
	}
	if c, ok := prev.(*thread.ClarifyPending); ok {
		return c.MissingField
	}
	return unknownField
}

func confirmPrompt(intent *contracts.IntentDraft, deferred string) string {
	switch {
	case deferred != "":
		return "Should I remember that?"
	case intent != nil:
		return fmt.Sprintf("Should I go ahead with %s?", humanize(string(intent.Type)))
	default:
		return "Should I go ahead?"
	}
}

func humanize(s string) string { return strings.ReplaceAll(s, "_", " ") }

// sameIntent compares two drafts ignoring evidence spans.
func sameIntent(a, b contracts.IntentDraft) bool {
	ha, err := canonical.Hash64(a.WithoutEvidence())
	if err != nil {
		return false
	}
	hb, err := canonical.Hash64(b.WithoutEvidence())
	if err != nil {
		return false
	}
	return ha == hb
}

// nextPending derives the pending request left open by directive d. A
// re-asked question or a re-dispatched failed tool call advances its attempt
// counter; past the ceiling the error wraps thread.ErrAttemptsExhausted. An
// unanswered tool request survives moves that ask nothing of the user.
func nextPending(t *Turn, intent *contracts.IntentDraft, prev thread.Pending, d *directive.Directive) (thread.Pending, error) {
	switch p := d.Payload.(type) {
	case directive.Clarify:
		if c, ok := prev.(*thread.ClarifyPending); ok && c.MissingField == p.MissingField {
			return thread.NextAttempt(prev)
		}
		return &thread.ClarifyPending{MissingField: p.MissingField, Attempt: 1}, nil
	case directive.Confirm:
		if deferred := t.Content.DeferredMemory; deferred != "" {
			if m, ok := prev.(*thread.MemoryPermissionPending); ok && m.DeferredText == deferred {
				return thread.NextAttempt(prev)
			}
			return &thread.MemoryPermissionPending{DeferredText: deferred, Attempt: 1}, nil
		}
		if c, ok := prev.(*thread.ConfirmPending); ok && (intent == nil || sameIntent(c.Intent, *intent)) {
			return thread.NextAttempt(prev)
		}
		if intent == nil || !intent.Understood() {
			return nil, contracts.Refuse(contracts.CapabilityThread, reasoncode.ThreadPendingInvalid,
				"confirmation needs a fully understood intent")
		}
		return thread.NewConfirmPending(*intent), nil
	case directive.DispatchTool:
		if _, ok := prev.(*thread.ToolPending); ok && t.ToolResult != nil && !t.ToolResult.OK {
			retry, err := thread.NextAttempt(prev)
			if err != nil {
				return nil, err
			}
			return &thread.ToolPending{RequestID: p.RequestID, Attempt: retry.Attempts()}, nil
		}
		return &thread.ToolPending{RequestID: p.RequestID, Attempt: 1}, nil
	case directive.Wait:
		return prev, nil
	default:
		if tp, ok := prev.(*thread.ToolPending); ok && t.ToolResult == nil {
			return tp, nil
		}
		return nil, nil
	}
}

// displacedTool returns the request id of a tool call that this turn neither
// settled nor kept pending, or "" when there is none.
func displacedTool(t *Turn, prev, next thread.Pending) string {
	p, ok := prev.(*thread.ToolPending)
	if !ok || t.ToolResult != nil {
		return ""
	}
	if n, ok := next.(*thread.ToolPending); ok && n.RequestID == p.RequestID {
		return ""
	}
	return p.RequestID
}

// nextResume builds a buffer when the turn carries a speech snapshot and a
// qualifying interruption, and otherwise carries prev forward until it
// expires. A snapshot with a candidate that does not qualify means playback
// goes on; a snapshot with no candidate at all is refused.
func nextResume(t *Turn, prev *resume.Buffer, now resume.Instant, policy resume.Policy) (buf *resume.Buffer, interrupted bool, err error) {
	if t.Speech != nil {
		buf, err := resume.Build(t.Interruption, *t.Speech, now, policy)
		if err == nil {
			return buf, true, nil
		}
		if r, ok := contracts.AsRefusal(err); !ok || r.ReasonCode != reasoncode.ThreadResumeWithoutInterrupt || t.Interruption == nil {
			return nil, false, err
		}
	}
	if prev != nil && prev.Expired(now) {
		return nil, false, nil
	}
	return prev, false, nil
}

func isExhausted(err error) bool { return errors.Is(err, thread.ErrAttemptsExhausted) }
