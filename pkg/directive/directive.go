// Package directive renders the resolved next move into one validated
// outbound directive. Building a directive has no side effects; every effect
// is returned as data for the caller to execute.
package directive

import (
	"github.com/google/uuid"

	"github.com/Mindburn-Labs/turnkernel/pkg/canonical"
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/decision"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

// namespace scopes directive ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("turnkernel.directive.v1"))

// Channel is the surface the turn arrived on.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelText  Channel = "text"
)

// Mode is how the runtime should deliver the directive.
type Mode string

const (
	ModeSpeak  Mode = "speak"
	ModeText   Mode = "text"
	ModeSilent Mode = "silent"
)

// Delivery is the speech/delivery hint attached to a directive.
type Delivery struct {
	Mode                 Mode `json:"mode"`
	BargeInAllowed       bool `json:"barge_in_allowed"`
	CancelInFlightSpeech bool `json:"cancel_in_flight_speech"`
}

// Directive is the single outbound action for a turn.
type Directive struct {
	ID         string          `json:"id"`
	Move       contracts.Move  `json:"move"`
	ReasonCode reasoncode.Code `json:"reason_code"`
	FailClosed bool            `json:"fail_closed"`
	Payload    Payload         `json:"payload"`
	Delivery   Delivery        `json:"delivery"`
}

// Input is what Build needs: the decision and the content rendered for it.
type Input struct {
	Envelope       contracts.Envelope `json:"envelope"`
	Decision       *decision.Outcome  `json:"decision"`
	Payload        Payload            `json:"-"`
	Channel        Channel            `json:"channel"`
	SpeechInFlight bool               `json:"speech_in_flight"`
}

// Build validates in and returns the directive.
//
// A payload that fails its own validation is refused with
// CONTRACT_DIRECTIVE_INVALID. A payload whose move disagrees with the decision
// is an internal pipeline error.
func Build(in Input) (*Directive, error) {
	if r := in.Envelope.Check(contracts.CapabilityDirective); r != nil {
		return nil, r
	}
	var v contracts.Validator
	if in.Decision == nil {
		v.Add("decision", contracts.CodeRequired, "decision is required")
	} else if !in.Decision.NextMove.Valid() {
		v.Add("decision.next_move", contracts.CodeInvalidValue, "unknown move %q", in.Decision.NextMove)
	}
	if in.Payload == nil {
		v.Add("payload", contracts.CodeRequired, "payload is required")
	}
	if in.Channel != ChannelVoice && in.Channel != ChannelText {
		v.Add("channel", contracts.CodeInvalidValue, "unknown channel %q", in.Channel)
	}
	if err := v.Err(); err != nil {
		return nil, contracts.SchemaRefusal(contracts.CapabilityDirective, err)
	}

	d := in.Decision
	if in.Payload.Move() != d.NextMove {
		return nil, contracts.Internal(contracts.CapabilityDirective,
			"payload renders %s but decision resolved %s", in.Payload.Move(), d.NextMove)
	}
	if r, ok := in.Payload.(Refuse); ok && r.ReasonCode != d.ReasonCode {
		return nil, contracts.Internal(contracts.CapabilityDirective,
			"refusal carries %s but decision reported %s", r.ReasonCode, d.ReasonCode)
	}
	if d.NextMove.IsDispatch() && !d.DispatchAllowed {
		return nil, contracts.Internal(contracts.CapabilityDirective, "%s without dispatch permission", d.NextMove)
	}
	if err := in.Payload.Validate(); err != nil {
		return nil, contracts.Refuse(contracts.CapabilityDirective, reasoncode.ContractDirectiveInvalid,
			"%s: %v", d.NextMove, err)
	}

	out := &Directive{
		Move:       d.NextMove,
		ReasonCode: d.ReasonCode,
		FailClosed: d.FailClosed,
		Payload:    in.Payload,
		Delivery:   deliveryFor(d.NextMove, in.Payload, in.Channel, in.SpeechInFlight),
	}
	id, err := directiveID(in.Envelope, out)
	if err != nil {
		return nil, contracts.Internal(contracts.CapabilityDirective, "directive id: %v", err)
	}
	out.ID = id
	return out, nil
}

func deliveryFor(m contracts.Move, p Payload, ch Channel, speechInFlight bool) Delivery {
	out := Delivery{CancelInFlightSpeech: speechInFlight}
	switch m {
	case contracts.MoveDispatchTool, contracts.MoveDispatchSimulation:
		out.Mode = ModeSilent
		return out
	case contracts.MoveWait:
		if w, ok := p.(Wait); ok && w.Reason == "" {
			out.Mode = ModeSilent
			return out
		}
	}
	if ch == ChannelText {
		out.Mode = ModeText
		return out
	}
	out.Mode = ModeSpeak
	// A pending confirmation answer must be heard in full.
	out.BargeInAllowed = m != contracts.MoveConfirm
	return out
}

// directiveID is a name-based UUID over the canonical encoding of the turn
// identity and the directive content.
func directiveID(env contracts.Envelope, d *Directive) (string, error) {
	b, err := canonical.Bytes(map[string]any{
		"correlation_id": env.CorrelationID,
		"turn_id":        env.TurnID,
		"move":           d.Move,
		"payload":        d.Payload,
	})
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(namespace, b).String(), nil
}
