package directive

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/decision"
	"github.com/Mindburn-Labs/turnkernel/pkg/gate"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

func resolved(m contracts.Move) *decision.Outcome {
	return &decision.Outcome{
		NextMove:         m,
		ExecutionAllowed: true,
		DispatchAllowed:  m.IsDispatch(),
		ReasonCode:       reasoncode.OKMoveResolved,
	}
}

func input(d *decision.Outcome, p Payload) Input {
	return Input{Envelope: contracts.DefaultEnvelope("corr-1", 7), Decision: d, Payload: p, Channel: ChannelVoice}
}

func reminder() contracts.IntentDraft {
	return contracts.IntentDraft{
		Type:           contracts.IntentSetReminder,
		Confidence:     contracts.ConfidenceHigh,
		FieldsComplete: true,
		Fields:         []contracts.IntentField{{Key: "task", Value: "water plants"}},
	}
}

func clarify() Clarify {
	return Clarify{
		Question:        "When should I remind you?",
		MissingField:    "when",
		AcceptedFormats: []string{"time of day", "relative duration"},
		Owner:           contracts.ClarifyEngineID,
	}
}

func TestBuild_EachMove(t *testing.T) {
	tests := []struct {
		payload Payload
		mode    Mode
	}{
		{Confirm{Text: "Set a reminder to water plants?"}, ModeSpeak},
		{clarify(), ModeSpeak},
		{Respond{Text: "It is 9 o'clock."}, ModeSpeak},
		{DispatchTool{RequestID: "req-1", ToolName: "weather", Query: "Lisbon tomorrow"}, ModeSilent},
		{DispatchSimulation{SimulationID: "sim-1", Intent: reminder()}, ModeSilent},
		{Wait{}, ModeSilent},
		{Wait{Reason: "Reconnecting."}, ModeSpeak},
		{Explain{Text: "I need your confirmation first."}, ModeSpeak},
	}
	for _, tt := range tests {
		t.Run(string(tt.payload.Move()), func(t *testing.T) {
			d, err := Build(input(resolved(tt.payload.Move()), tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.payload.Move(), d.Move)
			assert.Equal(t, tt.mode, d.Delivery.Mode)
			_, err = uuid.Parse(d.ID)
			assert.NoError(t, err)
		})
	}
}

func TestBuild_Refuse(t *testing.T) {
	d := &decision.Outcome{
		NextMove:   contracts.MoveRefuse,
		FailClosed: true,
		ReasonCode: gate.NameLease.FailureCode(),
		RootCause:  gate.NameLease,
	}
	out, err := Build(input(d, Refuse{ReasonCode: reasoncode.GateLeaseNotHeld, Message: "Not now."}))
	require.NoError(t, err)
	assert.True(t, out.FailClosed)
	assert.Equal(t, reasoncode.GateLeaseNotHeld, out.ReasonCode)

	_, err = Build(input(d, Refuse{ReasonCode: reasoncode.GateAccessDenied, Message: "Not now."}))
	assert.True(t, errors.Is(err, contracts.ErrInternalPipeline))
}

func TestBuild_IDIsDeterministic(t *testing.T) {
	p := Respond{Text: "Hello."}
	a, err := Build(input(resolved(contracts.MoveRespond), p))
	require.NoError(t, err)
	b, err := Build(input(resolved(contracts.MoveRespond), p))
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	other := input(resolved(contracts.MoveRespond), p)
	other.Envelope.TurnID = 8
	c, err := Build(other)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestBuild_Delivery(t *testing.T) {
	in := input(resolved(contracts.MoveRespond), Respond{Text: "Hi."})
	in.Channel = ChannelText
	in.SpeechInFlight = true
	d, err := Build(in)
	require.NoError(t, err)
	assert.Equal(t, Delivery{Mode: ModeText, CancelInFlightSpeech: true}, d.Delivery)

	d, err = Build(input(resolved(contracts.MoveConfirm), Confirm{Text: "Send it?"}))
	require.NoError(t, err)
	assert.False(t, d.Delivery.BargeInAllowed)

	d, err = Build(input(resolved(contracts.MoveRespond), Respond{Text: "Hi."}))
	require.NoError(t, err)
	assert.True(t, d.Delivery.BargeInAllowed)
}

func TestBuild_InvalidPayloads(t *testing.T) {
	oneFormat := clarify()
	oneFormat.AcceptedFormats = []string{"time of day"}
	fourFormats := clarify()
	fourFormats.AcceptedFormats = []string{"a", "b", "c", "d"}
	wrongOwner := clarify()
	wrongOwner.Owner = "engine.other"

	readOnly := reminder()
	readOnly.Type = contracts.IntentWeatherQuery
	control := reminder()
	control.Type = contracts.IntentCancel
	unsure := reminder()
	unsure.Confidence = contracts.ConfidenceMedium

	tests := []struct {
		name    string
		payload Payload
	}{
		{"empty confirm", Confirm{}},
		{"clarify one format", oneFormat},
		{"clarify four formats", fourFormats},
		{"clarify wrong owner", wrongOwner},
		{"empty respond", Respond{}},
		{"tool without query", DispatchTool{RequestID: "r", ToolName: "search"}},
		{"simulate read-only", DispatchSimulation{SimulationID: "s", Intent: readOnly}},
		{"simulate control", DispatchSimulation{SimulationID: "s", Intent: control}},
		{"simulate unsure", DispatchSimulation{SimulationID: "s", Intent: unsure}},
		{"long wait reason", Wait{Reason: string(make([]byte, MaxReasonLen+1))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(input(resolved(tt.payload.Move()), tt.payload))
			r, ok := contracts.AsRefusal(err)
			require.True(t, ok, "expected refusal, got %v", err)
			assert.Equal(t, reasoncode.ContractDirectiveInvalid, r.ReasonCode)
		})
	}
}

func TestBuild_MoveMismatchIsInternal(t *testing.T) {
	_, err := Build(input(resolved(contracts.MoveRespond), Explain{Text: "because"}))
	assert.True(t, errors.Is(err, contracts.ErrInternalPipeline))

	d := resolved(contracts.MoveDispatchTool)
	d.DispatchAllowed = false
	_, err = Build(input(d, DispatchTool{RequestID: "r", ToolName: "t", Query: "q"}))
	assert.True(t, errors.Is(err, contracts.ErrInternalPipeline))
}

func TestBuild_SchemaRefusal(t *testing.T) {
	_, err := Build(Input{Envelope: contracts.DefaultEnvelope("c", 1), Channel: ChannelVoice})
	r, ok := contracts.AsRefusal(err)
	require.True(t, ok)
	assert.Equal(t, reasoncode.ContractSchemaInvalid, r.ReasonCode)
}
