package contracts

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

func codes(t *testing.T, err error) map[string]string {
	t.Helper()
	var es ValidationErrors
	require.ErrorAs(t, err, &es)
	out := make(map[string]string, len(es))
	for _, e := range es {
		out[e.Field] = e.Code
	}
	return out
}

func TestCheckSchemaVersion(t *testing.T) {
	assert.NoError(t, CheckSchemaVersion(SchemaVersion))
	assert.Error(t, CheckSchemaVersion(""))
	assert.Error(t, CheckSchemaVersion("one"))
	assert.Error(t, CheckSchemaVersion("1.0.1"), "a newer patch is still a mismatch")
	assert.Error(t, CheckSchemaVersion("2.0.0"))
}

func TestEnvelope_Check(t *testing.T) {
	env := DefaultEnvelope("corr-1", 1)
	assert.Nil(t, env.Check(CapabilityGate))

	t.Run("version mismatch has its own code", func(t *testing.T) {
		e := env
		e.SchemaVersion = "0.9.0"
		r := e.Check(CapabilityGate)
		require.NotNil(t, r)
		assert.Equal(t, reasoncode.ContractSchemaVersionMismatch, r.ReasonCode)
		assert.Equal(t, CapabilityGate, r.Capability)
	})

	t.Run("caps outside ceilings", func(t *testing.T) {
		e := env
		e.MaxGuardFailures = MaxGuardFailuresCeiling + 1
		e.MaxDiagnostics = 0
		e.TurnID = 0
		r := e.Check(CapabilityDecision)
		require.NotNil(t, r)
		assert.Equal(t, reasoncode.ContractSchemaInvalid, r.ReasonCode)

		got := codes(t, e.Validate())
		assert.Equal(t, CodeOutOfRange, got["max_guard_failures"])
		assert.Equal(t, CodeOutOfRange, got["max_diagnostics"])
		assert.Equal(t, CodeRequired, got["turn_id"])
	})
}

func TestValidator(t *testing.T) {
	var v Validator
	assert.NoError(t, v.Err())

	v.RequireText("a", "  ", 10)
	v.RequireText("b", strings.Repeat("x", 11), 10)
	v.OptionalText("c", "", 1)
	v.OptionalText("d", "\xff", 10)
	v.Unit("e", 1.5)
	v.Merge("nested", ValidationErrors{{Field: "leaf", Code: CodeConflict, Message: "clash"}})
	v.Merge("plain", errors.New("boom"))

	got := codes(t, v.Err())
	assert.Equal(t, map[string]string{
		"a":           CodeRequired,
		"b":           CodeTooLong,
		"d":           CodeInvalidUTF8,
		"e":           CodeOutOfRange,
		"nested.leaf": CodeConflict,
		"plain":       CodeInvalidValue,
	}, got)
}

func TestIntentDraft(t *testing.T) {
	d := IntentDraft{
		Type:           IntentSetReminder,
		Confidence:     ConfidenceHigh,
		FieldsComplete: true,
		Fields:         []IntentField{{Key: "when", Value: "tomorrow at 9"}},
		EvidenceSpans:  []EvidenceSpan{{Field: "when", Start: 10, End: 23, Verbatim: "tomorrow at 9"}},
	}
	require.NoError(t, d.Validate())
	assert.True(t, d.Understood())
	assert.True(t, d.Type.RequiresConfirmation())

	stripped := d.WithoutEvidence()
	assert.Empty(t, stripped.EvidenceSpans)
	assert.Len(t, d.EvidenceSpans, 1, "original keeps its evidence")
	stripped.Fields[0].Value = "changed"
	assert.Equal(t, "tomorrow at 9", d.Fields[0].Value, "copy does not alias fields")

	t.Run("structural failures", func(t *testing.T) {
		bad := IntentDraft{
			Type:           "teleport",
			Confidence:     "certain",
			FieldsComplete: true,
			Fields:         []IntentField{{Key: "k", Value: "1"}, {Key: "k", Value: "2"}},
			MissingFields:  []string{"when"},
			EvidenceSpans:  []EvidenceSpan{{Field: "k", Start: 5, End: 5, Verbatim: "x"}},
		}
		got := codes(t, bad.Validate())
		assert.Equal(t, CodeInvalidValue, got["type"])
		assert.Equal(t, CodeInvalidValue, got["confidence"])
		assert.Equal(t, CodeConflict, got["fields[1].key"])
		assert.Equal(t, CodeConflict, got["fields_complete"])
		assert.Equal(t, CodeOutOfRange, got["evidence_spans[0]"])
	})

	t.Run("medium confidence is not understood", func(t *testing.T) {
		m := d
		m.Confidence = ConfidenceMedium
		assert.False(t, m.Understood())
	})
}

func TestIntentType_Classes(t *testing.T) {
	for _, it := range []IntentType{IntentTimeQuery, IntentCancel, IntentRememberFact, IntentChat} {
		assert.True(t, it.Known(), it)
	}
	assert.False(t, IntentType("teleport").Known())
	assert.True(t, IntentWebSearch.IsReadOnly())
	assert.False(t, IntentWebSearch.RequiresConfirmation())
	assert.True(t, IntentPause.IsConversationControl())
	assert.True(t, IntentSendMessage.IsSideEffecting())
}

func TestIdentityContext(t *testing.T) {
	assert.Equal(t, "user-1", VoiceIdentity("user-1").ResolvedUser())
	assert.Equal(t, UnknownSpeaker, VoiceIdentity("").ResolvedUser())
	assert.Equal(t, UnknownSpeaker, VoiceIdentity(UnknownSpeaker).ResolvedUser())
	assert.Equal(t, "user-2", TextIdentity("user-2").ResolvedUser())
	assert.Equal(t, UnknownSpeaker, IdentityContext{Kind: "telepathy"}.ResolvedUser())

	require.NoError(t, VoiceIdentity("user-1").Validate())
	require.NoError(t, VoiceIdentity("").Validate())
	require.NoError(t, TextIdentity("user-2").Validate())

	got := codes(t, IdentityContext{Kind: IdentityVoice, VoiceStatus: VoiceUnknown, UserID: "user-1"}.Validate())
	assert.Equal(t, CodeForbidden, got["user_id"])
	got = codes(t, TextIdentity(UnknownSpeaker).Validate())
	assert.Equal(t, CodeForbidden, got["user_id"])
	got = codes(t, IdentityContext{Kind: IdentityText, VoiceStatus: VoiceConfirmed, UserID: "u"}.Validate())
	assert.Equal(t, CodeForbidden, got["voice_status"])

	assert.NoError(t, VoiceIdentity("user-1").CheckActiveSpeaker("user-1"))
	assert.Error(t, VoiceIdentity("user-1").CheckActiveSpeaker("user-2"))
	assert.NoError(t, VoiceIdentity("").CheckActiveSpeaker(UnknownSpeaker))
}

func TestMove(t *testing.T) {
	for _, m := range []Move{MoveWait, MoveClarify, MoveConfirm, MoveDispatchTool, MoveDispatchSimulation, MoveExplain, MoveRespond, MoveRefuse} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Move("dance").Valid())
	assert.True(t, MoveDispatchTool.IsDispatch())
	assert.True(t, MoveDispatchSimulation.IsDispatch())
	assert.False(t, MoveRespond.IsDispatch())
}

func TestRefusalAndInternalErrors(t *testing.T) {
	r := Refuse(CapabilityThread, reasoncode.ThreadSpeakerMismatch, "speaker %s", "user-2")
	wrapped := fmt.Errorf("kernel: %w", r)

	got, ok := AsRefusal(wrapped)
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Contains(t, r.Error(), "THREAD_SPEAKER_MISMATCH")
	assert.False(t, errors.Is(wrapped, ErrInternalPipeline))

	ie := Internal(CapabilityDirective, "payload %d", 7)
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", ie), ErrInternalPipeline))
	assert.Equal(t, reasoncode.ContractInternalPipeline, ie.ReasonCode())
	_, ok = AsRefusal(ie)
	assert.False(t, ok, "internal defects are never refusals")

	sr := SchemaRefusal(CapabilityGate, errors.New("bad"))
	assert.Equal(t, reasoncode.ContractSchemaInvalid, sr.ReasonCode)
}

func TestNewResponse(t *testing.T) {
	v := 42
	ok, err := NewResponse(&v, nil)
	require.NoError(t, err)
	assert.True(t, ok.IsOk())
	assert.Equal(t, SchemaVersion, ok.SchemaVersion)

	refused, err := NewResponse[int](nil, Refuse(CapabilityGate, reasoncode.GateSessionInactive, "inactive"))
	require.NoError(t, err)
	assert.False(t, refused.IsOk())
	require.NotNil(t, refused.Refuse)
	assert.Equal(t, reasoncode.GateSessionInactive, refused.Refuse.ReasonCode)

	_, err = NewResponse[int](nil, Internal(CapabilityKernel, "broken"))
	assert.ErrorIs(t, err, ErrInternalPipeline)

	_, err = NewResponse[int](nil, nil)
	assert.ErrorIs(t, err, ErrInternalPipeline)
}
