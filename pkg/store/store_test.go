package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/resume"
	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

func sampleState() thread.State {
	return thread.State{
		Pending: thread.NewConfirmPending(contracts.IntentDraft{
			Type:           contracts.IntentSendMessage,
			Confidence:     contracts.ConfidenceHigh,
			FieldsComplete: true,
			Fields:         []contracts.IntentField{{Key: "to", Value: "alex"}, {Key: "body", Value: "running late"}},
		}),
		Resume: &resume.Buffer{
			AnswerID:        "ans-9",
			SpokenPrefix:    "First.",
			UnsaidRemainder: " Second.",
			ExpiresAt:       12_000,
		},
		TopicRef:  "topic-messages",
		SpeakerID: "user-1",
	}
}

// exerciseStore runs the behaviour every ThreadStore must share.
func exerciseStore(t *testing.T, s ThreadStore) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Load(ctx, "thread-new")
	require.NoError(t, err)
	assert.True(t, got.Empty())

	want := sampleState()
	require.NoError(t, s.Save(ctx, "thread-1", want))
	got, err = s.Load(ctx, "thread-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loaded state mismatch (-want +got):\n%s", diff)
	}

	next := thread.State{Pending: &thread.ToolPending{RequestID: "req-1", Attempt: 1}}
	require.NoError(t, s.Save(ctx, "thread-1", next))
	got, err = s.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, next, got)

	invalid := thread.State{Pending: &thread.ClarifyPending{MissingField: "when", Attempt: 11}}
	assert.Error(t, s.Save(ctx, "thread-1", invalid))

	require.NoError(t, s.Delete(ctx, "thread-1"))
	got, err = s.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.True(t, got.Empty())

	assert.Error(t, s.Save(ctx, "", next))
	_, err = s.Load(ctx, strings.Repeat("x", MaxThreadIDLen+1))
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_SavingEmptyDeletes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, "t", sampleState()))
	assert.Equal(t, 1, s.Len())
	require.NoError(t, s.Save(ctx, "t", thread.State{}))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_CorruptRecord(t *testing.T) {
	s := NewMemoryStore()
	s.states["t"] = []byte(`{"pending":{"kind":"tool","tool":{"request_id":"r","attempt":99}}}`)

	_, err := s.Load(context.Background(), "t")
	assert.True(t, errors.Is(err, ErrCorrupt))
}
