package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
)

const validTurn = `{
  "envelope": {"schema_version": "1.0.0", "correlation_id": "corr-1", "turn_id": 1,
               "max_guard_failures": 8, "max_diagnostics": 20, "max_outcome_entries": 64},
  "thread_id": "thread-1",
  "tenant_id": "tenant-a",
  "channel": "voice",
  "identity": {"kind": "voice", "speaker_id": "user-1"},
  "active_speaker": "user-1",
  "intent": {"type": "chat", "confidence": "high", "fields_complete": true},
  "moves": {"chat": true},
  "readiness": {"session_active": true},
  "content": {"text": "Hello there."}
}`

func mutate(t *testing.T, fn func(m map[string]any)) []byte {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(validTurn), &m))
	fn(m)
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	var es contracts.ValidationErrors
	require.ErrorAs(t, err, &es)
	out := make(map[string]string, len(es))
	for _, e := range es {
		out[e.Field] = e.Code
	}
	return out
}

func TestValidateTurn_Valid(t *testing.T) {
	require.NoError(t, ValidateTurn([]byte(validTurn)))
}

func TestValidateTurn_Violations(t *testing.T) {
	tests := []struct {
		name  string
		raw   []byte
		field string
		code  string
	}{
		{
			name:  "missing thread",
			raw:   mutate(t, func(m map[string]any) { delete(m, "thread_id") }),
			field: "/",
			code:  contracts.CodeRequired,
		},
		{
			name:  "unknown channel",
			raw:   mutate(t, func(m map[string]any) { m["channel"] = "fax" }),
			field: "/channel",
			code:  contracts.CodeInvalidValue,
		},
		{
			name:  "zero turn id",
			raw:   mutate(t, func(m map[string]any) { m["envelope"].(map[string]any)["turn_id"] = 0 }),
			field: "/envelope/turn_id",
			code:  contracts.CodeOutOfRange,
		},
		{
			name:  "unknown top-level field",
			raw:   mutate(t, func(m map[string]any) { m["mood"] = "cheerful" }),
			field: "/",
			code:  contracts.CodeForbidden,
		},
		{
			name: "both answers",
			raw: mutate(t, func(m map[string]any) {
				m["confirm_answer"] = map[string]any{"accepted": true}
				m["tool_result"] = map[string]any{"request_id": "tool-1", "ok": true}
			}),
			field: "/",
			code:  contracts.CodeForbidden,
		},
		{
			name:  "malformed",
			raw:   []byte(`{"thread_id":`),
			field: "/",
			code:  contracts.CodeInvalidValue,
		},
		{
			name:  "trailing data",
			raw:   []byte(validTurn + `{}`),
			field: "/",
			code:  contracts.CodeInvalidValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fields(t, ValidateTurn(tt.raw))
			assert.Equal(t, tt.code, got[tt.field], "violations: %v", got)
		})
	}
}

func TestTurnSchema_IsCopy(t *testing.T) {
	a := TurnSchema()
	a[0] = 'x'
	assert.Equal(t, byte('{'), TurnSchema()[0])
}
