package governance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/turnkernel/pkg/gate"
)

func ordinaryTurn() Input {
	return Input{TenantID: "tenant-a", UserID: "user-1", IntentType: "set_reminder", SideEffecting: true, Channel: "voice", QuotaOK: true}
}

func TestDefaultPolicy_AllowsOrdinaryTurn(t *testing.T) {
	e, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)

	got := e.Decide(context.Background(), ordinaryTurn())
	assert.Equal(t, gate.AllowAll(), got)
	assert.False(t, got.Contradiction())
}

func TestDefaultPolicy_QuotaExhaustedContradicts(t *testing.T) {
	e, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)

	in := ordinaryTurn()
	in.QuotaOK = false
	got := e.Decide(context.Background(), in)
	assert.Equal(t, gate.Deny, got.Quota)
	assert.True(t, got.Contradiction())
}

func TestDefaultPolicy_UnknownSpeakerEscalatesSideEffects(t *testing.T) {
	e, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)

	in := ordinaryTurn()
	in.UserID = "unknown"
	assert.Equal(t, gate.Escalate, e.Decide(context.Background(), in).CapReq)

	in.SideEffecting = false
	assert.Equal(t, gate.Allow, e.Decide(context.Background(), in).CapReq)
}

func TestEngine_MissingRuleDenies(t *testing.T) {
	e, err := NewEngine(Policy{Rules: []Rule{{Domain: gate.DomainPolicy, Allow: "true"}}})
	require.NoError(t, err)

	got := e.Decide(context.Background(), ordinaryTurn())
	assert.Equal(t, gate.Allow, got.Policy)
	assert.Equal(t, gate.Deny, got.Tenant)
	assert.Equal(t, gate.Deny, got.CapReq)
}

func TestEngine_EvalErrorDenies(t *testing.T) {
	p := DefaultPolicy()
	p.Rules[0].Allow = `turn.attributes["region"] == "eu"`
	e, err := NewEngine(p)
	require.NoError(t, err)

	assert.Equal(t, gate.Deny, e.Decide(context.Background(), ordinaryTurn()).Policy)

	in := ordinaryTurn()
	in.Attributes = map[string]string{"region": "eu"}
	assert.Equal(t, gate.Allow, e.Decide(context.Background(), in).Policy)
}

func TestEngine_NonBooleanDenies(t *testing.T) {
	e, err := NewEngine(Policy{Rules: []Rule{{Domain: gate.DomainWork, Allow: "turn.tenant_id"}}})
	require.NoError(t, err)
	assert.Equal(t, gate.Deny, e.Decide(context.Background(), ordinaryTurn()).Work)
}

func TestNewEngine_Rejects(t *testing.T) {
	tests := []struct {
		name string
		p    Policy
	}{
		{"unknown domain", Policy{Rules: []Rule{{Domain: "budget", Allow: "true"}}}},
		{"duplicate", Policy{Rules: []Rule{{Domain: gate.DomainGov, Allow: "true"}, {Domain: gate.DomainGov, Allow: "false"}}}},
		{"empty allow", Policy{Rules: []Rule{{Domain: gate.DomainGov}}}},
		{"syntax", Policy{Rules: []Rule{{Domain: gate.DomainGov, Allow: "turn.("}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.p)
			assert.Error(t, err)
		})
	}
}

func TestEngine_PolicyHashIsStable(t *testing.T) {
	a, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)
	b, err := NewEngine(DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, a.PolicyHash(), b.PolicyHash())

	p := DefaultPolicy()
	p.Rules[2].Allow = "false"
	c, err := NewEngine(p)
	require.NoError(t, err)
	assert.NotEqual(t, a.PolicyHash(), c.PolicyHash())
}
