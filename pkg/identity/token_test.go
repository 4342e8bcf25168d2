package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

var testSecret = []byte(strings.Repeat("k", 32))

func fixedNow() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(testSecret, "", "")
	require.NoError(t, err)
	return tm.WithClock(fixedNow)
}

func requireIdentityRefusal(t *testing.T, err error) {
	t.Helper()
	r, ok := contracts.AsRefusal(err)
	require.True(t, ok, "expected refusal, got %v", err)
	assert.Equal(t, reasoncode.ThreadIdentityInvalid, r.ReasonCode)
}

func TestResolve_Text(t *testing.T) {
	tm := newManager(t)
	tok, err := tm.GenerateToken("user-1", "tenant-a", time.Hour)
	require.NoError(t, err)

	got, err := tm.Resolve(context.Background(), Assertion{Kind: contracts.IdentityText, Token: tok})
	require.NoError(t, err)
	assert.Equal(t, contracts.TextIdentity("user-1"), got.Context)
	assert.Equal(t, "tenant-a", got.TenantID)
}

func TestResolve_Voice(t *testing.T) {
	tm := newManager(t)

	got, err := tm.Resolve(context.Background(), Assertion{Kind: contracts.IdentityVoice, SpeakerID: "user-2"})
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.Context.ResolvedUser())

	got, err = tm.Resolve(context.Background(), Assertion{Kind: contracts.IdentityVoice})
	require.NoError(t, err)
	assert.Equal(t, contracts.UnknownSpeaker, got.Context.ResolvedUser())
}

func TestResolve_RejectsBadTokens(t *testing.T) {
	tm := newManager(t)

	expired, err := tm.GenerateToken("user-1", "tenant-a", -time.Minute)
	require.NoError(t, err)

	other, err := NewTokenManager([]byte(strings.Repeat("x", 32)), "", "")
	require.NoError(t, err)
	forged, err := other.WithClock(fixedNow).GenerateToken("user-1", "tenant-a", time.Hour)
	require.NoError(t, err)

	foreign, err := NewTokenManager(testSecret, "someone-else", "")
	require.NoError(t, err)
	wrongIssuer, err := foreign.WithClock(fixedNow).GenerateToken("user-1", "tenant-a", time.Hour)
	require.NoError(t, err)

	noSubject, err := tm.GenerateToken("", "tenant-a", time.Hour)
	require.NoError(t, err)

	noTenant, err := tm.GenerateToken("user-1", "", time.Hour)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":      expired,
		"forged":       forged,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"no tenant":    noTenant,
		"garbage":      "not-a-jwt",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tm.Resolve(context.Background(), Assertion{Kind: contracts.IdentityText, Token: tok})
			requireIdentityRefusal(t, err)
		})
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	tm := newManager(t)
	tok, err := tm.GenerateToken("user-1", "tenant-a", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tm.Resolve(ctx, Assertion{Kind: contracts.IdentityText, Token: tok})
	require.ErrorIs(t, err, context.Canceled)
	_, isRefusal := contracts.AsRefusal(err)
	assert.False(t, isRefusal)
}

func TestResolve_RejectsMixedAssertions(t *testing.T) {
	tm := newManager(t)
	_, err := tm.Resolve(context.Background(), Assertion{Kind: contracts.IdentityVoice, Token: "x"})
	requireIdentityRefusal(t, err)
	_, err = tm.Resolve(context.Background(), Assertion{Kind: contracts.IdentityText, SpeakerID: "user-1"})
	requireIdentityRefusal(t, err)
	_, err = tm.Resolve(context.Background(), Assertion{Kind: "retina"})
	requireIdentityRefusal(t, err)
}

func TestNewTokenManager_ShortSecret(t *testing.T) {
	_, err := NewTokenManager([]byte("short"), "", "")
	assert.Error(t, err)
}

func TestResolveVoice_WithoutManager(t *testing.T) {
	got, err := ResolveVoice(Assertion{Kind: contracts.IdentityVoice, SpeakerID: "user-3"})
	require.NoError(t, err)
	assert.Equal(t, contracts.VoiceConfirmed, got.Context.VoiceStatus)
	assert.Empty(t, got.TenantID)

	_, err = ResolveVoice(Assertion{Kind: contracts.IdentityText, Token: "x"})
	requireIdentityRefusal(t, err)

	_, err = ResolveVoice(Assertion{Kind: contracts.IdentityVoice, SpeakerID: strings.Repeat("s", contracts.MaxIDLen+1)})
	requireIdentityRefusal(t, err)
}
