// Package identity resolves a turn's identity assertion into a
// contracts.IdentityContext. Text turns carry a signed JWT; voice turns carry
// the speaker-recognition verdict.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

// Defaults for issued text tokens.
const (
	DefaultIssuer   = "turnkernel/identity"
	DefaultAudience = "turnkernel.turn"
)

// Claims are the JWT claims of a text session token.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id,omitempty"`
}

// Assertion is the unverified identity carried by a turn.
type Assertion struct {
	Kind contracts.IdentityKind `json:"kind"`
	// Token is the session JWT for text turns.
	Token string `json:"token,omitempty"`
	// SpeakerID is the recognized speaker for voice turns, empty if unknown.
	SpeakerID string `json:"speaker_id,omitempty"`
}

// Resolved is a verified identity.
type Resolved struct {
	Context  contracts.IdentityContext
	TenantID string
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenManager builds a manager. The secret must be at least 32 bytes.
func NewTokenManager(secret []byte, issuer, audience string) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("identity: signing secret must be at least 32 bytes, got %d", len(secret))
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if audience == "" {
		audience = DefaultAudience
	}
	return &TokenManager{secret: secret, issuer: issuer, audience: audience, now: time.Now}, nil
}

// WithClock overrides the clock for deterministic testing.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// GenerateToken signs a token for userID valid for ttl.
func (tm *TokenManager) GenerateToken(userID, tenantID string, ttl time.Duration) (string, error) {
	now := tm.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
		},
		TenantID: tenantID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

// ValidateToken parses and verifies a token string.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Resolve verifies a and returns the identity context for the turn. Text
// tokens must name their tenant. Failures are refusals with
// THREAD_IDENTITY_INVALID; a done ctx is returned as is.
func (tm *TokenManager) Resolve(ctx context.Context, a Assertion) (*Resolved, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	switch a.Kind {
	case contracts.IdentityVoice:
		return ResolveVoice(a)
	case contracts.IdentityText:
		if a.SpeakerID != "" {
			return nil, refuse("text assertion must not carry a speaker id")
		}
		claims, err := tm.ValidateToken(a.Token)
		if err != nil {
			return nil, refuse("text token: %v", err)
		}
		if claims.TenantID == "" {
			return nil, refuse("text token has no tenant_id claim")
		}
		id := contracts.TextIdentity(claims.Subject)
		if err := id.Validate(); err != nil {
			return nil, refuse("%v", err)
		}
		return &Resolved{Context: id, TenantID: claims.TenantID}, nil
	default:
		return nil, refuse("unknown identity kind %q", a.Kind)
	}
}

// ResolveVoice resolves a voice assertion. It needs no token verifier: the
// speaker-recognition verdict is taken as asserted.
func ResolveVoice(a Assertion) (*Resolved, error) {
	if a.Kind != contracts.IdentityVoice {
		return nil, refuse("expected a voice assertion, got %q", a.Kind)
	}
	if a.Token != "" {
		return nil, refuse("voice assertion must not carry a token")
	}
	id := contracts.VoiceIdentity(a.SpeakerID)
	if err := id.Validate(); err != nil {
		return nil, refuse("%v", err)
	}
	return &Resolved{Context: id}, nil
}

func refuse(format string, args ...any) *contracts.Refusal {
	return contracts.Refuse(contracts.CapabilityIdentity, reasoncode.ThreadIdentityInvalid, format, args...)
}
