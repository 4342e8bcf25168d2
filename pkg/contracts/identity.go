package contracts

import "fmt"

// UnknownSpeaker is the canonical sentinel for an unidentified speaker.
const UnknownSpeaker = "unknown"

// IdentityKind discriminates IdentityContext.
type IdentityKind string

const (
	IdentityVoice IdentityKind = "voice"
	IdentityText  IdentityKind = "text"
)

// VoiceStatus is the speaker-recognition verdict for a voice turn.
type VoiceStatus string

const (
	VoiceConfirmed VoiceStatus = "confirmed"
	VoiceUnknown   VoiceStatus = "unknown"
)

// IdentityContext is either a voice speaker assertion or a text-authenticated
// user id.
type IdentityContext struct {
	Kind        IdentityKind `json:"kind"`
	VoiceStatus VoiceStatus  `json:"voice_status,omitempty"`
	UserID      string       `json:"user_id,omitempty"`
}

// VoiceIdentity builds a voice assertion. An empty userID yields unknown.
func VoiceIdentity(userID string) IdentityContext {
	if userID == "" || userID == UnknownSpeaker {
		return IdentityContext{Kind: IdentityVoice, VoiceStatus: VoiceUnknown}
	}
	return IdentityContext{Kind: IdentityVoice, VoiceStatus: VoiceConfirmed, UserID: userID}
}

// TextIdentity builds a text-authenticated identity.
func TextIdentity(userID string) IdentityContext {
	return IdentityContext{Kind: IdentityText, UserID: userID}
}

// ResolvedUser returns the user this context resolves to, or UnknownSpeaker.
func (c IdentityContext) ResolvedUser() string {
	switch c.Kind {
	case IdentityVoice:
		if c.VoiceStatus == VoiceConfirmed {
			return c.UserID
		}
		return UnknownSpeaker
	case IdentityText:
		return c.UserID
	default:
		return UnknownSpeaker
	}
}

// Validate checks the variant shape.
func (c IdentityContext) Validate() error {
	var v Validator
	switch c.Kind {
	case IdentityVoice:
		switch c.VoiceStatus {
		case VoiceConfirmed:
			v.RequireText("user_id", c.UserID, MaxIDLen)
			if c.UserID == UnknownSpeaker {
				v.Add("user_id", CodeForbidden, "confirmed speaker cannot use the unknown sentinel")
			}
		case VoiceUnknown:
			if c.UserID != "" {
				v.Add("user_id", CodeForbidden, "unknown speaker must not carry a user id")
			}
		default:
			v.Add("voice_status", CodeInvalidValue, "unknown voice status %q", c.VoiceStatus)
		}
	case IdentityText:
		if c.VoiceStatus != "" {
			v.Add("voice_status", CodeForbidden, "text identity carries no voice status")
		}
		v.RequireText("user_id", c.UserID, MaxIDLen)
		if c.UserID == UnknownSpeaker {
			v.Add("user_id", CodeForbidden, "text identity cannot use the unknown sentinel")
		}
	default:
		v.Add("kind", CodeInvalidValue, "unknown identity kind %q", c.Kind)
	}
	return v.Err()
}

// CheckActiveSpeaker verifies that the turn's bound active speaker exactly
// matches the resolved user of c.
func (c IdentityContext) CheckActiveSpeaker(activeSpeaker string) error {
	if want := c.ResolvedUser(); activeSpeaker != want {
		return fmt.Errorf("active speaker %q does not match identity %q", activeSpeaker, want)
	}
	return nil
}
