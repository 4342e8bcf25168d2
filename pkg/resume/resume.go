// Package resume turns an interrupted in-flight answer into a bounded,
// expiring buffer of what was already said and what remains.
package resume

import (
	"fmt"
	"unicode/utf8"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

// Text bounds.
const (
	MaxResponseLen  = 16 * 1024
	MaxTopicHintLen = 256
)

// Signals are the independent interruption confidences, each in [0,1].
type Signals struct {
	Acoustic     float64 `json:"acoustic"`
	Prosody      float64 `json:"prosody"`
	Lexical      float64 `json:"lexical"`
	SpeakerMatch float64 `json:"speaker_match"`
	EchoSafe     float64 `json:"echo_safe"`
}

// Validate checks every signal lies in [0,1].
func (s Signals) Validate() error {
	var v contracts.Validator
	v.Unit("acoustic", s.Acoustic)
	v.Unit("prosody", s.Prosody)
	v.Unit("lexical", s.Lexical)
	v.Unit("speaker_match", s.SpeakerMatch)
	v.Unit("echo_safe", s.EchoSafe)
	return v.Err()
}

// Candidate is a possible barge-in observed during playback.
type Candidate struct {
	Phrase  string  `json:"phrase"`
	Signals Signals `json:"signals"`
}

// Validate checks the candidate structure.
func (c Candidate) Validate() error {
	var v contracts.Validator
	v.RequireText("phrase", c.Phrase, contracts.MaxFieldValueLen)
	v.Merge("signals", c.Signals.Validate())
	return v.Err()
}

// Qualifies reports whether c is a real interruption under p: the phrase
// matches and every signal reaches its threshold.
func (p Policy) Qualifies(c Candidate) bool {
	if !p.MatchPhrase(c.Phrase) {
		return false
	}
	t := p.Thresholds
	s := c.Signals
	return s.Acoustic >= t.Acoustic &&
		s.Prosody >= t.Prosody &&
		s.Lexical >= t.Lexical &&
		s.SpeakerMatch >= t.SpeakerMatch &&
		s.EchoSafe >= t.EchoSafe
}

// Snapshot is the in-flight speech at the moment of interruption.
// SpokenCursor is a byte offset into Text.
type Snapshot struct {
	AnswerID     string `json:"answer_id"`
	TopicHint    string `json:"topic_hint,omitempty"`
	Text         string `json:"text"`
	SpokenCursor int    `json:"spoken_cursor"`
}

// Validate checks the snapshot, including that the cursor leaves a
// non-empty remainder and lands on a character boundary.
func (s Snapshot) Validate() error {
	var v contracts.Validator
	v.RequireText("answer_id", s.AnswerID, contracts.MaxIDLen)
	v.OptionalText("topic_hint", s.TopicHint, MaxTopicHintLen)
	v.RequireText("text", s.Text, MaxResponseLen)
	if err := s.checkCursor(); err != nil {
		v.Add("spoken_cursor", contracts.CodeOutOfRange, "%v", err)
	}
	return v.Err()
}

func (s Snapshot) checkCursor() error {
	if s.SpokenCursor < 0 || s.SpokenCursor >= len(s.Text) {
		return fmt.Errorf("cursor %d not in [0,%d)", s.SpokenCursor, len(s.Text))
	}
	if !onBoundary(s.Text, s.SpokenCursor) {
		return fmt.Errorf("cursor %d splits a character", s.SpokenCursor)
	}
	return nil
}

func onBoundary(s string, i int) bool {
	return i == 0 || i == len(s) || utf8.RuneStart(s[i])
}

// Buffer is the spoken/unsaid split of an interrupted answer.
type Buffer struct {
	AnswerID        string  `json:"answer_id"`
	TopicHint       string  `json:"topic_hint,omitempty"`
	SpokenPrefix    string  `json:"spoken_prefix"`
	UnsaidRemainder string  `json:"unsaid_remainder"`
	ExpiresAt       Instant `json:"expires_at"`
}

// Expired reports whether b has lapsed at now.
func (b *Buffer) Expired(now Instant) bool { return now >= b.ExpiresAt }

// Validate checks buffer invariants.
func (b *Buffer) Validate() error {
	var v contracts.Validator
	v.RequireText("answer_id", b.AnswerID, contracts.MaxIDLen)
	v.OptionalText("topic_hint", b.TopicHint, MaxTopicHintLen)
	v.OptionalText("spoken_prefix", b.SpokenPrefix, MaxResponseLen)
	v.RequireText("unsaid_remainder", b.UnsaidRemainder, MaxResponseLen)
	if b.ExpiresAt == 0 {
		v.Add("expires_at", contracts.CodeRequired, "must be set")
	}
	return v.Err()
}

// Build splits snap at its cursor. candidate is the interruption carried by
// the same turn; a nil or non-qualifying candidate is refused.
func Build(candidate *Candidate, snap Snapshot, now Instant, policy Policy) (*Buffer, error) {
	if candidate == nil {
		return nil, contracts.Refuse(contracts.CapabilityResume, reasoncode.ThreadResumeWithoutInterrupt,
			"resume buffer requires an interruption in the same turn")
	}
	if err := candidate.Validate(); err != nil {
		return nil, contracts.SchemaRefusal(contracts.CapabilityResume, fmt.Errorf("candidate: %w", err))
	}
	if err := snap.checkCursor(); err != nil {
		return nil, contracts.Refuse(contracts.CapabilityResume, reasoncode.ThreadResumeCursorInvalid, "%v", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, contracts.SchemaRefusal(contracts.CapabilityResume, err)
	}
	p := policy.Normalize()
	if !p.Qualifies(*candidate) {
		return nil, contracts.Refuse(contracts.CapabilityResume, reasoncode.ThreadResumeWithoutInterrupt,
			"interruption candidate does not qualify")
	}
	return &Buffer{
		AnswerID:        snap.AnswerID,
		TopicHint:       snap.TopicHint,
		SpokenPrefix:    snap.Text[:snap.SpokenCursor],
		UnsaidRemainder: snap.Text[snap.SpokenCursor:],
		ExpiresAt:       now.Add(p.TTL),
	}, nil
}
