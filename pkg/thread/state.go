// Package thread models the conversational state carried between turns.
//
// State is replaced wholesale by each turn; there is no partial merge. Every
// read and write goes through Validate.
package thread

import (
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
	"github.com/Mindburn-Labs/turnkernel/pkg/resume"
)

// MaxTopicRefLen bounds the topic-continuity reference.
const MaxTopicRefLen = 256

// State is the persisted turn-to-turn record for one conversation.
type State struct {
	Pending   Pending
	Resume    *resume.Buffer
	TopicRef  string
	SpeakerID string
}

// Empty reports whether s carries nothing.
func (s *State) Empty() bool {
	return s.Pending == nil && s.Resume == nil && s.TopicRef == "" && s.SpeakerID == ""
}

// Validate checks every invariant of s.
func (s *State) Validate() error {
	var v contracts.Validator
	if s.Pending != nil {
		v.Merge("pending."+string(s.Pending.Kind()), s.Pending.Validate())
	}
	if s.Resume != nil {
		v.Merge("resume", s.Resume.Validate())
	}
	v.OptionalText("topic_ref", s.TopicRef, MaxTopicRefLen)
	v.OptionalText("speaker_id", s.SpeakerID, contracts.MaxIDLen)
	return v.Err()
}

// Check validates s and returns a refusal for the thread capability.
func (s *State) Check() *contracts.Refusal {
	if err := s.Validate(); err != nil {
		return contracts.Refuse(contracts.CapabilityThread, reasoncode.ThreadPendingInvalid, "%v", err)
	}
	return nil
}

// AcceptConfirmAnswer reports whether a confirm or memory-permission answer
// may be applied to s. Any other pending state makes the answer a contract
// violation.
func (s *State) AcceptConfirmAnswer() error {
	switch s.Pending.(type) {
	case *ConfirmPending, *MemoryPermissionPending:
		return nil
	case nil:
		return contracts.Refuse(contracts.CapabilityThread, reasoncode.ThreadConfirmAnswerUnexpected,
			"confirm answer with no pending state")
	default:
		return contracts.Refuse(contracts.CapabilityThread, reasoncode.ThreadConfirmAnswerUnexpected,
			"confirm answer while pending %s", s.Pending.Kind())
	}
}

// AcceptToolResult checks that a tool result answers the pending tool request.
func (s *State) AcceptToolResult(requestID string) error {
	p, ok := s.Pending.(*ToolPending)
	if !ok {
		return contracts.Refuse(contracts.CapabilityThread, reasoncode.ThreadToolResultUnexpected,
			"tool result %q with no pending tool request", requestID)
	}
	if p.RequestID != requestID {
		return contracts.Refuse(contracts.CapabilityThread, reasoncode.ThreadToolResultUnexpected,
			"tool result %q does not answer pending request %q", requestID, p.RequestID)
	}
	return nil
}

// VerifySpeaker checks the current turn's identity against its bound active
// speaker. The SpeakerID carried in s is advisory and is not consulted.
func (s *State) VerifySpeaker(identity contracts.IdentityContext, activeSpeaker string) error {
	if err := identity.Validate(); err != nil {
		return contracts.Refuse(contracts.CapabilityIdentity, reasoncode.ThreadIdentityInvalid, "%v", err)
	}
	if err := identity.CheckActiveSpeaker(activeSpeaker); err != nil {
		return contracts.Refuse(contracts.CapabilityIdentity, reasoncode.ThreadSpeakerMismatch, "%v", err)
	}
	return nil
}

type pendingWire struct {
	Kind             PendingKind              `json:"kind"`
	Clarify          *ClarifyPending          `json:"clarify,omitempty"`
	Confirm          *ConfirmPending          `json:"confirm,omitempty"`
	MemoryPermission *MemoryPermissionPending `json:"memory_permission,omitempty"`
	Tool             *ToolPending             `json:"tool,omitempty"`
}

type stateWire struct {
	Pending   *pendingWire   `json:"pending,omitempty"`
	Resume    *resume.Buffer `json:"resume,omitempty"`
	TopicRef  string         `json:"topic_ref,omitempty"`
	SpeakerID string         `json:"speaker_id,omitempty"`
}

// MarshalJSON encodes Pending as a tagged union.
func (s State) MarshalJSON() ([]byte, error) {
	w := stateWire{Resume: s.Resume, TopicRef: s.TopicRef, SpeakerID: s.SpeakerID}
	switch p := s.Pending.(type) {
	case nil:
	case *ClarifyPending:
		w.Pending = &pendingWire{Kind: KindClarify, Clarify: p}
	case *ConfirmPending:
		w.Pending = &pendingWire{Kind: KindConfirm, Confirm: p}
	case *MemoryPermissionPending:
		w.Pending = &pendingWire{Kind: KindMemoryPermission, MemoryPermission: p}
	case *ToolPending:
		w.Pending = &pendingWire{Kind: KindTool, Tool: p}
	default:
		return nil, fmt.Errorf("thread: unknown pending type %T", p)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the tagged union written by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var w stateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := State{Resume: w.Resume, TopicRef: w.TopicRef, SpeakerID: w.SpeakerID}
	if w.Pending != nil {
		p, err := w.Pending.decode()
		if err != nil {
			return err
		}
		out.Pending = p
	}
	*s = out
	return nil
}

func (w *pendingWire) decode() (Pending, error) {
	var (
		p   Pending
		set int
	)
	if w.Clarify != nil {
		p, set = w.Clarify, set+1
	}
	if w.Confirm != nil {
		p, set = w.Confirm, set+1
	}
	if w.MemoryPermission != nil {
		p, set = w.MemoryPermission, set+1
	}
	if w.Tool != nil {
		p, set = w.Tool, set+1
	}
	if set != 1 {
		return nil, fmt.Errorf("thread: pending must carry exactly one variant, got %d", set)
	}
	if p.Kind() != w.Kind {
		return nil, fmt.Errorf("thread: pending kind %q does not match %s payload", w.Kind, p.Kind())
	}
	return p, nil
}
