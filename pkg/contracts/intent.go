package contracts

import "fmt"

// Text and list bounds for intent drafts.
const (
	MaxFieldKeyLen   = 64
	MaxFieldValueLen = 512
	MaxIntentFields  = 32
	MaxEvidenceSpans = 32
	MaxEvidenceLen   = 512
	MaxMissingFields = 16
)

// IntentType classifies what the user asked for.
type IntentType string

// Read-only / tool-query intents.
const (
	IntentTimeQuery     IntentType = "time_query"
	IntentWeatherQuery  IntentType = "weather_query"
	IntentWebSearch     IntentType = "web_search"
	IntentNewsQuery     IntentType = "news_query"
	IntentDocumentQuery IntentType = "document_query"
)

// Conversation-control intents.
const (
	IntentCancel   IntentType = "cancel"
	IntentRepeat   IntentType = "repeat"
	IntentPause    IntentType = "pause"
	IntentContinue IntentType = "continue"
)

// Side-effecting intents.
const (
	IntentSetReminder      IntentType = "set_reminder"
	IntentSendMessage      IntentType = "send_message"
	IntentCreateEvent      IntentType = "create_calendar_event"
	IntentUpdatePreference IntentType = "update_preference"
	IntentRememberFact     IntentType = "remember_fact"
)

// IntentChat is open conversation with no side effects.
const IntentChat IntentType = "chat"

// Known reports whether t is a registered intent type.
func (t IntentType) Known() bool {
	return t.IsReadOnly() || t.IsConversationControl() || t.IsSideEffecting() || t == IntentChat
}

// IsReadOnly reports whether t only queries tools.
func (t IntentType) IsReadOnly() bool {
	switch t {
	case IntentTimeQuery, IntentWeatherQuery, IntentWebSearch, IntentNewsQuery, IntentDocumentQuery:
		return true
	default:
		return false
	}
}

// IsConversationControl reports whether t steers the conversation itself.
func (t IntentType) IsConversationControl() bool {
	switch t {
	case IntentCancel, IntentRepeat, IntentPause, IntentContinue:
		return true
	default:
		return false
	}
}

// IsSideEffecting reports whether t changes state outside the conversation.
func (t IntentType) IsSideEffecting() bool {
	switch t {
	case IntentSetReminder, IntentSendMessage, IntentCreateEvent, IntentUpdatePreference, IntentRememberFact:
		return true
	default:
		return false
	}
}

// RequiresConfirmation reports whether executing t needs an explicit
// confirmation answer from the user first.
func (t IntentType) RequiresConfirmation() bool { return t.IsSideEffecting() }

// Confidence is the understanding engine's confidence band.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// IntentField is one normalized slot value.
type IntentField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EvidenceSpan ties a field to a verbatim transcript excerpt.
type EvidenceSpan struct {
	Field    string `json:"field"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Verbatim string `json:"verbatim"`
}

// IntentDraft is the understanding engine's proposal for this turn.
type IntentDraft struct {
	Type           IntentType     `json:"type"`
	Confidence     Confidence     `json:"confidence"`
	FieldsComplete bool           `json:"fields_complete"`
	Fields         []IntentField  `json:"fields,omitempty"`
	MissingFields  []string       `json:"missing_fields,omitempty"`
	EvidenceSpans  []EvidenceSpan `json:"evidence_spans,omitempty"`
}

// Understood reports whether d is actionable without clarification.
func (d IntentDraft) Understood() bool {
	return d.Confidence == ConfidenceHigh && d.FieldsComplete
}

// WithoutEvidence returns a copy of d with every verbatim evidence span removed.
func (d IntentDraft) WithoutEvidence() IntentDraft {
	out := d
	out.EvidenceSpans = nil
	out.Fields = append([]IntentField(nil), d.Fields...)
	out.MissingFields = append([]string(nil), d.MissingFields...)
	return out
}

// Validate checks structure and bounds.
func (d IntentDraft) Validate() error {
	var v Validator
	if !d.Type.Known() {
		v.Add("type", CodeInvalidValue, "unknown intent type %q", d.Type)
	}
	if !d.Confidence.valid() {
		v.Add("confidence", CodeInvalidValue, "unknown confidence %q", d.Confidence)
	}
	if len(d.Fields) > MaxIntentFields {
		v.Add("fields", CodeOutOfRange, "%d fields exceeds %d", len(d.Fields), MaxIntentFields)
	}
	seen := make(map[string]bool, len(d.Fields))
	for i, f := range d.Fields {
		field := fmt.Sprintf("fields[%d]", i)
		v.RequireText(field+".key", f.Key, MaxFieldKeyLen)
		v.OptionalText(field+".value", f.Value, MaxFieldValueLen)
		if seen[f.Key] {
			v.Add(field+".key", CodeConflict, "duplicate key %q", f.Key)
		}
		seen[f.Key] = true
	}
	if len(d.MissingFields) > MaxMissingFields {
		v.Add("missing_fields", CodeOutOfRange, "%d missing fields exceeds %d", len(d.MissingFields), MaxMissingFields)
	}
	for i, m := range d.MissingFields {
		v.RequireText(fmt.Sprintf("missing_fields[%d]", i), m, MaxFieldKeyLen)
	}
	if d.FieldsComplete != (len(d.MissingFields) == 0) {
		v.Add("fields_complete", CodeConflict, "fields_complete=%t with %d missing fields", d.FieldsComplete, len(d.MissingFields))
	}
	if len(d.EvidenceSpans) > MaxEvidenceSpans {
		v.Add("evidence_spans", CodeOutOfRange, "%d spans exceeds %d", len(d.EvidenceSpans), MaxEvidenceSpans)
	}
	for i, e := range d.EvidenceSpans {
		field := fmt.Sprintf("evidence_spans[%d]", i)
		v.RequireText(field+".field", e.Field, MaxFieldKeyLen)
		v.RequireText(field+".verbatim", e.Verbatim, MaxEvidenceLen)
		if e.Start < 0 || e.End <= e.Start {
			v.Add(field, CodeOutOfRange, "span [%d,%d) is empty or negative", e.Start, e.End)
		}
	}
	return v.Err()
}
