package resume

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Defaults for interruption qualification and resume expiry.
const (
	DefaultTTL       = 10 * time.Second
	DefaultThreshold = 0.7
	MaxPhrases       = 64
)

// DefaultPhrases are the stock barge-in phrases.
var DefaultPhrases = []string{"wait", "stop", "hold on", "hang on", "excuse me", "one second", "actually"}

// Thresholds is the minimum value each signal must reach.
type Thresholds struct {
	Acoustic     float64 `json:"acoustic" yaml:"acoustic"`
	Prosody      float64 `json:"prosody" yaml:"prosody"`
	Lexical      float64 `json:"lexical" yaml:"lexical"`
	SpeakerMatch float64 `json:"speaker_match" yaml:"speaker_match"`
	EchoSafe     float64 `json:"echo_safe" yaml:"echo_safe"`
}

// Policy decides which interruptions qualify and how long a buffer lives.
type Policy struct {
	Phrases    []string      `json:"phrases" yaml:"phrases"`
	Thresholds Thresholds    `json:"thresholds" yaml:"thresholds"`
	TTL        time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		Phrases: append([]string(nil), DefaultPhrases...),
		Thresholds: Thresholds{
			Acoustic:     DefaultThreshold,
			Prosody:      DefaultThreshold,
			Lexical:      DefaultThreshold,
			SpeakerMatch: DefaultThreshold,
			EchoSafe:     DefaultThreshold,
		},
		TTL: DefaultTTL,
	}
}

// Normalize fills an unset TTL, phrase list or threshold block with defaults,
// clamps thresholds to [0,1] and folds phrases into their match form. An
// explicit zero threshold inside a set block is kept.
func (p Policy) Normalize() Policy {
	out := p
	if out.TTL <= 0 {
		out.TTL = DefaultTTL
	}
	if out.Thresholds == (Thresholds{}) {
		out.Thresholds = DefaultPolicy().Thresholds
	}
	out.Thresholds.Acoustic = clampThreshold(out.Thresholds.Acoustic)
	out.Thresholds.Prosody = clampThreshold(out.Thresholds.Prosody)
	out.Thresholds.Lexical = clampThreshold(out.Thresholds.Lexical)
	out.Thresholds.SpeakerMatch = clampThreshold(out.Thresholds.SpeakerMatch)
	out.Thresholds.EchoSafe = clampThreshold(out.Thresholds.EchoSafe)

	src := p.Phrases
	if len(src) == 0 {
		src = DefaultPhrases
	}
	seen := make(map[string]bool, len(src))
	out.Phrases = nil
	for _, ph := range src {
		f := foldPhrase(ph)
		if f == "" || seen[f] || len(out.Phrases) >= MaxPhrases {
			continue
		}
		seen[f] = true
		out.Phrases = append(out.Phrases, f)
	}
	return out
}

// MatchPhrase reports whether utterance is one of the policy phrases after
// NFKC normalization, case folding and whitespace collapsing.
func (p Policy) MatchPhrase(utterance string) bool {
	u := foldPhrase(utterance)
	if u == "" {
		return false
	}
	for _, ph := range p.Phrases {
		if foldPhrase(ph) == u {
			return true
		}
	}
	return false
}

func foldPhrase(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = strings.Trim(s, " \t\r\n.,!?;:")
	return strings.Join(strings.Fields(s), " ")
}

func clampThreshold(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
