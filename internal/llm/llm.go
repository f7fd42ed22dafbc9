package llm

import (
	"context"
	"fmt"
	"strings"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerPatient   Speaker = "patient"
	SpeakerCounselor Speaker = "counselor"
)

// ParseSpeaker normalizes a raw speaker value. Input is case-insensitive.
func ParseSpeaker(s string) (Speaker, bool) {
	switch Speaker(strings.ToLower(strings.TrimSpace(s))) {
	case SpeakerPatient:
		return SpeakerPatient, true
	case SpeakerCounselor:
		return SpeakerCounselor, true
	}
	return "", false
}

// TranscriptEntry is one utterance of the session. Clients resend the full
// ordered transcript on every update, so entries always arrive in order.
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// AnalysisResult is the structured output of one analysis call.
type AnalysisResult struct {
	Problems  []string `json:"problems"`
	Nudges    []string `json:"nudges"`
	Sentiment []string `json:"sentiment"`
	FollowUp  string   `json:"follow_up"`
	Risk      []string `json:"risk"` // low, medium, high
}

// Client defines the interface for LLM providers.
type Client interface {
	// Analyze inspects the conversation and returns a structured analysis.
	// previousNudges are suggestions already surfaced on this connection so
	// the model can build on them instead of repeating itself.
	Analyze(ctx context.Context, transcripts []TranscriptEntry, previousNudges []string) (*AnalysisResult, error)
}

// FailureKind classifies why a provider call failed.
type FailureKind string

const (
	FailureRequest           FailureKind = "request"
	FailureAuth              FailureKind = "auth"
	FailureRateLimit         FailureKind = "rate_limit"
	FailureProvider          FailureKind = "provider"
	FailureMalformedResponse FailureKind = "malformed_response"
)

// ProviderError wraps a failed provider call with its failure class.
type ProviderError struct {
	Kind FailureKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
