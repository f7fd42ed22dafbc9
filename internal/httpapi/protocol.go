package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/mzelinka/attune/internal/llm"
)

// Inbound message envelope. Transcripts carries the full conversation to
// date, not a delta; only the last entry decides what happens.
type inboundMessage struct {
	Type        string                `json:"type"`
	Transcripts []llm.TranscriptEntry `json:"transcripts"`
}

// outboundEnvelope is the tagged shape of everything the server sends.
type outboundEnvelope struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}

const (
	messageTypeTranscript = "transcript"
	messageTypePing       = "ping"

	envelopeConnected    = "connected"
	envelopeAcknowledged = "acknowledged"
	envelopeAnalysis     = "analysis"
	envelopePong         = "pong"
	envelopeError        = "error"
)

const (
	welcomeMessage        = "Connected to counselor analysis. Send the full transcripts array to get analysis."
	acknowledgedMessage   = "Transcript received"
	pongMessage           = "alive"
	invalidSpeakerMessage = "Speaker must be 'patient' or 'counselor'"
	emptyTranscriptsError = "Transcripts array is empty"
	emptyTextError        = "Transcript entry has no text"
)

func errorEnvelope(msg string) outboundEnvelope {
	return outboundEnvelope{Type: envelopeError, Message: msg}
}

// routeTranscript validates the transcript array, branches on the speaker of
// the last entry, and returns the envelope to send back. previousNudges is
// only mutated after a successful analysis.
func (s *session) routeTranscript(ctx context.Context, entries []llm.TranscriptEntry) outboundEnvelope {
	if len(entries) == 0 {
		return errorEnvelope(emptyTranscriptsError)
	}

	last := entries[len(entries)-1]
	speaker, ok := llm.ParseSpeaker(last.Speaker)
	if !ok {
		return errorEnvelope(invalidSpeakerMessage)
	}
	if last.Text == "" {
		return errorEnvelope(emptyTextError)
	}

	switch speaker {
	case llm.SpeakerCounselor:
		return outboundEnvelope{Type: envelopeAcknowledged, Message: acknowledgedMessage}

	case llm.SpeakerPatient:
		result, err := s.llmClient.Analyze(ctx, entries, s.previousNudges)
		if err != nil {
			s.logger.Printf("session_ws: analysis failed for session %s: %v", s.id, err)
			captureError(err, s.id, "session_ws: analysis failed")
			return errorEnvelope(describeAnalysisFailure(err))
		}

		// Nudges accumulate for the life of the connection; later model calls
		// see everything already suggested.
		s.previousNudges = append(s.previousNudges, result.Nudges...)
		return outboundEnvelope{Type: envelopeAnalysis, Message: result}
	}

	return errorEnvelope(invalidSpeakerMessage)
}

// describeAnalysisFailure turns a model-call error into a client-facing
// message naming the failure class without leaking provider internals.
func describeAnalysisFailure(err error) string {
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case llm.FailureAuth:
			return "Analysis failed: provider authentication error"
		case llm.FailureRateLimit:
			return "Analysis failed: provider rate limit exceeded"
		case llm.FailureMalformedResponse:
			return "Analysis failed: provider returned an unreadable result"
		case llm.FailureRequest:
			return "Analysis failed: could not reach the provider"
		default:
			return "Analysis failed: provider error"
		}
	}
	return fmt.Sprintf("Analysis failed: %v", err)
}
