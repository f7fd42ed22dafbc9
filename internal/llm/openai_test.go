package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		client := NewOpenAIClient(OpenAIConfig{
			APIKey: "test-key",
		})

		if client.model != "gpt-4o-mini" {
			t.Errorf("model = %q, want %q", client.model, "gpt-4o-mini")
		}
		if client.apiKey != "test-key" {
			t.Errorf("apiKey = %q, want %q", client.apiKey, "test-key")
		}
		if client.httpClient == nil {
			t.Error("httpClient should not be nil")
		}
	})

	t.Run("custom model", func(t *testing.T) {
		client := NewOpenAIClient(OpenAIConfig{
			APIKey: "test-key",
			Model:  "gpt-4o",
		})

		if client.model != "gpt-4o" {
			t.Errorf("model = %q, want %q", client.model, "gpt-4o")
		}
	})

	t.Run("custom http client", func(t *testing.T) {
		hc := &http.Client{}
		client := NewOpenAIClient(OpenAIConfig{
			APIKey:     "test-key",
			HTTPClient: hc,
		})

		if client.httpClient != hc {
			t.Error("httpClient should be the provided client")
		}
	})
}

func TestClientInterface(t *testing.T) {
	// Verify OpenAIClient implements Client interface
	var _ Client = (*OpenAIClient)(nil)
}

// newStubServer returns a client pointed at a test server that responds with
// the given chat completion content.
func newStubServer(t *testing.T, status int, content string) (*OpenAIClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": "stub failure"}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key"})
	client.apiURL = srv.URL
	return client, srv
}

func TestAnalyze_Success(t *testing.T) {
	client, _ := newStubServer(t, http.StatusOK,
		`{"problems":["insomnia"],"nudges":["ask about sleep routine"],"sentiment":["Anxiety"],"follow_up":"What keeps you awake?","risk":["medium"]}`)

	result, err := client.Analyze(context.Background(), []TranscriptEntry{
		{Speaker: "patient", Text: "I can't sleep anymore."},
	}, nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(result.Problems) != 1 || result.Problems[0] != "insomnia" {
		t.Errorf("Problems = %v, want [insomnia]", result.Problems)
	}
	if len(result.Nudges) != 1 || result.Nudges[0] != "ask about sleep routine" {
		t.Errorf("Nudges = %v, want [ask about sleep routine]", result.Nudges)
	}
	// Sentiment words are lowercased
	if len(result.Sentiment) != 1 || result.Sentiment[0] != "anxiety" {
		t.Errorf("Sentiment = %v, want [anxiety]", result.Sentiment)
	}
	if result.FollowUp != "What keeps you awake?" {
		t.Errorf("FollowUp = %q", result.FollowUp)
	}
	if len(result.Risk) != 1 || result.Risk[0] != "medium" {
		t.Errorf("Risk = %v, want [medium]", result.Risk)
	}
}

func TestAnalyze_FencedPayload(t *testing.T) {
	client, _ := newStubServer(t, http.StatusOK,
		"```json\n{\"problems\":[],\"nudges\":[\"listen\"],\"sentiment\":[\"neutral\"]}\n```")

	result, err := client.Analyze(context.Background(), []TranscriptEntry{
		{Speaker: "patient", Text: "Hi."},
	}, nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(result.Nudges) != 1 || result.Nudges[0] != "listen" {
		t.Errorf("Nudges = %v, want [listen]", result.Nudges)
	}
}

func TestAnalyze_SurroundingProse(t *testing.T) {
	// Model disobeys the system prompt and wraps JSON in prose; the object
	// should still be extracted.
	client, _ := newStubServer(t, http.StatusOK,
		`Here is the analysis: {"problems":["stress"],"nudges":["validate feelings"],"sentiment":["sadness"]} hope that helps`)

	result, err := client.Analyze(context.Background(), []TranscriptEntry{
		{Speaker: "patient", Text: "Work is too much."},
	}, nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(result.Problems) != 1 || result.Problems[0] != "stress" {
		t.Errorf("Problems = %v, want [stress]", result.Problems)
	}
}

func TestAnalyze_MalformedPayload(t *testing.T) {
	client, _ := newStubServer(t, http.StatusOK, "sorry, I cannot help with that")

	_, err := client.Analyze(context.Background(), []TranscriptEntry{
		{Speaker: "patient", Text: "Hi."},
	}, nil)
	if err == nil {
		t.Fatal("Analyze() should fail on non-JSON payload")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error should be *ProviderError, got %T", err)
	}
	if provErr.Kind != FailureMalformedResponse {
		t.Errorf("Kind = %q, want %q", provErr.Kind, FailureMalformedResponse)
	}
}

func TestAnalyze_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   FailureKind
	}{
		{"unauthorized", http.StatusUnauthorized, FailureAuth},
		{"forbidden", http.StatusForbidden, FailureAuth},
		{"rate limited", http.StatusTooManyRequests, FailureRateLimit},
		{"server error", http.StatusInternalServerError, FailureProvider},
		{"bad gateway", http.StatusBadGateway, FailureProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newStubServer(t, tt.status, "")

			_, err := client.Analyze(context.Background(), []TranscriptEntry{
				{Speaker: "patient", Text: "Hi."},
			}, nil)
			if err == nil {
				t.Fatalf("Analyze() should fail on status %d", tt.status)
			}

			var provErr *ProviderError
			if !errors.As(err, &provErr) {
				t.Fatalf("error should be *ProviderError, got %T", err)
			}
			if provErr.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", provErr.Kind, tt.want)
			}
		})
	}
}

func TestAnalyze_NetworkError(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key"})
	client.apiURL = "http://127.0.0.1:1" // nothing listens here

	_, err := client.Analyze(context.Background(), []TranscriptEntry{
		{Speaker: "patient", Text: "Hi."},
	}, nil)
	if err == nil {
		t.Fatal("Analyze() should fail when the provider is unreachable")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error should be *ProviderError, got %T", err)
	}
	if provErr.Kind != FailureRequest {
		t.Errorf("Kind = %q, want %q", provErr.Kind, FailureRequest)
	}
}

func TestAnalyze_ContextCancelled(t *testing.T) {
	client, _ := newStubServer(t, http.StatusOK, `{"problems":[],"nudges":[],"sentiment":["neutral"]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Analyze(ctx, []TranscriptEntry{
		{Speaker: "patient", Text: "Hi."},
	}, nil)
	if err == nil {
		t.Fatal("Analyze() should fail with cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got %v", err)
	}
}

func TestAnalyze_RequestBody(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"problems":[],"nudges":[],"sentiment":["neutral"]}`}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o"})
	client.apiURL = srv.URL

	_, err := client.Analyze(context.Background(), []TranscriptEntry{
		{Speaker: "patient", Text: "I keep slipping."},
	}, []string{"Acknowledge the setback without judgment"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	var req chatRequest
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}

	if req.Model != "gpt-4o" {
		t.Errorf("Model = %q, want %q", req.Model, "gpt-4o")
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Error("request should ask for json_object response format")
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("Messages = %+v, want system + user", req.Messages)
	}
	userPrompt := req.Messages[1].Content
	if !strings.Contains(userPrompt, "patient: I keep slipping.") {
		t.Error("user prompt should contain the conversation")
	}
	if !strings.Contains(userPrompt, "Acknowledge the setback without judgment") {
		t.Error("user prompt should contain previous nudges")
	}
}

func TestParseAnalysisContent_Normalization(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		wantSentiment []string
		wantRisk      []string
	}{
		{
			name:          "missing sentiment defaults to neutral",
			content:       `{"problems":[],"nudges":[]}`,
			wantSentiment: []string{"neutral"},
			wantRisk:      []string{"low"},
		},
		{
			name:          "sentiment lowercased and trimmed",
			content:       `{"problems":[],"nudges":[],"sentiment":[" Hope ","FEAR"],"risk":["HIGH"]}`,
			wantSentiment: []string{"hope", "fear"},
			wantRisk:      []string{"high"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseAnalysisContent(tt.content)
			if err != nil {
				t.Fatalf("parseAnalysisContent() error = %v", err)
			}
			if len(result.Sentiment) != len(tt.wantSentiment) {
				t.Fatalf("Sentiment = %v, want %v", result.Sentiment, tt.wantSentiment)
			}
			for i := range tt.wantSentiment {
				if result.Sentiment[i] != tt.wantSentiment[i] {
					t.Errorf("Sentiment[%d] = %q, want %q", i, result.Sentiment[i], tt.wantSentiment[i])
				}
			}
			if len(result.Risk) != len(tt.wantRisk) || result.Risk[0] != tt.wantRisk[0] {
				t.Errorf("Risk = %v, want %v", result.Risk, tt.wantRisk)
			}
			if result.Problems == nil || result.Nudges == nil {
				t.Error("nil lists should be normalized to empty")
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`text {"a":{"b":2}} trailing`, `{"a":{"b":2}}`, true},
		{`{"a":"brace } in string"}`, `{"a":"brace } in string"}`, true},
		{`no object here`, "", false},
		{`{"unterminated":`, "", false},
	}

	for _, tt := range tests {
		got, ok := extractJSONObject(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("extractJSONObject(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
