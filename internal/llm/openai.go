package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient implements the Client interface using OpenAI's API.
type OpenAIClient struct {
	apiKey     string
	model      string
	apiURL     string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey     string
	Model      string       // e.g., "gpt-4o-mini"
	HTTPClient *http.Client // Optional shared client with connection pooling
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		model:      model,
		apiURL:     openaiAPIURL,
		httpClient: httpClient,
	}
}

// chatRequest represents an OpenAI chat completion request.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse represents an OpenAI chat completion response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze sends the conversation and previously issued nudges to the model
// and decodes the structured analysis it returns.
func (c *OpenAIClient) Analyze(ctx context.Context, transcripts []TranscriptEntry, previousNudges []string) (*AnalysisResult, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: BuildAnalysisPrompt(transcripts, previousNudges)},
		},
		Temperature:    0.7,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Kind: FailureRequest, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Kind: FailureRequest, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Kind: FailureRequest, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("OpenAI API error: %s - %s", resp.Status, string(respBody))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &ProviderError{Kind: FailureAuth, Err: apiErr}
		case http.StatusTooManyRequests:
			return nil, &ProviderError{Kind: FailureRateLimit, Err: apiErr}
		default:
			return nil, &ProviderError{Kind: FailureProvider, Err: apiErr}
		}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &ProviderError{Kind: FailureMalformedResponse, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &ProviderError{Kind: FailureMalformedResponse, Err: fmt.Errorf("no choices in response")}
	}

	result, err := parseAnalysisContent(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, &ProviderError{Kind: FailureMalformedResponse, Err: err}
	}

	return result, nil
}

// parseAnalysisContent decodes the model payload into an AnalysisResult.
// The model sometimes wraps the JSON in markdown code fences despite the
// JSON-only system prompt; strip those first, then fall back to extracting
// the outermost JSON object from whatever text came back.
func parseAnalysisContent(content string) (*AnalysisResult, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		extracted, ok := extractJSONObject(cleaned)
		if !ok {
			return nil, fmt.Errorf("failed to parse analysis result: %w (content: %s)", err, content)
		}
		if err := json.Unmarshal([]byte(extracted), &result); err != nil {
			return nil, fmt.Errorf("failed to parse analysis result: %w (content: %s)", err, content)
		}
	}

	normalizeResult(&result)
	return &result, nil
}

// extractJSONObject returns the first balanced top-level JSON object in s.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// normalizeResult fills in defaults for fields the model omitted and tidies
// sentiment words.
func normalizeResult(r *AnalysisResult) {
	if r.Problems == nil {
		r.Problems = []string{}
	}
	if r.Nudges == nil {
		r.Nudges = []string{}
	}
	if len(r.Sentiment) == 0 {
		r.Sentiment = []string{"neutral"}
	}
	for i, word := range r.Sentiment {
		r.Sentiment[i] = strings.ToLower(strings.TrimSpace(word))
	}
	if len(r.Risk) == 0 {
		r.Risk = []string{"low"}
	}
	for i, level := range r.Risk {
		r.Risk[i] = strings.ToLower(strings.TrimSpace(level))
	}
}
