package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAIClient implements ModelClient using the OpenAI Chat Completions API.
// It also works with any OpenAI-compatible service by setting a custom base URL.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*OpenAIClient)

// WithModel sets the model name (default: gpt-4-turbo).
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.model = model }
}

// WithBaseURL overrides the API endpoint (default: https://api.openai.com/v1).
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithTimeout sets the HTTP timeout for completion requests.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient.Timeout = d }
}

// WithMaxTokens sets the completion token budget.
func WithMaxTokens(n int) OpenAIOption {
	return func(c *OpenAIClient) { c.maxTokens = n }
}

// NewOpenAIClient creates a new OpenAI model client.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:    apiKey,
		baseURL:   "https://api.openai.com/v1",
		model:     "gpt-4-turbo",
		maxTokens: 2000,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelName returns the configured model identifier.
func (c *OpenAIClient) ModelName() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatRequest carries at most one of the two token-limit parameters; which
// one depends on the model family (see paramsForModel).
type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	Temperature         float64         `json:"temperature"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// paramSet is the per-call parameter selection that varies by model family.
type paramSet struct {
	// useCompletionTokens selects max_completion_tokens over max_tokens.
	useCompletionTokens bool
	// jsonMode requests structured JSON output mode.
	jsonMode bool
}

// completionTokenFamilies name their token budget max_completion_tokens and
// reject max_tokens.
var completionTokenFamilies = []string{"gpt-5", "o1", "o3", "o4"}

// jsonModeFamilies are known to support response_format json_object.
// Unrecognized or older models must not receive that option.
var jsonModeFamilies = []string{"gpt-4-turbo", "gpt-4o", "gpt-4.1", "gpt-5", "o1", "o3", "o4", "gpt-3.5-turbo-1106"}

func hasFamilyPrefix(model string, families []string) bool {
	for _, f := range families {
		if strings.HasPrefix(model, f) {
			return true
		}
	}
	return false
}

func paramsForModel(model string) paramSet {
	return paramSet{
		useCompletionTokens: hasFamilyPrefix(model, completionTokenFamilies),
		jsonMode:            hasFamilyPrefix(model, jsonModeFamilies),
	}
}

// correctParams returns an adjusted parameter set when the service's
// rejection text names a parameter this call actually sent. The candidate
// fixes are an ordered table so the one-retry contract stays auditable and
// testable without a network. Returns ok=false when the rejection is about
// something else, in which case there is no retry.
func correctParams(p paramSet, rejection string) (paramSet, bool) {
	msg := strings.ToLower(rejection)
	if !strings.Contains(msg, "unsupported parameter") && !strings.Contains(msg, "is not supported") {
		return p, false
	}
	switch {
	case p.jsonMode && strings.Contains(msg, "response_format"):
		p.jsonMode = false
		return p, true
	case p.useCompletionTokens && strings.Contains(msg, "max_completion_tokens"):
		p.useCompletionTokens = false
		return p, true
	case !p.useCompletionTokens && strings.Contains(msg, "max_tokens"):
		p.useCompletionTokens = true
		return p, true
	}
	return p, false
}

// apiError is a non-200 response from the service, before classification.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Complete sends the prompt and returns the assistant's raw response text.
//
// If the service rejects the call because of an unsupported parameter name,
// the parameter set is corrected and the call retried exactly once. Any other
// failure, or a second failure for any reason, is classified and returned as
// *InvokeError.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", &InvokeError{
			Kind:    KindMissingCredentials,
			Message: "API key not configured. Set the OPENAI_API_KEY environment variable.",
		}
	}

	params := paramsForModel(c.model)
	text, err := c.doRequest(ctx, prompt, params)
	if err == nil {
		return text, nil
	}

	var ae *apiError
	if errors.As(err, &ae) && ae.StatusCode == http.StatusBadRequest {
		if fixed, ok := correctParams(params, ae.Message); ok {
			text, retryErr := c.doRequest(ctx, prompt, fixed)
			if retryErr == nil {
				return text, nil
			}
			return "", c.classify(retryErr)
		}
	}
	return "", c.classify(err)
}

func (c *OpenAIClient) doRequest(ctx context.Context, prompt string, p paramSet) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
	}
	if p.useCompletionTokens {
		reqBody.MaxCompletionTokens = c.maxTokens
	} else {
		reqBody.MaxTokens = c.maxTokens
	}
	if p.jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{StatusCode: resp.StatusCode, Message: extractAPIMessage(respBody)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if chatResp.Error != nil {
		return "", &InvokeError{Kind: KindOther, Message: chatResp.Error.Message}
	}
	if len(chatResp.Choices) == 0 {
		return "", &InvokeError{Kind: KindNoChoices, Message: "the model returned no choices"}
	}

	choice := chatResp.Choices[0]
	switch choice.FinishReason {
	case "length":
		return "", &InvokeError{
			Kind:    KindTruncated,
			Message: "the response was cut short by the token budget and would be incomplete. Try a shorter source text.",
		}
	case "content_filter":
		return "", &InvokeError{
			Kind:    KindContentFiltered,
			Message: "the response was blocked by the service's content filter.",
		}
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", &InvokeError{Kind: KindEmptyContent, Message: "the model returned an empty response"}
	}
	return content, nil
}

// extractAPIMessage pulls error.message out of an error response body,
// falling back to the raw body.
func extractAPIMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// classify maps a raw failure to a typed *InvokeError with guidance text, so
// callers can tell "add credits" apart from "try again in a minute".
func (c *OpenAIClient) classify(err error) error {
	var ie *InvokeError
	if errors.As(err, &ie) {
		return ie
	}

	var ae *apiError
	if errors.As(err, &ae) {
		msg := strings.ToLower(ae.Message)
		switch {
		case strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "quota"):
			return &InvokeError{
				Kind:    KindQuotaExceeded,
				Message: "API quota exceeded. Check your account billing and quota limits; you may need to add credits or wait for the quota to reset.",
			}
		case ae.StatusCode == http.StatusTooManyRequests:
			return &InvokeError{
				Kind:    KindRateLimited,
				Message: "API rate limit exceeded. Wait a moment and try again.",
			}
		case ae.StatusCode == http.StatusUnauthorized ||
			strings.Contains(msg, "invalid_api_key") ||
			strings.Contains(msg, "authentication"):
			return &InvokeError{
				Kind:    KindAuthInvalid,
				Message: "invalid API key. Check the OPENAI_API_KEY environment variable.",
			}
		default:
			return &InvokeError{
				Kind:    KindOther,
				Message: fmt.Sprintf("API error (HTTP %d): %s", ae.StatusCode, ae.Message),
			}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &InvokeError{
			Kind:    KindTimeout,
			Message: "the request timed out. Try again, or with a shorter source text.",
		}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return &InvokeError{
				Kind:    KindTimeout,
				Message: "the request timed out. Try again, or with a shorter source text.",
			}
		}
		return &InvokeError{
			Kind:    KindConnectionFailed,
			Message: "failed to connect to the model service. Check your network connection and try again.",
		}
	}

	return &InvokeError{Kind: KindOther, Message: err.Error()}
}
