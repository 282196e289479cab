package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultCohereBaseURL is the public Cohere API endpoint.
const DefaultCohereBaseURL = "https://api.cohere.ai"

// CohereClient calls the Cohere v1 chat endpoint.
type CohereClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewCohereClient creates a client. A nil httpClient uses http.DefaultClient.
func NewCohereClient(apiKey, baseURL string, httpClient *http.Client) *CohereClient {
	if baseURL == "" {
		baseURL = DefaultCohereBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CohereClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type cohereChatRequest struct {
	Message     string  `json:"message"`
	ChatHistory []Turn  `json:"chat_history"`
	Preamble    string  `json:"preamble,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`
}

type cohereChatResponse struct {
	Text      string            `json:"text"`
	Citations []json.RawMessage `json:"citations"`
}

// Complete sends req to POST {base}/v1/chat.
func (c *CohereClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	history := req.ChatHistory
	if history == nil {
		history = []Turn{}
	}
	body, err := json.Marshal(cohereChatRequest{
		Message:     req.Message,
		ChatHistory: history,
		Preamble:    req.Preamble,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode cohere request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build cohere request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cohere request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Provider: "Cohere", Status: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}

	var out cohereChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode cohere response: %w: %w", ErrMalformedResponse, err)
	}
	if out.Citations == nil {
		out.Citations = []json.RawMessage{}
	}
	return &Response{Text: out.Text, Citations: out.Citations}, nil
}
