package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompletionCreator is the subset of the go-openai client used here.
type ChatCompletionCreator interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient serves Cohere-shaped requests through an OpenAI-compatible API.
// The preamble becomes the system message and CHATBOT turns become assistant messages.
type OpenAIClient struct {
	apiKey string
	api    ChatCompletionCreator
}

// NewOpenAIClient creates a client for baseURL. A nil httpClient uses the library default.
func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIClient{apiKey: apiKey, api: openai.NewClientWithConfig(cfg)}
}

// NewOpenAIClientWithAPI wraps an existing chat completion implementation.
func NewOpenAIClientWithAPI(apiKey string, api ChatCompletionCreator) *OpenAIClient {
	return &OpenAIClient{apiKey: apiKey, api: api}
}

// Complete maps req onto a chat completion call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.ChatHistory)+2)
	if req.Preamble != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.Preamble})
	}
	for _, t := range req.ChatHistory {
		role := openai.ChatMessageRoleUser
		if t.Role == RoleChatbot {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Message})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices: %w", ErrMalformedResponse)
	}
	return &Response{Text: resp.Choices[0].Message.Content, Citations: []json.RawMessage{}}, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{Provider: "OpenAI", Status: apiErr.HTTPStatusCode, Body: truncate(apiErr.Message, maxErrorBody)}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = truncate(reqErr.Err.Error(), maxErrorBody)
		}
		return &StatusError{Provider: "OpenAI", Status: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("openai request: %w", err)
}
