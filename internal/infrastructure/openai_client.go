package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"project_asisten/internal/interfaces"
)

// OpenAIClient adapts the OpenAI chat completion API to the Reasoner port.
// Retries transient failures with linear backoff; a hard timeout caps every
// call so a slow model cannot stall an agent cycle.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxRetries  int
	retryDelay  time.Duration
	callTimeout time.Duration
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	c := &OpenAIClient{
		model:       model,
		maxRetries:  2,
		retryDelay:  time.Second,
		callTimeout: 20 * time.Second,
	}
	if apiKey != "" {
		c.client = openai.NewClient(apiKey)
	}
	return c
}

func (c *OpenAIClient) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	if c.client == nil {
		return "", errors.New("openai: api key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: 0.2,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("openai: empty choice list")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("openai: completion failed: %w", lastErr)
}
