// Package openai embeds text and drafts completions through the OpenAI API
// or any endpoint that speaks the same protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultEmbeddingModel      = string(openai.AdaEmbeddingV2)
	DefaultEmbeddingDimensions = 1536
	DefaultChatModel           = openai.GPT4oMini
	DefaultTimeout             = 30 * time.Second

	maxAttempts = 3
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	ErrEmptyResponse   = errors.New("empty response from model")
)

type Config struct {
	APIKey string
	// BaseURL overrides the API root, e.g. for a local gateway.
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	// Timeout bounds each attempt of a call.
	Timeout    time.Duration
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client satisfies the service layer's embedding and completion interfaces.
// Rate limits and 5xx answers are retried with backoff.
type Client struct {
	api        *openai.Client
	embedModel string
	chatModel  string
	dimensions int
	timeout    time.Duration
	retryDelay time.Duration
}

func NewClientWithConfig(cfg Config) *Client {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}

	c := &Client{
		api:        openai.NewClientWithConfig(cc),
		embedModel: cfg.EmbeddingModel,
		chatModel:  cfg.ChatModel,
		dimensions: cfg.EmbeddingDimensions,
		timeout:    cfg.Timeout,
		retryDelay: cfg.RetryDelay,
	}
	if c.embedModel == "" {
		c.embedModel = DefaultEmbeddingModel
	}
	if c.chatModel == "" {
		c.chatModel = DefaultChatModel
	}
	if c.dimensions <= 0 {
		c.dimensions = DefaultEmbeddingDimensions
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retryDelay <= 0 {
		c.retryDelay = 500 * time.Millisecond
	}
	return c
}

// Model names the embedding function. Vectors from different models are
// not comparable.
func (c *Client) Model() string { return c.embedModel }

func (c *Client) Dimensions() int { return c.dimensions }

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var vec []float32
	err := c.withRetry(ctx, func(ctx context.Context) error {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.embedModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return ErrEmptyResponse
		}
		vec = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(vec) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(vec))
	}
	return vec, nil
}

// Complete runs a single-turn chat with a system and a user message.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", ErrEmptyText
	}

	var out string
	err := c.withRetry(ctx, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.chatModel,
			Temperature: temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	return out, nil
}

func (c *Client) withRetry(ctx context.Context, call func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = call(attemptCtx)
		cancel()
		if err == nil || attempt == maxAttempts || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * c.retryDelay):
		}
	}
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
