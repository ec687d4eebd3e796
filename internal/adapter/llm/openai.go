package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ragqa/internal/port"
)

var _ port.LLM = (*OpenAILLM)(nil)

// OpenAIConfig holds configuration for an OpenAI-compatible chat model.
type OpenAIConfig struct {
	APIKeyEnv string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	Options   Options
}

// OpenAILLM sends single-turn chat completions to an OpenAI-compatible API.
type OpenAILLM struct {
	client openai.Client
	model  string
	opts   Options
}

// NewOpenAILLM creates a chat adapter. Retries are left to RetryingLLM.
func NewOpenAILLM(cfg OpenAIConfig) (*OpenAILLM, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAILLM{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		opts:   cfg.Options,
	}, nil
}

func (l *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(l.model),
		Temperature: openai.Float(l.opts.Temperature),
	}
	if l.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(l.opts.MaxTokens))
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.StatusCode, Body: apiErr.Message}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (l *OpenAILLM) ModelName() string {
	return l.model
}
