// Package llm provides language model adapters used for answer synthesis.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragqa/internal/port"
)

var _ port.LLM = (*OllamaLLM)(nil)

// Options are the fixed generation parameters sent with every prompt.
type Options struct {
	Temperature   float64
	MaxTokens     int
	ContextWindow int
}

// OllamaConfig holds configuration for the Ollama chat adapter.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Options Options
}

// OllamaLLM sends single-turn, non-streaming chat requests to Ollama.
type OllamaLLM struct {
	client  *http.Client
	baseURL string
	model   string
	opts    Options
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *ollamaOpts   `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOpts struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// StatusError reports a non-success HTTP status from a model server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model server returned status %d: %s", e.Code, e.Body)
}

// NewOllamaLLM creates an Ollama chat adapter.
func NewOllamaLLM(cfg OllamaConfig) *OllamaLLM {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "tinyllama"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OllamaLLM{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		opts:    cfg.Options,
	}
}

func (l *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:    l.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options: &ollamaOpts{
			Temperature: l.opts.Temperature,
			NumPredict:  l.opts.MaxTokens,
			NumCtx:      l.opts.ContextWindow,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return strings.TrimSpace(chatResp.Message.Content), nil
}

func (l *OllamaLLM) ModelName() string {
	return l.model
}
