package port

import "context"

// LLM represents a language model for single-turn text generation.
type LLM interface {
	// Generate sends one prompt and waits for the complete, non-streamed response.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
