package domain

import "errors"

// Domain errors. Adapters wrap these with fmt.Errorf("...: %w", ...) and
// callers classify them with errors.Is.
var (
	// ErrInvalidInput indicates missing or malformed client input
	// (question text, session id, configuration values).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDocumentParse indicates an unreadable or corrupt document.
	// The whole document fails; partial extraction is not supported.
	ErrDocumentParse = errors.New("document parse error")

	// ErrEmbedding indicates the embedding model is unavailable or misconfigured.
	ErrEmbedding = errors.New("embedding error")

	// ErrIndex indicates the vector index is unreachable or rejected a request.
	ErrIndex = errors.New("index error")

	// ErrSynthesis indicates the language model failed after exhausting retries.
	ErrSynthesis = errors.New("synthesis error")
)
