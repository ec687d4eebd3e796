package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.LLM = (*RetryingLLM)(nil)

// RetryingLLM retries transport failures and server errors with linear
// backoff. Client errors fail immediately. The final failure is reported as
// domain.ErrSynthesis.
type RetryingLLM struct {
	inner      port.LLM
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewRetryingLLM(inner port.LLM, maxRetries int, backoff time.Duration, logger *slog.Logger) *RetryingLLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingLLM{
		inner:      inner,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

func (r *RetryingLLM) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := r.backoff * time.Duration(attempt)
			r.logger.Warn("retrying language model",
				"model", r.inner.ModelName(),
				"attempt", attempt,
				"wait", wait,
				"error", lastErr)
			if err := r.sleep(ctx, wait); err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrSynthesis, err)
			}
		}

		text, err := r.inner.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !retryable(ctx, err) {
			break
		}
	}

	return "", fmt.Errorf("%w: %v", domain.ErrSynthesis, lastErr)
}

func (r *RetryingLLM) ModelName() string {
	return r.inner.ModelName()
}

// retryable reports whether err is a transport failure, a 5xx, or a 429.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError || se.Code == http.StatusTooManyRequests
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
