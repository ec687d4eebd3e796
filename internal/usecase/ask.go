package usecase

import (
	"context"
	"errors"
	"log/slog"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// Question outcomes recorded in metrics.
const (
	OutcomeAnswered  = "answered"
	OutcomeNoContext = "no_context"
	OutcomeError     = "error"
)

// AskUseCase answers a question from a session's documents.
type AskUseCase struct {
	retrieve *RetrieveUseCase
	answer   *AnswerUseCase
	metrics  port.Metrics
	logger   *slog.Logger
}

func NewAskUseCase(retrieve *RetrieveUseCase, answer *AnswerUseCase, metrics port.Metrics, logger *slog.Logger) *AskUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		retrieve: retrieve,
		answer:   answer,
		metrics:  metrics,
		logger:   logger,
	}
}

// Ask retrieves grounding context and synthesizes an answer. A session with
// no documents still gets an answer, with no references.
func (u *AskUseCase) Ask(ctx context.Context, sessionID, question string, topK int, filter port.QueryFilter) (*domain.Answer, error) {
	scored, err := u.retrieve.Retrieve(ctx, sessionID, question, topK, filter)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidInput) {
			u.metrics.QuestionAnswered(OutcomeError)
		}
		return nil, err
	}

	answer, err := u.answer.Synthesize(ctx, question, Chunks(scored))
	if err != nil {
		u.metrics.QuestionAnswered(OutcomeError)
		u.logger.Error("answer synthesis failed", "session", sessionID, "error", err)
		return nil, err
	}

	outcome := OutcomeAnswered
	if len(scored) == 0 {
		outcome = OutcomeNoContext
	}
	u.metrics.QuestionAnswered(outcome)

	u.logger.Info("answered question",
		"session", sessionID,
		"context_chunks", len(scored),
		"references", len(answer.References))
	return answer, nil
}

// Prompt returns the prompt Ask would send, without calling the model.
func (u *AskUseCase) Prompt(ctx context.Context, sessionID, question string, topK int, filter port.QueryFilter) (string, error) {
	scored, err := u.retrieve.Retrieve(ctx, sessionID, question, topK, filter)
	if err != nil {
		return "", err
	}
	return u.answer.Prompt(question, Chunks(scored))
}
