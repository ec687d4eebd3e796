package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// SessionUseCase manages the lifecycle of session collections.
type SessionUseCase struct {
	index       port.SessionIndex
	invalidator port.CacheInvalidator
	logger      *slog.Logger
}

func NewSessionUseCase(index port.SessionIndex, invalidator port.CacheInvalidator, logger *slog.Logger) *SessionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionUseCase{index: index, invalidator: invalidator, logger: logger}
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Start provisions an empty collection for sessionID, generating an id
// when none is given. It returns the session id used.
func (u *SessionUseCase) Start(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = NewSessionID()
	}
	if err := u.provision(ctx, sessionID); err != nil {
		return "", err
	}
	u.logger.Info("session started", "session", sessionID)
	return sessionID, nil
}

// Reset discards all documents of the session and leaves it empty.
func (u *SessionUseCase) Reset(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := u.provision(ctx, sessionID); err != nil {
		return err
	}
	u.logger.Info("session reset", "session", sessionID)
	return nil
}

// End deletes the session collection.
func (u *SessionUseCase) End(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := u.index.Drop(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to drop session %s: %w", sessionID, err)
	}
	u.invalidate(sessionID)
	u.logger.Info("session ended", "session", sessionID)
	return nil
}

func (u *SessionUseCase) provision(ctx context.Context, sessionID string) error {
	if err := u.index.Provision(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to provision session %s: %w", sessionID, err)
	}
	u.invalidate(sessionID)
	return nil
}

func (u *SessionUseCase) invalidate(sessionID string) {
	if u.invalidator != nil {
		u.invalidator.Invalidate(sessionID)
	}
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	return nil
}
