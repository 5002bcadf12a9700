package service

import (
	"context"
	"errors"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"

	"go.uber.org/zap"
)

var ErrEmptySID = errors.New("sid is required")

// SessionService exposes the journal to the API: read, feedback, delete,
// and the admin list/export views. All writes besides feedback go through
// the resolver.
type SessionService struct {
	repo   *repository.SessionRepository
	logger *zap.Logger
}

func NewSessionService(repo *repository.SessionRepository, logger *zap.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		logger: logger,
	}
}

func (s *SessionService) Get(ctx context.Context, sid string) (*models.Session, error) {
	if sid == "" {
		return nil, ErrEmptySID
	}
	return s.repo.GetBySID(ctx, sid)
}

// Feedback attaches a correctness verdict to the turn identified by mid.
// The turn itself is never rewritten.
func (s *SessionService) Feedback(ctx context.Context, sid, mid string, correct bool, comment string) error {
	if sid == "" {
		return ErrEmptySID
	}
	if mid == "" {
		return repository.ErrTurnNotFound
	}
	feedback := &models.Feedback{
		Correct: correct,
		Comment: comment,
		TS:      time.Now().UTC(),
	}
	if err := s.repo.AttachFeedback(ctx, sid, mid, feedback); err != nil {
		return err
	}
	s.logger.Info("Feedback attached",
		zap.String("sid", sid),
		zap.String("mid", mid),
		zap.Bool("correct", correct))
	return nil
}

func (s *SessionService) Delete(ctx context.Context, sid string) error {
	if sid == "" {
		return ErrEmptySID
	}
	return s.repo.Delete(ctx, sid)
}

func (s *SessionService) List(ctx context.Context, limit, offset int) ([]models.SessionSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *SessionService) Export(ctx context.Context) ([]models.Session, error) {
	return s.repo.ExportAll(ctx)
}
