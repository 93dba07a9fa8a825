package repository

import (
	"context"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// SessionResultRepository archives the summaries of finished sessions
type SessionResultRepository interface {
	// Save returns apperrors.ErrDuplicateSession if the attempt was already archived
	Save(ctx context.Context, result *entity.SessionResult) error
	GetBySessionID(ctx context.Context, sessionID string) (*entity.SessionResult, error)
	ListByAssessment(ctx context.Context, assessmentID string, limit, offset int) ([]entity.SessionResult, error)
}
