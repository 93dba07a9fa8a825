package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
)

// SessionResultRepo implements repository.SessionResultRepository
type SessionResultRepo struct {
	db *gorm.DB
}

// NewSessionResultRepo creates the session result repository
func NewSessionResultRepo(db *gorm.DB) *SessionResultRepo {
	return &SessionResultRepo{db: db}
}

// Save archives a finished session. A second result for the same attempt
// hits the unique index and is reported as ErrDuplicateSession.
func (r *SessionResultRepo) Save(ctx context.Context, result *entity.SessionResult) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: session %s", apperrors.ErrDuplicateSession, result.SessionID)
		}
		return err
	}
	return nil
}

// GetBySessionID returns the archived result of a session
func (r *SessionResultRepo) GetBySessionID(ctx context.Context, sessionID string) (*entity.SessionResult, error) {
	var result entity.SessionResult
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// ListByAssessment returns archived results of an assessment, newest first
func (r *SessionResultRepo) ListByAssessment(ctx context.Context, assessmentID string, limit, offset int) ([]entity.SessionResult, error) {
	var results []entity.SessionResult
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("ended_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error
	return results, err
}
