package redis

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/domain/repository"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

const (
	resultKeyPrefix = "cat:result:"

	// DefaultResultTTL bounds how long an archived result stays cached
	DefaultResultTTL = 10 * time.Minute
)

// ResultCache is a read-through cache in front of a SessionResultRepository.
// Archived results never change, so entries are only written, never
// invalidated. Cache errors fall back to the store.
type ResultCache struct {
	store  repository.SessionResultRepository
	cache  repository.CacheRepository
	ttl    time.Duration
	logger *logger.Logger
}

// NewResultCache wraps store with cache
func NewResultCache(store repository.SessionResultRepository, cache repository.CacheRepository, ttl time.Duration, log *logger.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ResultCache{store: store, cache: cache, ttl: ttl, logger: log.Component("ResultCache")}
}

func resultKey(sessionID string) string {
	return resultKeyPrefix + sessionID
}

// Save archives the result and primes the cache
func (r *ResultCache) Save(ctx context.Context, result *entity.SessionResult) error {
	if err := r.store.Save(ctx, result); err != nil {
		return err
	}
	r.put(ctx, result)
	return nil
}

// GetBySessionID serves from the cache and falls back to the store
func (r *ResultCache) GetBySessionID(ctx context.Context, sessionID string) (*entity.SessionResult, error) {
	var cached entity.SessionResult
	err := r.cache.GetJSON(ctx, resultKey(sessionID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		r.logger.Warn("Result cache read failed", "session_id", sessionID, "error", err)
	}

	result, err := r.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r.put(ctx, result)
	return result, nil
}

// ListByAssessment is not cached
func (r *ResultCache) ListByAssessment(ctx context.Context, assessmentID string, limit, offset int) ([]entity.SessionResult, error) {
	return r.store.ListByAssessment(ctx, assessmentID, limit, offset)
}

func (r *ResultCache) put(ctx context.Context, result *entity.SessionResult) {
	if err := r.cache.SetJSON(ctx, resultKey(result.SessionID), result, r.ttl); err != nil {
		r.logger.Warn("Result cache write failed", "session_id", result.SessionID, "error", err)
	}
}
