package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/yourusername/cat-engine/internal/domain/repository"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
)

// Redis keys of the exposure counters
const (
	exposureItemsKey    = "cat:exposure:items"
	exposureSessionsKey = "cat:exposure:sessions"
)

// ExposureRepo keeps exposure counters in Redis so that several engine
// processes share one item pool view.
type ExposureRepo struct {
	cache repository.CacheRepository
}

// NewExposureRepo creates the repository on top of the cache
func NewExposureRepo(cache repository.CacheRepository) *ExposureRepo {
	return &ExposureRepo{cache: cache}
}

func (r *ExposureRepo) Increment(ctx context.Context, itemID string) (int64, error) {
	n, err := r.cache.HIncrBy(ctx, exposureItemsKey, itemID, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to increment exposure of %s: %w", itemID, err)
	}
	return n, nil
}

func (r *ExposureRepo) IncrementSessions(ctx context.Context) (int64, error) {
	n, err := r.cache.Increment(ctx, exposureSessionsKey)
	if err != nil {
		return 0, fmt.Errorf("failed to increment session counter: %w", err)
	}
	return n, nil
}

func (r *ExposureRepo) Counts(ctx context.Context) (map[string]int64, error) {
	raw, err := r.cache.HGetAll(ctx, exposureItemsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read exposure counters: %w", err)
	}
	counts := make(map[string]int64, len(raw))
	for item, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[item] = n
	}
	return counts, nil
}

func (r *ExposureRepo) Sessions(ctx context.Context) (int64, error) {
	v, err := r.cache.Get(ctx, exposureSessionsKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read session counter: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session counter %q: %w", v, err)
	}
	return n, nil
}

func (r *ExposureRepo) Reset(ctx context.Context) error {
	return r.cache.Delete(ctx, exposureItemsKey, exposureSessionsKey)
}
