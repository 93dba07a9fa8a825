package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	itemKeyPrefix = "item:"
	sessionsKey   = "sessions"
)

// ExposureRepository keeps exposure counters in process memory
type ExposureRepository struct {
	cache *cache.Cache
}

// NewExposureRepository creates an in-memory exposure counter table.
// Counters never expire; they are cleared only by Reset.
func NewExposureRepository() *ExposureRepository {
	return &ExposureRepository{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// incr creates the counter at zero if needed and increments it atomically
func (r *ExposureRepository) incr(key string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		// Add fails when the key exists, which is the common case
		_ = r.cache.Add(key, int64(0), cache.NoExpiration)
		n, err := r.cache.IncrementInt64(key, 1)
		if err == nil {
			return n, nil
		}
		// a concurrent Reset removed the key between Add and Increment
		lastErr = err
	}
	return 0, fmt.Errorf("failed to increment counter %s: %w", key, lastErr)
}

func (r *ExposureRepository) Increment(_ context.Context, itemID string) (int64, error) {
	return r.incr(itemKeyPrefix + itemID)
}

func (r *ExposureRepository) IncrementSessions(_ context.Context) (int64, error) {
	return r.incr(sessionsKey)
}

func (r *ExposureRepository) Counts(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for key, item := range r.cache.Items() {
		if !strings.HasPrefix(key, itemKeyPrefix) {
			continue
		}
		if n, ok := item.Object.(int64); ok {
			counts[strings.TrimPrefix(key, itemKeyPrefix)] = n
		}
	}
	return counts, nil
}

func (r *ExposureRepository) Sessions(_ context.Context) (int64, error) {
	x, found := r.cache.Get(sessionsKey)
	if !found {
		return 0, nil
	}
	n, _ := x.(int64)
	return n, nil
}

func (r *ExposureRepository) Reset(_ context.Context) error {
	r.cache.Flush()
	return nil
}
