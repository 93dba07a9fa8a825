package catengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/domain/repository"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// ExposureSnapshot is a point-in-time view of the exposure counters
type ExposureSnapshot struct {
	Counts   map[string]int64   `json:"counts"`
	Sessions int64              `json:"sessions"`
	Rates    map[string]float64 `json:"rates"`
}

// ExposureController applies the exposure control stage and keeps the
// shared counters up to date.
type ExposureController struct {
	repo     repository.ExposureRepository
	registry *ParameterRegistry
	logger   *logger.Logger
}

// NewExposureController creates an exposure controller
func NewExposureController(repo repository.ExposureRepository, registry *ParameterRegistry, log *logger.Logger) *ExposureController {
	if log == nil {
		log = logger.Nop()
	}
	return &ExposureController{
		repo:     repo,
		registry: registry,
		logger:   log.Component("ExposureController"),
	}
}

// ExposureRate is count / max(sessions, minSessions)
func ExposureRate(count, sessions int64, minSessions int) float64 {
	denom := sessions
	if denom < int64(minSessions) {
		denom = int64(minSessions)
	}
	if denom <= 0 {
		return 0
	}
	return float64(count) / float64(denom)
}

// Apply runs the configured exposure method over the candidates and returns
// the surviving candidates along with the counters it read. Counter read
// failures are logged and treated as empty counters.
func (c *ExposureController) Apply(ctx context.Context, candidates []string, cfg entity.CATConfig) ([]string, map[string]int64) {
	counts, err := c.repo.Counts(ctx)
	if err != nil {
		c.logger.Warn("Failed to read exposure counters", "error", err)
		counts = map[string]int64{}
	}

	switch cfg.Exposure {
	case entity.ExposureSympsonHetter:
		sessions, err := c.repo.Sessions(ctx)
		if err != nil {
			c.logger.Warn("Failed to read session counter", "error", err)
		}
		kept := make([]string, 0, len(candidates))
		for _, id := range candidates {
			if ExposureRate(counts[id], sessions, cfg.ExposureMinSessions) >= cfg.MaxExposureRate {
				continue
			}
			kept = append(kept, id)
		}
		return kept, counts

	case entity.ExposureRandomesque:
		ranked := append([]string(nil), candidates...)
		info := make(map[string]float64, len(ranked))
		for _, id := range ranked {
			if p, ok := c.registry.Get(id); ok {
				info[id] = SelectionInformation(p, 0, cfg)
			}
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return info[ranked[i]] > info[ranked[j]]
		})
		if len(ranked) > cfg.RandomesqueSize {
			ranked = ranked[:cfg.RandomesqueSize]
		}
		return ranked, counts

	case entity.ExposureProgressive:
		ordered := append([]string(nil), candidates...)
		sort.SliceStable(ordered, func(i, j int) bool {
			return counts[ordered[i]] < counts[ordered[j]]
		})
		return ordered, counts

	default:
		return candidates, counts
	}
}

// RecordAdministration counts one administration of the item
func (c *ExposureController) RecordAdministration(ctx context.Context, itemID string) {
	if _, err := c.repo.Increment(ctx, itemID); err != nil {
		c.logger.Warn("Failed to increment exposure counter", "item_id", itemID, "error", err)
	}
}

// RecordSession counts a started session
func (c *ExposureController) RecordSession(ctx context.Context) {
	if _, err := c.repo.IncrementSessions(ctx); err != nil {
		c.logger.Warn("Failed to increment session counter", "error", err)
	}
}

// Snapshot reads the counters and derives the rates
func (c *ExposureController) Snapshot(ctx context.Context, minSessions int) (*ExposureSnapshot, error) {
	counts, err := c.repo.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read exposure counters: %w", err)
	}
	sessions, err := c.repo.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session counter: %w", err)
	}
	rates := make(map[string]float64, len(counts))
	for id, n := range counts {
		rates[id] = ExposureRate(n, sessions, minSessions)
	}
	return &ExposureSnapshot{Counts: counts, Sessions: sessions, Rates: rates}, nil
}

// Reset clears every counter
func (c *ExposureController) Reset(ctx context.Context) error {
	if err := c.repo.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset exposure counters: %w", err)
	}
	c.logger.Info("Exposure counters reset")
	return nil
}
