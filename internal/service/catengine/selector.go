package catengine

import (
	"context"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/irt"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// SelectionInformation is the information function used to rank items.
// Selection uses the 2PL curve unless the config opts into the session model.
func SelectionInformation(p *entity.ItemParameters, theta float64, cfg entity.CATConfig) float64 {
	if cfg.SelectionUsesSessionModel {
		return irt.Information(p, theta, cfg.Model)
	}
	return irt.Information(p, theta, entity.Model2PL)
}

// Selection is the outcome of a successful selection
type Selection struct {
	ItemID      string
	Information float64
}

// ItemSelector picks the next item for a session
type ItemSelector struct {
	registry *ParameterRegistry
	exposure *ExposureController
	content  *ContentController
	random   RandomSource
	logger   *logger.Logger
}

// NewItemSelector creates a selector
func NewItemSelector(registry *ParameterRegistry, exposure *ExposureController, content *ContentController, random RandomSource, log *logger.Logger) *ItemSelector {
	if random == nil {
		random = DefaultRandomSource
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ItemSelector{
		registry: registry,
		exposure: exposure,
		content:  content,
		random:   random,
		logger:   log.Component("ItemSelector"),
	}
}

// SelectNextItem filters the remaining pool through exposure control and
// content constraints, then applies the configured strategy. ok is false when
// no candidate survives.
func (s *ItemSelector) SelectNextItem(ctx context.Context, in SelectionInput) (Selection, bool) {
	candidates, counts := s.exposure.Apply(ctx, in.Candidates, in.Config)
	if len(candidates) == 0 {
		s.logger.Debug("No candidates left after exposure control", "pool", len(in.Candidates))
		return Selection{}, false
	}

	filtered, adj := s.content.Filter(candidates, in)

	switch in.Config.Selection {
	case entity.SelectionWeightedInformation:
		return s.weighted(filtered, adj, counts, in)
	case entity.SelectionConstraintBased:
		if len(filtered) == 0 {
			s.logger.Debug("Content constraints exhausted the pool, ignoring them", "candidates", len(candidates))
			return s.maximumInformation(candidates, in)
		}
		return s.maximumInformation(filtered, in)
	default: // maximum_information, bayesian
		return s.maximumInformation(filtered, in)
	}
}

// maximumInformation returns the first candidate with the highest information
func (s *ItemSelector) maximumInformation(candidates []string, in SelectionInput) (Selection, bool) {
	var best Selection
	found := false
	for _, id := range candidates {
		p, ok := s.registry.Get(id)
		if !ok {
			s.logger.Warn("Candidate has no parameters, skipping", "item_id", id)
			continue
		}
		info := SelectionInformation(p, in.Ability, in.Config)
		if !found || info > best.Information {
			best = Selection{ItemID: id, Information: info}
			found = true
		}
	}
	return best, found
}

// weighted draws a candidate with probability proportional to
// information * 1/(1+exposureCount) * contentAdjustment.
func (s *ItemSelector) weighted(candidates []string, adj map[string]float64, counts map[string]int64, in SelectionInput) (Selection, bool) {
	type weightedItem struct {
		id     string
		info   float64
		weight float64
	}
	items := make([]weightedItem, 0, len(candidates))
	total := 0.0
	for _, id := range candidates {
		p, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		info := SelectionInformation(p, in.Ability, in.Config)
		a, ok := adj[id]
		if !ok {
			a = 1
		}
		w := info * (1 / (1 + float64(counts[id]))) * a
		items = append(items, weightedItem{id: id, info: info, weight: w})
		total += w
	}
	if len(items) == 0 {
		return Selection{}, false
	}

	r := s.random() * total
	cumulative := 0.0
	for _, it := range items {
		cumulative += it.weight
		if cumulative >= r {
			return Selection{ItemID: it.id, Information: it.info}, true
		}
	}
	// rounding left r above the final cumulative sum
	last := items[len(items)-1]
	return Selection{ItemID: last.id, Information: last.info}, true
}
