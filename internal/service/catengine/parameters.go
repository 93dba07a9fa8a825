package catengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/domain/repository"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// Guessing defaults by question kind
const (
	ChoiceGuessing  = 0.2
	DefaultGuessing = 0.1
)

// tierDifficulty maps the 1..5 difficulty tier to the IRT difficulty b
var tierDifficulty = map[int]float64{
	entity.DifficultyVeryEasy: -2,
	entity.DifficultyEasy:     -1,
	entity.DifficultyMedium:   0,
	entity.DifficultyHard:     1,
	entity.DifficultyVeryHard: 2,
}

// DefaultParameters derives IRT parameters for an uncalibrated question.
// The discrimination is 1.0 + 0.5*U with U drawn from random.
func DefaultParameters(q *entity.Question, random RandomSource) entity.ItemParameters {
	guessing := DefaultGuessing
	if q.IsChoice() {
		guessing = ChoiceGuessing
	}
	return entity.ItemParameters{
		ItemID:         q.ID,
		Discrimination: 1.0 + 0.5*random(),
		Difficulty:     tierDifficulty[q.DifficultyTier()],
		Guessing:       guessing,
		Category:       q.Category(),
	}
}

// ParameterRegistry is the shared itemID -> parameters table.
// Stored values are never mutated: an update swaps in a new value, so a
// pointer returned by Get stays consistent for as long as the caller holds it.
type ParameterRegistry struct {
	mu     sync.RWMutex
	params map[string]*entity.ItemParameters

	repo   repository.ItemParameterRepository
	random RandomSource
	logger *logger.Logger
}

// NewParameterRegistry creates a registry. repo may be nil.
func NewParameterRegistry(repo repository.ItemParameterRepository, random RandomSource, log *logger.Logger) *ParameterRegistry {
	if random == nil {
		random = DefaultRandomSource
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ParameterRegistry{
		params: make(map[string]*entity.ItemParameters),
		repo:   repo,
		random: random,
		logger: log.Component("ParameterRegistry"),
	}
}

// Get returns the parameters of an item
func (r *ParameterRegistry) Get(itemID string) (*entity.ItemParameters, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.params[itemID]
	return p, ok
}

// Len returns the number of registered items
func (r *ParameterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.params)
}

// Ensure returns the parameters of the question's item, registering them if
// needed. Stored calibrations are loaded first; otherwise defaults are
// derived and saved. Storage failures fall back to in-memory defaults.
func (r *ParameterRegistry) Ensure(ctx context.Context, q *entity.Question) *entity.ItemParameters {
	if p, ok := r.Get(q.ID); ok {
		return p
	}

	var candidate *entity.ItemParameters
	persist := false
	if r.repo != nil {
		stored, err := r.repo.GetByItemID(ctx, q.ID)
		switch {
		case err == nil:
			candidate = stored
		case errors.Is(err, apperrors.ErrNotFound):
			persist = true
		default:
			r.logger.Warn("Failed to load item parameters, using defaults", "item_id", q.ID, "error", err)
		}
	}
	if candidate == nil {
		def := DefaultParameters(q, r.random)
		candidate = &def
	}

	r.mu.Lock()
	if existing, ok := r.params[q.ID]; ok {
		// registered concurrently by another session
		r.mu.Unlock()
		return existing
	}
	r.params[q.ID] = candidate
	r.mu.Unlock()

	if persist {
		toSave := *candidate
		if err := r.repo.Upsert(ctx, &toSave); err != nil {
			r.logger.Warn("Failed to persist default item parameters", "item_id", q.ID, "error", err)
		}
	}
	return candidate
}

// Update replaces the parameters of an item. Sessions pick up the new values
// on their next computation. Only validation errors are returned.
func (r *ParameterRegistry) Update(ctx context.Context, itemID string, params entity.ItemParameters) (*entity.ItemParameters, error) {
	params.ItemID = itemID
	if err := params.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if prev, ok := r.params[itemID]; ok {
		if params.Category == "" {
			params.Category = prev.Category
		}
		params.CreatedAt = prev.CreatedAt
	}
	if params.Category == "" {
		params.Category = entity.DefaultCategory
	}
	params.UpdatedAt = time.Now()
	stored := params
	r.params[itemID] = &stored
	r.mu.Unlock()

	if r.repo != nil {
		toSave := stored
		if err := r.repo.Upsert(ctx, &toSave); err != nil {
			r.logger.Warn("Failed to persist item parameters, keeping in-memory update", "item_id", itemID, "error", err)
		}
	}
	r.logger.Info("Item parameters updated", "item_id", itemID,
		"a", stored.Discrimination, "b", stored.Difficulty, "c", stored.Guessing)
	return &stored, nil
}

// Lookup returns the parameters for a list of items, skipping unknown ids
func (r *ParameterRegistry) Lookup(itemIDs []string) []*entity.ItemParameters {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.ItemParameters, 0, len(itemIDs))
	for _, id := range itemIDs {
		if p, ok := r.params[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
