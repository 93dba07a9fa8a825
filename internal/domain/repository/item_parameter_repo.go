package repository

import (
	"context"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// ItemParameterRepository stores IRT calibration data
type ItemParameterRepository interface {
	// GetByItemID returns apperrors.ErrNotFound when the item has no stored parameters
	GetByItemID(ctx context.Context, itemID string) (*entity.ItemParameters, error)
	GetByItemIDs(ctx context.Context, itemIDs []string) ([]entity.ItemParameters, error)
	// Upsert inserts or replaces the parameters of an item
	Upsert(ctx context.Context, params *entity.ItemParameters) error
}
