package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
)

// ItemParameterRepo implements repository.ItemParameterRepository
type ItemParameterRepo struct {
	db *gorm.DB
}

// NewItemParameterRepo creates the item parameter repository
func NewItemParameterRepo(db *gorm.DB) *ItemParameterRepo {
	return &ItemParameterRepo{db: db}
}

// GetByItemID returns the calibration of an item
func (r *ItemParameterRepo) GetByItemID(ctx context.Context, itemID string) (*entity.ItemParameters, error) {
	var params entity.ItemParameters
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).First(&params).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &params, nil
}

// GetByItemIDs returns the stored calibrations among the given items
func (r *ItemParameterRepo) GetByItemIDs(ctx context.Context, itemIDs []string) ([]entity.ItemParameters, error) {
	var params []entity.ItemParameters
	if len(itemIDs) == 0 {
		return params, nil
	}
	err := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).Find(&params).Error
	return params, err
}

// Upsert inserts the parameters or overwrites the stored calibration
func (r *ItemParameterRepo) Upsert(ctx context.Context, params *entity.ItemParameters) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"discrimination", "difficulty", "guessing", "upper_asymptote", "category", "updated_at",
		}),
	}).Create(params).Error
}
