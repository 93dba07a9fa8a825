package entity

import (
	"fmt"
	"time"

	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
)

// ItemParameters holds IRT calibration data for one item
type ItemParameters struct {
	ItemID         string   `gorm:"primaryKey;size:128" json:"item_id"`
	Discrimination float64  `gorm:"not null;default:1" json:"a"`
	Difficulty     float64  `gorm:"not null;default:0" json:"b"`
	Guessing       float64  `gorm:"not null;default:0" json:"c"`
	UpperAsymptote *float64 `json:"d,omitempty"`

	// Category is the content category used for content balancing
	Category string `gorm:"size:128;not null;default:'general'" json:"category"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName defines the table name for GORM
func (ItemParameters) TableName() string {
	return "item_parameters"
}

// Upper returns the upper asymptote, 1 when unset.
func (p *ItemParameters) Upper() float64 {
	if p.UpperAsymptote == nil {
		return 1
	}
	return *p.UpperAsymptote
}

// Validate checks the parameter ranges required by the IRT models.
func (p *ItemParameters) Validate() error {
	if p.ItemID == "" {
		return fmt.Errorf("%w: item id is required", apperrors.ErrValidation)
	}
	if !(p.Discrimination > 0) {
		return fmt.Errorf("%w: discrimination must be > 0, got %v", apperrors.ErrValidation, p.Discrimination)
	}
	if p.Guessing < 0 || p.Guessing >= 1 {
		return fmt.Errorf("%w: guessing must be in [0,1), got %v", apperrors.ErrValidation, p.Guessing)
	}
	if p.UpperAsymptote != nil {
		d := *p.UpperAsymptote
		if d <= p.Guessing || d > 1 {
			return fmt.Errorf("%w: upper asymptote must be in (c,1], got %v", apperrors.ErrValidation, d)
		}
	}
	return nil
}
