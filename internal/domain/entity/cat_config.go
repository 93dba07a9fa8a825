package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
)

// IRTModel selects the item response model family
type IRTModel string

const (
	Model1PL  IRTModel = "1PL"
	Model2PL  IRTModel = "2PL"
	Model3PL  IRTModel = "3PL"
	Model4PL  IRTModel = "4PL"
	ModelGPCM IRTModel = "GPCM" // approximated by the 2PL curve
	ModelGRM  IRTModel = "GRM"  // approximated by the 2PL curve
)

// EstimationMethod selects the ability estimator
type EstimationMethod string

const (
	EstimationMLE EstimationMethod = "MLE"
	EstimationWLE EstimationMethod = "WLE"
	EstimationEAP EstimationMethod = "EAP"
	EstimationMAP EstimationMethod = "MAP"
)

// SelectionMethod selects the next-item strategy
type SelectionMethod string

const (
	SelectionMaximumInformation  SelectionMethod = "maximum_information"
	SelectionWeightedInformation SelectionMethod = "weighted_information"
	SelectionBayesian            SelectionMethod = "bayesian"
	SelectionConstraintBased     SelectionMethod = "constraint_based"
)

// ExposureMethod selects the exposure control stage
type ExposureMethod string

const (
	ExposureNone          ExposureMethod = "none"
	ExposureSympsonHetter ExposureMethod = "sympson_hetter"
	ExposureRandomesque   ExposureMethod = "randomesque"
	ExposureProgressive   ExposureMethod = "progressive"
)

// Defaults for the exposure control stage
const (
	DefaultMaxExposureRate     = 0.3
	DefaultRandomesqueSize     = 5
	DefaultExposureMinSessions = 10
)

// StoppingCriteria holds the termination thresholds
type StoppingCriteria struct {
	MinQuestions   int           `json:"min_questions" mapstructure:"min_questions"`
	MaxQuestions   int           `json:"max_questions" mapstructure:"max_questions"`
	MaxSEM         float64       `json:"max_sem" mapstructure:"max_sem"`
	MinReliability float64       `json:"min_reliability" mapstructure:"min_reliability"`
	TimeLimit      time.Duration `json:"time_limit" mapstructure:"time_limit"` // 0 disables the time check
}

// MarshalJSON writes TimeLimit as a duration string ("30m0s")
func (s StoppingCriteria) MarshalJSON() ([]byte, error) {
	type plain StoppingCriteria
	return json.Marshal(struct {
		plain
		TimeLimit string `json:"time_limit"`
	}{plain: plain(s), TimeLimit: s.TimeLimit.String()})
}

// UnmarshalJSON accepts time_limit as a duration string ("30m") or as a
// number of seconds.
func (s *StoppingCriteria) UnmarshalJSON(data []byte) error {
	type plain StoppingCriteria
	aux := struct {
		*plain
		TimeLimit json.RawMessage `json:"time_limit"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	limit, err := parseTimeLimit(aux.TimeLimit)
	if err != nil {
		return err
	}
	s.TimeLimit = limit
	return nil
}

func parseTimeLimit(raw json.RawMessage) (time.Duration, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		if text == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(text)
		if err != nil {
			return 0, fmt.Errorf("%w: time_limit %q: %v", apperrors.ErrValidation, text, err)
		}
		return d, nil
	}
	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err != nil {
		return 0, fmt.Errorf("%w: time_limit must be a duration string or seconds", apperrors.ErrValidation)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// ContentConstraint is a per-category quota. A nil MaxItems leaves the
// category unbounded; 0 excludes it.
type ContentConstraint struct {
	MinItems int     `json:"min_items" mapstructure:"min_items"`
	MaxItems *int    `json:"max_items,omitempty" mapstructure:"max_items"`
	Weight   float64 `json:"weight" mapstructure:"weight"`
}

// Limit returns a MaxItems value
func Limit(n int) *int {
	return &n
}

// Allows reports whether one more item fits when count items of the
// category were already administered.
func (cc ContentConstraint) Allows(count int) bool {
	return cc.MaxItems == nil || count+1 <= *cc.MaxItems
}

// Clone returns a copy that does not share MaxItems
func (cc ContentConstraint) Clone() ContentConstraint {
	if cc.MaxItems != nil {
		cc.MaxItems = Limit(*cc.MaxItems)
	}
	return cc
}

// CATConfig is the configuration a session is started with
type CATConfig struct {
	Model           IRTModel         `json:"model" mapstructure:"model"`
	Estimation      EstimationMethod `json:"estimation" mapstructure:"estimation"`
	Selection       SelectionMethod  `json:"selection" mapstructure:"selection"`
	Exposure        ExposureMethod   `json:"exposure" mapstructure:"exposure"`
	StartingAbility float64          `json:"starting_ability" mapstructure:"starting_ability"`
	Stopping        StoppingCriteria `json:"stopping" mapstructure:"stopping"`

	ContentConstraints map[string]ContentConstraint `json:"content_constraints,omitempty" mapstructure:"content_constraints"`

	MaxExposureRate     float64 `json:"max_exposure_rate" mapstructure:"max_exposure_rate"`
	RandomesqueSize     int     `json:"randomesque_size" mapstructure:"randomesque_size"`
	ExposureMinSessions int     `json:"exposure_min_sessions" mapstructure:"exposure_min_sessions"`

	// SelectionUsesSessionModel makes item selection use the session model
	// instead of the fixed 2PL information function.
	SelectionUsesSessionModel bool `json:"selection_uses_session_model" mapstructure:"selection_uses_session_model"`
}

// DefaultCATConfig returns the engine defaults
func DefaultCATConfig() CATConfig {
	return CATConfig{
		Model:           Model2PL,
		Estimation:      EstimationMLE,
		Selection:       SelectionMaximumInformation,
		Exposure:        ExposureNone,
		StartingAbility: 0,
		Stopping: StoppingCriteria{
			MinQuestions:   5,
			MaxQuestions:   20,
			MaxSEM:         0.3,
			MinReliability: 0.9,
		},
		MaxExposureRate:     DefaultMaxExposureRate,
		RandomesqueSize:     DefaultRandomesqueSize,
		ExposureMinSessions: DefaultExposureMinSessions,
	}
}

// WithDefaults fills zero-valued enums and tuning knobs from DefaultCATConfig.
// Stopping thresholds are left untouched.
func (c CATConfig) WithDefaults() CATConfig {
	def := DefaultCATConfig()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.Estimation == "" {
		c.Estimation = def.Estimation
	}
	if c.Selection == "" {
		c.Selection = def.Selection
	}
	if c.Exposure == "" {
		c.Exposure = def.Exposure
	}
	if c.MaxExposureRate == 0 {
		c.MaxExposureRate = def.MaxExposureRate
	}
	if c.RandomesqueSize == 0 {
		c.RandomesqueSize = def.RandomesqueSize
	}
	if c.ExposureMinSessions == 0 {
		c.ExposureMinSessions = def.ExposureMinSessions
	}
	return c
}

// Validate checks enums and thresholds
func (c CATConfig) Validate() error {
	switch c.Model {
	case Model1PL, Model2PL, Model3PL, Model4PL, ModelGPCM, ModelGRM:
	default:
		return fmt.Errorf("%w: unknown IRT model %q", apperrors.ErrValidation, c.Model)
	}
	switch c.Estimation {
	case EstimationMLE, EstimationWLE, EstimationEAP, EstimationMAP:
	default:
		return fmt.Errorf("%w: unknown estimation method %q", apperrors.ErrValidation, c.Estimation)
	}
	switch c.Selection {
	case SelectionMaximumInformation, SelectionWeightedInformation, SelectionBayesian, SelectionConstraintBased:
	default:
		return fmt.Errorf("%w: unknown selection method %q", apperrors.ErrValidation, c.Selection)
	}
	switch c.Exposure {
	case ExposureNone, ExposureSympsonHetter, ExposureRandomesque, ExposureProgressive:
	default:
		return fmt.Errorf("%w: unknown exposure method %q", apperrors.ErrValidation, c.Exposure)
	}

	s := c.Stopping
	if s.MinQuestions < 0 || s.MaxQuestions <= 0 {
		return fmt.Errorf("%w: max_questions must be positive and min_questions not negative", apperrors.ErrValidation)
	}
	if s.MaxQuestions < s.MinQuestions {
		return fmt.Errorf("%w: max_questions (%d) < min_questions (%d)", apperrors.ErrValidation, s.MaxQuestions, s.MinQuestions)
	}
	if s.MaxSEM < 0 || s.TimeLimit < 0 {
		return fmt.Errorf("%w: stopping thresholds must not be negative", apperrors.ErrValidation)
	}
	if c.MaxExposureRate <= 0 || c.RandomesqueSize <= 0 || c.ExposureMinSessions <= 0 {
		return fmt.Errorf("%w: exposure settings must be positive", apperrors.ErrValidation)
	}

	for category, cc := range c.ContentConstraints {
		if cc.MinItems < 0 || cc.Weight < 0 || (cc.MaxItems != nil && *cc.MaxItems < 0) {
			return fmt.Errorf("%w: content constraint %q has negative values", apperrors.ErrValidation, category)
		}
		if cc.MaxItems != nil && *cc.MaxItems < cc.MinItems {
			return fmt.Errorf("%w: content constraint %q has max_items < min_items", apperrors.ErrValidation, category)
		}
	}
	return nil
}
