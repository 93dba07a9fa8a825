package dto

import (
	"time"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// SubmitResponseRequest is a participant's answer to an item
type SubmitResponseRequest struct {
	ItemID         string      `json:"item_id" binding:"required"`
	IsCorrect      *bool       `json:"is_correct" binding:"required"`
	ResponseTimeMs int64       `json:"response_time_ms" binding:"omitempty,min=0"`
	Payload        interface{} `json:"payload,omitempty"`
}

// ToResponse converts the request into the engine's response value
func (r *SubmitResponseRequest) ToResponse() entity.Response {
	return entity.Response{
		Payload:        r.Payload,
		IsCorrect:      *r.IsCorrect,
		ResponseTimeMs: r.ResponseTimeMs,
	}
}

// TerminateSessionRequest ends a session early
type TerminateSessionRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=64"`
}

// ItemParametersRequest replaces an item's calibration
type ItemParametersRequest struct {
	Discrimination float64  `json:"a" binding:"required,gt=0"`
	Difficulty     float64  `json:"b"`
	Guessing       float64  `json:"c" binding:"min=0,lt=1"`
	UpperAsymptote *float64 `json:"d,omitempty"`
	Category       string   `json:"category,omitempty" binding:"omitempty,max=128"`
}

// ToEntity converts the request into item parameters
func (r *ItemParametersRequest) ToEntity() entity.ItemParameters {
	return entity.ItemParameters{
		Discrimination: r.Discrimination,
		Difficulty:     r.Difficulty,
		Guessing:       r.Guessing,
		UpperAsymptote: r.UpperAsymptote,
		Category:       r.Category,
	}
}

// NextItemResponse tells the client what to administer next. When Done is
// true the session has ended and Status/StopReason say why.
type NextItemResponse struct {
	SessionID      string               `json:"session_id"`
	ItemID         string               `json:"item_id,omitempty"`
	Done           bool                 `json:"done"`
	Status         entity.SessionStatus `json:"status"`
	StopReason     string               `json:"stop_reason,omitempty"`
	CurrentAbility float64              `json:"current_ability"`
	SEM            float64              `json:"sem"`
}

// SessionSummary is the list view of a session
type SessionSummary struct {
	ID             string               `json:"id"`
	AssessmentID   string               `json:"assessment_id"`
	ParticipantID  string               `json:"participant_id"`
	Attempt        int                  `json:"attempt"`
	Status         entity.SessionStatus `json:"status"`
	StopReason     string               `json:"stop_reason,omitempty"`
	CurrentAbility float64              `json:"current_ability"`
	SEM            float64              `json:"sem"`
	Reliability    float64              `json:"reliability"`
	Administered   int                  `json:"administered"`
	Remaining      int                  `json:"remaining"`
	StartTime      time.Time            `json:"start_time"`
	EndTime        *time.Time           `json:"end_time,omitempty"`
}

// NewSessionSummary builds the list view from a snapshot
func NewSessionSummary(s *entity.CATSession) SessionSummary {
	return SessionSummary{
		ID:             s.ID,
		AssessmentID:   s.AssessmentID,
		ParticipantID:  s.ParticipantID,
		Attempt:        s.Attempt,
		Status:         s.Status,
		StopReason:     s.StopReason,
		CurrentAbility: s.CurrentAbility,
		SEM:            s.SEM,
		Reliability:    s.Reliability,
		Administered:   len(s.Administered),
		Remaining:      len(s.RemainingPool),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
	}
}
