package entity

import "time"

// SessionStatus is the lifecycle state of a CAT session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusTerminated SessionStatus = "terminated"
)

// IsTerminal reports whether the status can no longer change
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusTerminated
}

// Termination reasons
const (
	ReasonMaxQuestions      = "max_questions"
	ReasonTargetSEM         = "target_sem"
	ReasonTargetReliability = "target_reliability"
	ReasonTimeLimit         = "time_limit"
	ReasonNoItems           = "no_items"
	ReasonAborted           = "aborted"
)

// AbilityEstimate is one entry of a session's ability history
type AbilityEstimate struct {
	Value         float64   `json:"value"`
	StandardError float64   `json:"standard_error"`
	Timestamp     time.Time `json:"timestamp"`
	ItemsUsed     int       `json:"items_used"`
}

// AdministeredItem records one answered item
type AdministeredItem struct {
	ItemID           string      `json:"item_id"`
	Response         interface{} `json:"response,omitempty"`
	ResponseTimeMs   int64       `json:"response_time_ms"`
	IsCorrect        bool        `json:"is_correct"`
	AbilityBefore    float64     `json:"ability_before"`
	AbilityAfter     float64     `json:"ability_after"`
	InformationValue float64     `json:"information_value"`
	Timestamp        time.Time   `json:"timestamp"`
}

// CATSession is a point-in-time copy of a session's state
type CATSession struct {
	ID             string             `json:"id"`
	AssessmentID   string             `json:"assessment_id"`
	ParticipantID  string             `json:"participant_id"`
	Attempt        int                `json:"attempt"`
	Config         CATConfig          `json:"config"`
	CurrentAbility float64            `json:"current_ability"`
	AbilityHistory []AbilityEstimate  `json:"ability_history"`
	Administered   []AdministeredItem `json:"administered_items"`
	RemainingPool  []string           `json:"remaining_pool"`
	PendingItemID  string             `json:"pending_item_id,omitempty"`
	SEM            float64            `json:"sem"`
	Reliability    float64            `json:"reliability"`
	Status         SessionStatus      `json:"status"`
	StopReason     string             `json:"stop_reason,omitempty"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        *time.Time         `json:"end_time,omitempty"`
}

// Response is a participant's answer to an administered item
type Response struct {
	Payload        interface{} `json:"payload,omitempty"`
	IsCorrect      bool        `json:"is_correct"`
	ResponseTimeMs int64       `json:"response_time_ms"`
}
