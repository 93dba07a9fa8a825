package entity

import "time"

// SessionResult is the summary produced when a session ends
type SessionResult struct {
	ID                    uint          `gorm:"primaryKey" json:"-"`
	SessionID             string        `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	AssessmentID          string        `gorm:"size:128;not null;uniqueIndex:idx_session_results_attempt,priority:1" json:"assessment_id"`
	ParticipantID         string        `gorm:"size:128;not null;uniqueIndex:idx_session_results_attempt,priority:2" json:"participant_id"`
	Attempt               int           `gorm:"not null;uniqueIndex:idx_session_results_attempt,priority:3" json:"attempt"`
	Status                SessionStatus `gorm:"size:32;not null" json:"status"`
	FinalAbility          float64       `gorm:"not null" json:"final_ability"`
	SEM                   float64       `gorm:"column:sem;not null" json:"sem"`
	Reliability           float64       `gorm:"not null" json:"reliability"`
	QuestionsAdministered int           `gorm:"not null" json:"questions_administered"`
	TotalTimeMs           int64         `gorm:"not null" json:"total_time_ms"`
	TerminationReason     string        `gorm:"size:64;not null" json:"termination_reason"`
	StartedAt             time.Time     `gorm:"not null" json:"started_at"`
	EndedAt               time.Time     `gorm:"not null" json:"ended_at"`
	CreatedAt             time.Time     `json:"created_at"`
}

// TableName defines the table name for GORM
func (SessionResult) TableName() string {
	return "cat_session_results"
}
