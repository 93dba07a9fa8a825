package catengine

import (
	"sync"
	"time"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// SessionState holds the mutable state of one session. Mu serializes every
// operation on the session; methods below expect the caller to hold it.
type SessionState struct {
	ID            string
	AssessmentID  string
	ParticipantID string
	Attempt       int
	Config        entity.CATConfig

	CurrentAbility float64
	AbilityHistory []entity.AbilityEstimate
	Administered   []entity.AdministeredItem
	PendingItemID  string
	SEM            float64
	Reliability    float64
	Status         entity.SessionStatus
	StopReason     string
	StartTime      time.Time
	EndTime        *time.Time

	pool           []string
	inPool         map[string]struct{}
	rank           map[string]int // registration order
	categories     map[string]string
	categoryCounts map[string]int

	Mu sync.Mutex
}

// NewSessionState creates an active session over the given items. Duplicate
// ids keep their first position.
func NewSessionState(id, assessmentID, participantID string, attempt int, cfg entity.CATConfig, questions []entity.Question, now time.Time) *SessionState {
	s := &SessionState{
		ID:             id,
		AssessmentID:   assessmentID,
		ParticipantID:  participantID,
		Attempt:        attempt,
		Config:         cfg,
		CurrentAbility: cfg.StartingAbility,
		SEM:            1.0,
		Status:         entity.SessionStatusActive,
		StartTime:      now,
		pool:           make([]string, 0, len(questions)),
		inPool:         make(map[string]struct{}, len(questions)),
		rank:           make(map[string]int, len(questions)),
		categories:     make(map[string]string, len(questions)),
		categoryCounts: make(map[string]int),
	}
	s.Reliability = 1 - s.SEM*s.SEM
	for i := range questions {
		q := &questions[i]
		if _, dup := s.inPool[q.ID]; dup {
			continue
		}
		s.rank[q.ID] = len(s.pool)
		s.pool = append(s.pool, q.ID)
		s.inPool[q.ID] = struct{}{}
		s.categories[q.ID] = q.Category()
	}
	s.AbilityHistory = []entity.AbilityEstimate{{
		Value:         s.CurrentAbility,
		StandardError: s.SEM,
		Timestamp:     now,
		ItemsUsed:     0,
	}}
	return s
}

// IsActive reports whether the session still accepts operations
func (s *SessionState) IsActive() bool {
	return s.Status == entity.SessionStatusActive
}

// InPool reports whether the item is still in the remaining pool
func (s *SessionState) InPool(itemID string) bool {
	_, ok := s.inPool[itemID]
	return ok
}

// TakeFromPool removes the item from the remaining pool
func (s *SessionState) TakeFromPool(itemID string) bool {
	if _, ok := s.inPool[itemID]; !ok {
		return false
	}
	delete(s.inPool, itemID)
	for i, id := range s.pool {
		if id == itemID {
			s.pool = append(s.pool[:i], s.pool[i+1:]...)
			break
		}
	}
	return true
}

// ReturnPending puts an unanswered pending item back into the pool at its
// registration position.
func (s *SessionState) ReturnPending() {
	if s.PendingItemID == "" {
		return
	}
	id := s.PendingItemID
	s.PendingItemID = ""
	if s.InPool(id) {
		return
	}
	s.inPool[id] = struct{}{}

	pos := len(s.pool)
	for i, other := range s.pool {
		if s.rank[other] > s.rank[id] {
			pos = i
			break
		}
	}
	s.pool = append(s.pool, "")
	copy(s.pool[pos+1:], s.pool[pos:])
	s.pool[pos] = id
}

// Category returns the content category of an item in this session
func (s *SessionState) Category(itemID string) string {
	return categoryOf(s.categories, itemID)
}

// SelectionInput builds the selector input from the current state
func (s *SessionState) SelectionInput() SelectionInput {
	counts := make(map[string]int, len(s.categoryCounts))
	for k, v := range s.categoryCounts {
		counts[k] = v
	}
	return SelectionInput{
		Ability:        s.CurrentAbility,
		Candidates:     append([]string(nil), s.pool...),
		Categories:     s.categories,
		CategoryCounts: counts,
		Config:         s.Config,
	}
}

// AdministeredIDs returns the ids of the answered items in order
func (s *SessionState) AdministeredIDs() []string {
	ids := make([]string, len(s.Administered))
	for i, a := range s.Administered {
		ids[i] = a.ItemID
	}
	return ids
}

// Record appends an answered item and updates the ability, SEM and history
func (s *SessionState) Record(item entity.AdministeredItem, sem, reliability float64) {
	s.Administered = append(s.Administered, item)
	s.categoryCounts[s.Category(item.ItemID)]++
	s.CurrentAbility = item.AbilityAfter
	s.SEM = sem
	s.Reliability = reliability
	s.AbilityHistory = append(s.AbilityHistory, entity.AbilityEstimate{
		Value:         item.AbilityAfter,
		StandardError: sem,
		Timestamp:     item.Timestamp,
		ItemsUsed:     len(s.Administered),
	})
}

// Finish moves the session to a terminal status
func (s *SessionState) Finish(status entity.SessionStatus, reason string, now time.Time) {
	s.Status = status
	s.StopReason = reason
	end := now
	s.EndTime = &end
}

// Snapshot returns a deep copy of the session
func (s *SessionState) Snapshot() *entity.CATSession {
	snap := &entity.CATSession{
		ID:             s.ID,
		AssessmentID:   s.AssessmentID,
		ParticipantID:  s.ParticipantID,
		Attempt:        s.Attempt,
		Config:         s.Config,
		CurrentAbility: s.CurrentAbility,
		AbilityHistory: append([]entity.AbilityEstimate(nil), s.AbilityHistory...),
		Administered:   append([]entity.AdministeredItem(nil), s.Administered...),
		RemainingPool:  append([]string{}, s.pool...),
		PendingItemID:  s.PendingItemID,
		SEM:            s.SEM,
		Reliability:    s.Reliability,
		Status:         s.Status,
		StopReason:     s.StopReason,
		StartTime:      s.StartTime,
	}
	if len(s.Config.ContentConstraints) > 0 {
		cc := make(map[string]entity.ContentConstraint, len(s.Config.ContentConstraints))
		for k, v := range s.Config.ContentConstraints {
			cc[k] = v.Clone()
		}
		snap.Config.ContentConstraints = cc
	}
	if s.EndTime != nil {
		end := *s.EndTime
		snap.EndTime = &end
	}
	return snap
}

// Result builds the archived summary of a finished session
func (s *SessionState) Result() *entity.SessionResult {
	end := time.Now()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return &entity.SessionResult{
		SessionID:             s.ID,
		AssessmentID:          s.AssessmentID,
		ParticipantID:         s.ParticipantID,
		Attempt:               s.Attempt,
		Status:                s.Status,
		FinalAbility:          s.CurrentAbility,
		SEM:                   s.SEM,
		Reliability:           s.Reliability,
		QuestionsAdministered: len(s.Administered),
		TotalTimeMs:           end.Sub(s.StartTime).Milliseconds(),
		TerminationReason:     s.StopReason,
		StartedAt:             s.StartTime,
		EndedAt:               end,
	}
}
