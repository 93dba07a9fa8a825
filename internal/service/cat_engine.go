package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/domain/repository"
	"github.com/yourusername/cat-engine/internal/events"
	"github.com/yourusername/cat-engine/internal/irt"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
	"github.com/yourusername/cat-engine/internal/repository/memory"
	"github.com/yourusername/cat-engine/internal/service/catengine"
)

// archiveTimeout bounds the result archive write that follows a session end
const archiveTimeout = 5 * time.Second

// CATEngineDeps holds the collaborators of the engine. Everything is optional:
// exposure counters default to process memory, events are discarded and
// results are not archived.
type CATEngineDeps struct {
	ItemParamRepo repository.ItemParameterRepository
	ExposureRepo  repository.ExposureRepository
	ResultRepo    repository.SessionResultRepository
	Publisher     events.Publisher
	Random        catengine.RandomSource
	Clock         func() time.Time
	Logger        *logger.Logger
}

// StartSessionRequest describes a new session. A nil Config selects the
// engine defaults.
type StartSessionRequest struct {
	AssessmentID  string            `json:"assessment_id" binding:"required"`
	ParticipantID string            `json:"participant_id" binding:"required"`
	Attempt       int               `json:"attempt"`
	Config        *entity.CATConfig `json:"config,omitempty"`
	Questions     []entity.Question `json:"questions"`
}

// CATEngine coordinates the engine components and owns the session table.
// The table lock only guards lookups; each session has its own lock, so
// operations on different sessions run in parallel.
type CATEngine struct {
	registry  *catengine.ParameterRegistry
	estimator *catengine.AbilityEstimator
	selector  *catengine.ItemSelector
	exposure  *catengine.ExposureController
	stopping  *catengine.StoppingEvaluator

	resultRepo repository.SessionResultRepository
	publisher  events.Publisher
	defaults   entity.CATConfig
	now        func() time.Time
	logger     *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*catengine.SessionState
	attempts map[string]string // dedup key -> session id
}

// NewCATEngine creates an engine. defaults is used for sessions started
// without their own configuration.
func NewCATEngine(defaults entity.CATConfig, deps CATEngineDeps) (*CATEngine, error) {
	defaults = defaults.WithDefaults()
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default CAT config: %w", err)
	}

	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	exposureRepo := deps.ExposureRepo
	if exposureRepo == nil {
		exposureRepo = memory.NewExposureRepository()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	registry := catengine.NewParameterRegistry(deps.ItemParamRepo, deps.Random, log)
	exposure := catengine.NewExposureController(exposureRepo, registry, log)
	content := catengine.NewContentController()

	e := &CATEngine{
		registry:   registry,
		estimator:  catengine.NewAbilityEstimator(log),
		selector:   catengine.NewItemSelector(registry, exposure, content, deps.Random, log),
		exposure:   exposure,
		stopping:   catengine.NewStoppingEvaluator(),
		resultRepo: deps.ResultRepo,
		publisher:  publisher,
		defaults:   defaults,
		now:        clock,
		logger:     log.Component("CATEngine"),
		sessions:   make(map[string]*catengine.SessionState),
		attempts:   make(map[string]string),
	}
	e.logger.Info("CAT engine initialized",
		"model", defaults.Model, "estimation", defaults.Estimation,
		"selection", defaults.Selection, "exposure", defaults.Exposure)
	return e, nil
}

// Defaults returns the engine default configuration
func (e *CATEngine) Defaults() entity.CATConfig {
	return e.defaults
}

func attemptKey(assessmentID, participantID string, attempt int) string {
	return assessmentID + "\x00" + participantID + "\x00" + strconv.Itoa(attempt)
}

// StartSession registers the candidate items and creates an active session
func (e *CATEngine) StartSession(ctx context.Context, req StartSessionRequest) (*entity.CATSession, error) {
	if req.AssessmentID == "" || req.ParticipantID == "" {
		return nil, fmt.Errorf("%w: assessment_id and participant_id are required", apperrors.ErrValidation)
	}
	cfg := e.defaults
	if req.Config != nil {
		cfg = req.Config.WithDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i := range req.Questions {
		if req.Questions[i].ID == "" {
			return nil, fmt.Errorf("%w: question %d has no id", apperrors.ErrValidation, i)
		}
	}

	key := attemptKey(req.AssessmentID, req.ParticipantID, req.Attempt)
	e.mu.RLock()
	_, dup := e.attempts[key]
	e.mu.RUnlock()
	if dup {
		return nil, fmt.Errorf("%w: assessment %s, participant %s, attempt %d",
			apperrors.ErrDuplicateSession, req.AssessmentID, req.ParticipantID, req.Attempt)
	}

	for i := range req.Questions {
		e.registry.Ensure(ctx, &req.Questions[i])
	}

	state := catengine.NewSessionState(uuid.New().String(), req.AssessmentID, req.ParticipantID,
		req.Attempt, cfg, req.Questions, e.now())

	e.mu.Lock()
	if _, dup := e.attempts[key]; dup {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: assessment %s, participant %s, attempt %d",
			apperrors.ErrDuplicateSession, req.AssessmentID, req.ParticipantID, req.Attempt)
	}
	e.attempts[key] = state.ID
	e.sessions[state.ID] = state
	e.mu.Unlock()

	e.exposure.RecordSession(ctx)

	state.Mu.Lock()
	snap := state.Snapshot()
	e.publisher.Publish(ctx, events.New(events.TypeSessionStarted, snap, map[string]interface{}{
		"pool_size": len(snap.RemainingPool),
	}))
	state.Mu.Unlock()

	e.logger.Info("Session started", "session_id", state.ID,
		"assessment_id", req.AssessmentID, "participant_id", req.ParticipantID,
		"attempt", req.Attempt, "pool_size", len(snap.RemainingPool))
	return snap, nil
}

// lookup returns the session or ErrInvalidSession
func (e *CATEngine) lookup(sessionID string) (*catengine.SessionState, error) {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidSession, sessionID)
	}
	return s, nil
}

// lockActive looks the session up and locks it. The caller must unlock.
func (e *CATEngine) lockActive(sessionID string) (*catengine.SessionState, error) {
	s, err := e.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	s.Mu.Lock()
	if !s.IsActive() {
		s.Mu.Unlock()
		return nil, fmt.Errorf("%w: session %s is %s", apperrors.ErrInvalidSession, sessionID, s.Status)
	}
	return s, nil
}

// GetNextItem evaluates the stopping rules and, if the session goes on,
// selects the next item. ok is false when the session has ended, either
// because a stopping rule fired or because no candidate item is left.
// An item already selected and not yet answered is returned again.
func (e *CATEngine) GetNextItem(ctx context.Context, sessionID string) (string, bool, error) {
	s, err := e.lockActive(sessionID)
	if err != nil {
		return "", false, err
	}
	defer s.Mu.Unlock()

	decision := e.stopping.Evaluate(len(s.Administered), s.SEM, s.Reliability,
		e.now().Sub(s.StartTime), s.Config.Stopping)
	if decision.Stop {
		e.finish(ctx, s, entity.SessionStatusCompleted, decision.Reason)
		return "", false, nil
	}

	if s.PendingItemID != "" {
		return s.PendingItemID, true, nil
	}

	sel, ok := e.selector.SelectNextItem(ctx, s.SelectionInput())
	if !ok {
		e.finish(ctx, s, entity.SessionStatusTerminated, entity.ReasonNoItems)
		return "", false, nil
	}

	s.TakeFromPool(sel.ItemID)
	s.PendingItemID = sel.ItemID

	e.publisher.Publish(ctx, events.New(events.TypeItemSelected, s.Snapshot(), map[string]interface{}{
		"item_id":     sel.ItemID,
		"information": sel.Information,
		"ability":     s.CurrentAbility,
	}))
	e.logger.Debug("Item selected", "session_id", s.ID, "item_id", sel.ItemID,
		"information", sel.Information, "ability", s.CurrentAbility)
	return sel.ItemID, true, nil
}

// ProcessResponse records a response, re-estimates the ability and updates
// SEM and reliability. The item must be the pending item or still be in the
// remaining pool.
func (e *CATEngine) ProcessResponse(ctx context.Context, sessionID, itemID string, resp entity.Response) (*entity.AdministeredItem, error) {
	s, err := e.lockActive(sessionID)
	if err != nil {
		return nil, err
	}
	defer s.Mu.Unlock()

	if itemID != s.PendingItemID && !s.InPool(itemID) {
		return nil, fmt.Errorf("%w: item %s, session %s", apperrors.ErrItemNotPending, itemID, sessionID)
	}
	params, ok := e.registry.Get(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: item %s has no parameters", apperrors.ErrNotFound, itemID)
	}
	if itemID == s.PendingItemID {
		s.PendingItemID = ""
	} else {
		s.TakeFromPool(itemID)
	}

	model := s.Config.Model
	obs := make([]catengine.Observation, 0, len(s.Administered)+1)
	items := make([]*entity.ItemParameters, 0, len(s.Administered)+1)
	for _, a := range s.Administered {
		p, ok := e.registry.Get(a.ItemID)
		if !ok {
			continue
		}
		obs = append(obs, catengine.Observation{Params: p, IsCorrect: a.IsCorrect})
		items = append(items, p)
	}
	obs = append(obs, catengine.Observation{Params: params, IsCorrect: resp.IsCorrect})
	items = append(items, params)

	before := s.CurrentAbility
	after := e.estimator.Estimate(s.Config.Estimation, model, before, obs)

	sem := irt.StandardError(irt.TotalInformation(items, after, model))
	reliability := irt.Reliability(sem)

	record := entity.AdministeredItem{
		ItemID:           itemID,
		Response:         resp.Payload,
		ResponseTimeMs:   resp.ResponseTimeMs,
		IsCorrect:        resp.IsCorrect,
		AbilityBefore:    before,
		AbilityAfter:     after,
		InformationValue: irt.Information(params, after, model),
		Timestamp:        e.now(),
	}
	s.Record(record, sem, reliability)

	e.exposure.RecordAdministration(ctx, itemID)

	e.publisher.Publish(ctx, events.New(events.TypeResponseProcessed, s.Snapshot(), map[string]interface{}{
		"item_id":        itemID,
		"is_correct":     resp.IsCorrect,
		"ability_before": before,
		"ability_after":  after,
		"sem":            sem,
		"reliability":    reliability,
	}))
	e.logger.Debug("Response processed", "session_id", s.ID, "item_id", itemID,
		"correct", resp.IsCorrect, "ability", after, "sem", sem)
	return &record, nil
}

// TerminateSession ends an active session early
func (e *CATEngine) TerminateSession(ctx context.Context, sessionID, reason string) (*entity.SessionResult, error) {
	s, err := e.lockActive(sessionID)
	if err != nil {
		return nil, err
	}
	defer s.Mu.Unlock()

	if reason == "" {
		reason = entity.ReasonAborted
	}
	return e.finish(ctx, s, entity.SessionStatusTerminated, reason), nil
}

// finish ends the session, publishes the final event and archives the
// result. The caller holds the session lock.
func (e *CATEngine) finish(ctx context.Context, s *catengine.SessionState, status entity.SessionStatus, reason string) *entity.SessionResult {
	s.ReturnPending()
	s.Finish(status, reason, e.now())
	result := s.Result()

	eventType := events.TypeSessionCompleted
	if status == entity.SessionStatusTerminated {
		eventType = events.TypeSessionTerminated
	}
	e.publisher.Publish(ctx, events.New(eventType, s.Snapshot(), map[string]interface{}{
		"reason":                 reason,
		"final_ability":          result.FinalAbility,
		"sem":                    result.SEM,
		"reliability":            result.Reliability,
		"questions_administered": result.QuestionsAdministered,
	}))
	e.logger.Info("Session ended", "session_id", s.ID, "status", status, "reason", reason,
		"ability", result.FinalAbility, "sem", result.SEM, "items", result.QuestionsAdministered)

	e.archive(ctx, result)
	return result
}

// archive stores the result. Failures are logged only.
func (e *CATEngine) archive(ctx context.Context, result *entity.SessionResult) {
	if e.resultRepo == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	toSave := *result
	if err := e.resultRepo.Save(saveCtx, &toSave); err != nil {
		e.logger.Error("Failed to archive session result", "session_id", result.SessionID, "error", err)
	}
}

// GetSession returns a snapshot of the session
func (e *CATEngine) GetSession(sessionID string) (*entity.CATSession, error) {
	s, err := e.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.Snapshot(), nil
}

// ListSessions returns snapshots of every known session, oldest first
func (e *CATEngine) ListSessions() []*entity.CATSession {
	e.mu.RLock()
	states := make([]*catengine.SessionState, 0, len(e.sessions))
	for _, s := range e.sessions {
		states = append(states, s)
	}
	e.mu.RUnlock()

	out := make([]*entity.CATSession, 0, len(states))
	for _, s := range states {
		s.Mu.Lock()
		out = append(out, s.Snapshot())
		s.Mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// PurgeFinishedSessions drops ended sessions whose end time is before cutoff
// from the session table and returns how many were removed. The attempt
// dedup record is kept.
func (e *CATEngine) PurgeFinishedSessions(cutoff time.Time) int {
	e.mu.RLock()
	candidates := make([]*catengine.SessionState, 0)
	for _, s := range e.sessions {
		candidates = append(candidates, s)
	}
	e.mu.RUnlock()

	expired := make([]string, 0)
	for _, s := range candidates {
		s.Mu.Lock()
		if !s.IsActive() && s.EndTime != nil && s.EndTime.Before(cutoff) {
			expired = append(expired, s.ID)
		}
		s.Mu.Unlock()
	}
	if len(expired) == 0 {
		return 0
	}

	e.mu.Lock()
	for _, id := range expired {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	e.logger.Info("Purged finished sessions", "count", len(expired))
	return len(expired)
}

// GetItemParameters returns the registered parameters of an item
func (e *CATEngine) GetItemParameters(itemID string) (*entity.ItemParameters, error) {
	p, ok := e.registry.Get(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: item %s", apperrors.ErrNotFound, itemID)
	}
	cp := *p
	return &cp, nil
}

// UpdateItemParameters replaces an item's parameters. Active sessions use
// the new values from their next computation on.
func (e *CATEngine) UpdateItemParameters(ctx context.Context, itemID string, params entity.ItemParameters) (*entity.ItemParameters, error) {
	stored, err := e.registry.Update(ctx, itemID, params)
	if err != nil {
		return nil, err
	}
	e.publisher.Publish(ctx, events.New(events.TypeParametersUpdated, nil, map[string]interface{}{
		"item_id": itemID,
		"a":       stored.Discrimination,
		"b":       stored.Difficulty,
		"c":       stored.Guessing,
		"d":       stored.Upper(),
	}))
	cp := *stored
	return &cp, nil
}

// GetExposureRates returns the exposure counters and derived rates
func (e *CATEngine) GetExposureRates(ctx context.Context) (*catengine.ExposureSnapshot, error) {
	return e.exposure.Snapshot(ctx, e.defaults.ExposureMinSessions)
}

// ResetExposureRates clears the exposure counters
func (e *CATEngine) ResetExposureRates(ctx context.Context) error {
	if err := e.exposure.Reset(ctx); err != nil {
		return err
	}
	e.publisher.Publish(ctx, events.New(events.TypeExposureReset, nil, nil))
	return nil
}
