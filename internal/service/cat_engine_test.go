package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/events"
	"github.com/yourusername/cat-engine/internal/irt"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
	"github.com/yourusername/cat-engine/internal/repository/memory"
)

// --- test doubles ---

type MockSessionResultRepo struct {
	mock.Mock
}

func (m *MockSessionResultRepo) Save(ctx context.Context, result *entity.SessionResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockSessionResultRepo) GetBySessionID(ctx context.Context, sessionID string) (*entity.SessionResult, error) {
	args := m.Called(ctx, sessionID)
	if r, ok := args.Get(0).(*entity.SessionResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionResultRepo) ListByAssessment(ctx context.Context, assessmentID string, limit, offset int) ([]entity.SessionResult, error) {
	args := m.Called(ctx, assessmentID, limit, offset)
	if r, ok := args.Get(0).([]entity.SessionResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types(sessionID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if sessionID == "" || e.SessionID == sessionID {
			out = append(out, e.Type)
		}
	}
	return out
}

// --- helpers ---

func fixedRandom() float64 { return 0.5 }

func config(min, max int, maxSEM, minReliability float64) *entity.CATConfig {
	cfg := entity.DefaultCATConfig()
	cfg.Stopping = entity.StoppingCriteria{
		MinQuestions:   min,
		MaxQuestions:   max,
		MaxSEM:         maxSEM,
		MinReliability: minReliability,
	}
	return &cfg
}

func newTestEngine(t *testing.T, deps CATEngineDeps) *CATEngine {
	t.Helper()
	if deps.Random == nil {
		deps.Random = fixedRandom
	}
	e, err := NewCATEngine(entity.DefaultCATConfig(), deps)
	require.NoError(t, err)
	return e
}

// calibrate registers explicit 2PL parameters for the items
func calibrate(t *testing.T, e *CATEngine, difficulties map[string]float64) []entity.Question {
	t.Helper()
	questions := make([]entity.Question, 0, len(difficulties))
	for id, b := range difficulties {
		_, err := e.UpdateItemParameters(context.Background(), id, entity.ItemParameters{
			Discrimination: 1, Difficulty: b,
		})
		require.NoError(t, err)
		questions = append(questions, entity.Question{ID: id})
	}
	return questions
}

// register stores explicit parameters for the items, in the given order
func register(t *testing.T, e *CATEngine, ids []string, params []entity.ItemParameters) []entity.Question {
	t.Helper()
	questions := make([]entity.Question, len(ids))
	for i, id := range ids {
		_, err := e.UpdateItemParameters(context.Background(), id, params[i])
		require.NoError(t, err)
		questions[i] = entity.Question{ID: id}
	}
	return questions
}

func (p *recordingPublisher) payload(eventType string) map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Type == eventType {
			return e.Payload
		}
	}
	return nil
}

func bank(n int) []entity.Question {
	qs := make([]entity.Question, n)
	for i := range qs {
		qs[i] = entity.Question{
			ID:         fmt.Sprintf("q%02d", i),
			Difficulty: i%5 + 1,
			Content:    entity.QuestionContent{Type: entity.QuestionTypeMultipleChoice},
		}
	}
	return qs
}

func startSession(t *testing.T, e *CATEngine, participant string, cfg *entity.CATConfig, qs []entity.Question) *entity.CATSession {
	t.Helper()
	s, err := e.StartSession(context.Background(), StartSessionRequest{
		AssessmentID:  "assessment-1",
		ParticipantID: participant,
		Attempt:       1,
		Config:        cfg,
		Questions:     qs,
	})
	require.NoError(t, err)
	return s
}

// --- tests ---

func TestCATEngine_SingleItemEndToEnd(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	e := newTestEngine(t, CATEngineDeps{Publisher: pub})
	qs := register(t, e, []string{"easy", "medium", "hard"}, []entity.ItemParameters{
		{Discrimination: 1.2, Difficulty: -1, Guessing: 0.2},
		{Discrimination: 1.3, Difficulty: 0, Guessing: 0.2},
		{Discrimination: 1.1, Difficulty: 1, Guessing: 0.2},
	})

	cfg := config(1, 1, 0.3, 0.9)
	cfg.Estimation = entity.EstimationMLE
	cfg.Selection = entity.SelectionMaximumInformation
	s := startSession(t, e, "p1", cfg, qs)
	assert.Equal(t, entity.SessionStatusActive, s.Status)
	assert.Equal(t, 1.0, s.SEM)
	assert.Equal(t, 0.0, s.Reliability)

	itemID, ok, err := e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "medium", itemID, "the item with b=0 is most informative at theta=0")
	selected := pub.payload(events.TypeItemSelected)
	require.NotNil(t, selected)
	assert.InDelta(t, 0.4225, selected["information"].(float64), 1e-4)

	record, err := e.ProcessResponse(ctx, s.ID, itemID, entity.Response{IsCorrect: true, ResponseTimeMs: 1200})
	require.NoError(t, err)
	assert.Greater(t, record.AbilityAfter, 0.0)
	assert.Equal(t, 0.0, record.AbilityBefore)

	_, ok, err = e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	final, err := e.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusCompleted, final.Status)
	assert.Equal(t, entity.ReasonMaxQuestions, final.StopReason)
	assert.Len(t, final.Administered, 1)
	assert.Len(t, final.AbilityHistory, 2)
	assert.NotNil(t, final.EndTime)

	assert.Equal(t, []string{
		events.TypeSessionStarted,
		events.TypeItemSelected,
		events.TypeResponseProcessed,
		events.TypeSessionCompleted,
	}, pub.types(s.ID))
}

func TestCATEngine_StoppingBounds(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		cfg        *entity.CATConfig
		wantItems  int
		wantReason string
	}{
		// SEM <= 0 never holds and reliability is disabled: only the cap stops
		{"runs to max", config(5, 20, 0, 0), 20, entity.ReasonMaxQuestions},
		// SEM <= 5 always holds: stops as soon as the floor is reached
		{"stops at min", config(5, 20, 5, 0), 5, entity.ReasonTargetSEM},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, CATEngineDeps{})
			s := startSession(t, e, fmt.Sprintf("p%d", i), tt.cfg, bank(30))

			answered := 0
			for {
				itemID, ok, err := e.GetNextItem(ctx, s.ID)
				require.NoError(t, err)
				if !ok {
					break
				}
				_, err = e.ProcessResponse(ctx, s.ID, itemID, entity.Response{IsCorrect: answered%2 == 0})
				require.NoError(t, err)
				answered++
				require.LessOrEqual(t, answered, 20)
			}

			final, err := e.GetSession(s.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantItems, len(final.Administered))
			assert.Equal(t, tt.wantReason, final.StopReason)
			assert.Equal(t, 30-tt.wantItems, len(final.RemainingPool))
		})
	}
}

func TestCATEngine_ReliabilityTracksSEM(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, CATEngineDeps{})
	cfg := config(0, 8, 0, 0)
	cfg.Estimation = entity.EstimationEAP
	s := startSession(t, e, "p1", cfg, bank(10))

	for i := 0; i < 8; i++ {
		itemID, ok, err := e.GetNextItem(ctx, s.ID)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = e.ProcessResponse(ctx, s.ID, itemID, entity.Response{IsCorrect: i%3 != 0})
		require.NoError(t, err)

		snap, err := e.GetSession(s.ID)
		require.NoError(t, err)
		assert.InDelta(t, 1-snap.SEM*snap.SEM, snap.Reliability, 1e-12)
		assert.GreaterOrEqual(t, snap.CurrentAbility, irt.MinAbility)
		assert.LessOrEqual(t, snap.CurrentAbility, irt.MaxAbility)

		// pool and administered partition the candidate set
		assert.Equal(t, 10, len(snap.RemainingPool)+len(snap.Administered))
	}
}

func TestCATEngine_NoItemsTerminates(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	e := newTestEngine(t, CATEngineDeps{Publisher: pub})
	s := startSession(t, e, "p1", config(0, 5, 0.3, 0.9), nil)

	_, ok, err := e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	final, err := e.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusTerminated, final.Status)
	assert.Equal(t, entity.ReasonNoItems, final.StopReason)
	assert.Contains(t, pub.types(s.ID), events.TypeSessionTerminated)
}

func TestCATEngine_TimeLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	e := newTestEngine(t, CATEngineDeps{Clock: clock})
	cfg := config(0, 10, 0, 0)
	cfg.Stopping.TimeLimit = time.Minute
	s := startSession(t, e, "p1", cfg, bank(10))

	_, ok, err := e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	final, _ := e.GetSession(s.ID)
	assert.Equal(t, entity.ReasonTimeLimit, final.StopReason)
	// the unanswered pending item goes back to the pool
	assert.Empty(t, final.PendingItemID)
	assert.Len(t, final.RemainingPool, 10)
}

func TestCATEngine_PendingItem(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, CATEngineDeps{})
	s := startSession(t, e, "p1", config(0, 5, 0, 0), bank(6))

	first, ok, err := e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)

	again, _, err := e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first, again, "an unanswered item is returned again")

	_, err = e.ProcessResponse(ctx, s.ID, first, entity.Response{IsCorrect: true})
	require.NoError(t, err)

	_, err = e.ProcessResponse(ctx, s.ID, first, entity.Response{IsCorrect: true})
	assert.ErrorIs(t, err, apperrors.ErrItemNotPending, "an administered item cannot be answered twice")

	_, err = e.ProcessResponse(ctx, s.ID, "unknown", entity.Response{})
	assert.ErrorIs(t, err, apperrors.ErrItemNotPending)

	// an item still in the pool may be answered without being selected
	snap, _ := e.GetSession(s.ID)
	external := snap.RemainingPool[0]
	_, err = e.ProcessResponse(ctx, s.ID, external, entity.Response{IsCorrect: false})
	require.NoError(t, err)

	snap, _ = e.GetSession(s.ID)
	assert.NotContains(t, snap.RemainingPool, external)
	assert.Len(t, snap.Administered, 2)
}

func TestCATEngine_InvalidSession(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, CATEngineDeps{})

	_, _, err := e.GetNextItem(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
	_, err = e.ProcessResponse(ctx, "missing", "q1", entity.Response{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
	_, err = e.GetSession("missing")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)

	s := startSession(t, e, "p1", config(0, 5, 0.3, 0.9), bank(5))
	result, err := e.TerminateSession(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.ReasonAborted, result.TerminationReason)
	assert.Equal(t, entity.SessionStatusTerminated, result.Status)

	_, _, err = e.GetNextItem(ctx, s.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
	_, err = e.ProcessResponse(ctx, s.ID, "q01", entity.Response{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
	_, err = e.TerminateSession(ctx, s.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
}

func TestCATEngine_StartSessionValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, CATEngineDeps{})

	_, err := e.StartSession(ctx, StartSessionRequest{ParticipantID: "p"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	bad := config(10, 5, 0.3, 0.9)
	_, err = e.StartSession(ctx, StartSessionRequest{AssessmentID: "a", ParticipantID: "p", Config: bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = e.StartSession(ctx, StartSessionRequest{AssessmentID: "a", ParticipantID: "p", Questions: []entity.Question{{}}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	startSession(t, e, "p1", nil, bank(3))
	_, err = e.StartSession(ctx, StartSessionRequest{AssessmentID: "assessment-1", ParticipantID: "p1", Attempt: 1})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSession)

	// a new attempt is a new session
	_, err = e.StartSession(ctx, StartSessionRequest{AssessmentID: "assessment-1", ParticipantID: "p1", Attempt: 2})
	assert.NoError(t, err)
}

func TestCATEngine_SympsonHetterSkipsOverexposedItems(t *testing.T) {
	ctx := context.Background()
	exposure := memory.NewExposureRepository()
	for i := 0; i < 5; i++ {
		_, _ = exposure.Increment(ctx, "medium")
	}

	e := newTestEngine(t, CATEngineDeps{ExposureRepo: exposure})
	qs := calibrate(t, e, map[string]float64{"easy": -1, "medium": 0, "hard": 1.2})

	cfg := config(0, 3, 0, 0)
	cfg.Exposure = entity.ExposureSympsonHetter
	s := startSession(t, e, "p1", cfg, qs)

	// rate = 5 / max(1, 10) = 0.5 >= 0.3
	itemID, ok, err := e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "easy", itemID)

	rates, err := e.GetExposureRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rates.Sessions)
	assert.InDelta(t, 0.5, rates.Rates["medium"], 1e-12)
}

func TestCATEngine_ExposureCountersAndReset(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	e := newTestEngine(t, CATEngineDeps{Publisher: pub})
	s := startSession(t, e, "p1", config(0, 3, 0, 0), bank(5))

	for i := 0; i < 3; i++ {
		itemID, ok, err := e.GetNextItem(ctx, s.ID)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = e.ProcessResponse(ctx, s.ID, itemID, entity.Response{IsCorrect: true})
		require.NoError(t, err)
	}

	snap, err := e.GetExposureRates(ctx)
	require.NoError(t, err)
	total := int64(0)
	for _, n := range snap.Counts {
		total += n
	}
	assert.Equal(t, int64(3), total)

	// reading is side-effect free
	again, err := e.GetExposureRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Counts, again.Counts)

	require.NoError(t, e.ResetExposureRates(ctx))
	snap, err = e.GetExposureRates(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Counts)
	assert.Zero(t, snap.Sessions)
	assert.Contains(t, pub.types(""), events.TypeExposureReset)
}

func TestCATEngine_UpdateItemParametersHotSwap(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	e := newTestEngine(t, CATEngineDeps{Publisher: pub})
	qs := calibrate(t, e, map[string]float64{"only": 0})
	s := startSession(t, e, "p1", config(0, 1, 0, 0), qs)

	itemID, _, err := e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)

	updated, err := e.UpdateItemParameters(ctx, itemID, entity.ItemParameters{Discrimination: 2, Difficulty: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 2.0, updated.Discrimination)

	record, err := e.ProcessResponse(ctx, s.ID, itemID, entity.Response{IsCorrect: false})
	require.NoError(t, err)
	want := irt.Information(updated, record.AbilityAfter, entity.Model2PL)
	assert.InDelta(t, want, record.InformationValue, 1e-12)

	_, err = e.UpdateItemParameters(ctx, itemID, entity.ItemParameters{Discrimination: 0})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = e.GetItemParameters("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, pub.types(""), events.TypeParametersUpdated)
}

func TestCATEngine_DefaultParametersFromQuestion(t *testing.T) {
	e := newTestEngine(t, CATEngineDeps{})
	startSession(t, e, "p1", nil, []entity.Question{
		{ID: "mc", Difficulty: entity.DifficultyHard, Content: entity.QuestionContent{Type: "multiple_choice"}},
		{ID: "open", Tier: "very_easy", Content: entity.QuestionContent{Type: "free_text"}},
	})

	mc, err := e.GetItemParameters("mc")
	require.NoError(t, err)
	assert.Equal(t, 1.0, mc.Difficulty)
	assert.Equal(t, 0.2, mc.Guessing)
	assert.Equal(t, 1.25, mc.Discrimination)

	open, err := e.GetItemParameters("open")
	require.NoError(t, err)
	assert.Equal(t, -2.0, open.Difficulty)
	assert.Equal(t, 0.1, open.Guessing)
}

func TestCATEngine_ArchivesResult(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSessionResultRepo)
	e := newTestEngine(t, CATEngineDeps{ResultRepo: repo})
	s := startSession(t, e, "p1", config(0, 5, 0.3, 0.9), bank(5))

	repo.On("Save", mock.Anything, mock.MatchedBy(func(r *entity.SessionResult) bool {
		return r.SessionID == s.ID && r.TerminationReason == "proctor" && r.Status == entity.SessionStatusTerminated
	})).Return(nil).Once()

	_, err := e.TerminateSession(ctx, s.ID, "proctor")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestCATEngine_ArchiveFailureIsNotPropagated(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSessionResultRepo)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	e := newTestEngine(t, CATEngineDeps{ResultRepo: repo})
	s := startSession(t, e, "p1", config(0, 5, 0.3, 0.9), bank(5))

	result, err := e.TerminateSession(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, s.ID, result.SessionID)
	repo.AssertExpectations(t)
}

func TestCATEngine_ReadOnlyQueries(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, CATEngineDeps{})
	s := startSession(t, e, "p1", config(0, 5, 0, 0), bank(5))

	itemID, _, _ := e.GetNextItem(ctx, s.ID)
	_, err := e.ProcessResponse(ctx, s.ID, itemID, entity.Response{IsCorrect: true})
	require.NoError(t, err)

	a, err := e.GetSession(s.ID)
	require.NoError(t, err)
	b, err := e.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// mutating a snapshot does not touch the session
	a.RemainingPool[0] = "tampered"
	a.Administered[0].IsCorrect = false
	c, _ := e.GetSession(s.ID)
	assert.Equal(t, b, c)

	list := e.ListSessions()
	require.Len(t, list, 1)
	assert.Equal(t, b, list[0])
}

func TestCATEngine_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, CATEngineDeps{Random: nil})
	const sessions = 24

	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := e.StartSession(ctx, StartSessionRequest{
				AssessmentID:  "load",
				ParticipantID: fmt.Sprintf("p%d", i),
				Config:        config(3, 10, 0, 0),
				Questions:     bank(15),
			})
			if err != nil {
				errs <- err
				return
			}
			for n := 0; ; n++ {
				itemID, ok, err := e.GetNextItem(ctx, s.ID)
				if err != nil {
					errs <- err
					return
				}
				if !ok {
					return
				}
				if _, err := e.ProcessResponse(ctx, s.ID, itemID, entity.Response{IsCorrect: (n+i)%2 == 0}); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list := e.ListSessions()
	require.Len(t, list, sessions)
	for _, s := range list {
		assert.Equal(t, entity.SessionStatusCompleted, s.Status)
		assert.Len(t, s.Administered, 10)
	}

	snap, err := e.GetExposureRates(ctx)
	require.NoError(t, err)
	total := int64(0)
	for _, n := range snap.Counts {
		total += n
	}
	assert.Equal(t, int64(sessions*10), total)
	assert.Equal(t, int64(sessions), snap.Sessions)
}

func TestCATEngine_PurgeFinishedSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := newTestEngine(t, CATEngineDeps{Clock: func() time.Time { return now }})

	done := startSession(t, e, "p1", config(0, 5, 0.3, 0.9), bank(3))
	active := startSession(t, e, "p2", config(0, 5, 0.3, 0.9), bank(3))
	_, err := e.TerminateSession(ctx, done.ID, "")
	require.NoError(t, err)

	assert.Equal(t, 0, e.PurgeFinishedSessions(now))
	assert.Equal(t, 1, e.PurgeFinishedSessions(now.Add(time.Second)))

	_, err = e.GetSession(done.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
	_, err = e.GetSession(active.ID)
	assert.NoError(t, err)

	// the attempt stays taken
	_, err = e.StartSession(ctx, StartSessionRequest{AssessmentID: "assessment-1", ParticipantID: "p1", Attempt: 1})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSession)
}

func TestCATEngine_ZeroMaxItemsExcludesCategory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, CATEngineDeps{})

	cfg := config(0, 5, 0, 0)
	cfg.ContentConstraints = map[string]entity.ContentConstraint{
		entity.DefaultCategory: {MinItems: 0, MaxItems: entity.Limit(0)},
	}
	s := startSession(t, e, "p1", cfg, bank(3))

	_, ok, err := e.GetNextItem(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	final, err := e.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusTerminated, final.Status)
	assert.Equal(t, entity.ReasonNoItems, final.StopReason)
	assert.Empty(t, final.Administered)
}
