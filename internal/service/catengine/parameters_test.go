package catengine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
)

type MockItemParamRepo struct {
	mock.Mock
}

func (m *MockItemParamRepo) GetByItemID(ctx context.Context, itemID string) (*entity.ItemParameters, error) {
	args := m.Called(ctx, itemID)
	if p, ok := args.Get(0).(*entity.ItemParameters); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockItemParamRepo) GetByItemIDs(ctx context.Context, itemIDs []string) ([]entity.ItemParameters, error) {
	args := m.Called(ctx, itemIDs)
	if p, ok := args.Get(0).([]entity.ItemParameters); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockItemParamRepo) Upsert(ctx context.Context, params *entity.ItemParameters) error {
	return m.Called(ctx, params).Error(0)
}

func TestDefaultParameters(t *testing.T) {
	half := func() float64 { return 0.5 }

	tests := []struct {
		name     string
		q        entity.Question
		wantB    float64
		wantC    float64
		category string
	}{
		{"very easy choice", entity.Question{ID: "1", Difficulty: 1, Content: entity.QuestionContent{Type: "multiple_choice"}}, -2, 0.2, "general"},
		{"easy", entity.Question{ID: "2", Difficulty: 2, Content: entity.QuestionContent{Type: "essay"}}, -1, 0.1, "general"},
		{"medium true/false", entity.Question{ID: "3", Difficulty: 3, Content: entity.QuestionContent{Type: "true_false"}}, 0, 0.2, "general"},
		{"hard with category", entity.Question{ID: "4", Difficulty: 4, Categories: entity.StringArray{"algebra", "x"}}, 1, 0.1, "algebra"},
		{"very hard", entity.Question{ID: "5", Difficulty: 5, Content: entity.QuestionContent{Type: "single_choice"}}, 2, 0.2, "general"},
		{"textual tier wins", entity.Question{ID: "6", Difficulty: 5, Tier: "easy"}, -1, 0.1, "general"},
		{"unknown tier is medium", entity.Question{ID: "7", Difficulty: 42}, 0, 0.1, "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParameters(&tt.q, half)
			assert.Equal(t, tt.q.ID, p.ItemID)
			assert.Equal(t, tt.wantB, p.Difficulty)
			assert.Equal(t, tt.wantC, p.Guessing)
			assert.Equal(t, 1.25, p.Discrimination)
			assert.Equal(t, tt.category, p.Category)
			assert.NoError(t, p.Validate())
		})
	}
}

func TestDefaultParameters_DiscriminationRange(t *testing.T) {
	q := &entity.Question{ID: "q"}
	assert.Equal(t, 1.0, DefaultParameters(q, func() float64 { return 0 }).Discrimination)
	assert.InDelta(t, 1.5, DefaultParameters(q, func() float64 { return 0.9999999 }).Discrimination, 1e-6)
}

func TestParameterRegistry_EnsureWithoutRepo(t *testing.T) {
	r := NewParameterRegistry(nil, func() float64 { return 0.2 }, nil)
	q := &entity.Question{ID: "q1", Difficulty: 4}

	p := r.Ensure(context.Background(), q)
	assert.Equal(t, 1.0, p.Difficulty)
	assert.InDelta(t, 1.1, p.Discrimination, 1e-12)

	// already registered values are kept
	again := r.Ensure(context.Background(), &entity.Question{ID: "q1", Difficulty: 1})
	assert.Same(t, p, again)
	assert.Equal(t, 1, r.Len())
}

func TestParameterRegistry_EnsureLoadsStoredCalibration(t *testing.T) {
	repo := new(MockItemParamRepo)
	stored := &entity.ItemParameters{ItemID: "q1", Discrimination: 1.7, Difficulty: -0.4, Guessing: 0.15}
	repo.On("GetByItemID", mock.Anything, "q1").Return(stored, nil)

	r := NewParameterRegistry(repo, nil, nil)
	p := r.Ensure(context.Background(), &entity.Question{ID: "q1", Difficulty: 5})

	assert.Equal(t, 1.7, p.Discrimination)
	assert.Equal(t, -0.4, p.Difficulty)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestParameterRegistry_EnsurePersistsDefaults(t *testing.T) {
	repo := new(MockItemParamRepo)
	repo.On("GetByItemID", mock.Anything, "q2").Return(nil, apperrors.ErrNotFound)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *entity.ItemParameters) bool {
		return p.ItemID == "q2" && p.Difficulty == 2
	})).Return(nil)

	r := NewParameterRegistry(repo, func() float64 { return 0 }, nil)
	p := r.Ensure(context.Background(), &entity.Question{ID: "q2", Difficulty: 5})
	assert.Equal(t, 2.0, p.Difficulty)
	repo.AssertExpectations(t)
}

func TestParameterRegistry_EnsureSurvivesStorageErrors(t *testing.T) {
	repo := new(MockItemParamRepo)
	repo.On("GetByItemID", mock.Anything, "q3").Return(nil, errors.New("connection refused"))

	r := NewParameterRegistry(repo, func() float64 { return 0 }, nil)
	p := r.Ensure(context.Background(), &entity.Question{ID: "q3"})
	require.NotNil(t, p)
	assert.Equal(t, 0.0, p.Difficulty)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestParameterRegistry_Update(t *testing.T) {
	repo := new(MockItemParamRepo)
	repo.On("GetByItemID", mock.Anything, "q1").Return(nil, apperrors.ErrNotFound)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	r := NewParameterRegistry(repo, nil, nil)
	before := r.Ensure(context.Background(), &entity.Question{ID: "q1", Categories: entity.StringArray{"algebra"}})

	d := 0.95
	after, err := r.Update(context.Background(), "q1", entity.ItemParameters{Discrimination: 2, Difficulty: 0.3, Guessing: 0.1, UpperAsymptote: &d})
	require.NoError(t, err)
	assert.Equal(t, "q1", after.ItemID)
	assert.Equal(t, "algebra", after.Category, "category carries over")
	assert.Equal(t, 0.95, after.Upper())

	current, _ := r.Get("q1")
	assert.Same(t, after, current)
	assert.NotEqual(t, before.Discrimination, current.Discrimination, "old pointer keeps the old values")

	_, err = r.Update(context.Background(), "q1", entity.ItemParameters{Discrimination: 1, Guessing: 1})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestParameterRegistry_UpdatePersistFailureKeepsValue(t *testing.T) {
	repo := new(MockItemParamRepo)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("db down"))

	r := NewParameterRegistry(repo, nil, nil)
	p, err := r.Update(context.Background(), "q9", entity.ItemParameters{Discrimination: 1})
	require.NoError(t, err)
	got, ok := r.Get("q9")
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, entity.DefaultCategory, got.Category)
}

func TestParameterRegistry_ConcurrentEnsure(t *testing.T) {
	r := NewParameterRegistry(nil, DefaultRandomSource, nil)
	var wg sync.WaitGroup
	results := make([]*entity.ItemParameters, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Ensure(context.Background(), &entity.Question{ID: "shared"})
		}(i)
	}
	wg.Wait()

	for _, p := range results {
		assert.Same(t, results[0], p)
	}
	assert.Len(t, r.Lookup([]string{"shared", "missing"}), 1)
}
