package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockWindowCounter struct {
	mock.Mock
}

func (m *MockWindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Get(1).(time.Duration), args.Error(2)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetString("id")})
	})
	r.GET("/items/:id", handlers...)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestExtractUUIDParam(t *testing.T) {
	r := newRouter(ExtractUUIDParam("id", "id"))

	w := get(r, "/items/6F9619FF-8B86-D011-B42D-00C04FC964FF")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "6f9619ff-8b86-d011-b42d-00c04fc964ff")

	w = get(r, "/items/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractStringParam(t *testing.T) {
	r := newRouter(ExtractStringParam("id", "id", 8))

	assert.Equal(t, http.StatusOK, get(r, "/items/q-17").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/items/%20").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/items/much-too-long-id").Code)
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	cfg := RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl:test"}
	r := newRouter(NewRateLimiter(NewMemoryWindowCounter(), nil).LimitByIP(cfg))

	assert.Equal(t, http.StatusOK, get(r, "/items/a").Code)
	w := get(r, "/items/a")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = get(r, "/items/b")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	counter := new(MockWindowCounter)
	counter.On("Hit", mock.Anything, mock.Anything, time.Minute).Return(int64(0), time.Duration(0), errors.New("redis down"))

	r := newRouter(NewRateLimiter(counter, nil).LimitByIP(DefaultRateLimitConfig()))
	assert.Equal(t, http.StatusOK, get(r, "/items/a").Code)
	counter.AssertExpectations(t)
}

func TestMemoryWindowCounter_CountsWithinWindow(t *testing.T) {
	c := NewMemoryWindowCounter()
	ctx := context.Background()

	n, ttl, err := c.Hit(ctx, "k", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.LessOrEqual(t, ttl, time.Minute)

	n, _, _ = c.Hit(ctx, "k", time.Minute)
	assert.Equal(t, int64(2), n)

	n, _, _ = c.Hit(ctx, "other", time.Minute)
	assert.Equal(t, int64(1), n)
}
