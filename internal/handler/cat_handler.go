package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/cat-engine/internal/domain/repository"
	"github.com/yourusername/cat-engine/internal/handler/dto"
	apperrors "github.com/yourusername/cat-engine/internal/pkg/errors"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
	"github.com/yourusername/cat-engine/internal/service"
)

// Context keys set by the param middleware
const (
	SessionIDKey    = "sessionID"
	ItemIDKey       = "itemID"
	AssessmentIDKey = "assessmentID"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CATHandler exposes the engine over HTTP
type CATHandler struct {
	engine     *service.CATEngine
	resultRepo repository.SessionResultRepository
	logger     *logger.Logger
}

// NewCATHandler creates the handler. resultRepo may be nil when the archive
// is disabled.
func NewCATHandler(engine *service.CATEngine, resultRepo repository.SessionResultRepository, log *logger.Logger) *CATHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CATHandler{engine: engine, resultRepo: resultRepo, logger: log.Component("CATHandler")}
}

// StartSession creates a session
// POST /api/cat/sessions
func (h *CATHandler) StartSession(c *gin.Context) {
	var req service.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.engine.StartSession(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ListSessions returns summaries of the sessions held in memory
// GET /api/cat/sessions
func (h *CATHandler) ListSessions(c *gin.Context) {
	sessions := h.engine.ListSessions()
	status := c.Query("status")
	out := make([]dto.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		if status != "" && string(s.Status) != status {
			continue
		}
		out = append(out, dto.NewSessionSummary(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "total": len(out)})
}

// GetSession returns the full session snapshot
// GET /api/cat/sessions/:id
func (h *CATHandler) GetSession(c *gin.Context) {
	session, err := h.engine.GetSession(c.GetString(SessionIDKey))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// NextItem selects the next item or reports that the session has ended
// POST /api/cat/sessions/:id/next
func (h *CATHandler) NextItem(c *gin.Context) {
	sessionID := c.GetString(SessionIDKey)
	itemID, ok, err := h.engine.GetNextItem(c.Request.Context(), sessionID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	session, err := h.engine.GetSession(sessionID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NextItemResponse{
		SessionID:      sessionID,
		ItemID:         itemID,
		Done:           !ok,
		Status:         session.Status,
		StopReason:     session.StopReason,
		CurrentAbility: session.CurrentAbility,
		SEM:            session.SEM,
	})
}

// SubmitResponse records an answer
// POST /api/cat/sessions/:id/responses
func (h *CATHandler) SubmitResponse(c *gin.Context) {
	var req dto.SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := h.engine.ProcessResponse(c.Request.Context(), c.GetString(SessionIDKey), req.ItemID, req.ToResponse())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// TerminateSession ends a session early
// POST /api/cat/sessions/:id/terminate
func (h *CATHandler) TerminateSession(c *gin.Context) {
	var req dto.TerminateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	result, err := h.engine.TerminateSession(c.Request.Context(), c.GetString(SessionIDKey), req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetItemParameters returns an item's registered parameters
// GET /api/cat/items/:itemId/parameters
func (h *CATHandler) GetItemParameters(c *gin.Context) {
	params, err := h.engine.GetItemParameters(c.GetString(ItemIDKey))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, params)
}

// UpdateItemParameters replaces an item's calibration
// PUT /api/cat/items/:itemId/parameters
func (h *CATHandler) UpdateItemParameters(c *gin.Context) {
	var req dto.ItemParametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := h.engine.UpdateItemParameters(c.Request.Context(), c.GetString(ItemIDKey), req.ToEntity())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, params)
}

// GetExposure returns exposure counters and rates
// GET /api/cat/exposure
func (h *CATHandler) GetExposure(c *gin.Context) {
	snap, err := h.engine.GetExposureRates(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ResetExposure clears the exposure counters
// DELETE /api/cat/exposure
func (h *CATHandler) ResetExposure(c *gin.Context) {
	if err := h.engine.ResetExposureRates(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Exposure counters reset"})
}

// GetResult returns the archived result of a session
// GET /api/cat/results/:id
func (h *CATHandler) GetResult(c *gin.Context) {
	if h.resultRepo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Result archive is disabled"})
		return
	}
	result, err := h.resultRepo.GetBySessionID(c.Request.Context(), c.GetString(SessionIDKey))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListAssessmentResults pages through the archived results of an assessment
// GET /api/cat/assessments/:assessmentId/results?limit=&offset=
func (h *CATHandler) ListAssessmentResults(c *gin.Context) {
	if h.resultRepo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Result archive is disabled"})
		return
	}
	limit, offset := pagination(c)
	results, err := h.resultRepo.ListByAssessment(c.Request.Context(), c.GetString(AssessmentIDKey), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "limit": limit, "offset": offset})
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// handleError maps engine errors to HTTP responses
func (h *CATHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrInvalidSession):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDuplicateSession), errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrItemNotPending):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Internal server error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
