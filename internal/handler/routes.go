package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/cat-engine/internal/middleware"
)

// RegisterRoutes mounts the CAT API on the given group (normally /api/cat)
func (h *CATHandler) RegisterRoutes(api *gin.RouterGroup) {
	sessionID := middleware.ExtractUUIDParam("id", SessionIDKey)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.StartSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", sessionID, h.GetSession)
		sessions.POST("/:id/next", sessionID, h.NextItem)
		sessions.POST("/:id/responses", sessionID, h.SubmitResponse)
		sessions.POST("/:id/terminate", sessionID, h.TerminateSession)
		sessions.GET("/:id/export", sessionID, h.ExportSession)
	}

	items := api.Group("/items/:itemId", middleware.ExtractStringParam("itemId", ItemIDKey, 128))
	{
		items.GET("/parameters", h.GetItemParameters)
		items.PUT("/parameters", h.UpdateItemParameters)
	}

	exposure := api.Group("/exposure")
	{
		exposure.GET("", h.GetExposure)
		exposure.DELETE("", h.ResetExposure)
		exposure.GET("/export", h.ExportExposure)
	}

	api.GET("/results/:id", sessionID, h.GetResult)
	api.GET("/assessments/:assessmentId/results",
		middleware.ExtractStringParam("assessmentId", AssessmentIDKey, 128), h.ListAssessmentResults)
}
