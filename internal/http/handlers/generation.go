package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursepilot/backend/internal/http/response"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/platform/logger"
	"github.com/coursepilot/backend/internal/requestdata"
	"github.com/coursepilot/backend/internal/services"
)

type GenerationHandler struct {
	log               *logger.Logger
	generationService services.GenerationService
}

func NewGenerationHandler(log *logger.Logger, generationService services.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		log:               log.With("handler", "GenerationHandler"),
		generationService: generationService,
	}
}

// Generate enqueues a content generation run for the course. The worker picks
// it up; progress streams over SSE and is polled via GetStatus.
func (h *GenerationHandler) Generate(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}
	courseID, ok := parseIDParam(c)
	if !ok {
		return
	}

	run, err := h.generationService.Enqueue(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		h.log.Warn("Enqueue failed", "course_id", courseID, "user_id", rd.UserID, "error", err)
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (h *GenerationHandler) GetStatus(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}
	courseID, ok := parseIDParam(c)
	if !ok {
		return
	}

	run, err := h.generationService.GetLatestRun(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}
