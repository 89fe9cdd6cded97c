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
	"github.com/coursepilot/backend/internal/sse"
)

type RealtimeHandler struct {
	log           *logger.Logger
	hub           *sse.Hub
	courseService services.CourseService
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.Hub, courseService services.CourseService) *RealtimeHandler {
	return &RealtimeHandler{
		log:           log.With("handler", "RealtimeHandler"),
		hub:           hub,
		courseService: courseService,
	}
}

// SSEStream serves the event stream. Every connection follows the user's own
// channel; ?course_id= additionally follows one course's generation events.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}

	var courseChannel string
	if raw := c.Query("course_id"); raw != "" {
		courseID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
			return
		}
		// Course events are visible to the owner, or to anyone once the
		// course is published.
		if _, err := h.courseService.GetCourse(c.Request.Context(), rd.UserID, courseID); err != nil {
			response.RespondAPIError(c, err)
			return
		}
		courseChannel = sse.CourseChannel(courseID)
	}

	client := h.hub.NewClient(rd.UserID)
	h.hub.AddChannel(client, sse.UserChannel(rd.UserID))
	if courseChannel != "" {
		h.hub.AddChannel(client, courseChannel)
	}

	h.log.Debug("SSE stream open", "user_id", rd.UserID, "client_id", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}
