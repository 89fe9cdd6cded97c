package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursepilot/backend/internal/http/response"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/platform/logger"
	"github.com/coursepilot/backend/internal/requestdata"
	"github.com/coursepilot/backend/internal/services"
)

type CourseHandler struct {
	log           *logger.Logger
	layoutService services.LayoutService
	courseService services.CourseService
}

func NewCourseHandler(
	log *logger.Logger,
	layoutService services.LayoutService,
	courseService services.CourseService,
) *CourseHandler {
	return &CourseHandler{
		log:           log.With("handler", "CourseHandler"),
		layoutService: layoutService,
		courseService: courseService,
	}
}

func (h *CourseHandler) CreateCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}

	var input services.CreateCourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}

	course, err := h.layoutService.CreateCourse(c.Request.Context(), rd.UserID, input)
	if err != nil {
		h.log.Warn("CreateCourse failed", "user_id", rd.UserID, "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"course": course})
}

func (h *CourseHandler) ListUserCourses(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}
	courses, err := h.courseService.ListOwn(c.Request.Context(), rd.UserID)
	if err != nil {
		h.log.Error("ListUserCourses failed", "user_id", rd.UserID, "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": courses})
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	courseID, ok := parseIDParam(c)
	if !ok {
		return
	}
	course, err := h.courseService.GetCourse(c.Request.Context(), requesterID(c), courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

func (h *CourseHandler) ListCourseChapters(c *gin.Context) {
	courseID, ok := parseIDParam(c)
	if !ok {
		return
	}
	chapters, err := h.courseService.ListChapters(c.Request.Context(), requesterID(c), courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"chapters": chapters})
}

func (h *CourseHandler) GetCourseChapter(c *gin.Context) {
	courseID, ok := parseIDParam(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("chapterId"))
	if err != nil || index < 0 {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}
	chapter, err := h.courseService.GetChapter(c.Request.Context(), requesterID(c), courseID, index)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"chapter": chapter})
}

func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}
	courseID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var input services.UpdateCourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return
	}

	course, err := h.courseService.UpdateCourse(c.Request.Context(), rd.UserID, courseID, input)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"course": course})
}

func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}
	courseID, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.courseService.DeleteCourse(c.Request.Context(), rd.UserID, courseID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "deleted"})
}

func (h *CourseHandler) DeleteCourseChapters(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}
	courseID, ok := parseIDParam(c)
	if !ok {
		return
	}
	deleted, err := h.courseService.DeleteAllChapters(c.Request.Context(), rd.UserID, courseID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": deleted})
}

// ListPublishedCourses is the public showcase feed.
func (h *CourseHandler) ListPublishedCourses(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	courses, err := h.courseService.ListPublished(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("ListPublishedCourses failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": courses})
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidation, err)
		return uuid.Nil, false
	}
	return id, true
}

// requesterID is uuid.Nil on public routes; visibility checks then only admit
// published courses.
func requesterID(c *gin.Context) uuid.UUID {
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return uuid.Nil
}
