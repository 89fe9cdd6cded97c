package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	learningrepo "github.com/coursepilot/backend/internal/data/repos/learning"
	"github.com/coursepilot/backend/internal/data/repos/testutil"
	"github.com/coursepilot/backend/internal/requestdata"
	"github.com/coursepilot/backend/internal/services"
	"github.com/coursepilot/backend/internal/sse"
)

func TestSSEStreamCourseChannelVisibility(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	courseRepo := learningrepo.NewCourseRepo(db, log)
	chapterRepo := learningrepo.NewChapterRepo(db, log)
	courseService := services.NewCourseService(db, log, courseRepo, chapterRepo)
	hub := sse.NewHub(log)
	h := NewRealtimeHandler(log, hub, courseService)

	ctx := context.Background()
	owner := testutil.SeedUser(t, ctx, db, "sseowner@example.com")
	snoop := testutil.SeedUser(t, ctx, db, "snoop@example.com")
	course := testutil.SeedCourse(t, ctx, db, owner.ID, 2)

	// An accepted stream blocks on the event loop until the request context
	// ends, so each call carries a context that cancels shortly after the
	// visibility check has run.
	stream := func(userID uuid.UUID, courseID string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		req := httptest.NewRequest(http.MethodGet, "/api/sse/stream?course_id="+courseID, nil)
		reqCtx, cancel := context.WithCancel(requestdata.WithRequestData(req.Context(), &requestdata.RequestData{UserID: userID}))
		timer := time.AfterFunc(100*time.Millisecond, cancel)
		defer timer.Stop()
		defer cancel()
		c.Request = req.WithContext(reqCtx)
		h.SSEStream(c)
		return w
	}

	if w := stream(snoop.ID, course.ID.String()); w.Code != http.StatusNotFound {
		t.Fatalf("foreign unpublished course: want %d got %d body=%s", http.StatusNotFound, w.Code, w.Body.String())
	}
	if w := stream(owner.ID, "not-a-uuid"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad course id: want %d got %d", http.StatusBadRequest, w.Code)
	}
	if w := stream(owner.ID, course.ID.String()); w.Code != http.StatusOK {
		t.Fatalf("owner stream: want %d got %d", http.StatusOK, w.Code)
	}

	if err := courseRepo.UpdateFields(ctx, nil, course.ID, map[string]interface{}{"published": true}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if w := stream(snoop.ID, course.ID.String()); w.Code != http.StatusOK {
		t.Fatalf("published course stream: want %d got %d", http.StatusOK, w.Code)
	}
}
