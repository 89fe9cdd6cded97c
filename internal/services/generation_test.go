package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursepilot/backend/internal/config"
	jobsrepo "github.com/coursepilot/backend/internal/data/repos/jobs"
	learningrepo "github.com/coursepilot/backend/internal/data/repos/learning"
	"github.com/coursepilot/backend/internal/data/repos/testutil"
	types "github.com/coursepilot/backend/internal/domain"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/sse"
)

type generationFixture struct {
	db          *gorm.DB
	svc         GenerationService
	courseRepo  learningrepo.CourseRepo
	chapterRepo learningrepo.ChapterRepo
	runRepo     jobsrepo.GenerationRunRepo
	content     *fakeContentService
	video       *fakeVideoService
}

func newGenerationFixture(t *testing.T) *generationFixture {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)

	courseRepo := learningrepo.NewCourseRepo(db, log)
	chapterRepo := learningrepo.NewChapterRepo(db, log)
	runRepo := jobsrepo.NewGenerationRunRepo(db, log)

	content := &fakeContentService{failAt: -1}
	video := &fakeVideoService{ids: []string{"vid-1", "vid-2"}}

	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	svc := NewGenerationService(
		db, log, cfg,
		sse.NewHub(log), nil,
		courseRepo, chapterRepo, runRepo,
		content, video, nil,
	)
	return &generationFixture{
		db:          db,
		svc:         svc,
		courseRepo:  courseRepo,
		chapterRepo: chapterRepo,
		runRepo:     runRepo,
		content:     content,
		video:       video,
	}
}

func TestGenerationEnqueue(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "enqueue@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 3)

	run, err := f.svc.Enqueue(ctx, u.ID, c.ID)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if run.Status != types.RunStatusQueued || run.Stage != types.RunStageCleanup {
		t.Fatalf("run: want queued/cleanup got %s/%s", run.Status, run.Stage)
	}

	// One live run per course.
	if _, err := f.svc.Enqueue(ctx, u.ID, c.ID); apierr.CodeOf(err) != apierr.CodeValidation {
		t.Fatalf("second enqueue: want %s got %v", apierr.CodeValidation, err)
	}

	// Ownership reads as not found.
	stranger := testutil.SeedUser(t, ctx, f.db, "stranger@example.com")
	if _, err := f.svc.Enqueue(ctx, stranger.ID, c.ID); apierr.CodeOf(err) != apierr.CodeNotFound {
		t.Fatalf("stranger enqueue: want %s got %v", apierr.CodeNotFound, err)
	}

	// Published courses are done; no regeneration.
	published := testutil.SeedCourse(t, ctx, f.db, u.ID, 2)
	if err := f.courseRepo.UpdateFields(ctx, nil, published.ID, map[string]interface{}{"published": true}); err != nil {
		t.Fatalf("publish course: %v", err)
	}
	if _, err := f.svc.Enqueue(ctx, u.ID, published.ID); apierr.CodeOf(err) != apierr.CodeValidation {
		t.Fatalf("published enqueue: want %s got %v", apierr.CodeValidation, err)
	}
}

func TestGenerationProcessRunSuccess(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "success@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 3)
	run := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusRunning)

	f.svc.ProcessRun(ctx, run)

	chapters, err := f.chapterRepo.ListByCourseID(ctx, nil, c.ID)
	if err != nil || len(chapters) != 3 {
		t.Fatalf("chapters: err=%v len=%d", err, len(chapters))
	}
	for i, ch := range chapters {
		if ch.ChapterIndex != i {
			t.Fatalf("chapter order: pos=%d index=%d", i, ch.ChapterIndex)
		}
		var videoIDs []string
		if err := json.Unmarshal(ch.VideoIDs, &videoIDs); err != nil || len(videoIDs) != 2 {
			t.Fatalf("chapter %d videos: err=%v got=%v", i, err, videoIDs)
		}
	}
	if f.video.calls != 3 {
		t.Fatalf("video lookups: want 3 got %d", f.video.calls)
	}

	course, _ := f.courseRepo.GetByID(ctx, nil, c.ID)
	if !course.Published {
		t.Fatalf("course must be published after a successful run")
	}

	after, _ := f.runRepo.GetByID(ctx, nil, run.ID)
	if after.Status != types.RunStatusSucceeded || after.Stage != types.RunStageDone || after.Progress != 100 {
		t.Fatalf("run: want succeeded/done/100 got %s/%s/%d", after.Status, after.Stage, after.Progress)
	}
}

func TestGenerationProcessRunFailureKeepsPrefix(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "prefix@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 4)
	run := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusRunning)

	f.content.failAt = 2
	f.content.failErr = apierr.Generation(errors.New("model unavailable"))

	f.svc.ProcessRun(ctx, run)

	// Chapters 0 and 1 persisted, nothing past the failure point.
	chapters, err := f.chapterRepo.ListByCourseID(ctx, nil, c.ID)
	if err != nil || len(chapters) != 2 {
		t.Fatalf("chapters after failure: err=%v len=%d", err, len(chapters))
	}
	for i, ch := range chapters {
		if ch.ChapterIndex != i {
			t.Fatalf("prefix broken: pos=%d index=%d", i, ch.ChapterIndex)
		}
	}

	course, _ := f.courseRepo.GetByID(ctx, nil, c.ID)
	if course.Published {
		t.Fatalf("failed run must not publish the course")
	}

	after, _ := f.runRepo.GetByID(ctx, nil, run.ID)
	if after.Status != types.RunStatusFailed || after.Stage != types.RunStageChapters {
		t.Fatalf("run: want failed/chapters got %s/%s", after.Status, after.Stage)
	}
	if after.Error == "" || after.LastErrorAt == nil {
		t.Fatalf("failed run must record error and last_error_at, got %+v", after)
	}
}

func TestGenerationRerunCleansUpAndPublishes(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "rerun@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 3)

	first := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusRunning)
	f.content.failAt = 1
	f.content.failErr = apierr.Generation(errors.New("transient"))
	f.svc.ProcessRun(ctx, first)

	if n, _ := f.chapterRepo.CountByCourseID(ctx, nil, c.ID); n != 1 {
		t.Fatalf("after failed run: want 1 chapter got %d", n)
	}

	// Retry processes the whole course again from a clean slate.
	f.content.failAt = -1
	f.content.calls = 0
	second := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusRunning)
	f.svc.ProcessRun(ctx, second)

	if n, _ := f.chapterRepo.CountByCourseID(ctx, nil, c.ID); n != 3 {
		t.Fatalf("after rerun: want 3 chapters got %d", n)
	}
	if f.content.calls != 3 {
		t.Fatalf("rerun must regenerate every chapter, got %d calls", f.content.calls)
	}
	course, _ := f.courseRepo.GetByID(ctx, nil, c.ID)
	if !course.Published {
		t.Fatalf("rerun must publish the course")
	}
}

func TestGenerationEnqueueSupersedesFailedRun(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "supersede@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 3)

	failed := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusFailed)

	run, err := f.svc.Enqueue(ctx, u.ID, c.ID)
	if err != nil {
		t.Fatalf("Enqueue after failed run: %v", err)
	}
	if run.Status != types.RunStatusQueued {
		t.Fatalf("new run: want queued got %s", run.Status)
	}

	// The failed run is retired; only the new run is claimable.
	old, _ := f.runRepo.GetByID(ctx, nil, failed.ID)
	if old.Status != types.RunStatusSuperseded {
		t.Fatalf("prior run: want %s got %s", types.RunStatusSuperseded, old.Status)
	}
}

func TestGenerationStaleRetryCannotBreakPublishedCourse(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "stale-retry@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 3)

	// First run fails mid-course.
	first := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusRunning)
	f.content.failAt = 1
	f.content.failErr = apierr.Generation(errors.New("transient"))
	f.svc.ProcessRun(ctx, first)

	// Second run is enqueued and publishes the full chapter set.
	f.content.failAt = -1
	second, err := f.svc.Enqueue(ctx, u.ID, c.ID)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	f.svc.ProcessRun(ctx, second)

	course, _ := f.courseRepo.GetByID(ctx, nil, c.ID)
	if !course.Published {
		t.Fatalf("second run must publish the course")
	}

	// Replaying the first run, as a worker would after a crash takeover,
	// must leave the published course intact.
	f.content.failAt = 1
	f.svc.ProcessRun(ctx, first)

	if n, _ := f.chapterRepo.CountByCourseID(ctx, nil, c.ID); n != 3 {
		t.Fatalf("published course chapters: want 3 got %d", n)
	}
	course, _ = f.courseRepo.GetByID(ctx, nil, c.ID)
	if !course.Published {
		t.Fatalf("replayed run must not unpublish the course")
	}
	old, _ := f.runRepo.GetByID(ctx, nil, first.ID)
	if old.Status != types.RunStatusSuperseded {
		t.Fatalf("replayed run: want %s got %s", types.RunStatusSuperseded, old.Status)
	}
}

func TestGenerationSkipsVideosWhenDisabled(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "novideo@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 2)
	if err := f.courseRepo.UpdateFields(ctx, nil, c.ID, map[string]interface{}{"include_video": types.IncludeVideoNo}); err != nil {
		t.Fatalf("disable videos: %v", err)
	}
	run := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusRunning)

	f.svc.ProcessRun(ctx, run)

	if f.video.calls != 0 {
		t.Fatalf("video lookups with include_video=No: want 0 got %d", f.video.calls)
	}
	chapters, _ := f.chapterRepo.ListByCourseID(ctx, nil, c.ID)
	for _, ch := range chapters {
		var videoIDs []string
		if err := json.Unmarshal(ch.VideoIDs, &videoIDs); err != nil || len(videoIDs) != 0 {
			t.Fatalf("chapter %d: want empty videos got %v err=%v", ch.ChapterIndex, videoIDs, err)
		}
	}
}

func TestGenerationMalformedFailureStoresRawOutput(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "malformed@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 2)
	run := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusRunning)

	f.content.failAt = 0
	f.content.failErr = apierr.Malformed("not json at all", errors.New("decode chapter content"))

	f.svc.ProcessRun(ctx, run)

	after, _ := f.runRepo.GetByID(ctx, nil, run.ID)
	if after.Status != types.RunStatusFailed {
		t.Fatalf("run status: want failed got %s", after.Status)
	}
	var meta map[string]any
	if err := json.Unmarshal(after.Metadata, &meta); err != nil {
		t.Fatalf("decode run metadata: %v", err)
	}
	if meta["raw_output"] != "not json at all" {
		t.Fatalf("raw_output: want preserved model text got %v", meta["raw_output"])
	}
}

func TestGenerationGetLatestRun(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, f.db, "latest@example.com")
	c := testutil.SeedCourse(t, ctx, f.db, u.ID, 2)

	if _, err := f.svc.GetLatestRun(ctx, u.ID, c.ID); apierr.CodeOf(err) != apierr.CodeNotFound {
		t.Fatalf("no runs yet: want %s got %v", apierr.CodeNotFound, err)
	}

	run := testutil.SeedRun(t, ctx, f.db, c.ID, u.ID, types.RunStatusQueued)
	got, err := f.svc.GetLatestRun(ctx, u.ID, c.ID)
	if err != nil || got.ID != run.ID {
		t.Fatalf("GetLatestRun: err=%v got=%v", err, got)
	}

	if _, err := f.svc.GetLatestRun(ctx, uuid.New(), c.ID); apierr.CodeOf(err) != apierr.CodeNotFound {
		t.Fatalf("stranger: want %s got %v", apierr.CodeNotFound, err)
	}
}
