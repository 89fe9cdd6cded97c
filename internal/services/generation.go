package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coursepilot/backend/internal/clients/redis"
	"github.com/coursepilot/backend/internal/config"
	jobsrepo "github.com/coursepilot/backend/internal/data/repos/jobs"
	learningrepo "github.com/coursepilot/backend/internal/data/repos/learning"
	types "github.com/coursepilot/backend/internal/domain"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/platform/logger"
	"github.com/coursepilot/backend/internal/sse"
)

type GenerationService interface {
	// Enqueue creates a queued run for the course. A course can hold at most
	// one live (queued or freshly running) run at a time.
	Enqueue(ctx context.Context, userID, courseID uuid.UUID) (*types.GenerationRun, error)

	// GetLatestRun returns the newest run for the course, owner only.
	GetLatestRun(ctx context.Context, userID, courseID uuid.UUID) (*types.GenerationRun, error)

	// StartWorker begins polling for runnable runs until ctx is cancelled.
	StartWorker(ctx context.Context)

	// ProcessRun executes one claimed run to completion or failure.
	ProcessRun(ctx context.Context, run *types.GenerationRun)
}

type generationService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg config.Config

	sseHub   *sse.Hub
	eventBus redis.EventBus

	courseRepo  learningrepo.CourseRepo
	chapterRepo learningrepo.ChapterRepo
	runRepo     jobsrepo.GenerationRunRepo

	contentSvc ChapterContentService
	videoSvc   VideoService
	bannerSvc  BannerService

	// One run generates at a time per process; model calls are the
	// bottleneck and interleaving runs only splits the same throughput.
	sem *semaphore.Weighted
}

func NewGenerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg config.Config,
	sseHub *sse.Hub,
	eventBus redis.EventBus,
	courseRepo learningrepo.CourseRepo,
	chapterRepo learningrepo.ChapterRepo,
	runRepo jobsrepo.GenerationRunRepo,
	contentSvc ChapterContentService,
	videoSvc VideoService,
	bannerSvc BannerService,
) GenerationService {
	return &generationService{
		db:          db,
		log:         baseLog.With("service", "GenerationService"),
		cfg:         cfg,
		sseHub:      sseHub,
		eventBus:    eventBus,
		courseRepo:  courseRepo,
		chapterRepo: chapterRepo,
		runRepo:     runRepo,
		contentSvc:  contentSvc,
		videoSvc:    videoSvc,
		bannerSvc:   bannerSvc,
		sem:         semaphore.NewWeighted(1),
	}
}

func (gs *generationService) Enqueue(ctx context.Context, userID, courseID uuid.UUID) (*types.GenerationRun, error) {
	var run *types.GenerationRun

	err := gs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, err := gs.courseRepo.GetByID(ctx, tx, courseID)
		if err != nil {
			return apierr.Persistence(fmt.Errorf("lookup course: %w", err))
		}
		if course == nil || course.UserID != userID {
			return apierr.NotFound(fmt.Errorf("course %s not found", courseID))
		}
		if course.Published {
			return apierr.Validation(fmt.Errorf("course is already published"))
		}
		if _, err := decodeLayout(course); err != nil {
			return err
		}

		live, err := gs.runRepo.GetLiveByCourseID(ctx, tx, courseID, gs.cfg.WorkerStaleRunning)
		if err != nil {
			return apierr.Persistence(fmt.Errorf("lookup live run: %w", err))
		}
		if live != nil {
			return apierr.Validation(fmt.Errorf("generation already in progress for course %s", courseID))
		}

		// Older failed or stale-running rows must never be claimed again once
		// the new run exists; the newest run is the only writer for a course.
		if _, err := gs.runRepo.SupersedeByCourseID(ctx, tx, courseID); err != nil {
			return apierr.Persistence(fmt.Errorf("supersede prior runs: %w", err))
		}

		now := time.Now()
		run = &types.GenerationRun{
			ID:        uuid.New(),
			CourseID:  courseID,
			UserID:    userID,
			Status:    types.RunStatusQueued,
			Stage:     types.RunStageCleanup,
			Metadata:  datatypes.JSON([]byte(`{}`)),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := gs.runRepo.Create(ctx, tx, []*types.GenerationRun{run}); err != nil {
			return apierr.Persistence(fmt.Errorf("create generation run: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	gs.publish(sse.Message{
		Channel: sse.CourseChannel(courseID),
		Event:   sse.EventCourseGenerationProgress,
		Data: map[string]any{
			"run_id":   run.ID,
			"stage":    run.Stage,
			"status":   run.Status,
			"progress": 0,
		},
	})
	return run, nil
}

func (gs *generationService) GetLatestRun(ctx context.Context, userID, courseID uuid.UUID) (*types.GenerationRun, error) {
	course, err := gs.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("lookup course: %w", err))
	}
	if course == nil || course.UserID != userID {
		return nil, apierr.NotFound(fmt.Errorf("course %s not found", courseID))
	}
	run, err := gs.runRepo.GetLatestByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("lookup run: %w", err))
	}
	if run == nil {
		return nil, apierr.NotFound(fmt.Errorf("no generation run for course %s", courseID))
	}
	return run, nil
}

func (gs *generationService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run, err := gs.runRepo.ClaimNextRunnable(ctx, gs.db, gs.cfg.WorkerMaxAttempts, gs.cfg.WorkerRetryDelay, gs.cfg.WorkerStaleRunning)
				if err != nil {
					gs.log.Warn("ClaimNextRunnable failed", "error", err)
					continue
				}
				if run == nil {
					continue
				}
				gs.ProcessRun(ctx, run)
			}
		}
	}()
}

func (gs *generationService) ProcessRun(ctx context.Context, run *types.GenerationRun) {
	if err := gs.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer gs.sem.Release(1)

	runID := run.ID
	courseID := run.CourseID

	stopHeartbeat := gs.startHeartbeat(ctx, runID)
	defer stopHeartbeat()

	fail := func(stage string, err error) {
		now := time.Now()
		updates := map[string]interface{}{
			"status":        types.RunStatusFailed,
			"stage":         stage,
			"error":         err.Error(),
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		}
		if raw, ok := apierr.RawOutput(err); ok {
			if meta, mErr := json.Marshal(map[string]any{"raw_output": raw}); mErr == nil {
				updates["metadata"] = meta
			}
		}
		_ = gs.runRepo.UpdateFields(ctx, nil, runID, updates)

		gs.log.Warn("Generation run failed",
			"run_id", runID,
			"course_id", courseID,
			"stage", stage,
			"attempts", run.Attempts,
			"error", err,
		)
		gs.publish(sse.Message{
			Channel: sse.CourseChannel(courseID),
			Event:   sse.EventCourseGenerationFailed,
			Data: map[string]any{
				"run_id": runID,
				"stage":  stage,
				"code":   apierr.CodeOf(err),
				"error":  err.Error(),
			},
		})
	}

	progress := func(stage string, pct int, chapterIndex int) {
		now := time.Now()
		_ = gs.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
			"stage":         stage,
			"progress":      pct,
			"chapter_index": chapterIndex,
			"heartbeat_at":  now,
			"updated_at":    now,
		})
		gs.publish(sse.Message{
			Channel: sse.CourseChannel(courseID),
			Event:   sse.EventCourseGenerationProgress,
			Data: map[string]any{
				"run_id":        runID,
				"stage":         stage,
				"progress":      pct,
				"chapter_index": chapterIndex,
			},
		})
	}

	course, err := gs.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		fail(types.RunStageCleanup, apierr.Persistence(fmt.Errorf("load course: %w", err)))
		return
	}
	if course == nil {
		fail(types.RunStageCleanup, apierr.NotFound(fmt.Errorf("course %s is gone", courseID)))
		return
	}

	// A published course already has its full chapter set; a stale retryable
	// run must not wipe it.
	if course.Published {
		_ = gs.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
			"status":     types.RunStatusSuperseded,
			"locked_at":  nil,
			"updated_at": time.Now(),
		})
		gs.log.Info("Run retired; course already published", "run_id", runID, "course_id", courseID)
		return
	}

	layout, err := decodeLayout(course)
	if err != nil {
		fail(types.RunStageCleanup, err)
		return
	}
	total := len(layout.Chapters)

	// CLEANUP: a rerun starts from a clean slate so partial chapters from a
	// failed attempt never survive into the new one.
	progress(types.RunStageCleanup, 2, 0)
	if _, err := gs.chapterRepo.DeleteByCourseID(ctx, nil, courseID); err != nil {
		fail(types.RunStageCleanup, apierr.Persistence(fmt.Errorf("delete chapters: %w", err)))
		return
	}

	// CHAPTERS: strictly in order, so a failure at chapter k leaves exactly
	// chapters 0..k-1 persisted.
	for i, layoutChapter := range layout.Chapters {
		progress(types.RunStageChapters, 5+int(float64(i)/float64(total)*85.0), i)

		content, err := gs.contentSvc.GenerateChapter(ctx, course.Name, layoutChapter)
		if err != nil {
			fail(types.RunStageChapters, err)
			return
		}

		videoIDs := []string{}
		if course.IncludeVideo == types.IncludeVideoYes {
			videoIDs = gs.videoSvc.ResolveChapterVideos(ctx, course.Name, layoutChapter.ChapterName)
		}

		contentJSON, err := json.Marshal(content)
		if err != nil {
			fail(types.RunStageChapters, apierr.Persistence(fmt.Errorf("encode chapter %d: %w", i, err)))
			return
		}
		videosJSON, err := json.Marshal(videoIDs)
		if err != nil {
			fail(types.RunStageChapters, apierr.Persistence(fmt.Errorf("encode chapter %d videos: %w", i, err)))
			return
		}

		chapter := &types.Chapter{
			CourseID:     courseID,
			ChapterIndex: i,
			Content:      datatypes.JSON(contentJSON),
			VideoIDs:     datatypes.JSON(videosJSON),
		}
		if err := gs.chapterRepo.Upsert(ctx, nil, chapter); err != nil {
			fail(types.RunStageChapters, apierr.Persistence(fmt.Errorf("persist chapter %d: %w", i, err)))
			return
		}
	}

	// PUBLISH: only after every chapter row exists.
	progress(types.RunStagePublish, 92, total)

	count, err := gs.chapterRepo.CountByCourseID(ctx, nil, courseID)
	if err != nil {
		fail(types.RunStagePublish, apierr.Persistence(fmt.Errorf("count chapters: %w", err)))
		return
	}
	if count != int64(total) {
		fail(types.RunStagePublish, apierr.Persistence(fmt.Errorf("expected %d chapters, found %d", total, count)))
		return
	}

	courseUpdates := map[string]interface{}{"published": true}
	if gs.bannerSvc != nil && course.Banner == types.DefaultBanner {
		if banner, bErr := gs.bannerSvc.CreateCourseBanner(ctx, course); bErr != nil {
			gs.log.Warn("Banner generation failed; keeping placeholder", "course_id", courseID, "error", bErr)
		} else if banner != types.DefaultBanner {
			courseUpdates["banner"] = banner
		}
	}
	if err := gs.courseRepo.UpdateFields(ctx, nil, courseID, courseUpdates); err != nil {
		fail(types.RunStagePublish, apierr.Persistence(fmt.Errorf("publish course: %w", err)))
		return
	}

	now := time.Now()
	_ = gs.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
		"status":        types.RunStatusSucceeded,
		"stage":         types.RunStageDone,
		"progress":      100,
		"chapter_index": total,
		"locked_at":     nil,
		"error":         "",
		"updated_at":    now,
	})

	gs.log.Info("Generation run finished",
		"run_id", runID,
		"course_id", courseID,
		"chapters", total,
	)
	gs.publish(sse.Message{
		Channel: sse.CourseChannel(courseID),
		Event:   sse.EventCourseGenerationDone,
		Data: map[string]any{
			"run_id":    runID,
			"course_id": courseID,
			"chapters":  total,
		},
	})
}

// startHeartbeat keeps the lease fresh while a run is processing. The
// returned stop function is safe to call once.
func (gs *generationService) startHeartbeat(ctx context.Context, runID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := gs.runRepo.Heartbeat(ctx, nil, runID); err != nil {
					gs.log.Warn("Heartbeat failed", "run_id", runID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

// publish routes through the redis bus when one is configured; the bus
// forwarder feeds every replica's hub, ours included. Without a bus the local
// hub is the only audience.
func (gs *generationService) publish(msg sse.Message) {
	if gs.eventBus != nil {
		if err := gs.eventBus.Publish(context.Background(), msg); err != nil {
			gs.log.Warn("Event bus publish failed; falling back to local hub", "error", err)
			gs.sseHub.Broadcast(msg)
		}
		return
	}
	gs.sseHub.Broadcast(msg)
}

func decodeLayout(course *types.Course) (*types.CourseLayout, error) {
	var layout types.CourseLayout
	if err := json.Unmarshal(course.Layout, &layout); err != nil {
		return nil, apierr.Malformed(string(course.Layout), fmt.Errorf("decode stored layout: %w", err))
	}
	if len(layout.Chapters) < MinChapters || len(layout.Chapters) > MaxChapters {
		return nil, apierr.Validation(fmt.Errorf("course layout must have between %d and %d chapters, got %d", MinChapters, MaxChapters, len(layout.Chapters)))
	}
	return &layout, nil
}
