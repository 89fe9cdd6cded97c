package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/coursepilot/backend/internal/data/repos/testutil"
	types "github.com/coursepilot/backend/internal/domain"
)

func TestGenerationRunRepoLatestAndLive(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, db, "runrepo@example.com")
	c := testutil.SeedCourse(t, ctx, db, u.ID, 2)

	if live, err := repo.GetLiveByCourseID(ctx, nil, c.ID, 2*time.Minute); err != nil || live != nil {
		t.Fatalf("GetLiveByCourseID empty: err=%v live=%v", err, live)
	}

	first := testutil.SeedRun(t, ctx, db, c.ID, u.ID, types.RunStatusFailed)
	time.Sleep(5 * time.Millisecond)
	second := testutil.SeedRun(t, ctx, db, c.ID, u.ID, types.RunStatusQueued)

	latest, err := repo.GetLatestByCourseID(ctx, nil, c.ID)
	if err != nil || latest == nil {
		t.Fatalf("GetLatestByCourseID: err=%v latest=%v", err, latest)
	}
	if latest.ID != second.ID {
		t.Fatalf("GetLatestByCourseID: want=%s got=%s", second.ID, latest.ID)
	}

	live, err := repo.GetLiveByCourseID(ctx, nil, c.ID, 2*time.Minute)
	if err != nil || live == nil {
		t.Fatalf("GetLiveByCourseID: err=%v live=%v", err, live)
	}
	if live.ID != second.ID {
		t.Fatalf("GetLiveByCourseID: want queued run %s got=%s", second.ID, live.ID)
	}

	// A failed run does not hold the lease.
	if err := repo.UpdateFields(ctx, nil, second.ID, map[string]interface{}{"status": types.RunStatusFailed}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if live, err := repo.GetLiveByCourseID(ctx, nil, c.ID, 2*time.Minute); err != nil || live != nil {
		t.Fatalf("GetLiveByCourseID after fail: err=%v live=%v", err, live)
	}
	_ = first
}

func TestGenerationRunRepoStaleRunningIsNotLive(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, db, "stale@example.com")
	c := testutil.SeedCourse(t, ctx, db, u.ID, 2)

	run := testutil.SeedRun(t, ctx, db, c.ID, u.ID, types.RunStatusRunning)
	stale := time.Now().Add(-10 * time.Minute)
	if err := repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{"heartbeat_at": stale}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	live, err := repo.GetLiveByCourseID(ctx, nil, c.ID, 2*time.Minute)
	if err != nil {
		t.Fatalf("GetLiveByCourseID: %v", err)
	}
	if live != nil {
		t.Fatalf("stale running run should not hold the lease, got=%v", live.ID)
	}
}

func TestGenerationRunRepoClaimNextRunnable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "claim@example.com")
	c := testutil.SeedCourse(t, ctx, tx, u.ID, 2)
	run := testutil.SeedRun(t, ctx, tx, c.ID, u.ID, types.RunStatusQueued)

	claimed, err := repo.ClaimNextRunnable(ctx, tx, 5, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil || claimed.ID != run.ID {
		t.Fatalf("ClaimNextRunnable: want=%v got=%v", run.ID, claimed)
	}

	after, err := repo.GetByID(ctx, tx, run.ID)
	if err != nil || after == nil {
		t.Fatalf("GetByID after claim: err=%v", err)
	}
	if after.Status != types.RunStatusRunning || after.Attempts != 1 {
		t.Fatalf("claimed run: want running/attempts=1 got=%s/%d", after.Status, after.Attempts)
	}
	if after.LockedAt == nil || after.HeartbeatAt == nil {
		t.Fatalf("claimed run: lease columns not set")
	}

	// Nothing else is runnable while the claim is fresh.
	again, err := repo.ClaimNextRunnable(ctx, tx, 5, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("second ClaimNextRunnable: %v", err)
	}
	if again != nil {
		t.Fatalf("second claim: want nil got=%v", again.ID)
	}
}

func TestGenerationRunRepoClaimSkipsRunsWithNewerSibling(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "sibling@example.com")
	c := testutil.SeedCourse(t, ctx, tx, u.ID, 2)

	failed := testutil.SeedRun(t, ctx, tx, c.ID, u.ID, types.RunStatusFailed)
	old := time.Now().Add(-time.Hour)
	if err := repo.UpdateFields(ctx, tx, failed.ID, map[string]interface{}{
		"created_at":    old,
		"last_error_at": old,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	queued := testutil.SeedRun(t, ctx, tx, c.ID, u.ID, types.RunStatusQueued)

	// The retryable failed run is older, but only the newest run per course
	// is claimable.
	claimed, err := repo.ClaimNextRunnable(ctx, tx, 5, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil || claimed.ID != queued.ID {
		t.Fatalf("claim: want newest run %v got %v", queued.ID, claimed)
	}

	again, err := repo.ClaimNextRunnable(ctx, tx, 5, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("second ClaimNextRunnable: %v", err)
	}
	if again != nil {
		t.Fatalf("second claim: want nil got %v", again.ID)
	}
}

func TestGenerationRunRepoSupersedeByCourseID(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, db, "retire@example.com")
	c := testutil.SeedCourse(t, ctx, db, u.ID, 2)

	failed := testutil.SeedRun(t, ctx, db, c.ID, u.ID, types.RunStatusFailed)
	done := testutil.SeedRun(t, ctx, db, c.ID, u.ID, types.RunStatusSucceeded)

	n, err := repo.SupersedeByCourseID(ctx, nil, c.ID)
	if err != nil {
		t.Fatalf("SupersedeByCourseID: %v", err)
	}
	if n != 1 {
		t.Fatalf("superseded rows: want 1 got %d", n)
	}

	after, _ := repo.GetByID(ctx, nil, failed.ID)
	if after.Status != types.RunStatusSuperseded {
		t.Fatalf("failed run: want %s got %s", types.RunStatusSuperseded, after.Status)
	}
	kept, _ := repo.GetByID(ctx, nil, done.ID)
	if kept.Status != types.RunStatusSucceeded {
		t.Fatalf("succeeded run must keep its status, got %s", kept.Status)
	}
}

func TestGenerationRunRepoClaimSkipsExhaustedFailures(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewGenerationRunRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "exhausted@example.com")
	c := testutil.SeedCourse(t, ctx, tx, u.ID, 2)
	run := testutil.SeedRun(t, ctx, tx, c.ID, u.ID, types.RunStatusFailed)

	old := time.Now().Add(-time.Hour)
	if err := repo.UpdateFields(ctx, tx, run.ID, map[string]interface{}{
		"attempts":      5,
		"last_error_at": old,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, tx, 5, 30*time.Second, 2*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claim: exhausted run should stay failed, got=%v", claimed.ID)
	}
}
