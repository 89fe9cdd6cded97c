package learning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	types "github.com/coursepilot/backend/internal/domain"
	"github.com/coursepilot/backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChapterRepo interface {
	// Upsert writes the row for (course_id, chapter_index) whole, replacing
	// content and videos if the row already exists.
	Upsert(ctx context.Context, tx *gorm.DB, chapter *types.Chapter) error
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Chapter, error)
	GetByCourseAndIndex(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, index int) (*types.Chapter, error)
	CountByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int64, error)
	DeleteByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int64, error)
}

type chapterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChapterRepo(db *gorm.DB, baseLog *logger.Logger) ChapterRepo {
	return &chapterRepo{db: db, log: baseLog.With("repo", "ChapterRepo")}
}

func (r *chapterRepo) Upsert(ctx context.Context, tx *gorm.DB, chapter *types.Chapter) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if chapter == nil {
		return nil
	}
	if chapter.ID == uuid.Nil {
		chapter.ID = uuid.New()
	}
	now := time.Now()
	if chapter.CreatedAt.IsZero() {
		chapter.CreatedAt = now
	}
	chapter.UpdatedAt = now

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "course_id"}, {Name: "chapter_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "video_ids", "updated_at"}),
		}).
		Create(chapter).Error
}

func (r *chapterRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Chapter, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Chapter
	if courseID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("chapter_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chapterRepo) GetByCourseAndIndex(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, index int) (*types.Chapter, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if courseID == uuid.Nil || index < 0 {
		return nil, nil
	}
	var chapter types.Chapter
	err := transaction.WithContext(ctx).
		Where("course_id = ? AND chapter_index = ?", courseID, index).
		First(&chapter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (r *chapterRepo) CountByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if courseID == uuid.Nil {
		return 0, nil
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.Chapter{}).
		Where("course_id = ?", courseID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *chapterRepo) DeleteByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if courseID == uuid.Nil {
		return 0, nil
	}
	res := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Delete(&types.Chapter{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
