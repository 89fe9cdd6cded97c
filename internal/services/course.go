package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	learningrepo "github.com/coursepilot/backend/internal/data/repos/learning"
	types "github.com/coursepilot/backend/internal/domain"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/platform/logger"
)

// UpdateCourseInput carries the editable course fields. Nil means leave the
// field alone.
type UpdateCourseInput struct {
	Name     *string `json:"name"`
	Level    *string `json:"level"`
	Category *string `json:"category"`
	Banner   *string `json:"banner"`
}

type CourseService interface {
	// GetCourse returns the course when the requester owns it or it is
	// published. Anything else reads as not found.
	GetCourse(ctx context.Context, requesterID, courseID uuid.UUID) (*types.Course, error)
	ListOwn(ctx context.Context, userID uuid.UUID) ([]*types.Course, error)
	ListPublished(ctx context.Context, limit int) ([]*types.Course, error)
	ListChapters(ctx context.Context, requesterID, courseID uuid.UUID) ([]*types.Chapter, error)
	GetChapter(ctx context.Context, requesterID, courseID uuid.UUID, index int) (*types.Chapter, error)
	UpdateCourse(ctx context.Context, userID, courseID uuid.UUID, input UpdateCourseInput) (*types.Course, error)
	DeleteCourse(ctx context.Context, userID, courseID uuid.UUID) error

	// DeleteAllChapters wipes a course's chapters and unpublishes it, returning
	// the number of rows removed. A published course never has a chapter gap.
	DeleteAllChapters(ctx context.Context, userID, courseID uuid.UUID) (int64, error)
}

type courseService struct {
	db          *gorm.DB
	log         *logger.Logger
	courseRepo  learningrepo.CourseRepo
	chapterRepo learningrepo.ChapterRepo
}

func NewCourseService(
	db *gorm.DB,
	log *logger.Logger,
	courseRepo learningrepo.CourseRepo,
	chapterRepo learningrepo.ChapterRepo,
) CourseService {
	return &courseService{
		db:          db,
		log:         log.With("service", "CourseService"),
		courseRepo:  courseRepo,
		chapterRepo: chapterRepo,
	}
}

func (s *courseService) GetCourse(ctx context.Context, requesterID, courseID uuid.UUID) (*types.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("lookup course: %w", err))
	}
	if course == nil || (!course.Published && course.UserID != requesterID) {
		return nil, apierr.NotFound(fmt.Errorf("course %s not found", courseID))
	}
	return course, nil
}

func (s *courseService) ListOwn(ctx context.Context, userID uuid.UUID) ([]*types.Course, error) {
	courses, err := s.courseRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("list courses: %w", err))
	}
	return courses, nil
}

func (s *courseService) ListPublished(ctx context.Context, limit int) ([]*types.Course, error) {
	courses, err := s.courseRepo.ListPublished(ctx, nil, limit)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("list published courses: %w", err))
	}
	return courses, nil
}

func (s *courseService) ListChapters(ctx context.Context, requesterID, courseID uuid.UUID) ([]*types.Chapter, error) {
	if _, err := s.GetCourse(ctx, requesterID, courseID); err != nil {
		return nil, err
	}
	chapters, err := s.chapterRepo.ListByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("list chapters: %w", err))
	}
	return chapters, nil
}

func (s *courseService) GetChapter(ctx context.Context, requesterID, courseID uuid.UUID, index int) (*types.Chapter, error) {
	if _, err := s.GetCourse(ctx, requesterID, courseID); err != nil {
		return nil, err
	}
	chapter, err := s.chapterRepo.GetByCourseAndIndex(ctx, nil, courseID, index)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("lookup chapter: %w", err))
	}
	if chapter == nil {
		return nil, apierr.NotFound(fmt.Errorf("chapter %d of course %s not found", index, courseID))
	}
	return chapter, nil
}

func (s *courseService) UpdateCourse(ctx context.Context, userID, courseID uuid.UUID, input UpdateCourseInput) (*types.Course, error) {
	course, err := s.requireOwned(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apierr.Validation(fmt.Errorf("name cannot be empty"))
		}
		updates["name"] = name

		// Keep the layout document's display name in step with the row.
		var layout types.CourseLayout
		if uErr := json.Unmarshal(course.Layout, &layout); uErr == nil {
			layout.CourseName = name
			if raw, mErr := json.Marshal(layout); mErr == nil {
				updates["layout"] = raw
			}
		}
	}
	if input.Level != nil {
		updates["level"] = strings.TrimSpace(*input.Level)
	}
	if input.Category != nil {
		updates["category"] = strings.TrimSpace(*input.Category)
	}
	if input.Banner != nil {
		updates["banner"] = strings.TrimSpace(*input.Banner)
	}
	if len(updates) == 0 {
		return course, nil
	}

	if err := s.courseRepo.UpdateFields(ctx, nil, courseID, updates); err != nil {
		return nil, apierr.Persistence(fmt.Errorf("update course: %w", err))
	}
	updated, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("reload course: %w", err))
	}
	return updated, nil
}

func (s *courseService) DeleteCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	if _, err := s.requireOwned(ctx, userID, courseID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, dErr := s.chapterRepo.DeleteByCourseID(ctx, tx, courseID); dErr != nil {
			return dErr
		}
		return s.courseRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{courseID})
	})
	if err != nil {
		return apierr.Persistence(fmt.Errorf("delete course: %w", err))
	}

	s.log.Info("Course deleted", "course_id", courseID, "user_id", userID)
	return nil
}

func (s *courseService) DeleteAllChapters(ctx context.Context, userID, courseID uuid.UUID) (int64, error) {
	if _, err := s.requireOwned(ctx, userID, courseID); err != nil {
		return 0, err
	}

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, dErr := s.chapterRepo.DeleteByCourseID(ctx, tx, courseID)
		if dErr != nil {
			return dErr
		}
		deleted = n
		return s.courseRepo.UpdateFields(ctx, tx, courseID, map[string]interface{}{"published": false})
	})
	if err != nil {
		return 0, apierr.Persistence(fmt.Errorf("delete chapters: %w", err))
	}

	s.log.Info("Course chapters deleted", "course_id", courseID, "deleted", deleted)
	return deleted, nil
}

func (s *courseService) requireOwned(ctx context.Context, userID, courseID uuid.UUID) (*types.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("lookup course: %w", err))
	}
	if course == nil || course.UserID != userID {
		return nil, apierr.NotFound(fmt.Errorf("course %s not found", courseID))
	}
	return course, nil
}
