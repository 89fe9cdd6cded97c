package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coursepilot/backend/internal/clients/openai"
	"github.com/coursepilot/backend/internal/data/db"
	learningrepo "github.com/coursepilot/backend/internal/data/repos/learning"
	types "github.com/coursepilot/backend/internal/domain"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/platform/logger"
)

const (
	MinChapters = 1
	MaxChapters = 20
)

// CreateCourseInput is the user's course request. CourseID is minted by the
// client so a retried create lands on the same row instead of a duplicate.
type CreateCourseInput struct {
	CourseID     uuid.UUID `json:"course_id"`
	Category     string    `json:"category"`
	Topic        string    `json:"topic"`
	Level        string    `json:"level"`
	Duration     string    `json:"duration"`
	NoOfChapters int       `json:"no_of_chapters"`
	IncludeVideo string    `json:"include_video"`
}

type LayoutService interface {
	// CreateCourse generates a course layout from the input and persists the
	// course row in the Created (unpublished) state.
	CreateCourse(ctx context.Context, userID uuid.UUID, input CreateCourseInput) (*types.Course, error)
}

type layoutService struct {
	db         *gorm.DB
	log        *logger.Logger
	textClient openai.TextClient
	courseRepo learningrepo.CourseRepo
}

func NewLayoutService(
	db *gorm.DB,
	log *logger.Logger,
	textClient openai.TextClient,
	courseRepo learningrepo.CourseRepo,
) LayoutService {
	return &layoutService{
		db:         db,
		log:        log.With("service", "LayoutService"),
		textClient: textClient,
		courseRepo: courseRepo,
	}
}

func buildLayoutPrompt(input CreateCourseInput) string {
	return "Generate A Course Tutorial on Following Details With field as Course Name, Description, Along with Chapter Name, about, Duration : \n" +
		"Category: " + input.Category +
		", Topic: " + input.Topic +
		", Level:" + input.Level +
		",Duration:" + input.Duration +
		",NoOfChapters:" + strconv.Itoa(input.NoOfChapters) +
		", in JSON format"
}

func (s *layoutService) CreateCourse(ctx context.Context, userID uuid.UUID, input CreateCourseInput) (*types.Course, error) {
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized(fmt.Errorf("missing user"))
	}
	if strings.TrimSpace(input.Topic) == "" {
		return nil, apierr.Validation(fmt.Errorf("topic is required"))
	}
	if input.NoOfChapters < MinChapters || input.NoOfChapters > MaxChapters {
		return nil, apierr.Validation(fmt.Errorf("no_of_chapters must be between %d and %d, got %d", MinChapters, MaxChapters, input.NoOfChapters))
	}
	if input.IncludeVideo == "" {
		input.IncludeVideo = types.IncludeVideoYes
	}
	if input.IncludeVideo != types.IncludeVideoYes && input.IncludeVideo != types.IncludeVideoNo {
		return nil, apierr.Validation(fmt.Errorf("include_video must be %q or %q", types.IncludeVideoYes, types.IncludeVideoNo))
	}

	// Retried create with the same client id returns the existing row.
	if input.CourseID != uuid.Nil {
		existing, err := s.courseRepo.GetByID(ctx, nil, input.CourseID)
		if err != nil {
			return nil, apierr.Persistence(fmt.Errorf("lookup course: %w", err))
		}
		if existing != nil {
			// Another user's row reads as not found so the id's existence
			// is not disclosed.
			if existing.UserID != userID {
				return nil, apierr.NotFound(fmt.Errorf("course %s not found", input.CourseID))
			}
			return existing, nil
		}
	}

	raw, err := s.textClient.GenerateText(ctx, buildLayoutPrompt(input))
	if err != nil {
		return nil, apierr.Generation(fmt.Errorf("layout generation: %w", err))
	}

	layout, err := parseCourseLayout(raw)
	if err != nil {
		return nil, err
	}

	id := input.CourseID
	if id == uuid.Nil {
		id = uuid.New()
	}

	layoutJSON, err := json.Marshal(layout)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("encode layout: %w", err))
	}

	name := strings.TrimSpace(layout.CourseName)
	if name == "" {
		name = input.Topic
	}

	course := &types.Course{
		ID:           id,
		UserID:       userID,
		Name:         name,
		Level:        input.Level,
		Category:     input.Category,
		Layout:       datatypes.JSON(layoutJSON),
		IncludeVideo: input.IncludeVideo,
		Banner:       types.DefaultBanner,
	}
	if _, err := s.courseRepo.Create(ctx, nil, []*types.Course{course}); err != nil {
		// A concurrent retry with the same client id can win the insert race;
		// the existing row is the answer either way.
		if db.IsUniqueViolation(err) {
			existing, gErr := s.courseRepo.GetByID(ctx, nil, id)
			if gErr == nil && existing != nil && existing.UserID == userID {
				return existing, nil
			}
		}
		return nil, apierr.Persistence(fmt.Errorf("create course: %w", err))
	}

	s.log.Info("Course created",
		"course_id", course.ID,
		"user_id", userID,
		"chapters", len(layout.Chapters),
	)
	return course, nil
}

func parseCourseLayout(raw string) (*types.CourseLayout, error) {
	cleaned := stripJSONFence(raw)

	var layout types.CourseLayout
	if err := json.Unmarshal([]byte(cleaned), &layout); err != nil {
		return nil, apierr.Malformed(raw, fmt.Errorf("decode layout: %w", err))
	}
	if strings.TrimSpace(layout.CourseName) == "" {
		return nil, apierr.Malformed(raw, fmt.Errorf("layout missing CourseName"))
	}
	if len(layout.Chapters) == 0 {
		return nil, apierr.Malformed(raw, fmt.Errorf("layout has no chapters"))
	}
	if len(layout.Chapters) > MaxChapters {
		return nil, apierr.Malformed(raw, fmt.Errorf("layout has %d chapters, max is %d", len(layout.Chapters), MaxChapters))
	}
	for i, ch := range layout.Chapters {
		if strings.TrimSpace(ch.ChapterName) == "" {
			return nil, apierr.Malformed(raw, fmt.Errorf("layout chapter %d missing ChapterName", i))
		}
	}
	return &layout, nil
}
