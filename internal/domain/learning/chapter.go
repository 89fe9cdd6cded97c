package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Chapter rows are keyed (course_id, chapter_index) and always written whole.
// ChapterIndex is the zero-based position in the course layout.
type Chapter struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_chapter_course_index" json:"course_id"`
	ChapterIndex int            `gorm:"column:chapter_index;not null;uniqueIndex:idx_chapter_course_index" json:"chapter_index"`
	Content      datatypes.JSON `gorm:"column:content;type:jsonb" json:"content"`
	VideoIDs     datatypes.JSON `gorm:"column:video_ids;type:jsonb" json:"video_ids"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (Chapter) TableName() string { return "chapter" }
