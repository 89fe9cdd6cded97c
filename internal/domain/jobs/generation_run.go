package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"

	// A superseded run was retired by a newer run on the same course and is
	// never claimed again.
	RunStatusSuperseded = "superseded"

	RunStageCleanup  = "cleanup"
	RunStageChapters = "chapters"
	RunStagePublish  = "publish"
	RunStageDone     = "done"
)

// GenerationRun is one attempt group at filling a course with content. The
// locked_at/heartbeat_at pair doubles as the per-course lease: a claimed row
// is the only writer for its course until the heartbeat goes stale.
type GenerationRun struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Status       string `gorm:"column:status;not null;index" json:"status"`
	Stage        string `gorm:"column:stage;not null" json:"stage"`
	Progress     int    `gorm:"column:progress;not null;default:0" json:"progress"`
	ChapterIndex int    `gorm:"column:chapter_index;not null;default:0" json:"chapter_index"`
	Attempts     int    `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error        string `gorm:"column:error" json:"error,omitempty"`

	LockedAt    *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`

	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (GenerationRun) TableName() string { return "generation_run" }
