package learning

import (
	"time"

	"github.com/google/uuid"
	"github.com/coursepilot/backend/internal/domain/user"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	IncludeVideoYes = "Yes"
	IncludeVideoNo  = "No"

	DefaultBanner = "/placeholder.png"
)

// Course carries the generated layout document in Layout. The row id is
// supplied by the caller at creation time so a client can retry the create
// without minting duplicates.
type Course struct {
	ID     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`

	Name     string `gorm:"column:name;not null" json:"name"`
	Level    string `gorm:"column:level" json:"level"`
	Category string `gorm:"column:category" json:"category"`

	Layout       datatypes.JSON `gorm:"column:layout;type:jsonb" json:"layout"`
	IncludeVideo string         `gorm:"column:include_video;not null;default:'Yes'" json:"include_video"`
	Published    bool           `gorm:"column:published;not null;default:false;index" json:"published"`
	Banner       string         `gorm:"column:banner;not null;default:'/placeholder.png'" json:"banner"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }
