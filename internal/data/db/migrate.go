package db

import (
	types "github.com/coursepilot/backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity + auth
		&types.User{},
		&types.UserToken{},

		// Course content
		&types.Course{},
		&types.Chapter{},

		// Generation runs (worker queue + lease)
		&types.GenerationRun{},
	)
}
