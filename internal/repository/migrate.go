package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docsearch/internal/model"
)

// Migrate creates the catalog, feedback and account tables when missing.
// It never drops or rewrites existing rows, so it is safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.UploadRecord{}, &model.FeedbackRecord{}, &model.User{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}
