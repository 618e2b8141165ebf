package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docsearch/internal/model"
)

type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(record *model.FeedbackRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("insert feedback failed: %w", err)
	}
	return nil
}
