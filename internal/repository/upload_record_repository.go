package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"docsearch/internal/model"
)

const (
	DefaultListLimit = 25
	MaxListLimit     = 200
)

// UploadFilter narrows the catalog listing. Blank fields are ignored and the
// remaining ones are combined with AND as case-insensitive substring matches.
type UploadFilter struct {
	FileName   string
	UploadedBy string
	SourceURL  string
	Limit      int
}

type UploadRecordRepository struct {
	db *gorm.DB
}

func NewUploadRecordRepository(db *gorm.DB) *UploadRecordRepository {
	return &UploadRecordRepository{db: db}
}

func (r *UploadRecordRepository) Create(record *model.UploadRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("insert upload metadata failed: %w", err)
	}
	return nil
}

func (r *UploadRecordRepository) List(filter UploadFilter) ([]model.UploadRecord, error) {
	q := r.db.Model(&model.UploadRecord{})
	q = whereContains(q, "FILE_NAME", filter.FileName)
	q = whereContains(q, "UPLOADED_BY", filter.UploadedBy)
	q = whereContains(q, "SOURCE_URL", filter.SourceURL)

	var list []model.UploadRecord
	if err := q.Order("UPLOAD_TIMESTAMP DESC").Order("DOC_ID DESC").Limit(ClampLimit(filter.Limit)).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list upload metadata failed: %w", err)
	}
	return list, nil
}

// ClampLimit keeps a requested row count within 1..MaxListLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func whereContains(q *gorm.DB, column, value string) *gorm.DB {
	value = strings.TrimSpace(value)
	if value == "" {
		return q
	}
	return q.Where("LOWER("+column+") LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(strings.ToLower(value))+"%")
}

// likeEscaper makes LIKE wildcards in user input match literally, with '!' as
// the escape character.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
