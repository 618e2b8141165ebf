package model

import "time"

// UploadRecord is one row of the append-only document catalog.
type UploadRecord struct {
	DocID            uint      `gorm:"column:DOC_ID;primaryKey;autoIncrement" json:"doc_id"`
	FileName         string    `gorm:"column:FILE_NAME;size:512;not null" json:"file_name"`
	ShortDescription string    `gorm:"column:SHORT_DESCRIPTION;type:text" json:"short_description"`
	SourceURL        string    `gorm:"column:SOURCE_URL;size:2048" json:"source_url"`
	FileType         string    `gorm:"column:FILE_TYPE;size:64" json:"file_type"`
	FileSize         int64     `gorm:"column:FILE_SIZE;not null" json:"file_size"`
	UploadedBy       string    `gorm:"column:UPLOADED_BY;size:256;not null;index" json:"uploaded_by"`
	StagePath        string    `gorm:"column:STAGE_PATH;size:1024" json:"stage_path"`
	UploadTimestamp  time.Time `gorm:"column:UPLOAD_TIMESTAMP;autoCreateTime;index" json:"upload_timestamp"`
}

func (UploadRecord) TableName() string {
	return "UPLOADED_FILES_METADATA"
}
