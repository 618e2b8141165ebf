package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"docsearch/internal/metrics"
	"docsearch/internal/model"
	"docsearch/internal/repository"
	"docsearch/internal/stage"
	"docsearch/internal/warehouse"
)

var (
	ErrFileRequired         = errors.New("please choose a file to upload")
	ErrUploaderRequired     = errors.New("please enter who uploaded the file")
	ErrSourceURLRequired    = errors.New("please provide the source URL")
	ErrStageWrite           = errors.New("upload to stage failed")
	ErrUploadPartialFailure = errors.New("upload partially failed")
)

// PartialUploadError reports a staged object that could not be matched by a
// catalog row nor removed again. An operator has to reconcile it.
type PartialUploadError struct {
	ObjectPath string
	Err        error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("upload partially failed, staged object %s has no catalog entry: %v", e.ObjectPath, e.Err)
}

func (e *PartialUploadError) Unwrap() []error {
	return []error{ErrUploadPartialFailure, e.Err}
}

type CatalogService struct {
	warehouse *warehouse.Provider
	stage     stage.ObjectStore
	compress  bool

	mu         sync.Mutex
	stageReady bool
}

func NewCatalogService(provider *warehouse.Provider, store stage.ObjectStore, compressByDefault bool) *CatalogService {
	return &CatalogService{
		warehouse: provider,
		stage:     store,
		compress:  compressByDefault,
	}
}

// EnsureSchema creates the catalog tables and the stage if they are missing.
func (s *CatalogService) EnsureSchema(ctx context.Context) error {
	if err := s.warehouse.Run(ctx, repository.Migrate); err != nil {
		return err
	}
	return s.ensureStage(ctx)
}

// ensureStage creates the stage once per process; a failure is retried on
// the next call.
func (s *CatalogService) ensureStage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stageReady {
		return nil
	}
	if err := s.stage.Ensure(ctx); err != nil {
		return fmt.Errorf("ensure stage failed: %w", err)
	}
	s.stageReady = true
	return nil
}

type UploadInput struct {
	FileName         string
	ShortDescription string
	SourceURL        string
	UploadedBy       string
	Data             []byte
	// Compress overrides the configured default when set.
	Compress *bool
}

type UploadResult struct {
	Record     model.UploadRecord `json:"record"`
	ObjectPath string             `json:"object_path"`
}

// RecordUpload stages the file bytes under a fresh object path and then
// inserts the metadata row. When the insert fails that object is deleted
// again; if that also fails a PartialUploadError is returned. Objects of
// earlier uploads are never touched.
func (s *CatalogService) RecordUpload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" || input.Data == nil {
		return nil, ErrFileRequired
	}
	uploadedBy := strings.TrimSpace(input.UploadedBy)
	if uploadedBy == "" {
		return nil, ErrUploaderRequired
	}
	sourceURL := strings.TrimSpace(input.SourceURL)
	if sourceURL == "" {
		return nil, ErrSourceURLRequired
	}
	description := strings.TrimSpace(input.ShortDescription)
	if description == "" {
		description = fileName
	}
	compress := s.compress
	if input.Compress != nil {
		compress = *input.Compress
	}

	record := model.UploadRecord{
		FileName:         fileName,
		ShortDescription: description,
		SourceURL:        sourceURL,
		FileType:         strings.TrimPrefix(path.Ext(fileName), "."),
		FileSize:         int64(len(input.Data)),
		UploadedBy:       uploadedBy,
	}

	if err := s.ensureStage(ctx); err != nil {
		metrics.Uploads.WithLabelValues("stage_failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrStageWrite, err)
	}
	objectPath, err := s.stage.Put(ctx, input.Data, stage.UniqueName(fileName), false, compress)
	if err != nil {
		metrics.Uploads.WithLabelValues("stage_failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrStageWrite, err)
	}

	record.StagePath = objectPath

	insertErr := s.warehouse.Run(ctx, func(db *gorm.DB) error {
		return repository.NewUploadRecordRepository(db).Create(&record)
	})
	if insertErr != nil {
		if delErr := s.stage.Delete(ctx, objectPath); delErr != nil {
			metrics.Uploads.WithLabelValues("partial").Inc()
			log.WithError(delErr).WithField("object", objectPath).Error("staged object orphaned after metadata insert failure")
			return nil, &PartialUploadError{ObjectPath: objectPath, Err: errors.Join(insertErr, delErr)}
		}
		metrics.Uploads.WithLabelValues("insert_failed").Inc()
		return nil, fmt.Errorf("metadata insert failed, staged object removed: %w", insertErr)
	}

	metrics.Uploads.WithLabelValues("ok").Inc()
	log.WithFields(log.Fields{
		"doc_id": record.DocID,
		"file":   record.FileName,
		"size":   record.FileSize,
		"object": objectPath,
	}).Info("document uploaded")
	return &UploadResult{Record: record, ObjectPath: objectPath}, nil
}

// List returns catalog rows newest first.
func (s *CatalogService) List(ctx context.Context, filter repository.UploadFilter) ([]model.UploadRecord, error) {
	var list []model.UploadRecord
	err := s.warehouse.Run(ctx, func(db *gorm.DB) error {
		var err error
		list, err = repository.NewUploadRecordRepository(db).List(filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Ping reports warehouse availability for health checks.
func (s *CatalogService) Ping(ctx context.Context) error {
	return s.warehouse.Ping(ctx)
}
