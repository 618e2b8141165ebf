package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"docsearch/internal/metrics"
	"docsearch/internal/model"
	"docsearch/internal/prompt"
	"docsearch/internal/repository"
	"docsearch/internal/warehouse"
)

var (
	ErrFeedbackNotRecorded = errors.New("feedback could not be recorded")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrInvalidMessage      = errors.New("feedback must target an assistant message")
)

// FeedbackPublisher announces a stored feedback row to downstream consumers.
type FeedbackPublisher interface {
	Publish(ctx context.Context, record model.FeedbackRecord) error
}

type FeedbackService struct {
	chat      *ChatService
	warehouse *warehouse.Provider
	publisher FeedbackPublisher
}

func NewFeedbackService(chat *ChatService, provider *warehouse.Provider, publisher FeedbackPublisher) *FeedbackService {
	return &FeedbackService{
		chat:      chat,
		warehouse: provider,
		publisher: publisher,
	}
}

type FeedbackInput struct {
	UserID         uint
	SessionID      string
	MessageIndex   int
	Rating         *int
	Details        string
	IncludeHistory bool
}

// Submit records feedback on one assistant message. When IncludeHistory is
// set the transcript preceding that message is attached.
func (s *FeedbackService) Submit(ctx context.Context, input FeedbackInput) error {
	if input.Rating != nil && (*input.Rating < 1 || *input.Rating > 5) {
		return ErrInvalidRating
	}
	c, err := s.chat.Get(ctx, input.UserID, input.SessionID)
	if err != nil {
		return err
	}
	idx := input.MessageIndex
	if idx < 0 || idx >= len(c.Messages) || c.Messages[idx].Role != model.RoleAssistant {
		return ErrInvalidMessage
	}

	var history *string
	if input.IncludeHistory {
		text := prompt.HistoryToText(c.Before(idx))
		history = &text
	}
	return s.Record(ctx, history, input.Details, input.Rating)
}

// Record writes one feedback row to the warehouse and returns only once it
// is stored. History is stored as NULL when nil. The stored row is then
// published as an audit event; a publish failure does not fail the call.
func (s *FeedbackService) Record(ctx context.Context, history *string, notes string, rating *int) error {
	record := model.FeedbackRecord{
		HistoryOfChat:   history,
		MoreInformation: strings.TrimSpace(notes),
		Rating:          rating,
		FeedbackGivenOn: time.Now(),
	}
	err := s.warehouse.Run(ctx, func(db *gorm.DB) error {
		return repository.NewFeedbackRepository(db).Create(&record)
	})
	if err != nil {
		metrics.Feedback.WithLabelValues("failed").Inc()
		log.WithError(err).Error("persist feedback failed")
		return fmt.Errorf("%w: %w", ErrFeedbackNotRecorded, err)
	}
	metrics.Feedback.WithLabelValues("persisted").Inc()

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, record); err != nil {
		metrics.Feedback.WithLabelValues("publish_failed").Inc()
		log.WithError(err).WithField("feedback_id", record.FeedbackID).Warn("publish feedback event failed")
		return nil
	}
	metrics.Feedback.WithLabelValues("published").Inc()
	return nil
}
