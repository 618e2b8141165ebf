package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"docsearch/internal/metrics"
	"docsearch/internal/model"
	"docsearch/internal/platform/rabbitmq"
)

var ErrConsumerStopped = errors.New("feedback audit consumer stopped")

// FeedbackAuditWorker consumes the events published for every stored
// feedback row and writes them to the audit log.
type FeedbackAuditWorker struct {
	conn      *amqp.Connection
	queueName string

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewFeedbackAuditWorker(conn *amqp.Connection, queueName string) *FeedbackAuditWorker {
	return &FeedbackAuditWorker{
		conn:      conn,
		queueName: queueName,
	}
}

func (w *FeedbackAuditWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(8, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.run(ctx, deliveries, func() { _ = ch.Close() })
	return nil
}

// run drains deliveries on a goroutine until ctx is cancelled or the broker
// closes the channel.
func (w *FeedbackAuditWorker) run(ctx context.Context, deliveries <-chan amqp.Delivery, release func()) {
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running.Store(true)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer release()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.running.Store(false)
					log.WithField("queue", w.queueName).Warn("feedback queue consumer stopped, delivery channel closed")
					return
				}
				w.handle(d)
			}
		}
	}()
}

// Healthy reports whether the consumer is still receiving deliveries.
func (w *FeedbackAuditWorker) Healthy(context.Context) error {
	if !w.running.Load() {
		return ErrConsumerStopped
	}
	return nil
}

// handle logs one event and acks it. Malformed payloads are dropped; the row
// they describe is already stored.
func (w *FeedbackAuditWorker) handle(d amqp.Delivery) {
	record, err := Decode(d.Body)
	if err != nil {
		metrics.FeedbackAudited.WithLabelValues("malformed").Inc()
		log.WithError(err).Error("worker decode feedback event failed")
		_ = d.Nack(false, false)
		return
	}

	fields := log.Fields{
		"feedback_id":  record.FeedbackID,
		"given_on":     record.FeedbackGivenOn,
		"with_history": record.HistoryOfChat != nil,
	}
	if record.Rating != nil {
		fields["rating"] = *record.Rating
	}
	log.WithFields(fields).Info("feedback recorded")
	metrics.FeedbackAudited.WithLabelValues("ok").Inc()
	_ = d.Ack(false)
}

func Decode(body []byte) (*model.FeedbackRecord, error) {
	var record model.FeedbackRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("decode feedback payload failed: %w", err)
	}
	return &record, nil
}

func (w *FeedbackAuditWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.running.Store(false)
}
