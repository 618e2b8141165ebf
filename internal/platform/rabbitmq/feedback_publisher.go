package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"docsearch/internal/model"
)

type FeedbackPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewFeedbackPublisher(conn *amqp.Connection, queueName string) *FeedbackPublisher {
	return &FeedbackPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *FeedbackPublisher) Publish(ctx context.Context, record model.FeedbackRecord) error {
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal feedback payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish feedback failed: %w", err)
	}
	return nil
}
