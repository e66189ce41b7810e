package events

import (
	"context"
	"fmt"

	"huddle/pkg/kafka"
	"huddle/pkg/logger"
)

const schemaVersion = "1"

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	producer producer
	source   string
}

func NewKafkaPublisher(p *kafka.Producer, source string) Publisher {
	return &kafkaPublisher{producer: p, source: source}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.Key).
		WithEventType(event.Type).
		WithSource(p.source).
		WithSchemaVersion(schemaVersion).
		WithCorrelationID(logger.RequestIDFromContext(ctx)).
		WithValue(event.Payload).
		Build()
	if err != nil {
		return fmt.Errorf("build %s event: %w", event.Type, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}
