package kafka_middleware

import (
	"context"
	"time"

	"huddle/pkg/kafka"
	"huddle/pkg/logger"
)

// LoggingProducerMiddleware logs message publishing operations
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration_ms", time.Since(start).Milliseconds(),
		}

		reqLog := log.WithContext(ctx)
		if err != nil {
			reqLog.Error("Failed to publish Kafka message", append(attrs, "error", err)...)
		} else {
			reqLog.Debug("Published Kafka message", attrs...)
		}

		return err
	}
}
