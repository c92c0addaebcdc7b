package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"identity-service/internal/telemetry/domain"
)

// messageReader is the subset of *kafka.Reader used by Consume.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// EventHandler processes one decoded auth event.
type EventHandler func(ctx context.Context, event *domain.AuthEvent) error

// NewKafkaReader returns a consumer-group reader for the auth event topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Consume reads auth events until ctx is done and passes each to handle. Undecodable messages
// and handler errors are logged and skipped. Returns nil once ctx is cancelled.
func Consume(ctx context.Context, reader messageReader, handle EventHandler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("auth events: read failed", zap.Error(err))
			continue
		}
		var event domain.AuthEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Warn("auth events: undecodable message", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		if err := handle(ctx, &event); err != nil {
			log.Warn("auth events: handler failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
}
