// Worker consumes auth events from Kafka and writes each one to the structured log, where the
// log pipeline picks them up. Set KAFKA_BROKERS, AUTH_EVENTS_TOPIC and KAFKA_GROUP_ID.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"identity-service/internal/config"
	"identity-service/internal/logger"
	"identity-service/internal/telemetry/domain"
	"identity-service/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	reader := producer.NewKafkaReader(brokers, cfg.AuthEventsTopic, cfg.KafkaGroupID)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl.Info("worker: consuming auth events",
		zap.String("topic", cfg.AuthEventsTopic),
		zap.String("group", cfg.KafkaGroupID))

	events := zl.Named("auth_events")
	err = producer.Consume(ctx, reader, func(_ context.Context, ev *domain.AuthEvent) error {
		events.Info("auth event",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("outcome", ev.Outcome),
			zap.String("user_id", ev.UserID),
			zap.String("origin", ev.Origin),
			zap.String("reason", ev.Reason),
			zap.Time("occurred_at", ev.OccurredAt))
		return nil
	}, zl)
	if err != nil {
		zl.Error("worker: stopped", zap.Error(err))
		return
	}
	zl.Info("worker: stopped")
}
