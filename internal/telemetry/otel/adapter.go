package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"identity-service/internal/telemetry"
	"identity-service/internal/telemetry/domain"
)

const loggerName = "identity.auth"

// recordEmitter is the subset of otellog.Logger used by the emitter.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that writes auth events as OTel log records via provider.
// A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(loggerName))
}

// NewEventEmitterWithLogger wraps an existing OTel logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: logger, now: time.Now}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AuthEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
	now    func() time.Time
}

// Emit converts the event to a log record. Failed outcomes are logged at WARN.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.AuthEvent) error {
	if event == nil {
		return nil
	}
	var rec otellog.Record
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = e.now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(e.now().UTC())
	rec.SetEventName("auth." + string(event.Type))
	rec.SetBody(otellog.StringValue(string(event.Type)))
	if event.Outcome == domain.OutcomeFailure {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetSeverityText("WARN")
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetSeverityText("INFO")
	}

	addString(&rec, "event_id", event.ID)
	addString(&rec, "event_type", string(event.Type))
	addString(&rec, "outcome", event.Outcome)
	addString(&rec, "user_id", event.UserID)
	addString(&rec, "origin", event.Origin)
	addString(&rec, "reason", event.Reason)

	e.logger.Emit(ctx, rec)
	return nil
}

func addString(rec *otellog.Record, key, value string) {
	if value != "" {
		rec.AddAttributes(otellog.String(key, value))
	}
}
