package telemetry

import (
	"context"
	"errors"

	"identity-service/internal/telemetry/domain"
)

// EventEmitter emits auth events (to Kafka, OTel logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AuthEvent) error
}

// MultiEmitter sends each event to every non-nil emitter and joins their errors.
type MultiEmitter []EventEmitter

// Emit implements EventEmitter.
func (m MultiEmitter) Emit(ctx context.Context, event *domain.AuthEvent) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
