package email

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher stands in for SES when no sender is configured. The link is logged at debug
// level only, so local development can finish the flow.
type LogDispatcher struct {
	renderer *Renderer
	log      *zap.Logger
}

// NewLogDispatcher returns a dispatcher that only logs.
func NewLogDispatcher(renderer *Renderer, log *zap.Logger) *LogDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogDispatcher{renderer: renderer, log: log}
}

// Send implements Dispatcher.
func (d *LogDispatcher) Send(_ context.Context, recipient, token string, kind Kind, displayName string) (Result, error) {
	msg, err := d.renderer.Render(recipient, token, kind, displayName)
	if err != nil {
		return Result{Status: false, Message: err.Error()}, err
	}
	d.log.Info("email delivery disabled; not sent",
		zap.String("kind", string(kind)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	d.log.Debug("email link", zap.String("link", Link(d.renderer.frontendURL, kind, recipient, token)))
	return Result{Status: true, Message: kind.SentMessage()}, nil
}
