package producer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"identity-service/internal/telemetry/domain"
)

type captureWriter struct {
	msgs   []kafka.Message
	closed int
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed++
	return nil
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("no brokers should disable the producer")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("empty topic should disable the producer")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.AuthEvent{}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaProducer{writer: w, topic: "identity-auth-events"}

	ev := &domain.AuthEvent{
		ID:         "e1",
		Type:       domain.EventLogin,
		Outcome:    domain.OutcomeSuccess,
		UserID:     "u1",
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := p.Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "u1" {
		t.Errorf("key = %q, want u1", msg.Key)
	}
	var got domain.AuthEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Type != domain.EventLogin || got.Outcome != domain.OutcomeSuccess {
		t.Errorf("payload = %+v", got)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "login" {
		t.Errorf("headers = %v", msg.Headers)
	}
	_ = p.Close()
	if w.closed != 1 {
		t.Errorf("closed = %d, want 1", w.closed)
	}
}
