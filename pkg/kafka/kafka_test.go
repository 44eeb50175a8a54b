package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"

	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/logger"
)

type mockWriter struct {
	WriteFunc func(ctx context.Context, msgs ...kafka.Message) error
	written   []kafka.Message
	closed    bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("booking-1").
		WithValue(map[string]string{"outcome": "GOOD"}).
		WithEventID("completed:booking-1").
		WithEventType("booking.completed").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.GetEventID() != "completed:booking-1" || msg.GetEventType() != "booking.completed" {
		t.Errorf("unexpected headers %v", msg.Headers)
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Error("expected timestamp header")
	}

	var decoded map[string]string
	if err := msg.DecodeValue(&decoded); err != nil || decoded["outcome"] != "GOOD" {
		t.Errorf("DecodeValue() = %v, %v", decoded, err)
	}

	if _, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build(); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestRetryCount(t *testing.T) {
	msg := Message{Headers: map[string]string{}}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if got := msg.GetRetryCount(); got != 12 {
		t.Errorf("GetRetryCount() = %d, want 12", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"transient wrapper", NewTransientError("x", nil), ErrorTypeTransient},
		{"decode failure", NewPermanentError("deserialization failed", nil), ErrorTypePermanent},
		{"deadline", fmt.Errorf("save: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"version conflict", apperrors.ConcurrentModification("wallet", "w1"), ErrorTypeTransient},
		{"business rule", apperrors.Business(apperrors.CodeSpotInvalidRating, "nope"), ErrorTypePermanent},
		{"bad input", apperrors.InvalidInput("bad"), ErrorTypePermanent},
		{"mongo down", apperrors.Internal("find", errors.New("server selection error: timeout")), ErrorTypeTransient},
		{"unknown", errors.New("boom"), ErrorTypePermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}

	if ShouldRetry(NewTransientError("x", nil), 3, 3) {
		t.Error("retries exhausted, expected no retry")
	}
}

func TestProducer_Publish(t *testing.T) {
	writer := &mockWriter{}
	p := &Producer{writer: writer, topic: "outcomes", log: logger.Nop()}

	var seen []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		seen = append(seen, msg.Topic)
		return next(ctx, msg)
	})

	if err := p.Publish(context.Background(), Message{Value: []byte("{}")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}

	msg, _ := NewMessage().WithKey("b1").WithValue("x").Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.written) != 1 || string(writer.written[0].Key) != "b1" {
		t.Errorf("expected one message keyed b1, got %v", writer.written)
	}
	if len(seen) != 1 || seen[0] != "outcomes" {
		t.Errorf("middleware should see the default topic, got %v", seen)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), msg); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
	if !writer.closed {
		t.Error("writer should be closed")
	}
}

func TestProducer_FailureGoesToDLQ(t *testing.T) {
	brokerErr := errors.New("connection refused")
	writer := &mockWriter{WriteFunc: func(context.Context, ...kafka.Message) error { return brokerErr }}
	dlq := &mockWriter{}
	p := &Producer{writer: writer, dlqWriter: dlq, topic: "outcomes", log: logger.Nop()}

	msg, _ := NewMessage().WithKey("b1").WithValue("x").Build()
	if err := p.Publish(context.Background(), msg); !errors.Is(err, brokerErr) {
		t.Errorf("expected broker error, got %v", err)
	}
	if len(dlq.written) != 1 || headerValue(dlq.written[0], HeaderOriginalTopic) != "outcomes" {
		t.Errorf("expected message parked on DLQ, got %v", dlq.written)
	}
	if _, ok := msg.Headers[HeaderDLQError]; ok {
		t.Error("caller's message headers must not be mutated")
	}
}

func TestConsumer_ProcessMessage(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantDLQ   int
	}{
		{"success", 0, nil, 1, 0},
		{"transient then success", 2, apperrors.ConcurrentModification("wallet", "w"), 3, 0},
		{"transient exhausted", 10, apperrors.ConcurrentModification("wallet", "w"), 3, 1},
		{"permanent", 10, apperrors.Business(apperrors.CodeSpotInvalidRating, "x"), 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			dlq := &mockWriter{}
			c := &Consumer{
				topic:      "outcomes",
				groupID:    "ratings",
				maxRetries: 2,
				dlqWriter:  dlq,
				log:        logger.Nop(),
				handler: func(context.Context, Message) error {
					calls++
					if calls <= tt.failures {
						return tt.err
					}
					return nil
				},
			}

			msg := Message{Key: "b1", Value: []byte("{}"), Headers: map[string]string{}}
			if err := c.processMessage(context.Background(), msg); err != nil {
				t.Fatalf("expected message to be committable, got %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
			if len(dlq.written) != tt.wantDLQ {
				t.Errorf("expected %d DLQ messages, got %d", tt.wantDLQ, len(dlq.written))
			}
		})
	}
}
