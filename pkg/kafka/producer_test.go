package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "huddle.bookings", "")

	msg, err := NewMessage().
		WithKey("room-1").
		WithEventType("booking.created").
		WithValue(map[string]string{"id": "b-1"}).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.messages))
	}
	got := w.messages[0]
	if string(got.Key) != "room-1" {
		t.Errorf("key = %s", got.Key)
	}
	if header(got, HeaderEventType) != "booking.created" {
		t.Errorf("event type header = %q", header(got, HeaderEventType))
	}
	if header(got, HeaderEventID) == "" {
		t.Errorf("expected generated event id")
	}
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "t", "")

	if err := p.Publish(context.Background(), Message{Value: []byte("{}")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), Message{Key: "k", Value: []byte("{}")}); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestProducer_FailedWriteGoesToDLQ(t *testing.T) {
	brokerDown := errors.New("connection refused")
	primary := &fakeWriter{err: brokerDown}
	dlq := &fakeWriter{}
	p := newProducer(primary, dlq, "huddle.bookings", "huddle.bookings.dlq")

	msg, _ := NewMessage().WithKey("room-1").WithValue(1).Build()
	err := p.Publish(context.Background(), msg)

	if !errors.Is(err, brokerDown) {
		t.Fatalf("expected original error, got %v", err)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("expected message in DLQ, got %d", len(dlq.messages))
	}
	if header(dlq.messages[0], HeaderOriginalTopic) != "huddle.bookings" {
		t.Errorf("missing original topic header")
	}
	if _, ok := msg.Headers["dlq-error"]; ok {
		t.Errorf("DLQ headers must not leak into the caller's message")
	}
}

func TestProducer_MiddlewareOrder(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "t", "")
	var order []string

	for _, name := range []string{"outer", "inner"} {
		name := name
		p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
			order = append(order, name)
			return next(ctx, msg)
		})
	}

	msg, _ := NewMessage().WithKey("k").WithValue("v").Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Errorf("expected encoding error from Build")
	}
}
