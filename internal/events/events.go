package events

import (
	"context"
	"sync"
)

const (
	BookingCreated   = "booking.created"
	BookingUpdated   = "booking.updated"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingsExpired  = "bookings.expired"

	RoomCreated     = "room.created"
	RoomUpdated     = "room.updated"
	RoomActivated   = "room.activated"
	RoomDeactivated = "room.deactivated"
)

// Event is a committed state change. Key selects the partition, so events
// for one room stay ordered.
type Event struct {
	Type    string
	Key     string
	Payload any
}

// Publisher announces committed changes. Callers publish after the
// transaction commits and treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

func (noopPublisher) Close() error { return nil }

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
