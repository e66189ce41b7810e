package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"huddle/internal/bookings/repository"
	"huddle/internal/events"
	"huddle/pkg/clock"
	"huddle/pkg/logger"
)

const DefaultInterval = 60 * time.Second

// ExpiredPayload is published with bookings.expired.
type ExpiredPayload struct {
	Count int64     `json:"count"`
	AsOf  time.Time `json:"as_of"`
}

// Sweeper moves active bookings whose end time has passed to EXPIRED. A
// failed or panicking sweep is logged and the loop keeps running.
type Sweeper struct {
	repo      repository.BookingRepository
	clock     clock.Clock
	publisher events.Publisher
	interval  time.Duration
	log       *logger.Logger

	stopCh chan struct{}
	done   chan struct{}
	start  sync.Once
	stop   sync.Once
}

func New(repo repository.BookingRepository, clk clock.Clock, publisher events.Publisher, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		repo:      repo,
		clock:     clk,
		publisher: publisher,
		interval:  interval,
		log:       log.With("component", "sweeper"),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Sweep runs a single pass and returns how many bookings it expired.
func (s *Sweeper) Sweep(ctx context.Context) (count int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			count = 0
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()

	now := s.clock.Now()
	count, err = s.repo.BulkMarkExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire bookings: %w", err)
	}

	if count > 0 {
		s.log.Info("Expired past bookings", "count", count, "as_of", now)
		event := events.Event{Type: events.BookingsExpired, Payload: ExpiredPayload{Count: count, AsOf: now}}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.log.Error("Failed to publish expiration event", "count", count, "error", err)
		}
	} else {
		s.log.Debug("No bookings to expire", "as_of", now)
	}
	return count, nil
}

// Start sweeps once immediately and then every interval until ctx is done or
// Stop is called. It returns at once; the loop runs in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.start.Do(func() {
		s.log.Info("Starting expiration sweeper", "interval", s.interval)
		go s.run(ctx)
	})
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Error("Expiration sweep failed", "error", err)
	}
}

// Stop ends the loop and waits for an in-flight sweep to finish. It is safe
// to call more than once, and before Start.
func (s *Sweeper) Stop() {
	s.stop.Do(func() { close(s.stopCh) })

	started := true
	s.start.Do(func() { started = false })
	if started {
		<-s.done
	}
}
