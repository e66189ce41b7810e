package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"huddle/internal/bookings/repository"
	roomsrepository "huddle/internal/rooms/repository"
	"huddle/internal/testutil"
	"huddle/pkg/clock"
	"huddle/pkg/db"
	mongodb "huddle/pkg/db/mongo"
	"huddle/pkg/db/postgres"
	"huddle/pkg/model"
)

var morning = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// liveStore is one real driver with its room repository, which the bookings
// foreign key and the room lock depend on.
type liveStore struct {
	bookings repository.BookingRepository
	rooms    roomsrepository.RoomRepository
	tx       db.TransactionManager
	room     *model.Room
}

func postgresStore(t *testing.T) *liveStore {
	t.Helper()
	pg := testutil.NewPostgresHelper(t, "bookings_repository")
	clk := clock.NewManual(morning.Add(-24 * time.Hour))

	s := &liveStore{
		bookings: repository.NewPostgresBookingRepository(pg.DB, clk),
		rooms:    roomsrepository.NewPostgresRoomRepository(pg.DB, clk),
		tx:       postgres.NewTransactionManager(pg.DB, 200*time.Millisecond),
	}
	s.room = s.addRoom(t, "Everest")
	return s
}

func mongoStore(t *testing.T) *liveStore {
	t.Helper()
	m := testutil.NewMongoHelper(t, "bookings_repository")
	clk := clock.NewManual(morning.Add(-24 * time.Hour))

	s := &liveStore{
		bookings: repository.NewMongoBookingRepository(m.Database, clk),
		rooms:    roomsrepository.NewMongoRoomRepository(m.Database, clk),
		tx:       mongodb.NewTransactionManager(m.Client, 5*time.Second),
	}
	s.room = s.addRoom(t, "Everest")
	return s
}

// forEachStore runs fn against every live driver whose environment variable
// is set.
func forEachStore(t *testing.T, fn func(t *testing.T, s *liveStore)) {
	t.Run("postgres", func(t *testing.T) {
		fn(t, postgresStore(t))
	})
	t.Run("mongo", func(t *testing.T) {
		fn(t, mongoStore(t))
	})
}

func (s *liveStore) addRoom(t *testing.T, name string) *model.Room {
	t.Helper()
	room, err := model.NewRoom(name, 8, nil)
	if err != nil {
		t.Fatalf("NewRoom() error: %v", err)
	}
	if err := s.rooms.Create(context.Background(), room); err != nil {
		t.Fatalf("Create room error: %v", err)
	}
	return room
}

func (s *liveStore) add(t *testing.T, roomID string, start, end time.Time, status model.BookingStatus) *model.Booking {
	t.Helper()
	b, err := model.NewBooking(roomID, "Sync", "team@example.com", start, end)
	if err != nil {
		t.Fatalf("NewBooking() error: %v", err)
	}
	b.Status = status
	if err := s.bookings.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return b
}

func TestLiveBookingRepository_Overlap(t *testing.T) {
	forEachStore(t, func(t *testing.T, s *liveStore) {
		other := s.addRoom(t, "Atlas")
		existing := s.add(t, s.room.ID, morning, morning.Add(time.Hour), model.StatusConfirmed)
		s.add(t, s.room.ID, morning.Add(2*time.Hour), morning.Add(3*time.Hour), model.StatusCancelled)
		s.add(t, other.ID, morning, morning.Add(time.Hour), model.StatusPending)

		tests := []struct {
			name      string
			start     time.Time
			end       time.Time
			excludeID string
			want      bool
		}{
			{"same interval", morning, morning.Add(time.Hour), "", true},
			{"partial overlap", morning.Add(30 * time.Minute), morning.Add(90 * time.Minute), "", true},
			{"contained", morning.Add(15 * time.Minute), morning.Add(45 * time.Minute), "", true},
			{"adjacent after", morning.Add(time.Hour), morning.Add(2 * time.Hour), "", false},
			{"adjacent before", morning.Add(-time.Hour), morning, "", false},
			{"cancelled booking ignored", morning.Add(2 * time.Hour), morning.Add(3 * time.Hour), "", false},
			{"self excluded", morning, morning.Add(time.Hour), existing.ID, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.bookings.ExistsOverlapping(context.Background(), s.room.ID, tt.start, tt.end, tt.excludeID)
				if err != nil {
					t.Fatalf("ExistsOverlapping() error: %v", err)
				}
				if got != tt.want {
					t.Errorf("ExistsOverlapping() = %v, want %v", got, tt.want)
				}

				found, err := s.bookings.FindOverlapping(context.Background(), s.room.ID, tt.start, tt.end, tt.excludeID)
				if err != nil {
					t.Fatalf("FindOverlapping() error: %v", err)
				}
				if (len(found) > 0) != tt.want {
					t.Errorf("FindOverlapping() returned %d bookings, want overlap %v", len(found), tt.want)
				}
			})
		}
	})
}

func TestLiveBookingRepository_Queries(t *testing.T) {
	forEachStore(t, func(t *testing.T, s *liveStore) {
		s.add(t, s.room.ID, morning, morning.Add(time.Hour), model.StatusConfirmed)
		s.add(t, s.room.ID, morning.Add(2*time.Hour), morning.Add(3*time.Hour), model.StatusPending)
		s.add(t, s.room.ID, morning.Add(4*time.Hour), morning.Add(5*time.Hour), model.StatusCancelled)

		inRange, err := s.bookings.FindByRoomAndRange(context.Background(), s.room.ID, morning, morning.Add(5*time.Hour))
		if err != nil || len(inRange) != 3 || !inRange[0].StartTime.Equal(morning) {
			t.Errorf("FindByRoomAndRange() = %v, %v", inRange, err)
		}

		now := morning.Add(90 * time.Minute)
		active, err := s.bookings.FindActiveByRoom(context.Background(), s.room.ID, now)
		if err != nil || len(active) != 1 || !active[0].StartTime.Equal(morning.Add(2*time.Hour)) {
			t.Errorf("FindActiveByRoom() = %v, %v", active, err)
		}

		count, err := s.bookings.CountActive(context.Background(), s.room.ID, now)
		if err != nil || count != 1 {
			t.Errorf("CountActive() = %d, %v", count, err)
		}

		mine, err := s.bookings.FindByOrganizerEmail(context.Background(), "team@example.com")
		if err != nil || len(mine) != 3 || !mine[0].StartTime.Equal(morning.Add(4*time.Hour)) {
			t.Errorf("FindByOrganizerEmail() should be newest first: %v, %v", mine, err)
		}

		pending, err := s.bookings.FindByStatus(context.Background(), model.StatusPending)
		if err != nil || len(pending) != 1 {
			t.Errorf("FindByStatus(PENDING) = %v, %v", pending, err)
		}
	})
}

func TestLiveBookingRepository_UpdateIsVersionChecked(t *testing.T) {
	forEachStore(t, func(t *testing.T, s *liveStore) {
		b := s.add(t, s.room.ID, morning, morning.Add(time.Hour), model.StatusPending)

		first, err := s.bookings.FindByID(context.Background(), b.ID)
		if err != nil {
			t.Fatalf("FindByID() error: %v", err)
		}
		second, err := s.bookings.FindByID(context.Background(), b.ID)
		if err != nil {
			t.Fatalf("FindByID() error: %v", err)
		}

		first.Status = model.StatusConfirmed
		if err := s.bookings.Update(context.Background(), first); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		if first.Version != 1 {
			t.Errorf("version = %d, want 1", first.Version)
		}

		second.Status = model.StatusCancelled
		if err := s.bookings.Update(context.Background(), second); !errors.Is(err, db.ErrStaleVersion) {
			t.Errorf("stale Update() error = %v, want ErrStaleVersion", err)
		}

		stored, err := s.bookings.FindByID(context.Background(), b.ID)
		if err != nil || stored.Status != model.StatusConfirmed || stored.Version != 1 {
			t.Errorf("stored booking = %+v, %v", stored, err)
		}
	})
}

func TestLiveBookingRepository_BulkMarkExpired(t *testing.T) {
	forEachStore(t, func(t *testing.T, s *liveStore) {
		now := morning.Add(4 * time.Hour)
		past := s.add(t, s.room.ID, morning, morning.Add(time.Hour), model.StatusConfirmed)
		pastPending := s.add(t, s.room.ID, morning.Add(time.Hour), morning.Add(2*time.Hour), model.StatusPending)
		cancelled := s.add(t, s.room.ID, morning.Add(2*time.Hour), morning.Add(3*time.Hour), model.StatusCancelled)
		endsNow := s.add(t, s.room.ID, morning.Add(3*time.Hour), now, model.StatusPending)
		future := s.add(t, s.room.ID, morning.Add(10*time.Hour), morning.Add(11*time.Hour), model.StatusConfirmed)

		n, err := s.bookings.BulkMarkExpired(context.Background(), now)
		if err != nil {
			t.Fatalf("BulkMarkExpired() error: %v", err)
		}
		if n != 2 {
			t.Errorf("expired %d bookings, want 2", n)
		}

		want := map[string]model.BookingStatus{
			past.ID:        model.StatusExpired,
			pastPending.ID: model.StatusExpired,
			cancelled.ID:   model.StatusCancelled,
			endsNow.ID:     model.StatusPending,
			future.ID:      model.StatusConfirmed,
		}
		for id, status := range want {
			got, err := s.bookings.FindByID(context.Background(), id)
			if err != nil {
				t.Fatalf("FindByID(%s) error: %v", id, err)
			}
			if got.Status != status {
				t.Errorf("booking %s status = %s, want %s", id, got.Status, status)
			}
		}
	})
}

func TestLiveBookingRepository_RollbackDiscardsCreate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s *liveStore) {
		var created *model.Booking
		abort := errors.New("abort")

		err := s.tx.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
			if _, err := s.rooms.FindByIDForUpdate(ctx, s.room.ID); err != nil {
				return err
			}
			b, err := model.NewBooking(s.room.ID, "Sync", "team@example.com", morning, morning.Add(time.Hour))
			if err != nil {
				return err
			}
			if err := s.bookings.Create(ctx, b); err != nil {
				return err
			}
			created = b
			return abort
		})
		if !errors.Is(err, abort) {
			t.Fatalf("ExecuteTransaction() error = %v, want abort", err)
		}
		if created == nil {
			t.Fatal("booking was never written")
		}

		count, err := s.bookings.CountActive(context.Background(), s.room.ID, morning.Add(-time.Hour))
		if err != nil || count != 0 {
			t.Errorf("CountActive() after rollback = %d, %v", count, err)
		}
	})
}

func TestPostgresBookingRepository_ExclusionConstraint(t *testing.T) {
	s := postgresStore(t)
	s.add(t, s.room.ID, morning, morning.Add(time.Hour), model.StatusConfirmed)

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		status  model.BookingStatus
		wantErr error
	}{
		{"overlapping pending", morning.Add(30 * time.Minute), morning.Add(90 * time.Minute), model.StatusPending, db.ErrExclusionViolation},
		{"identical confirmed", morning, morning.Add(time.Hour), model.StatusConfirmed, db.ErrExclusionViolation},
		{"adjacent", morning.Add(time.Hour), morning.Add(2 * time.Hour), model.StatusPending, nil},
		{"overlapping cancelled", morning, morning.Add(time.Hour), model.StatusCancelled, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := model.NewBooking(s.room.ID, "Sync", "team@example.com", tt.start, tt.end)
			if err != nil {
				t.Fatalf("NewBooking() error: %v", err)
			}
			b.Status = tt.status

			err = s.bookings.Create(context.Background(), b)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Create() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresBookingRepository_ExclusionOnReactivation(t *testing.T) {
	s := postgresStore(t)
	s.add(t, s.room.ID, morning, morning.Add(time.Hour), model.StatusConfirmed)
	cancelled := s.add(t, s.room.ID, morning, morning.Add(time.Hour), model.StatusCancelled)

	cancelled.Status = model.StatusPending
	if err := s.bookings.Update(context.Background(), cancelled); !errors.Is(err, db.ErrExclusionViolation) {
		t.Errorf("Update() error = %v, want ErrExclusionViolation", err)
	}
}

func TestPostgresBookingRepository_LockTimeout(t *testing.T) {
	s := postgresStore(t)

	locked := make(chan struct{})
	release := make(chan struct{})
	holder := make(chan error, 1)
	go func() {
		holder <- s.tx.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
			if _, err := s.rooms.FindByIDForUpdate(ctx, s.room.ID); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	err := s.tx.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		_, err := s.rooms.FindByIDForUpdate(ctx, s.room.ID)
		return err
	})
	close(release)

	if !errors.Is(err, db.ErrLockTimeout) {
		t.Errorf("second lock error = %v, want ErrLockTimeout", err)
	}
	if err := <-holder; err != nil {
		t.Errorf("lock holder error: %v", err)
	}
}
