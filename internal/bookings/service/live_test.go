package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"huddle/internal/bookings/repository"
	"huddle/internal/bookings/validator"
	"huddle/internal/events"
	roomsrepository "huddle/internal/rooms/repository"
	"huddle/internal/testutil"
	"huddle/pkg/clock"
	"huddle/pkg/db"
	mongodb "huddle/pkg/db/mongo"
	"huddle/pkg/db/postgres"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/logger"
	"huddle/pkg/model"
)

func newLiveFixture(t *testing.T, repo repository.BookingRepository, rooms roomsrepository.RoomRepository, tx db.TransactionManager, clk *clock.Manual) *fixture {
	t.Helper()
	log := logger.Discard()
	recorder := &events.Recorder{}
	return &fixture{
		svc:      NewBookingService(repo, rooms, tx, validator.NewBookingValidator(clk, log), clk, recorder, log),
		repo:     repo,
		rooms:    rooms,
		clock:    clk,
		recorder: recorder,
	}
}

func postgresFixture(t *testing.T, lockTimeout time.Duration, wrap func(repository.BookingRepository) repository.BookingRepository) *fixture {
	t.Helper()
	pg := testutil.NewPostgresHelper(t, "bookings_service")
	clk := clock.NewManual(startOfDay)
	repo := repository.NewPostgresBookingRepository(pg.DB, clk)
	if wrap != nil {
		repo = wrap(repo)
	}
	rooms := roomsrepository.NewPostgresRoomRepository(pg.DB, clk)
	return newLiveFixture(t, repo, rooms, postgres.NewTransactionManager(pg.DB, lockTimeout), clk)
}

func mongoFixture(t *testing.T) *fixture {
	t.Helper()
	m := testutil.NewMongoHelper(t, "bookings_service")
	clk := clock.NewManual(startOfDay)
	repo := repository.NewMongoBookingRepository(m.Database, clk)
	rooms := roomsrepository.NewMongoRoomRepository(m.Database, clk)
	return newLiveFixture(t, repo, rooms, mongodb.NewTransactionManager(m.Client, 10*time.Second), clk)
}

func TestLiveStore_ConcurrentCreatesOneWins(t *testing.T) {
	drivers := map[string]func(t *testing.T) *fixture{
		"postgres": func(t *testing.T) *fixture { return postgresFixture(t, 5*time.Second, nil) },
		"mongo":    mongoFixture,
	}

	for name, build := range drivers {
		t.Run(name, func(t *testing.T) {
			f := build(t)
			room := f.room(t, "Everest", true)

			const workers = 5
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
				others    []error
			)
			start := make(chan struct{})
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := f.svc.Create(context.Background(), request(room.ID, nine, nine.Add(time.Hour)))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case apperrors.HasCode(err, apperrors.CodeBookingConflict):
						conflicts++
					default:
						others = append(others, err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if successes != 1 || conflicts != workers-1 || len(others) != 0 {
				t.Errorf("successes=%d conflicts=%d others=%v", successes, conflicts, others)
			}

			count, err := f.svc.CountActive(context.Background(), room.ID)
			if err != nil || count != 1 {
				t.Errorf("CountActive() = %d, %v", count, err)
			}
		})
	}
}

// blindRepository reports no overlaps, leaving the store's own constraint as
// the only guard.
type blindRepository struct {
	repository.BookingRepository
}

func (blindRepository) ExistsOverlapping(context.Context, string, time.Time, time.Time, string) (bool, error) {
	return false, nil
}

func TestLiveStore_ExclusionViolationIsBookingConflict(t *testing.T) {
	f := postgresFixture(t, time.Second, func(r repository.BookingRepository) repository.BookingRepository {
		return blindRepository{r}
	})
	room := f.room(t, "Everest", true)
	f.book(t, room.ID, nine, nine.Add(time.Hour))

	_, err := f.svc.Create(context.Background(), request(room.ID, nine.Add(30*time.Minute), nine.Add(90*time.Minute)))
	assertCode(t, err, apperrors.CodeBookingConflict)

	appErr := apperrors.AsAppError(err)
	if appErr.Details["room_id"] != room.ID {
		t.Errorf("details = %v", appErr.Details)
	}

	adjacent, err := f.svc.Create(context.Background(), request(room.ID, nine.Add(time.Hour), nine.Add(2*time.Hour)))
	if err != nil || adjacent.Status != model.StatusPending {
		t.Errorf("adjacent Create() = %v, %v", adjacent, err)
	}
}

func TestLiveStore_RoomLockTimeoutIsBusy(t *testing.T) {
	f := postgresFixture(t, 100*time.Millisecond, nil)
	room := f.room(t, "Everest", true)

	svc, ok := f.svc.(*bookingService)
	if !ok {
		t.Fatalf("unexpected service type %T", f.svc)
	}

	locked := make(chan struct{})
	release := make(chan struct{})
	holder := make(chan error, 1)
	go func() {
		holder <- svc.txManager.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
			_, err := f.rooms.FindByIDForUpdate(ctx, room.ID)
			close(locked)
			if err != nil {
				return err
			}
			<-release
			return nil
		})
	}()
	<-locked

	_, err := f.svc.Create(context.Background(), request(room.ID, nine, nine.Add(time.Hour)))
	close(release)
	assertCode(t, err, apperrors.CodeBusy)

	if err := <-holder; err != nil {
		t.Fatalf("lock holder error: %v", err)
	}

	if _, err := f.svc.Create(context.Background(), request(room.ID, nine, nine.Add(time.Hour))); err != nil {
		t.Errorf("Create() after the lock is released: %v", err)
	}
}
