package repository

import (
	"context"
	"fmt"
	"time"

	roomserrors "huddle/internal/rooms/errors"
	"huddle/pkg/model"

	"github.com/google/uuid"
)

const (
	CollectionName = "rooms"
	TableName      = "rooms"

	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
)

// RoomRepository persists rooms. Update is version-checked: it fails with
// db.ErrStaleVersion when the stored version differs from room.Version and
// bumps room.Version on success. FindByIDForUpdate must run inside a
// transaction and holds the room lock until it ends.
type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.Room, error)
	Update(ctx context.Context, room *model.Room) error

	ExistsByID(ctx context.Context, id string) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)

	FindAll(ctx context.Context) ([]*model.Room, error)
	FindActive(ctx context.Context) ([]*model.Room, error)
	FindActiveWithMinCapacity(ctx context.Context, minCapacity int) ([]*model.Room, error)
}

// LockKey names the lock a room is held under by the in-memory driver.
func LockKey(id string) string {
	return "room:" + id
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", roomserrors.ErrInvalidID, id)
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", roomserrors.ErrNotFound, id)
}

func assignID(room *model.Room) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
}
