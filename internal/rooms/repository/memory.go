package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"huddle/pkg/clock"
	"huddle/pkg/db"
	"huddle/pkg/db/memory"
	"huddle/pkg/model"
)

type memoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]model.Room
	locks *memory.TransactionManager
	clock clock.Clock
}

// NewMemoryRoomRepository keeps rooms in process. Writes made inside a
// transaction of locks are undone when it rolls back.
func NewMemoryRoomRepository(locks *memory.TransactionManager, clk clock.Clock) RoomRepository {
	return &memoryRoomRepository{
		rooms: make(map[string]model.Room),
		locks: locks,
		clock: clk,
	}
}

func cloneRoom(room model.Room) *model.Room {
	if room.Description != nil {
		d := *room.Description
		room.Description = &d
	}
	return &room
}

func (r *memoryRoomRepository) Create(ctx context.Context, room *model.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	assignID(room)
	if _, ok := r.rooms[room.ID]; ok {
		return fmt.Errorf("failed to create room: %w: id %s", db.ErrDuplicateKey, room.ID)
	}
	if r.nameTaken(room.Name, room.ID) {
		return fmt.Errorf("failed to create room: %w: name %s", db.ErrDuplicateKey, room.Name)
	}

	room.Stamp(r.clock.Now())
	r.rooms[room.ID] = *cloneRoom(*room)

	id := room.ID
	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		delete(r.rooms, id)
		r.mu.Unlock()
	})
	return nil
}

func (r *memoryRoomRepository) FindByID(_ context.Context, id string) (*model.Room, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, notFound(id)
	}
	return cloneRoom(room), nil
}

func (r *memoryRoomRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Room, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := r.locks.Lock(ctx, LockKey(id)); err != nil {
		return nil, fmt.Errorf("failed to lock room %s: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

func (r *memoryRoomRepository) Update(ctx context.Context, room *model.Room) error {
	if err := validateID(room.ID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.rooms[room.ID]
	if !ok {
		return notFound(room.ID)
	}
	if previous.Version != room.Version {
		return fmt.Errorf("room %s: %w", room.ID, db.ErrStaleVersion)
	}
	if r.nameTaken(room.Name, room.ID) {
		return fmt.Errorf("failed to update room: %w: name %s", db.ErrDuplicateKey, room.Name)
	}

	room.Touch(r.clock.Now())
	r.rooms[room.ID] = *cloneRoom(*room)

	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		r.rooms[previous.ID] = previous
		r.mu.Unlock()
	})
	return nil
}

func (r *memoryRoomRepository) nameTaken(name, exceptID string) bool {
	for id, room := range r.rooms {
		if id != exceptID && room.Name == name {
			return true
		}
	}
	return false
}

func (r *memoryRoomRepository) ExistsByID(_ context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[id]
	return ok, nil
}

func (r *memoryRoomRepository) ExistsByName(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nameTaken(name, ""), nil
}

func (r *memoryRoomRepository) FindAll(context.Context) ([]*model.Room, error) {
	return r.filter(func(model.Room) bool { return true }, byName), nil
}

func (r *memoryRoomRepository) FindActive(context.Context) ([]*model.Room, error) {
	return r.filter(func(room model.Room) bool { return room.Active }, byName), nil
}

func (r *memoryRoomRepository) FindActiveWithMinCapacity(_ context.Context, minCapacity int) ([]*model.Room, error) {
	return r.filter(func(room model.Room) bool {
		return room.Active && room.Capacity >= minCapacity
	}, byCapacity), nil
}

func byName(a, b *model.Room) bool {
	return a.Name < b.Name
}

func byCapacity(a, b *model.Room) bool {
	if a.Capacity != b.Capacity {
		return a.Capacity < b.Capacity
	}
	return a.Name < b.Name
}

func (r *memoryRoomRepository) filter(keep func(model.Room) bool, less func(a, b *model.Room) bool) []*model.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := []*model.Room{}
	for _, room := range r.rooms {
		if keep(room) {
			rooms = append(rooms, cloneRoom(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return less(rooms[i], rooms[j]) })
	return rooms
}
