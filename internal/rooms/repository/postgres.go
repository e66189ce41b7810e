package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"huddle/pkg/clock"
	"huddle/pkg/db"
	"huddle/pkg/db/postgres"
	"huddle/pkg/model"

	"github.com/jmoiron/sqlx"
)

const roomColumns = `id, name, capacity, description, active, created_at, updated_at, version`

type postgresRoomRepository struct {
	pool  *sqlx.DB
	clock clock.Clock
}

func NewPostgresRoomRepository(pool *sqlx.DB, clk clock.Clock) RoomRepository {
	return &postgresRoomRepository{
		pool:  pool,
		clock: clk,
	}
}

func (r *postgresRoomRepository) now() time.Time {
	return r.clock.Now().UTC().Truncate(time.Microsecond)
}

func (r *postgresRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	assignID(room)
	room.Stamp(r.now())

	query := `INSERT INTO rooms (` + roomColumns + `)
		VALUES (:id, :name, :capacity, :description, :active, :created_at, :updated_at, :version)`
	if _, err := sqlx.NamedExecContext(ctx, postgres.Conn(ctx, r.pool), query, room); err != nil {
		return postgres.Classify(err, "failed to create room")
	}
	return nil
}

func (r *postgresRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	return r.findOne(ctx, id, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`)
}

// FindByIDForUpdate takes a row lock that is held until the surrounding
// transaction ends. The wait is bounded by the transaction's lock_timeout.
func (r *postgresRoomRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Room, error) {
	return r.findOne(ctx, id, `SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`)
}

func (r *postgresRoomRepository) findOne(ctx context.Context, id, query string) (*model.Room, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var room model.Room
	if err := postgres.Conn(ctx, r.pool).GetContext(ctx, &room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, postgres.Classify(err, "failed to find room")
	}
	return &room, nil
}

func (r *postgresRoomRepository) Update(ctx context.Context, room *model.Room) error {
	if err := validateID(room.ID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := r.now()
	result, err := postgres.Conn(ctx, r.pool).ExecContext(ctx, `
		UPDATE rooms
		SET name = $1, capacity = $2, description = $3, active = $4,
			updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`,
		room.Name, room.Capacity, room.Description, room.Active, now, room.ID, room.Version)
	if err != nil {
		return postgres.Classify(err, "failed to update room")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		exists, err := r.ExistsByID(ctx, room.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("room %s: %w", room.ID, db.ErrStaleVersion)
		}
		return notFound(room.ID)
	}

	room.Touch(now)
	return nil
}

func (r *postgresRoomRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, id)
}

func (r *postgresRoomRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE name = $1)`, name)
}

func (r *postgresRoomRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var exists bool
	if err := postgres.Conn(ctx, r.pool).GetContext(ctx, &exists, query, arg); err != nil {
		return false, postgres.Classify(err, "failed to check room existence")
	}
	return exists, nil
}

func (r *postgresRoomRepository) FindAll(ctx context.Context) ([]*model.Room, error) {
	return r.findMany(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name`)
}

func (r *postgresRoomRepository) FindActive(ctx context.Context) ([]*model.Room, error) {
	return r.findMany(ctx, `SELECT `+roomColumns+` FROM rooms WHERE active ORDER BY name`)
}

func (r *postgresRoomRepository) FindActiveWithMinCapacity(ctx context.Context, minCapacity int) ([]*model.Room, error) {
	return r.findMany(ctx, `SELECT `+roomColumns+` FROM rooms
		WHERE active AND capacity >= $1 ORDER BY capacity, name`, minCapacity)
}

func (r *postgresRoomRepository) findMany(ctx context.Context, query string, args ...any) ([]*model.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	rooms := []*model.Room{}
	if err := postgres.Conn(ctx, r.pool).SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, postgres.Classify(err, "failed to list rooms")
	}
	return rooms, nil
}
