package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"huddle/pkg/clock"
	"huddle/pkg/db"
	mongodb "huddle/pkg/db/mongo"
	"huddle/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRoomRepository struct {
	collection *mongo.Collection
	clock      clock.Clock
}

func NewMongoRoomRepository(database *mongo.Database, clk clock.Clock) RoomRepository {
	return &mongoRoomRepository{
		collection: database.Collection(CollectionName),
		clock:      clk,
	}
}

func (r *mongoRoomRepository) now() time.Time {
	return r.clock.Now().UTC().Truncate(time.Millisecond)
}

func (r *mongoRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := mongodb.WithTimeout(ctx, writeTimeout)
	defer cancel()

	assignID(room)
	room.Stamp(r.now())

	if _, err := r.collection.InsertOne(ctx, room); err != nil {
		return mongodb.Classify(err, "failed to create room")
	}
	return nil
}

func (r *mongoRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, readTimeout)
	defer cancel()

	var room model.Room
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// FindByIDForUpdate writes a lock counter on the room document. Inside a
// session transaction the write conflicts with any other transaction that
// locks the same room, so concurrent writers on one room serialize.
func (r *mongoRoomRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Room, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, writeTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var room model.Room
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"lock_seq": 1}},
		opts,
	).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to lock room: %w", err)
	}
	return &room, nil
}

func (r *mongoRoomRepository) Update(ctx context.Context, room *model.Room) error {
	if err := validateID(room.ID); err != nil {
		return err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := r.now()
	filter := bson.M{"_id": room.ID, "version": room.Version}
	update := bson.M{
		"$set": bson.M{
			"name":        room.Name,
			"capacity":    room.Capacity,
			"description": room.Description,
			"active":      room.Active,
			"updated_at":  now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return mongodb.Classify(err, "failed to update room")
	}
	if result.MatchedCount == 0 {
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

func (r *mongoRoomRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	return r.exists(ctx, bson.M{"_id": id})
}

func (r *mongoRoomRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, bson.M{"name": name})
}

func (r *mongoRoomRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, readTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count rooms: %w", err)
	}
	return count > 0, nil
}

func (r *mongoRoomRepository) FindAll(ctx context.Context) ([]*model.Room, error) {
	return r.find(ctx, bson.M{}, bson.D{{Key: "name", Value: 1}})
}

func (r *mongoRoomRepository) FindActive(ctx context.Context) ([]*model.Room, error) {
	return r.find(ctx, bson.M{"active": true}, bson.D{{Key: "name", Value: 1}})
}

func (r *mongoRoomRepository) FindActiveWithMinCapacity(ctx context.Context, minCapacity int) ([]*model.Room, error) {
	filter := bson.M{"active": true, "capacity": bson.M{"$gte": minCapacity}}
	return r.find(ctx, filter, bson.D{{Key: "capacity", Value: 1}, {Key: "name", Value: 1}})
}

func (r *mongoRoomRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*model.Room, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, readTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	rooms := []*model.Room{}
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return rooms, nil
}
