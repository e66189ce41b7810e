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

var byStartAsc = bson.D{{Key: "start_time", Value: 1}}

type mongoBookingRepository struct {
	collection *mongo.Collection
	clock      clock.Clock
}

func NewMongoBookingRepository(database *mongo.Database, clk clock.Clock) BookingRepository {
	return &mongoBookingRepository{
		collection: database.Collection(CollectionName),
		clock:      clk,
	}
}

func (r *mongoBookingRepository) now() time.Time {
	return r.clock.Now().UTC().Truncate(time.Millisecond)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongodb.WithTimeout(ctx, writeTimeout)
	defer cancel()

	assignID(booking)
	booking.Stamp(r.now())

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return mongodb.Classify(err, "failed to create booking")
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, readTimeout)
	defer cancel()

	var booking model.Booking
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

// FindByIDForUpdate writes the booking's lock counter so that concurrent
// transactions touching the same booking conflict and are retried.
func (r *mongoBookingRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"lock_seq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	if err := validateID(booking.ID); err != nil {
		return err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, writeTimeout)
	defer cancel()

	now := r.now()
	filter := bson.M{"_id": booking.ID, "version": booking.Version}
	update := bson.M{
		"$set": bson.M{
			"room_id":    booking.RoomID,
			"title":      booking.Title,
			"start_time": booking.StartTime,
			"end_time":   booking.EndTime,
			"status":     booking.Status,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return mongodb.Classify(err, "failed to update booking")
	}
	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": booking.ID})
		if err != nil {
			return fmt.Errorf("failed to count bookings: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("booking %s: %w", booking.ID, db.ErrStaleVersion)
		}
		return notFound(booking.ID)
	}

	booking.Touch(now)
	return nil
}

func overlapFilter(roomID string, start, end time.Time, excludeID string) bson.M {
	filter := bson.M{
		"room_id":    roomID,
		"status":     bson.M{"$in": activeStatusStrings()},
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

func (r *mongoBookingRepository) ExistsOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) (bool, error) {
	count, err := r.count(ctx, overlapFilter(roomID, start, end, excludeID), 1)
	return count > 0, err
}

func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	return r.find(ctx, overlapFilter(roomID, start, end, excludeID), byStartAsc)
}

func (r *mongoBookingRepository) FindByRoomAndRange(ctx context.Context, roomID string, from, to time.Time) ([]*model.Booking, error) {
	filter := bson.M{
		"room_id":    roomID,
		"start_time": bson.M{"$lt": to},
		"end_time":   bson.M{"$gt": from},
	}
	return r.find(ctx, filter, byStartAsc)
}

func (r *mongoBookingRepository) FindActiveByRoom(ctx context.Context, roomID string, now time.Time) ([]*model.Booking, error) {
	return r.find(ctx, activeFilter(roomID, now), byStartAsc)
}

func (r *mongoBookingRepository) FindByOrganizerEmail(ctx context.Context, email string) ([]*model.Booking, error) {
	return r.find(ctx, bson.M{"organizer_email": email}, bson.D{{Key: "start_time", Value: -1}})
}

func (r *mongoBookingRepository) FindByStatus(ctx context.Context, status model.BookingStatus) ([]*model.Booking, error) {
	return r.find(ctx, bson.M{"status": status}, byStartAsc)
}

func (r *mongoBookingRepository) CountActive(ctx context.Context, roomID string, now time.Time) (int64, error) {
	return r.count(ctx, activeFilter(roomID, now), 0)
}

func activeFilter(roomID string, now time.Time) bson.M {
	return bson.M{
		"room_id":  roomID,
		"status":   bson.M{"$in": activeStatusStrings()},
		"end_time": bson.M{"$gt": now},
	}
}

func (r *mongoBookingRepository) BulkMarkExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, writeTimeout)
	defer cancel()

	filter := bson.M{
		"status":   bson.M{"$in": activeStatusStrings()},
		"end_time": bson.M{"$lt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.StatusExpired,
			"updated_at": r.now(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoBookingRepository) count(ctx context.Context, filter bson.M, limit int64) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, readTimeout)
	defer cancel()

	opts := options.Count()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	count, err := r.collection.CountDocuments(ctx, filter, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, readTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	bookings := []*model.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}
