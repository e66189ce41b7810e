package service

import (
	"context"
	"errors"
	"fmt"

	"huddle/internal/events"
	roomserrors "huddle/internal/rooms/errors"
	"huddle/internal/rooms/repository"
	"huddle/internal/rooms/validator"
	"huddle/pkg/db"
	apperrors "huddle/pkg/errors"
	"huddle/pkg/logger"
	"huddle/pkg/model"
	"huddle/pkg/sanitizer"
	"huddle/pkg/validation"
)

type RoomService interface {
	Create(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error)
	GetByID(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Room, error)
	ListAvailable(ctx context.Context, minCapacity int) ([]*model.Room, error)
	Update(ctx context.Context, id string, update *model.RoomUpdate) (*model.Room, error)
	Deactivate(ctx context.Context, id string) (*model.Room, error)
	Activate(ctx context.Context, id string) (*model.Room, error)
}

type roomService struct {
	repo      repository.RoomRepository
	txManager db.TransactionManager
	validator *validator.RoomValidator
	publisher events.Publisher
	log       *logger.Logger
}

func NewRoomService(
	repo repository.RoomRepository,
	txManager db.TransactionManager,
	validator *validator.RoomValidator,
	publisher events.Publisher,
	log *logger.Logger,
) RoomService {
	return &roomService{
		repo:      repo,
		txManager: txManager,
		validator: validator,
		publisher: publisher,
		log:       log,
	}
}

func (s *roomService) Create(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error) {
	req.Name = sanitizer.NormalizeName(req.Name)
	req.Description = sanitizer.SanitizeDescription(req.Description)

	if err := s.validate(ctx, s.validator.Validate(req)); err != nil {
		return nil, err
	}

	room, err := model.NewRoom(req.Name, req.Capacity, req.Description)
	if err != nil {
		return nil, ruleToAppError(err)
	}

	exists, err := s.repo.ExistsByName(ctx, room.Name)
	if err != nil {
		s.log.WithContext(ctx).Error("Failed to check room name", "name", room.Name, "error", err)
		return nil, apperrors.Internal("Failed to create room", err)
	}
	if exists {
		return nil, apperrors.Duplicate("Room", "name", room.Name)
	}

	if err := s.repo.Create(ctx, room); err != nil {
		return nil, s.mapError(ctx, err, room, "Failed to create room")
	}

	s.log.WithContext(ctx).Info("Room created successfully",
		"id", room.ID,
		"name", room.Name,
		"capacity", room.Capacity,
	)
	s.publish(ctx, events.RoomCreated, room)
	return room, nil
}

func (s *roomService) GetByID(ctx context.Context, id string) (*model.Room, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(ctx, err, &model.Room{ID: id}, "Failed to retrieve room")
	}
	return room, nil
}

func (s *roomService) List(ctx context.Context, activeOnly bool) ([]*model.Room, error) {
	var (
		rooms []*model.Room
		err   error
	)
	if activeOnly {
		rooms, err = s.repo.FindActive(ctx)
	} else {
		rooms, err = s.repo.FindAll(ctx)
	}
	if err != nil {
		s.log.WithContext(ctx).Error("Failed to list rooms", "active_only", activeOnly, "error", err)
		return nil, apperrors.Internal("Failed to retrieve rooms", err)
	}
	return rooms, nil
}

func (s *roomService) ListAvailable(ctx context.Context, minCapacity int) ([]*model.Room, error) {
	if minCapacity <= 0 {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("Minimum capacity must be positive, got %d", minCapacity))
	}

	rooms, err := s.repo.FindActiveWithMinCapacity(ctx, minCapacity)
	if err != nil {
		s.log.WithContext(ctx).Error("Failed to list rooms by capacity", "min_capacity", minCapacity, "error", err)
		return nil, apperrors.Internal("Failed to retrieve rooms", err)
	}
	return rooms, nil
}

func (s *roomService) Update(ctx context.Context, id string, update *model.RoomUpdate) (*model.Room, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}
	if update.Name.HasValue() {
		update.Name.Value = sanitizer.NormalizeName(update.Name.Value)
	}

	if err := s.validate(ctx, s.validator.ValidateUpdate(update)); err != nil {
		return nil, err
	}

	var room *model.Room
	err = s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if name, ok := update.Name.Get(); ok && name != current.Name {
			exists, err := s.repo.ExistsByName(ctx, name)
			if err != nil {
				return err
			}
			if exists {
				return apperrors.Duplicate("Room", "name", name)
			}
		}

		if err := applyUpdate(current, update); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		room = current
		return nil
	})
	if err != nil {
		target := &model.Room{ID: id, Name: update.Name.Value}
		return nil, s.mapError(ctx, err, target, "Failed to update room")
	}

	s.log.WithContext(ctx).Info("Room updated successfully", "id", room.ID, "version", room.Version)
	s.publish(ctx, events.RoomUpdated, room)
	return room, nil
}

func applyUpdate(room *model.Room, update *model.RoomUpdate) error {
	if name, ok := update.Name.Get(); ok {
		if err := room.Rename(name); err != nil {
			return ruleToAppError(err)
		}
	}
	if capacity, ok := update.Capacity.Get(); ok {
		if err := room.SetCapacity(capacity); err != nil {
			return ruleToAppError(err)
		}
	}
	if update.Description.Set {
		var description *string
		if d, ok := update.Description.Get(); ok {
			description = sanitizer.SanitizeDescription(&d)
		}
		if err := room.SetDescription(description); err != nil {
			return ruleToAppError(err)
		}
	}
	if active, ok := update.Active.Get(); ok {
		if active {
			room.Activate()
		} else {
			room.Deactivate()
		}
	}
	return nil
}

func (s *roomService) Deactivate(ctx context.Context, id string) (*model.Room, error) {
	return s.setActive(ctx, id, false)
}

func (s *roomService) Activate(ctx context.Context, id string) (*model.Room, error) {
	return s.setActive(ctx, id, true)
}

// setActive takes the room lock, so a deactivation waits for in-flight
// bookings on the room and later bookings see the room as unavailable.
func (s *roomService) setActive(ctx context.Context, id string, active bool) (*model.Room, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}

	var room *model.Room
	err = s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if active {
			current.Activate()
		} else {
			current.Deactivate()
		}
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		room = current
		return nil
	})
	if err != nil {
		return nil, s.mapError(ctx, err, &model.Room{ID: id}, "Failed to change room status")
	}

	eventType := events.RoomDeactivated
	if active {
		eventType = events.RoomActivated
	}
	s.log.WithContext(ctx).Info("Room status changed", "id", room.ID, "active", room.Active)
	s.publish(ctx, eventType, room)
	return room, nil
}

func canonicalID(id string) (string, error) {
	if id == "" {
		return "", apperrors.InvalidInput("Room ID cannot be empty")
	}
	canonical, ok := model.CanonicalID(id)
	if !ok {
		return "", apperrors.InvalidInput("Invalid room ID format")
	}
	return canonical, nil
}

func (s *roomService) validate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}

	s.log.WithContext(ctx).Warn("Room validation failed", "error", err)
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Room validation failed", verrs.Details())
	}
	return apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()})
}

func (s *roomService) mapError(ctx context.Context, err error, room *model.Room, message string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, roomserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Room", room.ID)
	case errors.Is(err, roomserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid room ID format")
	case errors.Is(err, db.ErrDuplicateKey):
		return apperrors.Duplicate("Room", "name", room.Name)
	case errors.Is(err, db.ErrStaleVersion):
		return apperrors.Conflict("Room was modified concurrently, retry the request")
	case errors.Is(err, db.ErrLockTimeout):
		s.log.WithContext(ctx).Warn("Room lock wait timed out", "id", room.ID)
		return apperrors.Busy("Room is busy, retry the request")
	}

	s.log.WithContext(ctx).Error(message, "id", room.ID, "error", err)
	return apperrors.Internal(message, err)
}

func ruleToAppError(err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidInterval):
		return apperrors.InvalidInterval(err.Error())
	case errors.Is(err, model.ErrInvalidArgument):
		return apperrors.InvalidArgument(err.Error())
	}
	return apperrors.Internal("Unexpected domain error", err)
}

// publish runs after commit; a failed publish is logged and not returned.
func (s *roomService) publish(ctx context.Context, eventType string, room *model.Room) {
	if err := s.publisher.Publish(ctx, events.Event{Type: eventType, Key: room.ID, Payload: room}); err != nil {
		s.log.WithContext(ctx).Error("Failed to publish room event",
			"type", eventType,
			"id", room.ID,
			"error", err,
		)
	}
}
