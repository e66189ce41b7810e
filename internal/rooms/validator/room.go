package validator

import (
	"fmt"

	apperrors "huddle/pkg/errors"
	"huddle/pkg/logger"
	"huddle/pkg/model"
	"huddle/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type RoomValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRoomValidator(log *logger.Logger) *RoomValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize room validator", "error", err)
	}

	return &RoomValidator{
		validate: v,
		logger:   log,
	}
}

func (v *RoomValidator) Validate(req *model.CreateRoomRequest) error {
	return validation.Struct(v.validate, req)
}

// ValidateUpdate rejects empty edits and explicit nulls on fields that
// cannot be cleared, then applies the field rules to the present values.
func (v *RoomValidator) ValidateUpdate(update *model.RoomUpdate) error {
	if update.IsEmpty() {
		return apperrors.InvalidArgument("Update must contain at least one field")
	}

	nulls := map[string]bool{
		"name":     update.Name.IsNull(),
		"capacity": update.Capacity.IsNull(),
		"active":   update.Active.IsNull(),
	}
	for _, field := range []string{"name", "capacity", "active"} {
		if nulls[field] {
			return apperrors.InvalidArgument(fmt.Sprintf("Field '%s' cannot be null", field))
		}
	}

	return validation.Struct(v.validate, update)
}
