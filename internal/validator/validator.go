package validator

import (
	"errors"
	"math"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/prepdesk/exam-service/internal/errors"
	"github.com/prepdesk/exam-service/internal/models"
)

// Validator wraps go-playground/validator with the domain's custom rules.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	registerCustomValidators(v)
	return &Validator{validate: v}
}

// Validate validates a struct and converts failures into the API error shape.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.ToValidationErrors(verrs)
		}
		return err
	}
	return nil
}

// Engine exposes the underlying validate instance for one-off rules.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func registerCustomValidators(v *validator.Validate) {
	v.RegisterValidation("exam_category", func(fl validator.FieldLevel) bool {
		return models.ExamCategory(fl.Field().String()).IsValid()
	})

	v.RegisterValidation("section_type", func(fl validator.FieldLevel) bool {
		return models.SectionType(fl.Field().String()).IsValid()
	})

	v.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QType(fl.Field().String()).IsValid()
	})

	v.RegisterValidation("navigation_mode", func(fl validator.FieldLevel) bool {
		return models.NavigationMode(fl.Field().String()).IsValid()
	})

	// Band scores run 0-9 in half-band steps
	v.RegisterValidation("band_score", func(fl validator.FieldLevel) bool {
		band := fl.Field().Float()
		if band < 0 || band > 9 {
			return false
		}
		return math.Mod(band*2, 1) == 0
	})
}
