package http

import (
	"github.com/go-playground/validator/v10"

	countrules "github.com/jhoicas/stockcount-api/internal/domain/count"
)

// requestValidate instancia compartida para los DTOs de entrada.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("variance_direction", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "" || countrules.ValidDirection(fl.Field().String())
	})
}

func validateRequest(v any) error { return requestValidate.Struct(v) }
