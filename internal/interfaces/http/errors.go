package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain"
)

// errorMapping código HTTP y código de negocio para un error de dominio.
type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// El orden importa: se usa la primera coincidencia de errors.Is.
var errorMappings = []errorMapping{
	{domain.ErrInvalidScope, fiber.StatusBadRequest, "INVALID_SCOPE"},
	{domain.ErrInvalidBranch, fiber.StatusBadRequest, "INVALID_BRANCH"},
	{domain.ErrInvalidQuantity, fiber.StatusBadRequest, "INVALID_QUANTITY"},
	{domain.ErrUnknownProduct, fiber.StatusBadRequest, "UNKNOWN_PRODUCT"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrIllegalTransition, fiber.StatusConflict, "ILLEGAL_TRANSITION"},
	{domain.ErrSessionNotOpen, fiber.StatusConflict, "SESSION_NOT_OPEN"},
	{domain.ErrSessionNotInReview, fiber.StatusConflict, "SESSION_NOT_IN_REVIEW"},
}

// writeError traduce un error de aplicación a la respuesta HTTP.
// Los errores no reconocidos (fallas de almacenamiento o del libro) salen como un único 500.
func writeError(c *fiber.Ctx, err error) error {
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return c.Status(fiber.StatusConflict).JSON(dto.ConflictErrorResponse{
			Code:           "CONFLICT_UNRESOLVED",
			Message:        err.Error(),
			LastMovementAt: conflict.LastMovementAt,
		})
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno, la operación no se aplicó"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func validationFailed(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func forbiddenBranch(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "sin acceso a la sucursal"})
}

// isInternal indica si el error no corresponde a ningún error de dominio conocido.
func isInternal(err error) bool {
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return false
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return false
		}
	}
	return true
}
