package domain

import (
	"errors"
	"fmt"
	"time"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrForbidden    = errors.New("acceso denegado")

	// Validación: se devuelven al cliente sin reintento.
	ErrInvalidScope    = errors.New("alcance de conteo inválido")
	ErrInvalidBranch   = errors.New("sucursal desconocida")
	ErrInvalidQuantity = errors.New("cantidad contada inválida")
	ErrUnknownProduct  = errors.New("producto desconocido")

	// Precondiciones de estado: el cliente debe refrescar y reintentar la operación correcta.
	ErrIllegalTransition  = errors.New("transición de estado no permitida")
	ErrSessionNotOpen     = errors.New("la sesión de conteo no está abierta")
	ErrSessionNotInReview = errors.New("la sesión de conteo no está en revisión")
	ErrConflictUnresolved = errors.New("hay movimientos posteriores al snapshot sin resolver")
)

// ConflictError detalla un ErrConflictUnresolved con la fecha del último movimiento
// para que el revisor pueda investigarlo.
type ConflictError struct {
	SessionID      string
	LastMovementAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: sesión %s, último movimiento %s",
		ErrConflictUnresolved.Error(), e.SessionID, e.LastMovementAt.Format(time.RFC3339))
}

// Unwrap permite errors.Is(err, ErrConflictUnresolved).
func (e *ConflictError) Unwrap() error { return ErrConflictUnresolved }
