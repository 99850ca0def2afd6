package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

// CountSessionRepository puerto de persistencia para sesiones de conteo y su historial.
type CountSessionRepository interface {
	Create(ctx context.Context, session *entity.CountSession) error
	// GetByID devuelve nil, nil si la sesión no existe.
	GetByID(ctx context.Context, id string) (*entity.CountSession, error)
	// GetForReview lee la sesión bloqueándola en modo compartido (SELECT ... FOR SHARE).
	// Aprobar y contabilizar la usan para que una cancelación espere a que terminen. nil, nil si no existe.
	GetForReview(ctx context.Context, id string) (*entity.CountSession, error)
	// LockForCapture bloquea la sesión en modo compartido (SELECT ... FOR SHARE) y devuelve su estado.
	// Las capturas concurrentes no se bloquean entre sí; una cancelación sí espera.
	LockForCapture(ctx context.Context, id string) (status string, err error)
	// MarkSnapshot fija snapshot_at con el reloj del almacenamiento solo si aún es NULL.
	// Devuelve el instante fijado, o false si ya existía línea base.
	MarkSnapshot(ctx context.Context, id string) (time.Time, bool, error)
	// UpdateStatus aplica la transición solo si el estado actual está en from (actualización condicional).
	UpdateStatus(ctx context.Context, id string, from []string, to string, at time.Time) (bool, error)
	ListByBranch(ctx context.Context, branchID, status string, limit, offset int) ([]*entity.CountSession, error)
	AppendEvent(ctx context.Context, event *entity.CountSessionEvent) error
	ListEvents(ctx context.Context, sessionID string) ([]*entity.CountSessionEvent, error)
}
