package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CaptureInput datos de una captura ya validada por el caso de uso.
type CaptureInput struct {
	SessionID            string
	ProductCodeVersionID string
	Quantity             decimal.Decimal
	Mode                 string
	Comment              string
	ActorID              string
	CostCents            int64
	At                   time.Time
}

// CountLineRepository puerto de persistencia para líneas de conteo.
// Las capturas se aplican como incremento/sobrescritura atómica en el almacenamiento,
// nunca como lectura-modificación-escritura del lado del cliente.
type CountLineRepository interface {
	// InsertBaseline inserta las líneas de la línea base; ignora las que ya existan.
	InsertBaseline(ctx context.Context, lines []*entity.CountLine) error
	// Capture aplica add/set sobre la línea (la crea como inesperada si no existe) y la deja en pending.
	// Devuelve domain.ErrInvalidQuantity si el resultado sería negativo.
	Capture(ctx context.Context, in CaptureInput) (*entity.CountLine, error)
	// Recapture aplica add/set solo si la línea existe y está en recount_requested.
	// Devuelve nil, nil si no hay línea en ese estado.
	Recapture(ctx context.Context, in CaptureInput) (*entity.CountLine, error)
	GetByID(ctx context.Context, id string) (*entity.CountLine, error)
	ListBySession(ctx context.Context, sessionID string) ([]*entity.CountLine, error)
	// ListRecent devuelve las últimas capturas (captured_at DESC).
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.CountLine, error)
	// RequestRecount pasa la línea a recount_requested si no está aprobada.
	RequestRecount(ctx context.Context, lineID, actorID string, at time.Time) (bool, error)
	// Approve marca como aprobadas las líneas que aún no lo estaban y devuelve los IDs ganadores.
	// Dos revisores aprobando la misma línea: uno gana, el otro obtiene un no-op.
	Approve(ctx context.Context, sessionID string, lineIDs []string, reviewerID string, at time.Time) ([]string, error)
	CountNotApproved(ctx context.Context, sessionID string) (int, error)
}
