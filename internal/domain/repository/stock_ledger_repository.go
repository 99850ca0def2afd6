package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

// StockLedgerRepository puerto hacia el libro de stock (append-only).
// Este subsistema solo escribe ajustes de conteo; nunca modifica entradas previas.
type StockLedgerRepository interface {
	// InsertIdempotent inserta la entrada salvo que ya exista otra con la misma referencia.
	// Devuelve false (sin error) si la referencia ya estaba contabilizada.
	InsertIdempotent(ctx context.Context, entry *entity.StockLedgerEntry) (bool, error)
	ListByReferences(ctx context.Context, referenceType string, referenceIDs []string) ([]*entity.StockLedgerEntry, error)
	// LastMovementAfter devuelve el created_at más reciente de un movimiento posterior a after
	// sobre productos con línea en la sesión, excluyendo los ajustes de las propias líneas.
	// nil si no hubo movimientos.
	LastMovementAfter(ctx context.Context, sessionID, branchID string, after time.Time) (*time.Time, error)
}
