package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

var _ repository.StockLedgerRepository = (*StockLedgerRepo)(nil)

// StockLedgerRepo implementación de StockLedgerRepository sobre PostgreSQL (usable con pool o tx).
// Solo inserta; el índice único parcial uq_stock_ledger_count_line garantiza una entrada por línea.
type StockLedgerRepo struct {
	q Querier
}

// NewStockLedgerRepository construye el adaptador del libro. Pasar pool o tx (Querier).
func NewStockLedgerRepository(q Querier) *StockLedgerRepo {
	return &StockLedgerRepo{q: q}
}

// InsertIdempotent inserta la entrada; si la referencia ya existe no hace nada y devuelve false.
// created_at lo pone la base (clock_timestamp) para comparar con snapshot_at en un único reloj.
func (r *StockLedgerRepo) InsertIdempotent(ctx context.Context, e *entity.StockLedgerEntry) (bool, error) {
	cmd, err := r.q.Exec(ctx, `
		INSERT INTO stock_ledger (id, product_code_version_id, branch_id, qty_change, reason,
			reference_type, reference_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, clock_timestamp())
		ON CONFLICT (reference_type, reference_id) WHERE reference_type = 'count_line' DO NOTHING`,
		e.ID, e.ProductCodeVersionID, e.BranchID, e.QtyChange, e.Reason,
		e.ReferenceType, e.ReferenceID, e.CreatedBy,
	)
	if err != nil {
		return false, fmt.Errorf("insert stock ledger entry: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// ListByReferences devuelve las entradas con el tipo de referencia dado y cualquiera de los IDs.
func (r *StockLedgerRepo) ListByReferences(ctx context.Context, referenceType string, referenceIDs []string) ([]*entity.StockLedgerEntry, error) {
	list := []*entity.StockLedgerEntry{}
	if len(referenceIDs) == 0 {
		return list, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, product_code_version_id, branch_id, qty_change, reason, reference_type, reference_id, created_by, created_at
		FROM stock_ledger
		WHERE reference_type = $1 AND reference_id = ANY($2)
		ORDER BY created_at, id`,
		referenceType, referenceIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock ledger by references: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e entity.StockLedgerEntry
		if err := rows.Scan(
			&e.ID, &e.ProductCodeVersionID, &e.BranchID, &e.QtyChange, &e.Reason,
			&e.ReferenceType, &e.ReferenceID, &e.CreatedBy, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock ledger entry: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// LastMovementAfter busca el movimiento más reciente posterior a after sobre productos con línea en la sesión.
// Los ajustes de las propias líneas de la sesión no cuentan como conflicto.
func (r *StockLedgerRepo) LastMovementAfter(ctx context.Context, sessionID, branchID string, after time.Time) (*time.Time, error) {
	var last *time.Time
	err := r.q.QueryRow(ctx, `
		SELECT MAX(l.created_at)
		FROM stock_ledger l
		WHERE l.branch_id = $2
		  AND l.created_at > $3
		  AND l.product_code_version_id IN (SELECT product_code_version_id FROM count_lines WHERE session_id = $1)
		  AND NOT (l.reference_type = 'count_line'
		           AND l.reference_id IN (SELECT id FROM count_lines WHERE session_id = $1))`,
		sessionID, branchID, after,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last movement after snapshot: %w", err)
	}
	return last, nil
}
