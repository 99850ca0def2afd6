package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
// La existencia no se guarda: se deriva sumando el libro.
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// OnHand devuelve las posiciones con existencia distinta de cero; locationScope filtra por ubicación (ILIKE).
func (r *StockRepo) OnHand(ctx context.Context, branchID, locationScope string) ([]entity.StockPosition, error) {
	query := `
		SELECT l.product_code_version_id, l.branch_id, SUM(l.qty_change) AS on_hand,
		       COALESCE(MAX(sr.reserved_qty), 0) AS reserved
		FROM stock_ledger l
		JOIN product_code_versions p ON p.id = l.product_code_version_id
		LEFT JOIN stock_reservations sr
		       ON sr.branch_id = l.branch_id AND sr.product_code_version_id = l.product_code_version_id
		WHERE l.branch_id = $1
		  AND ($2 = '' OR p.location ILIKE '%' || $2 || '%')
		GROUP BY l.product_code_version_id, l.branch_id
		HAVING SUM(l.qty_change) <> 0
		ORDER BY l.product_code_version_id`
	rows, err := r.q.Query(ctx, query, branchID, locationScope)
	if err != nil {
		return nil, fmt.Errorf("stock on hand: %w", err)
	}
	defer rows.Close()

	var list []entity.StockPosition
	for rows.Next() {
		var p entity.StockPosition
		if err := rows.Scan(&p.ProductCodeVersionID, &p.BranchID, &p.OnHand, &p.Reserved); err != nil {
			return nil, fmt.Errorf("scan stock position: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// LockForSnapshot toma SHARE sobre stock_ledger: espera a los INSERT en curso y bloquea los nuevos
// hasta el commit. Los movimientos posteriores reciben created_at (clock_timestamp) mayor que snapshot_at.
func (r *StockRepo) LockForSnapshot(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `LOCK TABLE stock_ledger IN SHARE MODE`); err != nil {
		return fmt.Errorf("lock stock ledger: %w", err)
	}
	return nil
}
