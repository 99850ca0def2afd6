package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

var _ repository.OpsRepository = (*OpsRepo)(nil)

// OpsRepo consultas de solo lectura para el tablero operativo.
// Normalmente recibe el pool de la réplica; el retraso de replicación es aceptable.
type OpsRepo struct {
	pool *pgxpool.Pool
}

// NewOpsRepository construye el adaptador del tablero.
func NewOpsRepository(pool *pgxpool.Pool) *OpsRepo {
	return &OpsRepo{pool: pool}
}

// Valuation valoriza la existencia por sucursal: Σ existencia × costo vigente.
func (r *OpsRepo) Valuation(ctx context.Context, branchID string) ([]repository.ValuationResult, error) {
	const query = `
	WITH positions AS (
	    SELECT l.branch_id, l.product_code_version_id, SUM(l.qty_change) AS on_hand
	    FROM stock_ledger l
	    WHERE ($1 = '' OR l.branch_id = $1)
	    GROUP BY l.branch_id, l.product_code_version_id
	    HAVING SUM(l.qty_change) <> 0
	)
	SELECT
	    ps.branch_id                               AS branch_id,
	    COUNT(*)                                   AS products,
	    SUM(ps.on_hand)                            AS units_on_hand,
	    SUM(ps.on_hand * COALESCE(p.cost_cents, 0)) AS valuation_cents
	FROM positions ps
	LEFT JOIN product_code_versions p ON p.id = ps.product_code_version_id
	GROUP BY ps.branch_id
	ORDER BY ps.branch_id`

	rows, err := r.pool.Query(ctx, query, branchID)
	if err != nil {
		return nil, fmt.Errorf("ops valuation: %w", err)
	}
	defer rows.Close()

	var out []repository.ValuationResult
	for rows.Next() {
		var v repository.ValuationResult
		if err := rows.Scan(&v.BranchID, &v.Products, &v.UnitsOnHand, &v.ValuationCents); err != nil {
			return nil, fmt.Errorf("scan valuation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LowStock lista productos con disponible (existencia - reservado) por debajo del punto de reorden.
func (r *OpsRepo) LowStock(ctx context.Context, branchID string, limit int) ([]repository.LowStockItem, error) {
	const query = `
	WITH on_hand AS (
	    SELECT product_code_version_id, SUM(qty_change) AS qty
	    FROM stock_ledger
	    WHERE ($1 = '' OR branch_id = $1)
	    GROUP BY product_code_version_id
	),
	reserved AS (
	    SELECT product_code_version_id, SUM(reserved_qty) AS qty
	    FROM stock_reservations
	    WHERE ($1 = '' OR branch_id = $1)
	    GROUP BY product_code_version_id
	)
	SELECT
	    p.id,
	    p.code,
	    p.description,
	    COALESCE(oh.qty, 0)                        AS on_hand,
	    COALESCE(rs.qty, 0)                        AS reserved,
	    COALESCE(oh.qty, 0) - COALESCE(rs.qty, 0)  AS available,
	    p.reorder_point
	FROM product_code_versions p
	LEFT JOIN on_hand  oh ON oh.product_code_version_id = p.id
	LEFT JOIN reserved rs ON rs.product_code_version_id = p.id
	WHERE p.reorder_point > 0
	  AND COALESCE(oh.qty, 0) - COALESCE(rs.qty, 0) < p.reorder_point
	ORDER BY available ASC, p.code
	LIMIT $2`

	rows, err := r.pool.Query(ctx, query, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("ops low stock: %w", err)
	}
	defer rows.Close()

	var out []repository.LowStockItem
	for rows.Next() {
		var it repository.LowStockItem
		if err := rows.Scan(&it.ProductCodeVersionID, &it.Code, &it.Description,
			&it.OnHand, &it.Reserved, &it.Available, &it.ReorderPoint); err != nil {
			return nil, fmt.Errorf("scan low stock: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Movements agrupa los movimientos del libro en [from, to) por razón.
func (r *OpsRepo) Movements(ctx context.Context, branchID string, from, to time.Time) ([]repository.MovementSummary, error) {
	const query = `
	SELECT reason, COUNT(*) AS entries, SUM(qty_change) AS net_change
	FROM stock_ledger
	WHERE ($1 = '' OR branch_id = $1)
	  AND created_at >= $2 AND created_at < $3
	GROUP BY reason
	ORDER BY reason`

	rows, err := r.pool.Query(ctx, query, branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ops movements: %w", err)
	}
	defer rows.Close()

	var out []repository.MovementSummary
	for rows.Next() {
		var m repository.MovementSummary
		if err := rows.Scan(&m.Reason, &m.Entries, &m.NetChange); err != nil {
			return nil, fmt.Errorf("scan movements: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SessionHistory lista sesiones con conteo de líneas y su última transición.
func (r *OpsRepo) SessionHistory(ctx context.Context, branchID string, limit, offset int) ([]repository.SessionHistoryItem, error) {
	const query = `
	SELECT
	    s.id,
	    s.branch_id,
	    s.scope,
	    s.status,
	    (SELECT COUNT(*) FROM count_lines cl WHERE cl.session_id = s.id)                                    AS lines,
	    (SELECT COUNT(*) FROM count_lines cl WHERE cl.session_id = s.id AND cl.review_status = 'approved') AS approved_lines,
	    ev.created_at                                                                                      AS last_transition,
	    COALESCE(ev.actor_id, '')                                                                          AS last_actor_id,
	    s.created_at
	FROM count_sessions s
	LEFT JOIN LATERAL (
	    SELECT e.created_at, e.actor_id
	    FROM count_session_events e
	    WHERE e.session_id = s.id
	    ORDER BY e.created_at DESC, e.id DESC
	    LIMIT 1
	) ev ON true
	WHERE ($1 = '' OR s.branch_id = $1)
	ORDER BY s.created_at DESC, s.id
	LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, branchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ops session history: %w", err)
	}
	defer rows.Close()

	var out []repository.SessionHistoryItem
	for rows.Next() {
		var h repository.SessionHistoryItem
		if err := rows.Scan(&h.SessionID, &h.BranchID, &h.Scope, &h.Status, &h.Lines, &h.ApprovedLines,
			&h.LastTransition, &h.LastActorID, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
