package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpsDashboardResponse respuesta de GET /api/ops/dashboard.
// Lectura eventual (puede venir de una réplica con retraso).
type OpsDashboardResponse struct {
	BranchID       string               `json:"branch_id,omitempty"`
	GeneratedAt    time.Time            `json:"generated_at"`
	TotalValuation decimal.Decimal      `json:"total_valuation_cents"`
	Branches       []BranchRollupDTO    `json:"branches"`
	LowStock       []LowStockDTO        `json:"low_stock"`
	TodayMovements []MovementSummaryDTO `json:"today_movements"`
	SessionHistory []SessionHistoryDTO  `json:"session_history"`
}

// BranchRollupDTO valorización por sucursal.
type BranchRollupDTO struct {
	BranchID       string          `json:"branch_id"`
	Products       int             `json:"products"`
	UnitsOnHand    decimal.Decimal `json:"units_on_hand"`
	ValuationCents decimal.Decimal `json:"valuation_cents"`
}

// LowStockDTO producto bajo punto de reorden.
type LowStockDTO struct {
	ProductCodeVersionID string          `json:"product_code_version_id"`
	Code                 string          `json:"code"`
	Description          string          `json:"description"`
	OnHand               decimal.Decimal `json:"on_hand"`
	Reserved             decimal.Decimal `json:"reserved"`
	Available            decimal.Decimal `json:"available"`
	ReorderPoint         decimal.Decimal `json:"reorder_point"`
}

// MovementSummaryDTO movimientos del día agrupados por razón.
type MovementSummaryDTO struct {
	Reason    string          `json:"reason"`
	Entries   int             `json:"entries"`
	NetChange decimal.Decimal `json:"net_change"`
}

// SessionHistoryDTO fila del historial de sesiones.
type SessionHistoryDTO struct {
	SessionID      string     `json:"session_id"`
	BranchID       string     `json:"branch_id"`
	Scope          string     `json:"scope"`
	Status         string     `json:"status"`
	Lines          int        `json:"lines"`
	ApprovedLines  int        `json:"approved_lines"`
	LastTransition *time.Time `json:"last_transition,omitempty"`
	LastActorID    string     `json:"last_actor_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
