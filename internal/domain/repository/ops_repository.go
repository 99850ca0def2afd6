package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ValuationResult valorización de la existencia de una sucursal.
type ValuationResult struct {
	BranchID       string
	Products       int
	UnitsOnHand    decimal.Decimal
	ValuationCents decimal.Decimal // Σ existencia × costo vigente
}

// LowStockItem producto cuyo disponible (existencia - reservado) está bajo el punto de reorden.
type LowStockItem struct {
	ProductCodeVersionID string
	Code                 string
	Description          string
	OnHand               decimal.Decimal
	Reserved             decimal.Decimal
	Available            decimal.Decimal
	ReorderPoint         decimal.Decimal
}

// MovementSummary agregado de movimientos del libro por razón.
type MovementSummary struct {
	Reason    string
	Entries   int
	NetChange decimal.Decimal
}

// SessionHistoryItem fila del historial de sesiones de conteo.
type SessionHistoryItem struct {
	SessionID      string
	BranchID       string
	Scope          string
	Status         string
	Lines          int
	ApprovedLines  int
	LastTransition *time.Time
	LastActorID    string
	CreatedAt      time.Time
}

// OpsRepository consultas de solo lectura para el tablero operativo.
// Puede apuntar a una réplica con retraso; la lectura eventual es aceptable.
type OpsRepository interface {
	// Valuation devuelve una fila por sucursal; branchID vacío = todas (rollup).
	Valuation(ctx context.Context, branchID string) ([]ValuationResult, error)
	LowStock(ctx context.Context, branchID string, limit int) ([]LowStockItem, error)
	Movements(ctx context.Context, branchID string, from, to time.Time) ([]MovementSummary, error)
	SessionHistory(ctx context.Context, branchID string, limit, offset int) ([]SessionHistoryItem, error)
}
