// Package ops contiene el modelo de lectura operativo: valorización, bajo stock,
// movimientos del día e historial de sesiones de conteo.
package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

const (
	defaultLowStockLimit = 20
	sessionHistoryLimit  = 20
)

// DashboardUseCase arma el tablero operativo.
//
// Fuente de datos: OpsRepository (consultas read-only, normalmente sobre la réplica).
// Los datos pueden llegar con retraso; nunca se usan para decidir una contabilización.
type DashboardUseCase struct {
	opsRepo       repository.OpsRepository
	lowStockLimit int
	now           func() time.Time
}

// NewDashboardUseCase construye el caso de uso. lowStockLimit <= 0 usa el valor por defecto.
func NewDashboardUseCase(opsRepo repository.OpsRepository, lowStockLimit int) *DashboardUseCase {
	if lowStockLimit <= 0 {
		lowStockLimit = defaultLowStockLimit
	}
	return &DashboardUseCase{opsRepo: opsRepo, lowStockLimit: lowStockLimit, now: time.Now}
}

// GetDashboard construye el OpsDashboardResponse; branchID vacío = todas las sucursales.
//
// Cuatro consultas en paralelo:
//  1. Valuation(branch)             → Branches + TotalValuation
//  2. LowStock(branch, limit)       → LowStock
//  3. Movements(branch, hoy)        → TodayMovements
//  4. SessionHistory(branch, 20, 0) → SessionHistory
func (uc *DashboardUseCase) GetDashboard(ctx context.Context, branchID string) (*dto.OpsDashboardResponse, error) {
	now := uc.now()

	// Hoy: 00:00:00 – 24:00:00 (exclusivo)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayEnd := todayStart.Add(24 * time.Hour)

	var (
		valuation []repository.ValuationResult
		lowStock  []repository.LowStockItem
		movements []repository.MovementSummary
		history   []repository.SessionHistoryItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if valuation, err = uc.opsRepo.Valuation(gctx, branchID); err != nil {
			return fmt.Errorf("dashboard: valorización: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if lowStock, err = uc.opsRepo.LowStock(gctx, branchID, uc.lowStockLimit); err != nil {
			return fmt.Errorf("dashboard: bajo stock: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if movements, err = uc.opsRepo.Movements(gctx, branchID, todayStart, todayEnd); err != nil {
			return fmt.Errorf("dashboard: movimientos de hoy: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if history, err = uc.opsRepo.SessionHistory(gctx, branchID, sessionHistoryLimit, 0); err != nil {
			return fmt.Errorf("dashboard: historial de sesiones: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &dto.OpsDashboardResponse{
		BranchID:       branchID,
		GeneratedAt:    now.UTC(),
		TotalValuation: decimal.Zero,
		Branches:       make([]dto.BranchRollupDTO, 0, len(valuation)),
		LowStock:       make([]dto.LowStockDTO, 0, len(lowStock)),
		TodayMovements: make([]dto.MovementSummaryDTO, 0, len(movements)),
		SessionHistory: make([]dto.SessionHistoryDTO, 0, len(history)),
	}
	for _, v := range valuation {
		out.TotalValuation = out.TotalValuation.Add(v.ValuationCents)
		out.Branches = append(out.Branches, dto.BranchRollupDTO{
			BranchID:       v.BranchID,
			Products:       v.Products,
			UnitsOnHand:    v.UnitsOnHand,
			ValuationCents: v.ValuationCents,
		})
	}
	for _, l := range lowStock {
		out.LowStock = append(out.LowStock, dto.LowStockDTO{
			ProductCodeVersionID: l.ProductCodeVersionID,
			Code:                 l.Code,
			Description:          l.Description,
			OnHand:               l.OnHand,
			Reserved:             l.Reserved,
			Available:            l.Available,
			ReorderPoint:         l.ReorderPoint,
		})
	}
	for _, m := range movements {
		out.TodayMovements = append(out.TodayMovements, dto.MovementSummaryDTO{
			Reason:    m.Reason,
			Entries:   m.Entries,
			NetChange: m.NetChange,
		})
	}
	for _, h := range history {
		out.SessionHistory = append(out.SessionHistory, dto.SessionHistoryDTO{
			SessionID:      h.SessionID,
			BranchID:       h.BranchID,
			Scope:          h.Scope,
			Status:         h.Status,
			Lines:          h.Lines,
			ApprovedLines:  h.ApprovedLines,
			LastTransition: h.LastTransition,
			LastActorID:    h.LastActorID,
			CreatedAt:      h.CreatedAt,
		})
	}
	return out, nil
}
