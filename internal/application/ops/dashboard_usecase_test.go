package ops_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/application/ops"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/memory"
	"github.com/jhoicas/stockcount-api/pkg/logger"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	s.AddBranch(entity.Branch{ID: "B1", Name: "Centro"})
	s.AddBranch(entity.Branch{ID: "B2", Name: "Norte"})
	s.AddProduct(entity.ProductCodeVersion{ID: "P1", Code: "ANI-001", Description: "Anillo", CostCents: 1000, ReorderPoint: decimal.NewFromInt(3)})
	s.AddProduct(entity.ProductCodeVersion{ID: "P2", Code: "CAD-002", Description: "Cadena", CostCents: 250})
	s.AddUser(entity.User{ID: "sup", BranchID: "B1", Role: entity.RoleSupervisor, Active: true})

	yesterday := time.Now().Add(-48 * time.Hour)
	s.RecordMovement("B1", "P1", decimal.NewFromInt(4), "purchase", yesterday)
	s.RecordMovement("B1", "P2", decimal.NewFromInt(10), "purchase", yesterday)
	s.RecordMovement("B2", "P1", decimal.NewFromInt(1), "purchase", yesterday)
	s.RecordMovement("B1", "P2", decimal.NewFromInt(-2), "sale", time.Now())
	s.SetReserved("B1", "P1", decimal.NewFromInt(2))
	return s
}

func TestGetDashboard_AllBranches(t *testing.T) {
	store := seededStore(t)
	uc := ops.NewDashboardUseCase(store.Ops(), 0)

	res, err := uc.GetDashboard(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, res.Branches, 2)
	assert.Equal(t, "B1", res.Branches[0].BranchID)
	// B1: 4×1000 + 8×250 = 6000; B2: 1×1000
	assert.True(t, res.Branches[0].ValuationCents.Equal(decimal.NewFromInt(6000)))
	assert.True(t, res.Branches[1].ValuationCents.Equal(decimal.NewFromInt(1000)))
	assert.True(t, res.TotalValuation.Equal(decimal.NewFromInt(7000)))

	// P1 en todas las sucursales: 5 - 2 reservadas = 3, no está por debajo de 3.
	assert.Empty(t, res.LowStock)

	require.Len(t, res.TodayMovements, 1)
	assert.Equal(t, "sale", res.TodayMovements[0].Reason)
	assert.True(t, res.TodayMovements[0].NetChange.Equal(decimal.NewFromInt(-2)))
}

func TestGetDashboard_BranchLowStockAndHistory(t *testing.T) {
	store := seededStore(t)
	log := logger.Nop()
	snapshot := count.NewSnapshotService(store, store.Sessions(), store.Ledger(), store.Catalog(), count.NopMetrics{}, log)
	poster := count.NewLedgerPoster(store, count.NopMetrics{}, log)
	sessions := count.NewSessionUseCase(store, store.Sessions(), store.Catalog(), snapshot, poster, count.NopMetrics{}, log)
	view, err := sessions.CreateSession(context.Background(), count.CreateSessionInputDTO{
		BranchID: "B1", Scope: entity.ScopeFull, CreatedBy: "sup",
	})
	require.NoError(t, err)
	_, err = sessions.TransitionStatus(context.Background(), view.Session.ID, entity.SessionStatusReview, "sup")
	require.NoError(t, err)

	uc := ops.NewDashboardUseCase(store.Ops(), 10)
	res, err := uc.GetDashboard(context.Background(), "B1")
	require.NoError(t, err)

	require.Len(t, res.LowStock, 1)
	low := res.LowStock[0]
	assert.Equal(t, "P1", low.ProductCodeVersionID)
	assert.True(t, low.Available.Equal(decimal.NewFromInt(2)))

	require.Len(t, res.SessionHistory, 1)
	h := res.SessionHistory[0]
	assert.Equal(t, entity.SessionStatusReview, h.Status)
	assert.Equal(t, 2, h.Lines)
	assert.Equal(t, 0, h.ApprovedLines)
	assert.Equal(t, "sup", h.LastActorID)
	require.NotNil(t, h.LastTransition)
}

type failingOps struct {
	repository.OpsRepository
}

func (failingOps) LowStock(context.Context, string, int) ([]repository.LowStockItem, error) {
	return nil, errors.New("réplica caída")
}

func TestGetDashboard_PropagatesErrors(t *testing.T) {
	store := seededStore(t)
	uc := ops.NewDashboardUseCase(failingOps{OpsRepository: store.Ops()}, 0)

	_, err := uc.GetDashboard(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bajo stock")
}
