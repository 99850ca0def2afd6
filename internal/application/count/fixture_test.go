package count_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/memory"
	"github.com/jhoicas/stockcount-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture: sucursal B1 con tres productos y dos contadores
// ──────────────────────────────────────────────────────────────────────────────

const (
	branchID   = "B1"
	supervisor = "sup-1"
	counterA   = "cnt-a"
	counterB   = "cnt-b"
	outsider   = "cnt-x"
	inactive   = "cnt-off"
)

type fixture struct {
	store    *memory.Store
	sessions *count.SessionUseCase
	capture  *count.CaptureUseCase
	review   *count.ReviewUseCase
	poster   *count.LedgerPoster
	snapshot *count.SnapshotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddBranch(entity.Branch{ID: branchID, Name: "Centro"})
	store.AddProduct(entity.ProductCodeVersion{ID: "P1", Code: "ANI-001", Description: "Anillo oro 14k", Location: "Vitrina A", CostCents: 1500, ReorderPoint: decimal.NewFromInt(2)})
	store.AddProduct(entity.ProductCodeVersion{ID: "P2", Code: "CAD-002", Description: "Cadena plata", Location: "Vitrina B", CostCents: 200})
	store.AddProduct(entity.ProductCodeVersion{ID: "P3", Code: "REL-003", Description: "Reloj acero", Location: "Bodega", CostCents: 400})
	store.AddProduct(entity.ProductCodeVersion{ID: "P9", Code: "PUL-009", Description: "Pulsera", Location: "Vitrina A", CostCents: 100})
	store.AddUser(entity.User{ID: supervisor, BranchID: branchID, Name: "Supervisora", Role: entity.RoleSupervisor, Active: true})
	store.AddUser(entity.User{ID: counterA, BranchID: branchID, Name: "Contador A", Role: entity.RoleCounter, Active: true})
	store.AddUser(entity.User{ID: counterB, BranchID: branchID, Name: "Contador B", Role: entity.RoleCounter, Active: true})
	store.AddUser(entity.User{ID: outsider, BranchID: branchID, Name: "Externo", Role: entity.RoleCounter, Active: true})
	store.AddUser(entity.User{ID: inactive, BranchID: branchID, Name: "Inactivo", Role: entity.RoleCounter, Active: false})

	past := time.Now().Add(-time.Hour)
	store.RecordMovement(branchID, "P1", decimal.NewFromInt(5), "purchase", past)
	store.RecordMovement(branchID, "P2", decimal.NewFromInt(3), "purchase", past)

	log := logger.Nop()
	metrics := count.NopMetrics{}
	snapshot := count.NewSnapshotService(store, store.Sessions(), store.Ledger(), store.Catalog(), metrics, log)
	poster := count.NewLedgerPoster(store, metrics, log)
	return &fixture{
		store:    store,
		snapshot: snapshot,
		poster:   poster,
		sessions: count.NewSessionUseCase(store, store.Sessions(), store.Catalog(), snapshot, poster, metrics, log),
		capture:  count.NewCaptureUseCase(store, store.Sessions(), store.Lines(), store.Catalog(), metrics, log, 20),
		review:   count.NewReviewUseCase(store, store.Sessions(), store.Lines(), store.Catalog(), snapshot, poster, metrics, log),
	}
}

func (f *fixture) openSession(t *testing.T, in count.CreateSessionInputDTO) *entity.CountSession {
	t.Helper()
	if in.BranchID == "" {
		in.BranchID = branchID
	}
	if in.Scope == "" {
		in.Scope = entity.ScopeFull
	}
	if in.CreatedBy == "" {
		in.CreatedBy = supervisor
	}
	view, err := f.sessions.CreateSession(context.Background(), in)
	require.NoError(t, err)
	return view.Session
}

func (f *fixture) captureQty(t *testing.T, sessionID, productID, actor string, qty int64, mode string) *entity.CountLine {
	t.Helper()
	line, err := f.capture.Capture(context.Background(), count.CaptureInputDTO{
		SessionID:            sessionID,
		ProductCodeVersionID: productID,
		Quantity:             decimal.NewFromInt(qty),
		Mode:                 mode,
		ActorID:              actor,
	})
	require.NoError(t, err)
	return line
}

func (f *fixture) toStatus(t *testing.T, sessionID, status string) *count.SessionView {
	t.Helper()
	view, err := f.sessions.TransitionStatus(context.Background(), sessionID, status, supervisor)
	require.NoError(t, err)
	return view
}

func (f *fixture) lineFor(t *testing.T, sessionID, productID string) *entity.CountLine {
	t.Helper()
	lines, err := f.store.Lines().ListBySession(context.Background(), sessionID)
	require.NoError(t, err)
	for _, l := range lines {
		if l.ProductCodeVersionID == productID {
			return l
		}
	}
	t.Fatalf("sin línea para %s", productID)
	return nil
}

func lineIDs(lines []*entity.CountLine) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	return ids
}

func onHand(t *testing.T, store *memory.Store, productID string) decimal.Decimal {
	t.Helper()
	positions, err := store.Stock().OnHand(context.Background(), branchID, "")
	require.NoError(t, err)
	for _, p := range positions {
		if p.ProductCodeVersionID == productID {
			return p.OnHand
		}
	}
	return decimal.Zero
}
