package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/memory"
)

func newSession(t *testing.T, store *memory.Store) *entity.CountSession {
	t.Helper()
	now := time.Now().UTC()
	s := &entity.CountSession{
		ID: "S1", BranchID: "B1", Scope: entity.ScopeFull, Status: entity.SessionStatusOpen,
		CreatedBy: "sup", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.Sessions().Create(context.Background(), s))
	return s
}

func TestRun_RestauraEstadoSiFalla(t *testing.T) {
	store := memory.NewStore()
	session := newSession(t, store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Run(ctx, func(r count.TxRepos) error {
		if _, err := r.Lines.Capture(ctx, repository.CaptureInput{
			SessionID: session.ID, ProductCodeVersionID: "P1", Quantity: decimal.NewFromInt(3),
			Mode: entity.CaptureModeAdd, ActorID: "cnt", At: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	lines, err := store.Lines().ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, lines, "la captura debe deshacerse")
}

func TestLedger_InsertIdempotente(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	entry := &entity.StockLedgerEntry{
		ID: "E1", ProductCodeVersionID: "P1", BranchID: "B1", QtyChange: decimal.NewFromInt(2),
		Reason: entity.LedgerReasonCountAdjustment, ReferenceType: entity.LedgerRefCountLine, ReferenceID: "L1",
		CreatedAt: time.Now(),
	}
	inserted, err := store.Ledger().InsertIdempotent(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *entry
	dup.ID = "E2"
	inserted, err = store.Ledger().InsertIdempotent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted, "misma referencia: no se duplica")

	found, err := store.Ledger().ListByReferences(ctx, entity.LedgerRefCountLine, []string{"L1"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "E1", found[0].ID)
}

func TestStock_OnHandPorLibroYUbicacion(t *testing.T) {
	store := memory.NewStore()
	store.AddProduct(entity.ProductCodeVersion{ID: "P1", Location: "Vitrina A"})
	store.AddProduct(entity.ProductCodeVersion{ID: "P2", Location: "Bodega"})
	store.AddProduct(entity.ProductCodeVersion{ID: "P3", Location: "vitrina b"})
	past := time.Now().Add(-time.Hour)
	store.RecordMovement("B1", "P1", decimal.NewFromInt(5), "purchase", past)
	store.RecordMovement("B1", "P1", decimal.NewFromInt(-2), "sale", past)
	store.RecordMovement("B1", "P2", decimal.NewFromInt(4), "purchase", past)
	store.RecordMovement("B1", "P3", decimal.NewFromInt(1), "purchase", past)
	store.RecordMovement("B1", "P3", decimal.NewFromInt(-1), "sale", past)
	store.RecordMovement("B2", "P1", decimal.NewFromInt(9), "purchase", past)
	store.SetReserved("B1", "P1", decimal.NewFromInt(1))

	all, err := store.Stock().OnHand(context.Background(), "B1", "")
	require.NoError(t, err)
	require.Len(t, all, 2, "P3 queda en cero y no aparece")
	assert.Equal(t, "P1", all[0].ProductCodeVersionID)
	assert.True(t, all[0].OnHand.Equal(decimal.NewFromInt(3)))
	assert.True(t, all[0].Reserved.Equal(decimal.NewFromInt(1)))

	vitrina, err := store.Stock().OnHand(context.Background(), "B1", "VITRINA")
	require.NoError(t, err)
	require.Len(t, vitrina, 1)
	assert.Equal(t, "P1", vitrina[0].ProductCodeVersionID)
}

func TestSessions_UpdateStatusCondicional(t *testing.T) {
	store := memory.NewStore()
	session := newSession(t, store)
	ctx := context.Background()

	ok, err := store.Sessions().UpdateStatus(ctx, session.ID, []string{entity.SessionStatusOpen}, entity.SessionStatusReview, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Sessions().UpdateStatus(ctx, session.ID, []string{entity.SessionStatusOpen}, entity.SessionStatusCancelled, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "ya no está en open")

	got, err := store.Sessions().GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusReview, got.Status)
}
