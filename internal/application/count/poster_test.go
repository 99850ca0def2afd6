package count_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/domain"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

func TestPostLines_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.openSession(t, count.CreateSessionInputDTO{})
	f.captureQty(t, s.ID, "P1", counterA, 7, entity.CaptureModeSet)
	f.toStatus(t, s.ID, entity.SessionStatusReview)
	lineID := f.lineFor(t, s.ID, "P1").ID

	res, err := f.review.Approve(ctx, s.ID, supervisor, []string{lineID})
	require.NoError(t, err)
	require.Len(t, res.PostedLines, 1)
	first := res.PostedLines[0]
	before := len(f.store.LedgerEntries())

	for i := 0; i < 3; i++ {
		entries, err := f.poster.PostLines(ctx, s.ID, []string{lineID})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, first.ID, entries[0].ID)
		assert.True(t, entries[0].QtyChange.Equal(first.QtyChange))
	}
	assert.Len(t, f.store.LedgerEntries(), before)

	// Pasar a posted tampoco duplica.
	lines, err := f.store.Lines().ListBySession(ctx, s.ID)
	require.NoError(t, err)
	_, err = f.review.Approve(ctx, s.ID, supervisor, lineIDs(lines))
	require.NoError(t, err)
	f.toStatus(t, s.ID, entity.SessionStatusPosted)
	assert.Len(t, f.store.LedgerEntries(), before+1, "solo la línea de P2 (-3) es nueva")
}

func TestPostLines_SkipsUnapprovedAndZeroVariance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.openSession(t, count.CreateSessionInputDTO{})
	f.captureQty(t, s.ID, "P1", counterA, 2, entity.CaptureModeSet)
	f.captureQty(t, s.ID, "P2", counterA, 3, entity.CaptureModeSet)
	f.toStatus(t, s.ID, entity.SessionStatusReview)
	p1 := f.lineFor(t, s.ID, "P1").ID
	p2 := f.lineFor(t, s.ID, "P2").ID

	entries, err := f.poster.PostLines(ctx, s.ID, []string{p1, p2})
	require.NoError(t, err)
	assert.Empty(t, entries, "ninguna línea aprobada")

	_, err = f.review.Approve(ctx, s.ID, supervisor, []string{p2})
	require.NoError(t, err)
	entries, err = f.poster.PostLines(ctx, s.ID, []string{p2})
	require.NoError(t, err)
	assert.Empty(t, entries, "varianza cero no escribe")

	_, err = f.poster.PostLines(ctx, s.ID, []string{"missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostLines_RequiresReviewOrPosted(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, count.CreateSessionInputDTO{})
	_, err := f.poster.PostLines(context.Background(), s.ID, []string{f.lineFor(t, s.ID, "P1").ID})
	assert.ErrorIs(t, err, domain.ErrSessionNotInReview)
}

func TestPosting_LedgerMatchesApprovedVariance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.openSession(t, count.CreateSessionInputDTO{})
	f.captureQty(t, s.ID, "P1", counterA, 8, entity.CaptureModeSet)
	f.captureQty(t, s.ID, "P2", counterB, 1, entity.CaptureModeSet)
	f.captureQty(t, s.ID, "P9", counterB, 4, entity.CaptureModeSet)
	f.toStatus(t, s.ID, entity.SessionStatusReview)

	lines, err := f.store.Lines().ListBySession(ctx, s.ID)
	require.NoError(t, err)
	_, err = f.review.Approve(ctx, s.ID, supervisor, lineIDs(lines))
	require.NoError(t, err)
	f.toStatus(t, s.ID, entity.SessionStatusPosted)

	wantVariance := decimal.Zero
	for _, l := range lines {
		wantVariance = wantVariance.Add(l.Variance())
	}
	posted := decimal.Zero
	for _, e := range f.store.LedgerEntries() {
		if e.Reason == entity.LedgerReasonCountAdjustment {
			posted = posted.Add(e.QtyChange)
		}
	}
	assert.True(t, posted.Equal(wantVariance), "Σ ajustes = Σ varianzas aprobadas")

	// Sin movimientos externos la existencia final es lo contado.
	for _, l := range lines {
		assert.True(t, onHand(t, f.store, l.ProductCodeVersionID).Equal(l.CountedQty), l.ProductCodeVersionID)
	}

	// Las entradas propias no se reportan como conflicto.
	view, err := f.sessions.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, view.Conflict.Conflict)

	// Un movimiento externo posterior sí.
	f.store.RecordMovement(branchID, "P1", decimal.NewFromInt(-1), "sale", time.Now().Add(time.Second))
	view, err = f.sessions.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, view.Conflict.Conflict)
}
