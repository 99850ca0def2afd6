package count

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stockcount-api/internal/domain"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/pkg/logger"
)

// LedgerPoster es el único escritor que convierte varianzas aprobadas en historia inmutable del libro.
type LedgerPoster struct {
	tx      TxRunner
	metrics Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewLedgerPoster construye el contabilizador.
func NewLedgerPoster(tx TxRunner, metrics Metrics, log *logger.Logger) *LedgerPoster {
	return &LedgerPoster{tx: tx, metrics: metrics, log: log, now: time.Now}
}

// PostLines escribe un ajuste count_adjustment por cada línea aprobada con varianza distinta de cero.
// Todas las entradas se confirman juntas o ninguna; reinvocar con líneas ya contabilizadas es un no-op.
// Devuelve las entradas del libro que referencian las líneas (previas y nuevas).
func (p *LedgerPoster) PostLines(ctx context.Context, sessionID string, lineIDs []string) ([]*entity.StockLedgerEntry, error) {
	var entries []*entity.StockLedgerEntry
	err := p.tx.Run(ctx, func(r TxRepos) error {
		session, err := r.Sessions.GetForReview(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrNotFound
		}
		if session.Status != entity.SessionStatusReview && session.Status != entity.SessionStatusPosted {
			return domain.ErrSessionNotInReview
		}
		entries, err = p.postInTx(ctx, r, session, lineIDs, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// postInTx contabiliza dentro de la transacción del llamador (Approve, TransitionStatus).
// Cualquier error aborta el lote completo.
func (p *LedgerPoster) postInTx(
	ctx context.Context,
	r TxRepos,
	session *entity.CountSession,
	lineIDs []string,
	actorID string,
) ([]*entity.StockLedgerEntry, error) {
	if len(lineIDs) == 0 {
		return []*entity.StockLedgerEntry{}, nil
	}
	lines, err := r.Lines.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.CountLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}

	now := p.now().UTC()
	refs := make([]string, 0, len(lineIDs))
	created := 0
	for _, id := range lineIDs {
		line, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("línea %s: %w", id, domain.ErrNotFound)
		}
		if !line.IsApproved() {
			continue
		}
		variance := line.Variance()
		if variance.IsZero() {
			// Aprobada sin nada que ajustar.
			continue
		}
		refs = append(refs, line.ID)
		entry := &entity.StockLedgerEntry{
			ID:                   uuid.New().String(),
			ProductCodeVersionID: line.ProductCodeVersionID,
			BranchID:             session.BranchID,
			QtyChange:            variance,
			Reason:               entity.LedgerReasonCountAdjustment,
			ReferenceType:        entity.LedgerRefCountLine,
			ReferenceID:          line.ID,
			CreatedBy:            actorID,
			CreatedAt:            now,
		}
		ok, err := r.Ledger.InsertIdempotent(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("contabilizar línea %s: %w", line.ID, err)
		}
		if ok {
			created++
		}
	}

	entries, err := r.Ledger.ListByReferences(ctx, entity.LedgerRefCountLine, refs)
	if err != nil {
		return nil, err
	}
	p.metrics.LedgerEntriesPosted(created)
	p.log.WithSession(session.ID).Info().
		Int("requested", len(lineIDs)).
		Int("created", created).
		Int("entries", len(entries)).
		Msg("ajustes de conteo contabilizados")
	return entries, nil
}
