package count

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain"
	countrules "github.com/jhoicas/stockcount-api/internal/domain/count"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/jhoicas/stockcount-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// ApproveResult líneas que este revisor aprobó (ganó la carrera) y sus entradas en el libro.
type ApproveResult struct {
	ApprovedLineIDs []string
	PostedLines     []*entity.StockLedgerEntry
}

// ReviewUseCase expone las discrepancias y controla la aprobación previa a contabilizar.
type ReviewUseCase struct {
	tx       TxRunner
	sessions repository.CountSessionRepository
	lines    repository.CountLineRepository
	catalog  repository.CatalogRepository
	snapshot *SnapshotService
	poster   *LedgerPoster
	metrics  Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewReviewUseCase construye el motor de revisión.
func NewReviewUseCase(
	tx TxRunner,
	sessions repository.CountSessionRepository,
	lines repository.CountLineRepository,
	catalog repository.CatalogRepository,
	snapshot *SnapshotService,
	poster *LedgerPoster,
	metrics Metrics,
	log *logger.Logger,
) *ReviewUseCase {
	return &ReviewUseCase{
		tx:       tx,
		sessions: sessions,
		lines:    lines,
		catalog:  catalog,
		snapshot: snapshot,
		poster:   poster,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// ListVariances filtra por |varianza| >= minAbs y dirección (all|positive|negative) y totaliza.
func (uc *ReviewUseCase) ListVariances(ctx context.Context, sessionID string, minAbs decimal.Decimal, direction string) (*dto.VarianceReportResponse, error) {
	if direction == "" {
		direction = countrules.DirectionAll
	}
	if !countrules.ValidDirection(direction) || minAbs.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := uc.lines.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	filtered, totals := countrules.FilterVariances(lines, minAbs, direction)
	products, err := uc.catalog.GetProducts(ctx, productIDs(filtered))
	if err != nil {
		return nil, err
	}
	conflict, err := uc.snapshot.DetectConflict(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.CountLineResponse, 0, len(filtered))
	for _, l := range filtered {
		out = append(out, ToLineResponse(l, products[l.ProductCodeVersionID]))
	}
	return &dto.VarianceReportResponse{
		SessionID:      session.ID,
		Status:         session.Status,
		MinAbsVariance: minAbs,
		Direction:      direction,
		Lines:          out,
		Totals: dto.VarianceTotalsDTO{
			VarianceCount:   totals.VarianceCount,
			TotalVariance:   totals.TotalVariance,
			TotalValueCents: totals.TotalValueCents,
		},
		MovementAfterSnapshot: conflict.Conflict,
		LastMovementAt:        conflict.LastMovementAt,
	}, nil
}

// RequestRecount reabre una sola línea para re-verificación; la sesión sigue en review.
func (uc *ReviewUseCase) RequestRecount(ctx context.Context, lineID, actorID string) (*entity.CountLine, error) {
	if lineID == "" || actorID == "" {
		return nil, domain.ErrInvalidInput
	}
	var (
		line      *entity.CountLine
		sessionID string
	)
	err := uc.tx.Run(ctx, func(r TxRepos) error {
		current, err := r.Lines.GetByID(ctx, lineID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		session, err := r.Sessions.GetForReview(ctx, current.SessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrNotFound
		}
		if session.Status != entity.SessionStatusReview {
			return domain.ErrSessionNotInReview
		}
		if current.IsApproved() {
			return fmt.Errorf("%w: la línea %s ya está aprobada", domain.ErrIllegalTransition, current.ID)
		}
		ok, err := r.Lines.RequestRecount(ctx, lineID, actorID, uc.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: la línea %s fue aprobada en paralelo", domain.ErrIllegalTransition, current.ID)
		}
		sessionID = session.ID
		line, err = r.Lines.GetByID(ctx, lineID)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("session_id", sessionID).
		Str("line_id", lineID).
		Str("actor_id", actorID).
		Msg("recuento solicitado")
	return line, nil
}

// SessionOfLine devuelve la sesión a la que pertenece una línea.
func (uc *ReviewUseCase) SessionOfLine(ctx context.Context, lineID string) (*entity.CountSession, error) {
	line, err := uc.lines.GetByID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, domain.ErrNotFound
	}
	session, err := uc.sessions.GetByID(ctx, line.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

// Approve marca las líneas como aprobadas y las contabiliza en la misma transacción.
// Rechaza con ConflictError si la sesión congela movimientos y hubo actividad posterior al snapshot.
func (uc *ReviewUseCase) Approve(ctx context.Context, sessionID, reviewerID string, lineIDs []string) (*ApproveResult, error) {
	if sessionID == "" || reviewerID == "" || len(lineIDs) == 0 {
		return nil, domain.ErrInvalidInput
	}
	ids := dedupe(lineIDs)

	var result *ApproveResult
	err := uc.tx.Run(ctx, func(r TxRepos) error {
		// FOR SHARE: una cancelación concurrente espera a que esta aprobación confirme o aborte.
		session, err := r.Sessions.GetForReview(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrNotFound
		}
		if session.Status != entity.SessionStatusReview {
			return domain.ErrSessionNotInReview
		}
		conflict, err := uc.snapshot.detect(ctx, r.Ledger, session)
		if err != nil {
			return err
		}
		if conflict.Blocking {
			return &domain.ConflictError{SessionID: session.ID, LastMovementAt: *conflict.LastMovementAt}
		}

		lines, err := r.Lines.ListBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(lines))
		for _, l := range lines {
			known[l.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("línea %s: %w", id, domain.ErrNotFound)
			}
		}

		winners, err := r.Lines.Approve(ctx, session.ID, ids, reviewerID, uc.now().UTC())
		if err != nil {
			return err
		}
		entries, err := uc.poster.postInTx(ctx, r, session, winners, reviewerID)
		if err != nil {
			return err
		}
		result = &ApproveResult{ApprovedLineIDs: winners, PostedLines: entries}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.LinesApproved(len(result.ApprovedLineIDs))
	uc.log.Info().
		Str("session_id", sessionID).
		Str("reviewer_id", reviewerID).
		Int("requested", len(ids)).
		Int("approved", len(result.ApprovedLineIDs)).
		Msg("líneas aprobadas")
	return result, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
