package count

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stockcount-api/internal/domain"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/jhoicas/stockcount-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// Baseline línea base congelada de una sesión.
type Baseline struct {
	SnapshotAt time.Time
	Lines      []*entity.CountLine
}

// ConflictStatus resultado de DetectConflict.
// Conflict es solo una advertencia salvo que la sesión congele movimientos (Blocking).
type ConflictStatus struct {
	Conflict       bool
	Blocking       bool
	LastMovementAt *time.Time
}

// SnapshotService materializa la línea base y detecta movimientos posteriores a ella.
// Nunca escribe en el libro de stock.
type SnapshotService struct {
	tx       TxRunner
	sessions repository.CountSessionRepository
	ledger   repository.StockLedgerRepository
	catalog  repository.CatalogRepository
	metrics  Metrics
	log      *logger.Logger
}

// NewSnapshotService construye el servicio de línea base.
func NewSnapshotService(
	tx TxRunner,
	sessions repository.CountSessionRepository,
	ledger repository.StockLedgerRepository,
	catalog repository.CatalogRepository,
	metrics Metrics,
	log *logger.Logger,
) *SnapshotService {
	return &SnapshotService{
		tx:       tx,
		sessions: sessions,
		ledger:   ledger,
		catalog:  catalog,
		metrics:  metrics,
		log:      log,
	}
}

// TakeSnapshot lee la existencia de la sucursal/alcance y escribe una línea por producto
// con expected = existencia y counted = 0. Si la línea base ya existe la devuelve intacta.
func (s *SnapshotService) TakeSnapshot(ctx context.Context, sessionID string) (*Baseline, error) {
	var out *Baseline
	err := s.tx.Run(ctx, func(r TxRepos) error {
		b, err := s.takeInTx(ctx, r, sessionID)
		out = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SnapshotService) takeInTx(ctx context.Context, r TxRepos, sessionID string) (*Baseline, error) {
	session, err := r.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	if session.SnapshotAt != nil {
		return existingBaseline(ctx, r, session.ID, *session.SnapshotAt)
	}
	if session.Status != entity.SessionStatusOpen {
		return nil, domain.ErrSessionNotOpen
	}

	// Con el libro bloqueado, la existencia leída y snapshot_at corresponden al mismo corte.
	if err := r.Stock.LockForSnapshot(ctx); err != nil {
		return nil, err
	}
	at, marked, err := r.Sessions.MarkSnapshot(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if !marked {
		// Otra petición materializó la línea base primero.
		current, err := r.Sessions.GetByID(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		return existingBaseline(ctx, r, session.ID, *current.SnapshotAt)
	}

	locationScope := ""
	if session.Scope == entity.ScopeCycle {
		locationScope = session.LocationScope
	}
	positions, err := r.Stock.OnHand(ctx, session.BranchID, locationScope)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.ProductCodeVersionID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]*entity.CountLine, 0, len(positions))
	for _, p := range positions {
		var cost int64
		if prod := products[p.ProductCodeVersionID]; prod != nil {
			cost = prod.CostCents
		}
		lines = append(lines, &entity.CountLine{
			ID:                   uuid.New().String(),
			SessionID:            session.ID,
			ProductCodeVersionID: p.ProductCodeVersionID,
			ExpectedQty:          p.OnHand,
			CountedQty:           decimal.Zero,
			CostCentsAtCount:     cost,
			ReviewStatus:         entity.ReviewStatusPending,
			CreatedAt:            at,
		})
	}
	if err := r.Lines.InsertBaseline(ctx, lines); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", session.ID).
		Str("branch_id", session.BranchID).
		Int("lines", len(lines)).
		Time("snapshot_at", at).
		Msg("línea base materializada")

	return existingBaseline(ctx, r, session.ID, at)
}

func existingBaseline(ctx context.Context, r TxRepos, sessionID string, at time.Time) (*Baseline, error) {
	lines, err := r.Lines.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Baseline{SnapshotAt: at, Lines: lines}, nil
}

// DetectConflict consulta el libro por movimientos en productos del alcance con created_at > snapshot_at.
func (s *SnapshotService) DetectConflict(ctx context.Context, sessionID string) (*ConflictStatus, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	return s.detect(ctx, s.ledger, session)
}

// detect evalúa el conflicto con el repositorio dado (pool o tx).
func (s *SnapshotService) detect(ctx context.Context, ledger repository.StockLedgerRepository, session *entity.CountSession) (*ConflictStatus, error) {
	if session.SnapshotAt == nil {
		return &ConflictStatus{}, nil
	}
	last, err := ledger.LastMovementAfter(ctx, session.ID, session.BranchID, *session.SnapshotAt)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &ConflictStatus{}, nil
	}
	st := &ConflictStatus{Conflict: true, Blocking: session.FreezeMovements, LastMovementAt: last}
	s.metrics.ConflictDetected(st.Blocking)
	s.log.Warn().
		Str("session_id", session.ID).
		Bool("freeze_movements", session.FreezeMovements).
		Time("last_movement_at", *last).
		Msg("movimientos posteriores al snapshot")
	return st, nil
}
