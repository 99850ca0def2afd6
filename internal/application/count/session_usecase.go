package count

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain"
	countrules "github.com/jhoicas/stockcount-api/internal/domain/count"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/jhoicas/stockcount-api/pkg/logger"
)

// CreateSessionInputDTO entrada para abrir una sesión de conteo.
type CreateSessionInputDTO struct {
	BranchID        string
	Scope           string
	LocationScope   string
	StartDate       *time.Time
	DueDate         *time.Time
	FreezeMovements bool
	Counters        []string
	CreatedBy       string
}

// SessionUseCase gestiona el ciclo de vida de las sesiones y es dueño de la máquina de estados.
// Orquesta la línea base al crear y el contabilizador al pasar a posted.
type SessionUseCase struct {
	tx       TxRunner
	sessions repository.CountSessionRepository
	catalog  repository.CatalogRepository
	snapshot *SnapshotService
	poster   *LedgerPoster
	metrics  Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewSessionUseCase construye el gestor de ciclo de vida.
func NewSessionUseCase(
	tx TxRunner,
	sessions repository.CountSessionRepository,
	catalog repository.CatalogRepository,
	snapshot *SnapshotService,
	poster *LedgerPoster,
	metrics Metrics,
	log *logger.Logger,
) *SessionUseCase {
	return &SessionUseCase{
		tx:       tx,
		sessions: sessions,
		catalog:  catalog,
		snapshot: snapshot,
		poster:   poster,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// CreateSession crea la sesión en open y materializa la línea base en la misma transacción.
func (uc *SessionUseCase) CreateSession(ctx context.Context, in CreateSessionInputDTO) (*SessionView, error) {
	if !countrules.ValidScope(in.Scope) {
		return nil, domain.ErrInvalidScope
	}
	if in.BranchID == "" {
		return nil, domain.ErrInvalidBranch
	}
	if in.CreatedBy == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.StartDate != nil && in.DueDate != nil && in.DueDate.Before(*in.StartDate) {
		return nil, domain.ErrInvalidInput
	}
	branch, err := uc.catalog.GetBranch(ctx, in.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, domain.ErrInvalidBranch
	}

	now := uc.now().UTC()
	session := &entity.CountSession{
		ID:              uuid.New().String(),
		BranchID:        in.BranchID,
		Scope:           in.Scope,
		LocationScope:   strings.TrimSpace(in.LocationScope),
		Status:          entity.SessionStatusOpen,
		StartDate:       in.StartDate,
		DueDate:         in.DueDate,
		FreezeMovements: in.FreezeMovements,
		Counters:        dedupe(in.Counters),
		CreatedBy:       in.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = uc.tx.Run(ctx, func(r TxRepos) error {
		if err := r.Sessions.Create(ctx, session); err != nil {
			return err
		}
		if err := r.Sessions.AppendEvent(ctx, &entity.CountSessionEvent{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			ToStatus:  entity.SessionStatusOpen,
			ActorID:   in.CreatedBy,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		baseline, err := uc.snapshot.takeInTx(ctx, r, session.ID)
		if err != nil {
			return err
		}
		at := baseline.SnapshotAt
		session.SnapshotAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.SessionTransitioned(entity.SessionStatusOpen)
	uc.log.Info().
		Str("session_id", session.ID).
		Str("branch_id", session.BranchID).
		Str("scope", session.Scope).
		Bool("freeze_movements", session.FreezeMovements).
		Msg("sesión de conteo creada")
	return &SessionView{Session: session}, nil
}

// TransitionStatus aplica una transición legal. posted exige todas las líneas aprobadas y contabiliza
// en la misma transacción; cancelled no escribe en el libro.
func (uc *SessionUseCase) TransitionStatus(ctx context.Context, sessionID, target, actorID string) (*SessionView, error) {
	if sessionID == "" || actorID == "" {
		return nil, domain.ErrInvalidInput
	}
	now := uc.now().UTC()

	err := uc.tx.Run(ctx, func(r TxRepos) error {
		session, err := r.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrNotFound
		}
		if !countrules.CanTransition(session.Status, target) {
			return fmt.Errorf("%w: %s → %s", domain.ErrIllegalTransition, session.Status, target)
		}
		ok, err := r.Sessions.UpdateStatus(ctx, session.ID, []string{session.Status}, target, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: la sesión cambió de estado en paralelo", domain.ErrIllegalTransition)
		}

		if target == entity.SessionStatusPosted {
			pending, err := r.Lines.CountNotApproved(ctx, session.ID)
			if err != nil {
				return err
			}
			if pending > 0 {
				return fmt.Errorf("%w: %d líneas sin aprobar", domain.ErrIllegalTransition, pending)
			}
			lines, err := r.Lines.ListBySession(ctx, session.ID)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(lines))
			for _, l := range lines {
				ids = append(ids, l.ID)
			}
			if _, err := uc.poster.postInTx(ctx, r, session, ids, actorID); err != nil {
				return err
			}
		}

		return r.Sessions.AppendEvent(ctx, &entity.CountSessionEvent{
			ID:         uuid.New().String(),
			SessionID:  session.ID,
			FromStatus: session.Status,
			ToStatus:   target,
			ActorID:    actorID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.SessionTransitioned(target)
	uc.log.Info().
		Str("session_id", sessionID).
		Str("status", target).
		Str("actor_id", actorID).
		Msg("transición de sesión")
	return uc.GetSession(ctx, sessionID)
}

// Lookup devuelve la sesión sin calcular conflictos; ErrNotFound si no existe.
func (uc *SessionUseCase) Lookup(ctx context.Context, sessionID string) (*entity.CountSession, error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

// GetSession devuelve la sesión con movementAfterSnapshot y lastMovementAt calculados.
func (uc *SessionUseCase) GetSession(ctx context.Context, sessionID string) (*SessionView, error) {
	session, err := uc.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	conflict, err := uc.snapshot.detect(ctx, uc.snapshot.ledger, session)
	if err != nil {
		return nil, err
	}
	return &SessionView{Session: session, Conflict: *conflict}, nil
}

// ListSessions lista sesiones de una sucursal, opcionalmente por estado.
func (uc *SessionUseCase) ListSessions(ctx context.Context, branchID, status string, page dto.PageRequest) (*dto.CountSessionListResponse, error) {
	page.DefaultPage()
	if page.Limit > 100 {
		page.Limit = 100
	}
	list, err := uc.sessions.ListByBranch(ctx, branchID, status, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.CountSessionResponse, 0, len(list))
	for _, s := range list {
		items = append(items, ToSessionResponse(&SessionView{Session: s}))
	}
	return &dto.CountSessionListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}
