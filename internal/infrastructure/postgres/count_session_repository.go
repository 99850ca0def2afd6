package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockcount-api/internal/domain"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

var _ repository.CountSessionRepository = (*CountSessionRepo)(nil)

// CountSessionRepo implementación de CountSessionRepository sobre PostgreSQL (usable con pool o tx).
type CountSessionRepo struct {
	q Querier
}

// NewCountSessionRepository construye el adaptador de sesiones. Pasar pool o tx (Querier).
func NewCountSessionRepository(q Querier) *CountSessionRepo {
	return &CountSessionRepo{q: q}
}

const countSessionColumns = `id, branch_id, scope, location_scope, status, start_date, due_date, snapshot_at,
		freeze_movements, counters, created_by, created_at, updated_at`

func scanCountSession(row pgx.Row) (*entity.CountSession, error) {
	var s entity.CountSession
	err := row.Scan(
		&s.ID, &s.BranchID, &s.Scope, &s.LocationScope, &s.Status, &s.StartDate, &s.DueDate, &s.SnapshotAt,
		&s.FreezeMovements, &s.Counters, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserta la sesión. Una sucursal inexistente se reporta como ErrInvalidBranch.
func (r *CountSessionRepo) Create(ctx context.Context, s *entity.CountSession) error {
	counters := s.Counters
	if counters == nil {
		counters = []string{}
	}
	query := `
		INSERT INTO count_sessions (id, branch_id, scope, location_scope, status, start_date, due_date, snapshot_at,
			freeze_movements, counters, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.BranchID, s.Scope, s.LocationScope, s.Status, s.StartDate, s.DueDate, s.SnapshotAt,
		s.FreezeMovements, counters, s.CreatedBy, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrInvalidBranch
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("sesión %s duplicada: %w", s.ID, domain.ErrInvalidInput)
		}
		return fmt.Errorf("insert count session: %w", err)
	}
	return nil
}

// GetByID obtiene una sesión por ID.
func (r *CountSessionRepo) GetByID(ctx context.Context, id string) (*entity.CountSession, error) {
	s, err := scanCountSession(r.q.QueryRow(ctx, `SELECT `+countSessionColumns+` FROM count_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get count session: %w", err)
	}
	return s, nil
}

// GetForReview lee la sesión con FOR SHARE. Un UPDATE de estado concurrente espera al commit,
// así no se cancela una sesión mientras se aprueban o contabilizan sus líneas.
func (r *CountSessionRepo) GetForReview(ctx context.Context, id string) (*entity.CountSession, error) {
	s, err := scanCountSession(r.q.QueryRow(ctx, `SELECT `+countSessionColumns+` FROM count_sessions WHERE id = $1 FOR SHARE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock count session for review: %w", err)
	}
	return s, nil
}

// LockForCapture toma un bloqueo compartido sobre la fila de la sesión.
// Varias capturas lo comparten; una transición de estado (FOR UPDATE implícito del UPDATE) espera a que terminen.
func (r *CountSessionRepo) LockForCapture(ctx context.Context, id string) (string, error) {
	var status string
	err := r.q.QueryRow(ctx, `SELECT status FROM count_sessions WHERE id = $1 FOR SHARE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("lock count session: %w", err)
	}
	return status, nil
}

// MarkSnapshot fija snapshot_at con clock_timestamp() solo si aún es NULL.
// El reloj es el de la base, el mismo que marca created_at en el libro.
func (r *CountSessionRepo) MarkSnapshot(ctx context.Context, id string) (time.Time, bool, error) {
	var at time.Time
	err := r.q.QueryRow(ctx, `
		UPDATE count_sessions SET snapshot_at = clock_timestamp(), updated_at = clock_timestamp()
		WHERE id = $1 AND snapshot_at IS NULL
		RETURNING snapshot_at`,
		id,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("mark snapshot: %w", err)
	}
	return at.UTC(), true, nil
}

// UpdateStatus aplica la transición solo si el estado actual está en from.
func (r *CountSessionRepo) UpdateStatus(ctx context.Context, id string, from []string, to string, at time.Time) (bool, error) {
	cmd, err := r.q.Exec(ctx,
		`UPDATE count_sessions SET status = $3, updated_at = $4 WHERE id = $1 AND status = ANY($2)`,
		id, from, to, at,
	)
	if err != nil {
		return false, fmt.Errorf("update count session status: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// ListByBranch lista sesiones (más recientes primero); branchID o status vacíos no filtran.
func (r *CountSessionRepo) ListByBranch(ctx context.Context, branchID, status string, limit, offset int) ([]*entity.CountSession, error) {
	query := `
		SELECT ` + countSessionColumns + `
		FROM count_sessions
		WHERE ($1 = '' OR branch_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, branchID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list count sessions: %w", err)
	}
	defer rows.Close()

	var list []*entity.CountSession
	for rows.Next() {
		s, err := scanCountSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan count session: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// AppendEvent registra una transición en el historial.
func (r *CountSessionRepo) AppendEvent(ctx context.Context, e *entity.CountSessionEvent) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO count_session_events (id, session_id, from_status, to_status, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.SessionID, e.FromStatus, e.ToStatus, e.ActorID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert count session event: %w", err)
	}
	return nil
}

// ListEvents devuelve el historial de la sesión en orden cronológico.
func (r *CountSessionRepo) ListEvents(ctx context.Context, sessionID string) ([]*entity.CountSessionEvent, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, session_id, from_status, to_status, actor_id, created_at
		FROM count_session_events WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list count session events: %w", err)
	}
	defer rows.Close()

	var list []*entity.CountSessionEvent
	for rows.Next() {
		var e entity.CountSessionEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.FromStatus, &e.ToStatus, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan count session event: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
