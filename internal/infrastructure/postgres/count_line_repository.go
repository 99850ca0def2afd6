package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockcount-api/internal/domain"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

var _ repository.CountLineRepository = (*CountLineRepo)(nil)

// CountLineRepo implementación de CountLineRepository sobre PostgreSQL (usable con pool o tx).
// Las capturas son un único INSERT ... ON CONFLICT DO UPDATE: el incremento lo calcula la base.
type CountLineRepo struct {
	q Querier
}

// NewCountLineRepository construye el adaptador de líneas. Pasar pool o tx (Querier).
func NewCountLineRepository(q Querier) *CountLineRepo {
	return &CountLineRepo{q: q}
}

const countLineColumns = `id, session_id, product_code_version_id, expected_qty, counted_qty, cost_cents_at_count,
		comment, captured_by, captured_at, review_status, unexpected, reviewed_by, reviewed_at, created_at`

func scanCountLine(row pgx.Row) (*entity.CountLine, error) {
	var l entity.CountLine
	err := row.Scan(
		&l.ID, &l.SessionID, &l.ProductCodeVersionID, &l.ExpectedQty, &l.CountedQty, &l.CostCentsAtCount,
		&l.Comment, &l.CapturedBy, &l.CapturedAt, &l.ReviewStatus, &l.Unexpected, &l.ReviewedBy, &l.ReviewedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertBaseline inserta la línea base en un solo batch; las líneas existentes se ignoran.
func (r *CountLineRepo) InsertBaseline(ctx context.Context, lines []*entity.CountLine) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`
			INSERT INTO count_lines (id, session_id, product_code_version_id, expected_qty, counted_qty,
				cost_cents_at_count, review_status, unexpected, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
			ON CONFLICT (session_id, product_code_version_id) DO NOTHING`,
			l.ID, l.SessionID, l.ProductCodeVersionID, l.ExpectedQty, l.CountedQty,
			l.CostCentsAtCount, l.ReviewStatus, l.CreatedAt,
		)
	}
	br := r.q.SendBatch(ctx, batch)
	for range lines {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert baseline line: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert baseline: %w", err)
	}
	return nil
}

// countedExpr devuelve la expresión SQL del nuevo counted_qty según el modo.
// prev es la columna almacenada y qty el parámetro entrante.
func countedExpr(mode, prev, qty string) (string, error) {
	switch mode {
	case entity.CaptureModeAdd:
		return prev + " + " + qty, nil
	case entity.CaptureModeSet:
		return qty, nil
	default:
		return "", domain.ErrInvalidInput
	}
}

// Capture aplica la captura de forma atómica; crea la línea como inesperada si no estaba en la línea base.
func (r *CountLineRepo) Capture(ctx context.Context, in repository.CaptureInput) (*entity.CountLine, error) {
	expr, err := countedExpr(in.Mode, "count_lines.counted_qty", "EXCLUDED.counted_qty")
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO count_lines (id, session_id, product_code_version_id, expected_qty, counted_qty, cost_cents_at_count,
			comment, captured_by, captured_at, review_status, unexpected, created_at)
		VALUES ($8, $1, $2, 0, $3, $4, $5, $6, $7, 'pending', true, $7)
		ON CONFLICT (session_id, product_code_version_id) DO UPDATE SET
			counted_qty         = ` + expr + `,
			cost_cents_at_count = EXCLUDED.cost_cents_at_count,
			comment             = COALESCE(NULLIF(EXCLUDED.comment, ''), count_lines.comment),
			captured_by         = EXCLUDED.captured_by,
			captured_at         = EXCLUDED.captured_at,
			review_status       = 'pending'
		RETURNING ` + countLineColumns
	line, err := scanCountLine(r.q.QueryRow(ctx, query,
		in.SessionID, in.ProductCodeVersionID, in.Quantity, in.CostCents, in.Comment, in.ActorID, in.At, uuid.New().String(),
	))
	if err != nil {
		if isCheckViolation(err) {
			return nil, domain.ErrInvalidQuantity
		}
		return nil, fmt.Errorf("capture count line: %w", err)
	}
	return line, nil
}

// Recapture aplica la captura solo sobre una línea en recount_requested y la devuelve a pending.
func (r *CountLineRepo) Recapture(ctx context.Context, in repository.CaptureInput) (*entity.CountLine, error) {
	expr, err := countedExpr(in.Mode, "counted_qty", "$3")
	if err != nil {
		return nil, err
	}
	query := `
		UPDATE count_lines SET
			counted_qty         = ` + expr + `,
			cost_cents_at_count = $4,
			comment             = COALESCE(NULLIF($5, ''), comment),
			captured_by         = $6,
			captured_at         = $7,
			review_status       = 'pending'
		WHERE session_id = $1 AND product_code_version_id = $2 AND review_status = 'recount_requested'
		RETURNING ` + countLineColumns
	line, err := scanCountLine(r.q.QueryRow(ctx, query,
		in.SessionID, in.ProductCodeVersionID, in.Quantity, in.CostCents, in.Comment, in.ActorID, in.At,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isCheckViolation(err) {
			return nil, domain.ErrInvalidQuantity
		}
		return nil, fmt.Errorf("recapture count line: %w", err)
	}
	return line, nil
}

// GetByID obtiene una línea por ID.
func (r *CountLineRepo) GetByID(ctx context.Context, id string) (*entity.CountLine, error) {
	line, err := scanCountLine(r.q.QueryRow(ctx, `SELECT `+countLineColumns+` FROM count_lines WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get count line: %w", err)
	}
	return line, nil
}

func (r *CountLineRepo) list(ctx context.Context, query string, args ...any) ([]*entity.CountLine, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list count lines: %w", err)
	}
	defer rows.Close()

	var list []*entity.CountLine
	for rows.Next() {
		l, err := scanCountLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan count line: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// ListBySession devuelve todas las líneas de la sesión.
func (r *CountLineRepo) ListBySession(ctx context.Context, sessionID string) ([]*entity.CountLine, error) {
	return r.list(ctx, `
		SELECT `+countLineColumns+`
		FROM count_lines WHERE session_id = $1
		ORDER BY created_at, product_code_version_id`, sessionID)
}

// ListRecent devuelve las últimas líneas capturadas.
func (r *CountLineRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.CountLine, error) {
	return r.list(ctx, `
		SELECT `+countLineColumns+`
		FROM count_lines WHERE session_id = $1 AND captured_at IS NOT NULL
		ORDER BY captured_at DESC
		LIMIT $2`, sessionID, limit)
}

// RequestRecount pasa la línea a recount_requested si no está aprobada.
func (r *CountLineRepo) RequestRecount(ctx context.Context, lineID, actorID string, at time.Time) (bool, error) {
	cmd, err := r.q.Exec(ctx, `
		UPDATE count_lines SET review_status = 'recount_requested', reviewed_by = $2, reviewed_at = $3
		WHERE id = $1 AND review_status <> 'approved'`,
		lineID, actorID, at,
	)
	if err != nil {
		return false, fmt.Errorf("request recount: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// Approve es una actualización condicional: solo devuelve las filas que esta llamada cambió.
func (r *CountLineRepo) Approve(ctx context.Context, sessionID string, lineIDs []string, reviewerID string, at time.Time) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		UPDATE count_lines SET review_status = 'approved', reviewed_by = $3, reviewed_at = $4
		WHERE session_id = $1 AND id = ANY($2) AND review_status <> 'approved'
		RETURNING id`,
		sessionID, lineIDs, reviewerID, at,
	)
	if err != nil {
		return nil, fmt.Errorf("approve count lines: %w", err)
	}
	defer rows.Close()

	winners := make([]string, 0, len(lineIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan approved line: %w", err)
		}
		winners = append(winners, id)
	}
	return winners, rows.Err()
}

// CountNotApproved cuenta las líneas de la sesión que aún no están aprobadas.
func (r *CountLineRepo) CountNotApproved(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM count_lines WHERE session_id = $1 AND review_status <> 'approved'`,
		sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count not approved: %w", err)
	}
	return n, nil
}
