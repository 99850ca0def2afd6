package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateCountSessionRequest body para POST /api/count-sessions.
type CreateCountSessionRequest struct {
	BranchID        string     `json:"branch_id" validate:"required"`
	Scope           string     `json:"scope" validate:"required"`
	LocationScope   string     `json:"location_scope,omitempty" validate:"max=200"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	FreezeMovements bool       `json:"freeze_movements"`
	Counters        []string   `json:"counters,omitempty" validate:"dive,required"`
}

// UpdateCountSessionStatusRequest body para PATCH /api/count-sessions/:id/status.
type UpdateCountSessionStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CaptureRequest body para POST /api/count-sessions/:id/captures.
// Mode vacío = add.
type CaptureRequest struct {
	ProductCodeVersionID string          `json:"product_code_version_id" validate:"required"`
	CountedQty           decimal.Decimal `json:"counted_qty"`
	Mode                 string          `json:"mode,omitempty" validate:"omitempty,oneof=add set"`
	Comment              string          `json:"comment,omitempty" validate:"max=500"`
}

// ApproveRequest body para POST /api/count-sessions/:id/approve. El revisor sale del token.
type ApproveRequest struct {
	LineIDs []string `json:"line_ids" validate:"required,min=1,dive,required"`
}

// CountSessionResponse sesión con las banderas de conflicto calculadas.
type CountSessionResponse struct {
	ID                    string     `json:"id"`
	BranchID              string     `json:"branch_id"`
	Scope                 string     `json:"scope"`
	LocationScope         string     `json:"location_scope,omitempty"`
	Status                string     `json:"status"`
	StartDate             *time.Time `json:"start_date,omitempty"`
	DueDate               *time.Time `json:"due_date,omitempty"`
	SnapshotAt            *time.Time `json:"snapshot_at,omitempty"`
	FreezeMovements       bool       `json:"freeze_movements"`
	Counters              []string   `json:"counters"`
	CreatedBy             string     `json:"created_by"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	MovementAfterSnapshot bool       `json:"movement_after_snapshot"`
	ConflictBlocking      bool       `json:"conflict_blocking"`
	LastMovementAt        *time.Time `json:"last_movement_at,omitempty"`
}

// CountSessionListResponse listado paginado de sesiones.
type CountSessionListResponse struct {
	Items []CountSessionResponse `json:"items"`
	Page  PageResponse           `json:"page"`
}

// CountLineResponse línea de conteo; variance y value_cents se calculan al responder.
type CountLineResponse struct {
	ID                   string          `json:"id"`
	SessionID            string          `json:"session_id"`
	ProductCodeVersionID string          `json:"product_code_version_id"`
	ProductCode          string          `json:"product_code,omitempty"`
	Description          string          `json:"description,omitempty"`
	Location             string          `json:"location,omitempty"`
	ExpectedQty          decimal.Decimal `json:"expected_qty"`
	CountedQty           decimal.Decimal `json:"counted_qty"`
	Variance             decimal.Decimal `json:"variance"`
	CostCentsAtCount     int64           `json:"cost_cents_at_count"`
	ValueCents           decimal.Decimal `json:"value_cents"`
	Comment              string          `json:"comment,omitempty"`
	CapturedBy           string          `json:"captured_by,omitempty"`
	CapturedAt           *time.Time      `json:"captured_at,omitempty"`
	ReviewStatus         string          `json:"review_status"`
	Unexpected           bool            `json:"unexpected"`
}

// CountLineListResponse listado paginado de líneas.
type CountLineListResponse struct {
	Items []CountLineResponse `json:"items"`
	Page  PageResponse        `json:"page"`
}

// CaptureResponse devuelve la línea capturada y la sesión con sus banderas de conflicto.
type CaptureResponse struct {
	Session CountSessionResponse `json:"session"`
	Line    CountLineResponse    `json:"line"`
}

// VarianceTotalsDTO totales del conjunto filtrado.
type VarianceTotalsDTO struct {
	VarianceCount   int             `json:"variance_count"`
	TotalVariance   decimal.Decimal `json:"total_variance"`
	TotalValueCents decimal.Decimal `json:"total_value_cents"`
}

// VarianceReportResponse respuesta de GET /api/count-sessions/:id/variances.
type VarianceReportResponse struct {
	SessionID             string              `json:"session_id"`
	Status                string              `json:"status"`
	MinAbsVariance        decimal.Decimal     `json:"min_abs_variance"`
	Direction             string              `json:"direction"`
	Lines                 []CountLineResponse `json:"lines"`
	Totals                VarianceTotalsDTO   `json:"totals"`
	MovementAfterSnapshot bool                `json:"movement_after_snapshot"`
	LastMovementAt        *time.Time          `json:"last_movement_at,omitempty"`
}

// LedgerEntryResponse entrada del libro de stock.
type LedgerEntryResponse struct {
	ID                   string          `json:"id"`
	ProductCodeVersionID string          `json:"product_code_version_id"`
	BranchID             string          `json:"branch_id"`
	QtyChange            decimal.Decimal `json:"qty_change"`
	Reason               string          `json:"reason"`
	ReferenceType        string          `json:"reference_type"`
	ReferenceID          string          `json:"reference_id"`
	CreatedAt            time.Time       `json:"created_at"`
}

// ApproveResponse líneas ganadas por este revisor y las entradas contabilizadas para ellas.
type ApproveResponse struct {
	ApprovedLineIDs []string              `json:"approved_line_ids"`
	PostedLines     []LedgerEntryResponse `json:"posted_lines"`
}

// VarianceQuery filtros de GET /api/count-sessions/:id/variances (y su PDF).
type VarianceQuery struct {
	MinAbsVariance string `query:"min_abs"`
	Direction      string `query:"direction" validate:"variance_direction"`
}

// ItemsQuery búsqueda de GET /api/count-sessions/:id/items.
type ItemsQuery struct {
	Search string `query:"search" validate:"max=100"`
	Limit  int    `query:"limit" validate:"min=0,max=100"`
	Offset int    `query:"offset" validate:"min=0"`
}
