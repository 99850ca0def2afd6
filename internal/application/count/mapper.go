package count

import (
	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

// SessionView sesión más las banderas calculadas por DetectConflict.
type SessionView struct {
	Session  *entity.CountSession
	Conflict ConflictStatus
}

// ToSessionResponse convierte la vista al DTO HTTP.
func ToSessionResponse(v *SessionView) dto.CountSessionResponse {
	s := v.Session
	counters := s.Counters
	if counters == nil {
		counters = []string{}
	}
	return dto.CountSessionResponse{
		ID:                    s.ID,
		BranchID:              s.BranchID,
		Scope:                 s.Scope,
		LocationScope:         s.LocationScope,
		Status:                s.Status,
		StartDate:             s.StartDate,
		DueDate:               s.DueDate,
		SnapshotAt:            s.SnapshotAt,
		FreezeMovements:       s.FreezeMovements,
		Counters:              counters,
		CreatedBy:             s.CreatedBy,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
		MovementAfterSnapshot: v.Conflict.Conflict,
		ConflictBlocking:      v.Conflict.Blocking,
		LastMovementAt:        v.Conflict.LastMovementAt,
	}
}

// ToLineResponse convierte una línea (con su producto, si se conoce) al DTO HTTP.
func ToLineResponse(l *entity.CountLine, p *entity.ProductCodeVersion) dto.CountLineResponse {
	out := dto.CountLineResponse{
		ID:                   l.ID,
		SessionID:            l.SessionID,
		ProductCodeVersionID: l.ProductCodeVersionID,
		ExpectedQty:          l.ExpectedQty,
		CountedQty:           l.CountedQty,
		Variance:             l.Variance(),
		CostCentsAtCount:     l.CostCentsAtCount,
		ValueCents:           l.ValueCents(),
		Comment:              l.Comment,
		CapturedBy:           l.CapturedBy,
		CapturedAt:           l.CapturedAt,
		ReviewStatus:         l.ReviewStatus,
		Unexpected:           l.Unexpected,
	}
	if p != nil {
		out.ProductCode = p.Code
		out.Description = p.Description
		out.Location = p.Location
	}
	return out
}

// ToLedgerEntryResponse convierte una entrada del libro al DTO HTTP.
func ToLedgerEntryResponse(e *entity.StockLedgerEntry) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:                   e.ID,
		ProductCodeVersionID: e.ProductCodeVersionID,
		BranchID:             e.BranchID,
		QtyChange:            e.QtyChange,
		Reason:               e.Reason,
		ReferenceType:        e.ReferenceType,
		ReferenceID:          e.ReferenceID,
		CreatedAt:            e.CreatedAt,
	}
}

func productIDs(lines []*entity.CountLine) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductCodeVersionID)
	}
	return ids
}
