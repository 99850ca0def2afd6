package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.OpsRepository = (*OpsRepo)(nil)

// OpsRepo consultas del tablero operativo sobre el estado en memoria.
type OpsRepo struct {
	s *Store
}

func (r *OpsRepo) Valuation(_ context.Context, branchID string) ([]repository.ValuationResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.catMu.RLock()
	defer r.s.catMu.RUnlock()

	perBranch := map[string]map[string]decimal.Decimal{}
	for _, e := range r.s.st.ledger {
		if branchID != "" && e.BranchID != branchID {
			continue
		}
		if perBranch[e.BranchID] == nil {
			perBranch[e.BranchID] = map[string]decimal.Decimal{}
		}
		perBranch[e.BranchID][e.ProductCodeVersionID] = perBranch[e.BranchID][e.ProductCodeVersionID].Add(e.QtyChange)
	}

	out := make([]repository.ValuationResult, 0, len(perBranch))
	for b, sums := range perBranch {
		res := repository.ValuationResult{BranchID: b, UnitsOnHand: decimal.Zero, ValuationCents: decimal.Zero}
		for productID, qty := range sums {
			if qty.IsZero() {
				continue
			}
			res.Products++
			res.UnitsOnHand = res.UnitsOnHand.Add(qty)
			if p := r.s.cat.products[productID]; p != nil {
				res.ValuationCents = res.ValuationCents.Add(qty.Mul(decimal.NewFromInt(p.CostCents)))
			}
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BranchID < out[j].BranchID })
	return out, nil
}

func (r *OpsRepo) LowStock(_ context.Context, branchID string, limit int) ([]repository.LowStockItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.catMu.RLock()
	defer r.s.catMu.RUnlock()

	sums := r.s.st.balances(branchID)
	var out []repository.LowStockItem
	for id, p := range r.s.cat.products {
		if p.ReorderPoint.IsZero() {
			continue
		}
		onHand := sums[id]
		reserved := r.s.st.reservedFor(branchID, id)
		available := onHand.Sub(reserved)
		if !available.LessThan(p.ReorderPoint) {
			continue
		}
		out = append(out, repository.LowStockItem{
			ProductCodeVersionID: id,
			Code:                 p.Code,
			Description:          p.Description,
			OnHand:               onHand,
			Reserved:             reserved,
			Available:            available,
			ReorderPoint:         p.ReorderPoint,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Available.Equal(out[j].Available) {
			return out[i].Available.LessThan(out[j].Available)
		}
		return out[i].Code < out[j].Code
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OpsRepo) Movements(_ context.Context, branchID string, from, to time.Time) ([]repository.MovementSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byReason := map[string]*repository.MovementSummary{}
	for _, e := range r.s.st.ledger {
		if branchID != "" && e.BranchID != branchID {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		m := byReason[e.Reason]
		if m == nil {
			m = &repository.MovementSummary{Reason: e.Reason, NetChange: decimal.Zero}
			byReason[e.Reason] = m
		}
		m.Entries++
		m.NetChange = m.NetChange.Add(e.QtyChange)
	}
	out := make([]repository.MovementSummary, 0, len(byReason))
	for _, m := range byReason {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reason < out[j].Reason })
	return out, nil
}

func (r *OpsRepo) SessionHistory(_ context.Context, branchID string, limit, offset int) ([]repository.SessionHistoryItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sessions := paginate(r.s.st.filterSessions(branchID, ""), limit, offset)
	out := make([]repository.SessionHistoryItem, 0, len(sessions))
	for _, s := range sessions {
		item := repository.SessionHistoryItem{
			SessionID: s.ID,
			BranchID:  s.BranchID,
			Scope:     s.Scope,
			Status:    s.Status,
			CreatedAt: s.CreatedAt,
		}
		for _, l := range r.s.st.lines {
			if l.SessionID != s.ID {
				continue
			}
			item.Lines++
			if l.ReviewStatus == entity.ReviewStatusApproved {
				item.ApprovedLines++
			}
		}
		for _, e := range r.s.st.events {
			if e.SessionID != s.ID {
				continue
			}
			if item.LastTransition == nil || !e.CreatedAt.Before(*item.LastTransition) {
				t := e.CreatedAt
				item.LastTransition = &t
				item.LastActorID = e.ActorID
			}
		}
		out = append(out, item)
	}
	return out, nil
}
