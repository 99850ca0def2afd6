package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/stockcount-api/internal/domain"
	countrules "github.com/jhoicas/stockcount-api/internal/domain/count"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var (
	_ repository.CountSessionRepository = (*SessionRepo)(nil)
	_ repository.CountLineRepository    = (*LineRepo)(nil)
	_ repository.StockLedgerRepository  = (*LedgerRepo)(nil)
	_ repository.StockRepository        = (*StockRepo)(nil)
	_ repository.CatalogRepository      = (*CatalogRepo)(nil)
)

// ── Sesiones ─────────────────────────────────────────────────────────────────

// SessionRepo implementación en memoria de CountSessionRepository.
type SessionRepo struct {
	s    *Store
	inTx bool
}

func (r *SessionRepo) Create(_ context.Context, session *entity.CountSession) error {
	defer r.s.lock(r.inTx)()
	if _, ok := r.s.st.sessions[session.ID]; ok {
		return fmt.Errorf("create count session: %w", domain.ErrInvalidInput)
	}
	r.s.st.sessions[session.ID] = copySession(session)
	return nil
}

func (r *SessionRepo) GetByID(_ context.Context, id string) (*entity.CountSession, error) {
	defer r.s.lock(r.inTx)()
	s, ok := r.s.st.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

// GetForReview equivale a GetByID: Run ya serializa las transacciones.
func (r *SessionRepo) GetForReview(ctx context.Context, id string) (*entity.CountSession, error) {
	return r.GetByID(ctx, id)
}

func (r *SessionRepo) LockForCapture(_ context.Context, id string) (string, error) {
	defer r.s.lock(r.inTx)()
	s, ok := r.s.st.sessions[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return s.Status, nil
}

func (r *SessionRepo) MarkSnapshot(_ context.Context, id string) (time.Time, bool, error) {
	defer r.s.lock(r.inTx)()
	s, ok := r.s.st.sessions[id]
	if !ok {
		return time.Time{}, false, domain.ErrNotFound
	}
	if s.SnapshotAt != nil {
		return time.Time{}, false, nil
	}
	at := time.Now().UTC()
	s.SnapshotAt = &at
	s.UpdatedAt = at
	return at, true, nil
}

func (r *SessionRepo) UpdateStatus(_ context.Context, id string, from []string, to string, at time.Time) (bool, error) {
	defer r.s.lock(r.inTx)()
	s, ok := r.s.st.sessions[id]
	if !ok {
		return false, nil
	}
	if !contains(from, s.Status) {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = at
	return true, nil
}

func (r *SessionRepo) ListByBranch(_ context.Context, branchID, status string, limit, offset int) ([]*entity.CountSession, error) {
	defer r.s.lock(r.inTx)()
	list := r.s.st.filterSessions(branchID, status)
	return paginate(list, limit, offset), nil
}

func (r *SessionRepo) AppendEvent(_ context.Context, event *entity.CountSessionEvent) error {
	defer r.s.lock(r.inTx)()
	cp := *event
	r.s.st.events = append(r.s.st.events, &cp)
	return nil
}

func (r *SessionRepo) ListEvents(_ context.Context, sessionID string) ([]*entity.CountSessionEvent, error) {
	defer r.s.lock(r.inTx)()
	var out []*entity.CountSessionEvent
	for _, e := range r.s.st.events {
		if e.SessionID == sessionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (st *state) filterSessions(branchID, status string) []*entity.CountSession {
	var list []*entity.CountSession
	for _, s := range st.sessions {
		if branchID != "" && s.BranchID != branchID {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		list = append(list, copySession(s))
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// ── Líneas ───────────────────────────────────────────────────────────────────

// LineRepo implementación en memoria de CountLineRepository.
// Las capturas calculan sobre el valor almacenado bajo el mutex (equivalente al UPDATE atómico).
type LineRepo struct {
	s    *Store
	inTx bool
}

func lineKey(sessionID, productID string) string { return sessionID + "|" + productID }

func (r *LineRepo) InsertBaseline(_ context.Context, lines []*entity.CountLine) error {
	defer r.s.lock(r.inTx)()
	for _, l := range lines {
		key := lineKey(l.SessionID, l.ProductCodeVersionID)
		if _, ok := r.s.st.lineKey[key]; ok {
			continue
		}
		r.s.st.lines[l.ID] = copyLine(l)
		r.s.st.lineKey[key] = l.ID
	}
	return nil
}

func (r *LineRepo) Capture(_ context.Context, in repository.CaptureInput) (*entity.CountLine, error) {
	defer r.s.lock(r.inTx)()
	key := lineKey(in.SessionID, in.ProductCodeVersionID)
	id, ok := r.s.st.lineKey[key]
	if !ok {
		counted, err := countrules.ApplyCapture(decimal.Zero, in.Quantity, in.Mode)
		if err != nil {
			return nil, err
		}
		at := in.At
		line := &entity.CountLine{
			ID:                   newID(),
			SessionID:            in.SessionID,
			ProductCodeVersionID: in.ProductCodeVersionID,
			ExpectedQty:          decimal.Zero,
			CountedQty:           counted,
			CostCentsAtCount:     in.CostCents,
			Comment:              in.Comment,
			CapturedBy:           in.ActorID,
			CapturedAt:           &at,
			ReviewStatus:         entity.ReviewStatusPending,
			Unexpected:           true,
			CreatedAt:            in.At,
		}
		r.s.st.lines[line.ID] = line
		r.s.st.lineKey[key] = line.ID
		return copyLine(line), nil
	}
	line := r.s.st.lines[id]
	if err := applyTo(line, in); err != nil {
		return nil, err
	}
	return copyLine(line), nil
}

func (r *LineRepo) Recapture(_ context.Context, in repository.CaptureInput) (*entity.CountLine, error) {
	defer r.s.lock(r.inTx)()
	id, ok := r.s.st.lineKey[lineKey(in.SessionID, in.ProductCodeVersionID)]
	if !ok {
		return nil, nil
	}
	line := r.s.st.lines[id]
	if line.ReviewStatus != entity.ReviewStatusRecountRequested {
		return nil, nil
	}
	if err := applyTo(line, in); err != nil {
		return nil, err
	}
	return copyLine(line), nil
}

// applyTo muta la línea almacenada; expected nunca se toca.
func applyTo(line *entity.CountLine, in repository.CaptureInput) error {
	counted, err := countrules.ApplyCapture(line.CountedQty, in.Quantity, in.Mode)
	if err != nil {
		return err
	}
	at := in.At
	line.CountedQty = counted
	line.CostCentsAtCount = in.CostCents
	if in.Comment != "" {
		line.Comment = in.Comment
	}
	line.CapturedBy = in.ActorID
	line.CapturedAt = &at
	line.ReviewStatus = entity.ReviewStatusPending
	return nil
}

func (r *LineRepo) GetByID(_ context.Context, id string) (*entity.CountLine, error) {
	defer r.s.lock(r.inTx)()
	l, ok := r.s.st.lines[id]
	if !ok {
		return nil, nil
	}
	return copyLine(l), nil
}

func (r *LineRepo) ListBySession(_ context.Context, sessionID string) ([]*entity.CountLine, error) {
	defer r.s.lock(r.inTx)()
	return r.s.st.sessionLines(sessionID), nil
}

func (st *state) sessionLines(sessionID string) []*entity.CountLine {
	var out []*entity.CountLine
	for _, l := range st.lines {
		if l.SessionID == sessionID {
			out = append(out, copyLine(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ProductCodeVersionID < out[j].ProductCodeVersionID
	})
	return out
}

func (r *LineRepo) ListRecent(_ context.Context, sessionID string, limit int) ([]*entity.CountLine, error) {
	defer r.s.lock(r.inTx)()
	var out []*entity.CountLine
	for _, l := range r.s.st.sessionLines(sessionID) {
		if l.CapturedAt != nil {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.After(*out[j].CapturedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *LineRepo) RequestRecount(_ context.Context, lineID, actorID string, at time.Time) (bool, error) {
	defer r.s.lock(r.inTx)()
	l, ok := r.s.st.lines[lineID]
	if !ok || l.IsApproved() {
		return false, nil
	}
	l.ReviewStatus = entity.ReviewStatusRecountRequested
	l.ReviewedBy = actorID
	l.ReviewedAt = &at
	return true, nil
}

func (r *LineRepo) Approve(_ context.Context, sessionID string, lineIDs []string, reviewerID string, at time.Time) ([]string, error) {
	defer r.s.lock(r.inTx)()
	winners := make([]string, 0, len(lineIDs))
	for _, id := range lineIDs {
		l, ok := r.s.st.lines[id]
		if !ok || l.SessionID != sessionID || l.IsApproved() {
			continue
		}
		l.ReviewStatus = entity.ReviewStatusApproved
		l.ReviewedBy = reviewerID
		l.ReviewedAt = &at
		winners = append(winners, id)
	}
	return winners, nil
}

func (r *LineRepo) CountNotApproved(_ context.Context, sessionID string) (int, error) {
	defer r.s.lock(r.inTx)()
	n := 0
	for _, l := range r.s.st.lines {
		if l.SessionID == sessionID && !l.IsApproved() {
			n++
		}
	}
	return n, nil
}

// ── Libro de stock ───────────────────────────────────────────────────────────

// LedgerRepo implementación en memoria de StockLedgerRepository (append-only).
type LedgerRepo struct {
	s    *Store
	inTx bool
}

func (r *LedgerRepo) InsertIdempotent(_ context.Context, entry *entity.StockLedgerEntry) (bool, error) {
	defer r.s.lock(r.inTx)()
	key := entry.ReferenceType + "|" + entry.ReferenceID
	if _, ok := r.s.st.ledgerRefs[key]; ok {
		return false, nil
	}
	if r.s.ledgerFailAfter >= 0 && r.s.ledgerWrites >= r.s.ledgerFailAfter {
		return false, ErrInjectedFault
	}
	r.s.ledgerWrites++
	cp := *entry
	r.s.st.ledger = append(r.s.st.ledger, &cp)
	r.s.st.ledgerRefs[key] = cp.ID
	return true, nil
}

func (r *LedgerRepo) ListByReferences(_ context.Context, referenceType string, referenceIDs []string) ([]*entity.StockLedgerEntry, error) {
	defer r.s.lock(r.inTx)()
	want := make(map[string]struct{}, len(referenceIDs))
	for _, id := range referenceIDs {
		want[id] = struct{}{}
	}
	out := []*entity.StockLedgerEntry{}
	for _, e := range r.s.st.ledger {
		if e.ReferenceType != referenceType {
			continue
		}
		if _, ok := want[e.ReferenceID]; ok {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *LedgerRepo) LastMovementAfter(_ context.Context, sessionID, branchID string, after time.Time) (*time.Time, error) {
	defer r.s.lock(r.inTx)()
	inScope := map[string]struct{}{}
	own := map[string]struct{}{}
	for _, l := range r.s.st.lines {
		if l.SessionID == sessionID {
			inScope[l.ProductCodeVersionID] = struct{}{}
			own[l.ID] = struct{}{}
		}
	}
	var last *time.Time
	for _, e := range r.s.st.ledger {
		if e.BranchID != branchID || !e.CreatedAt.After(after) {
			continue
		}
		if _, ok := inScope[e.ProductCodeVersionID]; !ok {
			continue
		}
		if e.ReferenceType == entity.LedgerRefCountLine {
			if _, mine := own[e.ReferenceID]; mine {
				continue
			}
		}
		if last == nil || e.CreatedAt.After(*last) {
			t := e.CreatedAt
			last = &t
		}
	}
	return last, nil
}

// ── Existencias ──────────────────────────────────────────────────────────────

// StockRepo existencia derivada de sumar el libro por sucursal y producto.
type StockRepo struct {
	s    *Store
	inTx bool
}

func (r *StockRepo) OnHand(_ context.Context, branchID, locationScope string) ([]entity.StockPosition, error) {
	defer r.s.lock(r.inTx)()
	sums := r.s.st.balances(branchID)

	r.s.catMu.RLock()
	defer r.s.catMu.RUnlock()
	out := make([]entity.StockPosition, 0, len(sums))
	for productID, qty := range sums {
		if qty.IsZero() {
			continue
		}
		if locationScope != "" {
			p := r.s.cat.products[productID]
			if p == nil || !countrules.MatchesLocation(p.Location, locationScope) {
				continue
			}
		}
		out = append(out, entity.StockPosition{
			ProductCodeVersionID: productID,
			BranchID:             branchID,
			OnHand:               qty,
			Reserved:             r.s.st.reservedFor(branchID, productID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductCodeVersionID < out[j].ProductCodeVersionID })
	return out, nil
}

// LockForSnapshot no hace nada: el libro solo cambia dentro de Run, que ya es exclusivo.
func (r *StockRepo) LockForSnapshot(context.Context) error { return nil }

// balances suma el libro por producto; branchID vacío = todas las sucursales.
func (st *state) balances(branchID string) map[string]decimal.Decimal {
	sums := map[string]decimal.Decimal{}
	for _, e := range st.ledger {
		if branchID != "" && e.BranchID != branchID {
			continue
		}
		sums[e.ProductCodeVersionID] = sums[e.ProductCodeVersionID].Add(e.QtyChange)
	}
	return sums
}

func (st *state) reservedFor(branchID, productID string) decimal.Decimal {
	if branchID != "" {
		return st.reserved[branchID+"|"+productID]
	}
	total := decimal.Zero
	for k, v := range st.reserved {
		if len(k) > len(productID) && k[len(k)-len(productID)-1:] == "|"+productID {
			total = total.Add(v)
		}
	}
	return total
}

// ── Catálogo ─────────────────────────────────────────────────────────────────

// CatalogRepo lecturas de datos maestros registrados con AddBranch/AddProduct/AddUser.
type CatalogRepo struct {
	s *Store
}

func (r *CatalogRepo) GetBranch(_ context.Context, id string) (*entity.Branch, error) {
	r.s.catMu.RLock()
	defer r.s.catMu.RUnlock()
	b, ok := r.s.cat.branches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *CatalogRepo) GetProduct(_ context.Context, id string) (*entity.ProductCodeVersion, error) {
	r.s.catMu.RLock()
	defer r.s.catMu.RUnlock()
	p, ok := r.s.cat.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *CatalogRepo) GetProducts(_ context.Context, ids []string) (map[string]*entity.ProductCodeVersion, error) {
	r.s.catMu.RLock()
	defer r.s.catMu.RUnlock()
	out := make(map[string]*entity.ProductCodeVersion, len(ids))
	for _, id := range ids {
		if p, ok := r.s.cat.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *CatalogRepo) GetUser(_ context.Context, id string) (*entity.User, error) {
	r.s.catMu.RLock()
	defer r.s.catMu.RUnlock()
	u, ok := r.s.cat.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// ── utilidades ───────────────────────────────────────────────────────────────

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return []T{}
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end]
}
