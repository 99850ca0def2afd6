// Package memory implementa todos los puertos del motor de conteo en memoria.
// Una transacción toma el mutex del store y restaura una copia del estado si fn falla,
// de modo que las mismas garantías de atomicidad valen para tests y modo demo.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ErrInjectedFault error devuelto por FailLedgerWritesAfter.
var ErrInjectedFault = errors.New("memory: falla inyectada en el libro")

var _ count.TxRunner = (*Store)(nil)

type state struct {
	sessions   map[string]*entity.CountSession
	events     []*entity.CountSessionEvent
	lines      map[string]*entity.CountLine
	lineKey    map[string]string // session|producto → id de línea
	ledger     []*entity.StockLedgerEntry
	ledgerRefs map[string]string // tipo|referencia → id de entrada
	reserved   map[string]decimal.Decimal
}

func newState() *state {
	return &state{
		sessions:   map[string]*entity.CountSession{},
		lines:      map[string]*entity.CountLine{},
		lineKey:    map[string]string{},
		ledgerRefs: map[string]string{},
		reserved:   map[string]decimal.Decimal{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.sessions {
		c.sessions[k] = copySession(v)
	}
	c.events = append(c.events, st.events...)
	for k, v := range st.lines {
		cp := *v
		c.lines[k] = &cp
	}
	for k, v := range st.lineKey {
		c.lineKey[k] = v
	}
	c.ledger = append(c.ledger, st.ledger...)
	for k, v := range st.ledgerRefs {
		c.ledgerRefs[k] = v
	}
	for k, v := range st.reserved {
		c.reserved[k] = v
	}
	return c
}

type catalog struct {
	branches map[string]*entity.Branch
	products map[string]*entity.ProductCodeVersion
	users    map[string]*entity.User
}

// Store almacén en memoria. Orden de bloqueo: mu → catMu.
type Store struct {
	mu sync.Mutex
	st *state

	catMu sync.RWMutex
	cat   catalog

	ledgerFailAfter int
	ledgerWrites    int
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		st: newState(),
		cat: catalog{
			branches: map[string]*entity.Branch{},
			products: map[string]*entity.ProductCodeVersion{},
			users:    map[string]*entity.User{},
		},
		ledgerFailAfter: -1,
	}
}

// Run ejecuta fn con repositorios atados a la "transacción"; si fn falla el estado se restaura.
func (s *Store) Run(ctx context.Context, fn func(repos count.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	backup := s.st.clone()
	repos := count.TxRepos{
		Sessions: &SessionRepo{s: s, inTx: true},
		Lines:    &LineRepo{s: s, inTx: true},
		Ledger:   &LedgerRepo{s: s, inTx: true},
		Stock:    &StockRepo{s: s, inTx: true},
	}
	if err := fn(repos); err != nil {
		s.st = backup
		return err
	}
	return nil
}

// lock toma el mutex salvo que el repositorio ya corra dentro de Run.
func (s *Store) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Sessions repositorio de sesiones fuera de transacción.
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// Lines repositorio de líneas fuera de transacción.
func (s *Store) Lines() *LineRepo { return &LineRepo{s: s} }

// Ledger repositorio del libro fuera de transacción.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// Stock repositorio de existencias fuera de transacción.
func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

// Catalog repositorio de datos maestros.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

// Ops repositorio del tablero operativo.
func (s *Store) Ops() *OpsRepo { return &OpsRepo{s: s} }

// ── Datos maestros y colaboradores externos ──────────────────────────────────

// AddBranch registra una sucursal.
func (s *Store) AddBranch(b entity.Branch) {
	s.catMu.Lock()
	defer s.catMu.Unlock()
	s.cat.branches[b.ID] = &b
}

// AddProduct registra una versión de código de producto.
func (s *Store) AddProduct(p entity.ProductCodeVersion) {
	s.catMu.Lock()
	defer s.catMu.Unlock()
	s.cat.products[p.ID] = &p
}

// AddUser registra un usuario del directorio.
func (s *Store) AddUser(u entity.User) {
	s.catMu.Lock()
	defer s.catMu.Unlock()
	s.cat.users[u.ID] = &u
}

// RecordMovement agrega un movimiento externo al libro (venta, compra, empeño).
func (s *Store) RecordMovement(branchID, productID string, qty decimal.Decimal, reason string, at time.Time) *entity.StockLedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entity.StockLedgerEntry{
		ID:                   uuid.New().String(),
		ProductCodeVersionID: productID,
		BranchID:             branchID,
		QtyChange:            qty,
		Reason:               reason,
		CreatedAt:            at,
	}
	s.st.ledger = append(s.st.ledger, e)
	cp := *e
	return &cp
}

// SetReserved fija la cantidad reservada (apartados) de un producto en una sucursal.
func (s *Store) SetReserved(branchID, productID string, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.reserved[branchID+"|"+productID] = qty
}

// FailLedgerWritesAfter hace fallar las escrituras al libro después de n inserciones exitosas.
// n < 0 desactiva la falla.
func (s *Store) FailLedgerWritesAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgerFailAfter = n
	s.ledgerWrites = 0
}

// LedgerEntries copia del libro completo en orden de escritura.
func (s *Store) LedgerEntries() []entity.StockLedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.StockLedgerEntry, 0, len(s.st.ledger))
	for _, e := range s.st.ledger {
		out = append(out, *e)
	}
	return out
}

func copySession(in *entity.CountSession) *entity.CountSession {
	cp := *in
	cp.Counters = append([]string(nil), in.Counters...)
	return &cp
}

func copyLine(in *entity.CountLine) *entity.CountLine {
	cp := *in
	return &cp
}
