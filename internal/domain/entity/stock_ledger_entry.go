package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Razones y referencias que emite este subsistema en el libro de stock.
const (
	LedgerReasonCountAdjustment = "count_adjustment"
	LedgerRefCountLine          = "count_line"
)

// StockLedgerEntry es un movimiento inmutable del libro de stock (append-only).
// Como máximo una entrada referencia un mismo par (ReferenceType, ReferenceID) de conteo.
type StockLedgerEntry struct {
	ID                   string
	ProductCodeVersionID string
	BranchID             string
	QtyChange            decimal.Decimal // con signo
	Reason               string
	ReferenceType        string
	ReferenceID          string
	CreatedBy            string
	CreatedAt            time.Time
}
