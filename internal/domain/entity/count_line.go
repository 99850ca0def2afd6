package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de revisión de una línea de conteo.
const (
	ReviewStatusPending          = "pending"
	ReviewStatusRecountRequested = "recount_requested"
	ReviewStatusApproved         = "approved"
)

// Modos de captura.
const (
	CaptureModeAdd = "add" // delta con signo sobre lo ya contado
	CaptureModeSet = "set" // sobrescritura absoluta (último en escribir gana)
)

// CountLine es la pareja (sesión, versión de código de producto).
// ExpectedQty se copia de la línea base y no cambia; la varianza nunca se persiste.
type CountLine struct {
	ID                   string
	SessionID            string
	ProductCodeVersionID string
	ExpectedQty          decimal.Decimal
	CountedQty           decimal.Decimal
	CostCentsAtCount     int64
	Comment              string
	CapturedBy           string
	CapturedAt           *time.Time
	ReviewStatus         string
	Unexpected           bool // capturado sin estar en la línea base
	ReviewedBy           string
	ReviewedAt           *time.Time
	CreatedAt            time.Time
}

// Variance = contado - esperado, siempre recalculado desde los dos campos fuente.
func (l *CountLine) Variance() decimal.Decimal {
	return l.CountedQty.Sub(l.ExpectedQty)
}

// ValueCents valoriza la varianza al costo registrado en la captura.
func (l *CountLine) ValueCents() decimal.Decimal {
	return l.Variance().Mul(decimal.NewFromInt(l.CostCentsAtCount))
}

// IsApproved indica si la línea llegó al estado terminal de revisión.
func (l *CountLine) IsApproved() bool {
	return l.ReviewStatus == ReviewStatusApproved
}
