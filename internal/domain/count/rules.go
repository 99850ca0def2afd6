// Package count contiene las reglas puras de la conciliación de conteo físico:
// máquina de estados, aplicación de capturas y filtrado de varianzas.
package count

import (
	"strings"

	"github.com/jhoicas/stockcount-api/internal/domain"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Direcciones de filtrado de varianzas.
const (
	DirectionAll      = "all"
	DirectionPositive = "positive"
	DirectionNegative = "negative"
)

// transitions tabla de transiciones legales (posted y cancelled son terminales).
var transitions = map[string][]string{
	entity.SessionStatusOpen:   {entity.SessionStatusReview, entity.SessionStatusCancelled},
	entity.SessionStatusReview: {entity.SessionStatusPosted, entity.SessionStatusCancelled},
}

// ValidScope indica si el alcance es cycle o full.
func ValidScope(scope string) bool {
	return scope == entity.ScopeCycle || scope == entity.ScopeFull
}

// ValidDirection indica si la dirección de filtrado es conocida.
func ValidDirection(direction string) bool {
	switch direction {
	case DirectionAll, DirectionPositive, DirectionNegative:
		return true
	}
	return false
}

// CanTransition indica si from → to es una transición legal.
func CanTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// QuantityScale decimales que conserva el almacenamiento (NUMERIC(18,4)).
const QuantityScale = 4

// ValidQuantityScale indica si q cabe en QuantityScale decimales sin redondeo.
func ValidQuantityScale(q decimal.Decimal) bool {
	return q.Equal(q.Truncate(QuantityScale))
}

// ApplyCapture calcula la nueva cantidad contada.
// add: previo + delta (puede ser negativo); set: sobrescritura absoluta.
func ApplyCapture(previous, quantity decimal.Decimal, mode string) (decimal.Decimal, error) {
	var next decimal.Decimal
	switch mode {
	case entity.CaptureModeAdd:
		next = previous.Add(quantity)
	case entity.CaptureModeSet:
		next = quantity
	default:
		return decimal.Zero, domain.ErrInvalidInput
	}
	if next.IsNegative() {
		return decimal.Zero, domain.ErrInvalidQuantity
	}
	return next, nil
}

// MatchesLocation indica si una ubicación pertenece al alcance de un conteo cíclico.
// Alcance vacío = todas las ubicaciones.
func MatchesLocation(location, locationScope string) bool {
	scope := strings.TrimSpace(locationScope)
	if scope == "" {
		return true
	}
	return strings.Contains(strings.ToLower(location), strings.ToLower(scope))
}

// VarianceTotals totales sobre el conjunto filtrado.
type VarianceTotals struct {
	VarianceCount   int
	TotalVariance   decimal.Decimal
	TotalValueCents decimal.Decimal // Σ varianza × costo al contar
}

// FilterVariances filtra líneas con |varianza| >= minAbs en la dirección pedida y calcula totales.
// Las líneas con varianza cero solo aparecen con minAbs = 0 y dirección all.
func FilterVariances(lines []*entity.CountLine, minAbs decimal.Decimal, direction string) ([]*entity.CountLine, VarianceTotals) {
	totals := VarianceTotals{TotalVariance: decimal.Zero, TotalValueCents: decimal.Zero}
	out := make([]*entity.CountLine, 0, len(lines))
	for _, l := range lines {
		v := l.Variance()
		if v.Abs().LessThan(minAbs) {
			continue
		}
		switch direction {
		case DirectionPositive:
			if !v.IsPositive() {
				continue
			}
		case DirectionNegative:
			if !v.IsNegative() {
				continue
			}
		}
		out = append(out, l)
		if !v.IsZero() {
			totals.VarianceCount++
		}
		totals.TotalVariance = totals.TotalVariance.Add(v)
		totals.TotalValueCents = totals.TotalValueCents.Add(l.ValueCents())
	}
	return out, totals
}
