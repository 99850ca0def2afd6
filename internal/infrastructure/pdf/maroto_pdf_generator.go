// Package pdf implementa el reporte imprimible de discrepancias de un conteo físico.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Sucursal            │  Sesión + Estado + Fecha     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FILTROS: |varianza| mínima, dirección, aviso de conflicto  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Código | Descripción | Esperado | Contado | Var | $ │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: líneas con varianza / Σ varianza / Σ valor        │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

var _ count.VarianceReportRenderer = (*MarotoPDFGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary  = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray     = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite    = &props.Color{Red: 255, Green: 255, Blue: 255}
	colorNegative = &props.Color{Red: 170, Green: 30, Blue: 30}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa count.VarianceReportRenderer usando Maroto v2.
type MarotoPDFGenerator struct {
	now func() time.Time
}

// NewMarotoPDFGenerator construye el generador.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{now: time.Now} }

// RenderVarianceReport genera el PDF y devuelve sus bytes.
func (g *MarotoPDFGenerator) RenderVarianceReport(
	_ context.Context,
	branch *entity.Branch,
	report *dto.VarianceReportResponse,
) ([]byte, error) {
	branchName := report.SessionID
	if branch != nil {
		branchName = nonEmpty(branch.Name, branch.ID)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Reporte de discrepancias de conteo", true).
		WithAuthor(branchName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(branchName, report, g.now()))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(filtersRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(report.Lines)...)
	if len(report.Lines) == 0 {
		m.AddRows(row.New(8).Add(col.New(12).Add(
			text.New("Sin discrepancias para los filtros indicados.", props.Text{
				Size: 8, Align: align.Center, Color: colorGray, Top: 2,
			}),
		)))
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(report.Totals))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: sucursal (izq) y sesión + estado + fecha de emisión (der).
func headerRow(branchName string, report *dto.VarianceReportResponse, at time.Time) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(branchName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Conteo físico de inventario", props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("REPORTE DE DISCREPANCIAS", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("Sesión "+shortID(report.SessionID)+" · "+report.Status, props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 7,
			}),
			text.New("Emitido: "+at.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// filtersRow: filtros aplicados y aviso de movimientos posteriores al snapshot.
func filtersRow(report *dto.VarianceReportResponse) core.Row {
	warning := "Sin movimientos posteriores al snapshot."
	if report.MovementAfterSnapshot {
		warning = "ATENCIÓN: hubo movimientos posteriores al snapshot"
		if report.LastMovementAt != nil {
			warning += " (último: " + report.LastMovementAt.Format("02/01/2006 15:04") + ")"
		}
		warning += "."
	}
	return row.New(12).Add(
		col.New(12).Add(
			text.New(fmt.Sprintf("Varianza mínima: %s   |   Dirección: %s",
				report.MinAbsVariance.String(), directionLabel(report.Direction),
			), props.Text{Size: 8, Top: 1, Color: colorGray}),
			text.New(warning, props.Text{Size: 8, Top: 6, Style: fontstyle.Bold}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de líneas.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).WithStyle(&props.Cell{BackgroundColor: colorPrimary}).Add(
		h("Código", 2, align.Left),
		h("Descripción / Ubicación", 4, align.Left),
		h("Esperado", 1, align.Right),
		h("Contado", 1, align.Right),
		h("Var.", 1, align.Right),
		h("Valor", 2, align.Right),
		h("Estado", 1, align.Center),
	)
}

// tableDetailRows: una fila por línea con varianza.
func tableDetailRows(lines []dto.CountLineResponse) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		desc := nonEmpty(l.Description, l.ProductCodeVersionID)
		if l.Location != "" {
			desc += " · " + l.Location
		}
		if l.Unexpected {
			desc += " (no esperado)"
		}
		varColor := colorGray
		if l.Variance.IsNegative() {
			varColor = colorNegative
		}
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(nonEmpty(l.ProductCode, "—"), props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(4).Add(text.New(desc, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(1).Add(text.New(l.ExpectedQty.String(), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(l.CountedQty.String(), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(signed(l.Variance), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1, Color: varColor})),
			col.New(2).Add(text.New(formatCents(l.ValueCents), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(reviewLabel(l.ReviewStatus), props.Text{Size: 7, Align: align.Center, Top: 1})),
		))
	}
	return result
}

// totalsRow: bloque de totales alineado a la derecha.
func totalsRow(t dto.VarianceTotalsDTO) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	grand := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 12})
	}
	return row.New(22).Add(
		col.New(5),
		col.New(4).Add(
			label("Líneas con varianza:"),
			text.New("Σ varianza (unidades):", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 6}),
			text.New("VALOR DE LA DISCREPANCIA:", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: 12}),
		),
		col.New(3).Add(
			text.New(fmt.Sprintf("%d", t.VarianceCount), props.Text{Size: 9, Align: align.Right, Right: 1}),
			text.New(signed(t.TotalVariance), props.Text{Size: 9, Align: align.Right, Right: 1, Top: 6}),
			grand(formatCents(t.TotalValueCents)),
		),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func directionLabel(d string) string {
	switch d {
	case "positive":
		return "sobrantes"
	case "negative":
		return "faltantes"
	default:
		return "todas"
	}
}

func reviewLabel(s string) string {
	switch s {
	case entity.ReviewStatusApproved:
		return "aprobada"
	case entity.ReviewStatusRecountRequested:
		return "recuento"
	default:
		return "pendiente"
	}
}

// signed antepone "+" a las cantidades positivas.
func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

// formatCents convierte centavos a "$1.234,56" (signo incluido).
func formatCents(cents decimal.Decimal) string {
	sign := ""
	if cents.IsNegative() {
		sign = "-"
		cents = cents.Neg()
	}
	units := cents.Div(decimal.NewFromInt(100))
	whole := units.Truncate(0)
	frac := units.Sub(whole).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return fmt.Sprintf("%s$%s,%02d", sign, formatMoney(whole.StringFixed(0)), frac)
}

// formatMoney inserta puntos de miles en un string numérico sin decimales.
// Ej: "25000" → "25.000", "1000000" → "1.000.000"
func formatMoney(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}
