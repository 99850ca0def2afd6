// Package xlsx exporta el reporte de discrepancias como planilla Excel para conciliación manual.
package xlsx

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

var _ count.VarianceReportRenderer = (*VarianceSheet)(nil)

const sheetName = "Discrepancias"

var header = []any{
	"Código", "Descripción", "Ubicación", "Esperado", "Contado", "Varianza",
	"Costo (centavos)", "Valor (centavos)", "Revisión", "No esperado",
}

// VarianceSheet genera un .xlsx con una fila por línea y una fila de totales.
type VarianceSheet struct{}

// NewVarianceSheet construye el exportador.
func NewVarianceSheet() *VarianceSheet { return &VarianceSheet{} }

// RenderVarianceReport escribe la planilla y devuelve sus bytes.
func (g *VarianceSheet) RenderVarianceReport(_ context.Context, branch *entity.Branch, report *dto.VarianceReportResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("xlsx: hoja: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx: estilo: %w", err)
	}

	branchName := ""
	if branch != nil {
		branchName = branch.Name
	}
	title := fmt.Sprintf("Sucursal %s · sesión %s · estado %s", branchName, report.SessionID, report.Status)
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return nil, err
	}
	if report.MovementAfterSnapshot && report.LastMovementAt != nil {
		if err := f.SetCellValue(sheetName, "A2", "Movimientos posteriores al snapshot; último: "+report.LastMovementAt.Format("2006-01-02 15:04:05")); err != nil {
			return nil, err
		}
	}

	if err := f.SetSheetRow(sheetName, "A3", &header); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A3", "J3", bold); err != nil {
		return nil, err
	}

	rowIdx := 4
	for _, l := range report.Lines {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return nil, err
		}
		values := []any{
			l.ProductCode, l.Description, l.Location,
			l.ExpectedQty.InexactFloat64(), l.CountedQty.InexactFloat64(), l.Variance.InexactFloat64(),
			l.CostCentsAtCount, l.ValueCents.InexactFloat64(), l.ReviewStatus, l.Unexpected,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, err
		}
		rowIdx++
	}

	totalsCell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
	if err != nil {
		return nil, err
	}
	totals := []any{
		"Totales", fmt.Sprintf("%d líneas con varianza", report.Totals.VarianceCount), "", "", "",
		report.Totals.TotalVariance.InexactFloat64(), "", report.Totals.TotalValueCents.InexactFloat64(),
	}
	if err := f.SetSheetRow(sheetName, totalsCell, &totals); err != nil {
		return nil, err
	}
	endCell, _ := excelize.CoordinatesToCellName(len(totals), rowIdx+1)
	if err := f.SetCellStyle(sheetName, totalsCell, endCell, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: escribir: %w", err)
	}
	return buf.Bytes(), nil
}
