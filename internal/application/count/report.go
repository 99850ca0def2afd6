package count

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockcount-api/internal/domain"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

// Formatos de exportación del reporte de discrepancias.
const (
	ReportFormatPDF  = "pdf"
	ReportFormatXLSX = "xlsx"
)

// ReportUseCase genera el reporte de discrepancias de una sesión en PDF o planilla.
type ReportUseCase struct {
	review    *ReviewUseCase
	catalog   repository.CatalogRepository
	renderers map[string]VarianceReportRenderer
}

// NewReportUseCase construye el caso de uso de reportes. renderers se indexa por formato.
func NewReportUseCase(review *ReviewUseCase, catalog repository.CatalogRepository, renderers map[string]VarianceReportRenderer) *ReportUseCase {
	return &ReportUseCase{review: review, catalog: catalog, renderers: renderers}
}

// VarianceReport aplica los mismos filtros que ListVariances y devuelve el documento en el formato pedido.
func (uc *ReportUseCase) VarianceReport(ctx context.Context, format, sessionID string, minAbs decimal.Decimal, direction string) ([]byte, error) {
	renderer, ok := uc.renderers[format]
	if !ok {
		return nil, fmt.Errorf("%w: formato de reporte %q no soportado", domain.ErrInvalidInput, format)
	}
	report, err := uc.review.ListVariances(ctx, sessionID, minAbs, direction)
	if err != nil {
		return nil, err
	}
	session, err := uc.review.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	branch, err := uc.catalog.GetBranch(ctx, session.BranchID)
	if err != nil {
		return nil, err
	}
	doc, err := renderer.RenderVarianceReport(ctx, branch, report)
	if err != nil {
		return nil, fmt.Errorf("reporte de discrepancias (%s): %w", format, err)
	}
	return doc, nil
}
