package count

import (
	"context"

	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
)

// TxRepos repositorios atados a una misma transacción de BD.
type TxRepos struct {
	Sessions repository.CountSessionRepository
	Lines    repository.CountLineRepository
	Ledger   repository.StockLedgerRepository
	Stock    repository.StockRepository
}

// TxRunner ejecuta fn dentro de una transacción: Commit si fn devuelve nil, Rollback en otro caso.
// Garantiza la atomicidad de snapshot, captura, aprobación y contabilización.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos TxRepos) error) error
}

// Metrics puerto de métricas del motor de conteo (implementado con Prometheus en infraestructura).
type Metrics interface {
	CaptureApplied(mode, result string)
	SessionTransitioned(to string)
	LinesApproved(n int)
	LedgerEntriesPosted(n int)
	ConflictDetected(blocking bool)
}

// NopMetrics descarta todas las métricas.
type NopMetrics struct{}

func (NopMetrics) CaptureApplied(string, string) {}
func (NopMetrics) SessionTransitioned(string)    {}
func (NopMetrics) LinesApproved(int)             {}
func (NopMetrics) LedgerEntriesPosted(int)       {}
func (NopMetrics) ConflictDetected(bool)         {}

// VarianceReportRenderer genera la representación imprimible del reporte de discrepancias.
type VarianceReportRenderer interface {
	RenderVarianceReport(ctx context.Context, branch *entity.Branch, report *dto.VarianceReportResponse) ([]byte, error)
}
