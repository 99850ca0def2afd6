package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$0,00", formatCents(decimal.Zero))
	assert.Equal(t, "$12,34", formatCents(decimal.NewFromInt(1234)))
	assert.Equal(t, "-$45,00", formatCents(decimal.NewFromInt(-4500)))
	assert.Equal(t, "$1.000.000,05", formatCents(decimal.NewFromInt(100000005)))
}

func TestSigned(t *testing.T) {
	assert.Equal(t, "+2", signed(decimal.NewFromInt(2)))
	assert.Equal(t, "-3", signed(decimal.NewFromInt(-3)))
	assert.Equal(t, "0", signed(decimal.Zero))
}

func TestRenderVarianceReport(t *testing.T) {
	last := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	report := &dto.VarianceReportResponse{
		SessionID:      "5f0c1d2e-aaaa-bbbb-cccc-000000000001",
		Status:         entity.SessionStatusReview,
		MinAbsVariance: decimal.Zero,
		Direction:      "all",
		Lines: []dto.CountLineResponse{{
			ID: "l1", ProductCodeVersionID: "P1", ProductCode: "ANI-001", Description: "Anillo", Location: "Vitrina A",
			ExpectedQty: decimal.NewFromInt(10), CountedQty: decimal.NewFromInt(7), Variance: decimal.NewFromInt(-3),
			CostCentsAtCount: 1500, ValueCents: decimal.NewFromInt(-4500), ReviewStatus: entity.ReviewStatusPending,
		}},
		Totals:                dto.VarianceTotalsDTO{VarianceCount: 1, TotalVariance: decimal.NewFromInt(-3), TotalValueCents: decimal.NewFromInt(-4500)},
		MovementAfterSnapshot: true,
		LastMovementAt:        &last,
	}

	doc, err := NewMarotoPDFGenerator().RenderVarianceReport(context.Background(), &entity.Branch{ID: "B1", Name: "Centro"}, report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")), "debe ser un PDF")
}
