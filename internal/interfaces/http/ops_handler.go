package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockcount-api/internal/application/ops"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/pkg/logger"
)

// OpsHandler expone el modelo de lectura operativo.
type OpsHandler struct {
	uc  *ops.DashboardUseCase
	log *logger.Logger
}

// NewOpsHandler construye el handler.
func NewOpsHandler(uc *ops.DashboardUseCase, log *logger.Logger) *OpsHandler {
	return &OpsHandler{uc: uc, log: log}
}

// GetDashboard devuelve valorización, bajo stock, movimientos del día e historial de sesiones.
// GET /api/ops/dashboard?branch_id=
//
// Un usuario con sucursal en el token solo ve la suya; admin sin branch_id ve todas.
// Puede leerse de la réplica: los datos son eventualmente consistentes.
//
// @Summary      Tablero operativo
// @Tags         ops
// @Security     Bearer
// @Produce      json
// @Param        branch_id  query  string  false  "Sucursal; vacío = la del token (admin: todas)"
// @Success      200  {object}  dto.OpsDashboardResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/ops/dashboard [get]
func (h *OpsHandler) GetDashboard(c *fiber.Ctx) error {
	branchID := c.Query("branch_id")
	if branchID == "" && GetRole(c) != entity.RoleAdmin {
		branchID = GetBranchID(c)
	}
	if branchID != "" && !canAccessBranch(c, branchID) {
		return forbiddenBranch(c)
	}
	out, err := h.uc.GetDashboard(c.Context(), branchID)
	if err != nil {
		h.log.Error().Err(err).Str("branch_id", branchID).Msg("dashboard")
		return writeError(c, err)
	}
	return c.JSON(out)
}
