package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/pkg/logger"
)

// CountHandler maneja las peticiones HTTP de sesiones de conteo físico (protegido).
type CountHandler struct {
	sessions *count.SessionUseCase
	capture  *count.CaptureUseCase
	review   *count.ReviewUseCase
	report   *count.ReportUseCase
	log      *logger.Logger
}

// NewCountHandler construye el handler.
func NewCountHandler(
	sessions *count.SessionUseCase,
	capture *count.CaptureUseCase,
	review *count.ReviewUseCase,
	report *count.ReportUseCase,
	log *logger.Logger,
) *CountHandler {
	return &CountHandler{sessions: sessions, capture: capture, review: review, report: report, log: log}
}

// CreateSession godoc
// @Summary      Abrir sesión de conteo
// @Description  Crea la sesión en open y toma la línea base (snapshot) del stock en la misma transacción.
// @Tags         count-sessions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateCountSessionRequest  true  "branch_id, scope (cycle|full), location_scope, freeze_movements, counters"
// @Success      201   {object}  dto.CountSessionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Router       /api/count-sessions [post]
func (h *CountHandler) CreateSession(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.CreateCountSessionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := validateRequest(in); err != nil {
		return validationFailed(c, err)
	}
	if !canAccessBranch(c, in.BranchID) {
		return forbiddenBranch(c)
	}
	view, err := h.sessions.CreateSession(c.Context(), count.CreateSessionInputDTO{
		BranchID:        in.BranchID,
		Scope:           in.Scope,
		LocationScope:   in.LocationScope,
		StartDate:       in.StartDate,
		DueDate:         in.DueDate,
		FreezeMovements: in.FreezeMovements,
		Counters:        in.Counters,
		CreatedBy:       userID,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(count.ToSessionResponse(view))
}

// ListSessions godoc
// @Summary      Listar sesiones de conteo
// @Tags         count-sessions
// @Security     Bearer
// @Produce      json
// @Param        branch_id  query  string  false  "Sucursal (por defecto la del token)"
// @Param        status     query  string  false  "open|review|posted|cancelled"
// @Param        limit      query  int     false  "Máximo 100"
// @Param        offset     query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.CountSessionListResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/count-sessions [get]
func (h *CountHandler) ListSessions(c *fiber.Ctx) error {
	branchID := c.Query("branch_id", GetBranchID(c))
	if !canAccessBranch(c, branchID) {
		return forbiddenBranch(c)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.DefaultPage()
	if err := validateRequest(page); err != nil {
		return validationFailed(c, err)
	}
	list, err := h.sessions.ListSessions(c.Context(), branchID, c.Query("status"), page)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

// GetSession godoc
// @Summary      Obtener sesión de conteo
// @Description  Incluye movement_after_snapshot, conflict_blocking y last_movement_at.
// @Tags         count-sessions
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "Session ID"
// @Success      200  {object}  dto.CountSessionResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/count-sessions/{id} [get]
func (h *CountHandler) GetSession(c *fiber.Ctx) error {
	view, err := h.sessions.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(count.ToSessionResponse(view))
}

// UpdateStatus godoc
// @Summary      Cambiar estado de la sesión
// @Description  open→review, open→cancelled, review→posted (contabiliza), review→cancelled.
// @Tags         count-sessions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                                true  "Session ID"
// @Param        body  body  dto.UpdateCountSessionStatusRequest  true  "status destino"
// @Success      200   {object}  dto.CountSessionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/count-sessions/{id}/status [patch]
func (h *CountHandler) UpdateStatus(c *fiber.Ctx) error {
	var in dto.UpdateCountSessionStatusRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := validateRequest(in); err != nil {
		return validationFailed(c, err)
	}
	view, err := h.sessions.TransitionStatus(c.Context(), c.Params("id"), in.Status, GetUserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(count.ToSessionResponse(view))
}

// Capture godoc
// @Summary      Registrar captura de conteo
// @Description  mode=add suma la cantidad; mode=set la reemplaza. Devuelve la línea y la sesión con sus banderas de conflicto.
// @Tags         count-sessions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "Session ID"
// @Param        body  body  dto.CaptureRequest  true  "product_code_version_id, counted_qty, mode, comment"
// @Success      200   {object}  dto.CaptureResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/count-sessions/{id}/captures [post]
func (h *CountHandler) Capture(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.CaptureRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := validateRequest(in); err != nil {
		return validationFailed(c, err)
	}
	sessionID := c.Params("id")
	line, err := h.capture.Capture(c.Context(), count.CaptureInputDTO{
		SessionID:            sessionID,
		ProductCodeVersionID: in.ProductCodeVersionID,
		Quantity:             in.CountedQty,
		Mode:                 in.Mode,
		Comment:              in.Comment,
		ActorID:              userID,
	})
	if err != nil {
		return h.fail(c, err)
	}
	lineOut, err := h.capture.Describe(c.Context(), line)
	if err != nil {
		return h.fail(c, err)
	}
	view, err := h.sessions.GetSession(c.Context(), sessionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(dto.CaptureResponse{Session: count.ToSessionResponse(view), Line: lineOut})
}

// ListRecent godoc
// @Summary      Últimas capturas de la sesión
// @Tags         count-sessions
// @Security     Bearer
// @Produce      json
// @Param        id     path   string  true   "Session ID"
// @Param        limit  query  int     false  "Máximo 100"
// @Success      200  {array}   dto.CountLineResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/count-sessions/{id}/captures/recent [get]
func (h *CountHandler) ListRecent(c *fiber.Ctx) error {
	lines, err := h.capture.ListRecent(c.Context(), c.Params("id"), c.QueryInt("limit", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(lines)
}

// ListItems godoc
// @Summary      Buscar ítems de la sesión
// @Description  Búsqueda por código, descripción o ubicación sin distinguir mayúsculas ni tildes.
// @Tags         count-sessions
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "Session ID"
// @Param        search  query  string  false  "Texto a buscar"
// @Param        limit   query  int     false  "Máximo 100"
// @Param        offset  query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.CountLineListResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/count-sessions/{id}/items [get]
func (h *CountHandler) ListItems(c *fiber.Ctx) error {
	var q dto.ItemsQuery
	if err := c.QueryParser(&q); err != nil {
		return badBody(c)
	}
	if err := validateRequest(q); err != nil {
		return validationFailed(c, err)
	}
	list, err := h.capture.ListItems(c.Context(), c.Params("id"), q.Search, dto.PageRequest{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

// ListVariances godoc
// @Summary      Discrepancias de la sesión
// @Tags         count-sessions
// @Security     Bearer
// @Produce      json
// @Param        id         path   string  true   "Session ID"
// @Param        min_abs    query  string  false  "|varianza| mínima (decimal)"
// @Param        direction  query  string  false  "all|positive|negative"
// @Success      200  {object}  dto.VarianceReportResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/count-sessions/{id}/variances [get]
func (h *CountHandler) ListVariances(c *fiber.Ctx) error {
	minAbs, direction, err := parseVarianceQuery(c)
	if err != nil {
		return validationFailed(c, err)
	}
	report, err := h.review.ListVariances(c.Context(), c.Params("id"), minAbs, direction)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

// VariancesPDF godoc
// @Summary      Reporte de discrepancias en PDF
// @Tags         count-sessions
// @Security     Bearer
// @Produce      application/pdf
// @Param        id         path   string  true   "Session ID"
// @Param        min_abs    query  string  false  "|varianza| mínima (decimal)"
// @Param        direction  query  string  false  "all|positive|negative"
// @Success      200  {file}    binary
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/count-sessions/{id}/variances.pdf [get]
func (h *CountHandler) VariancesPDF(c *fiber.Ctx) error {
	return h.exportVariances(c, count.ReportFormatPDF, "application/pdf", "inline")
}

// VariancesXLSX godoc
// @Summary      Reporte de discrepancias en Excel
// @Tags         count-sessions
// @Security     Bearer
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id         path   string  true   "Session ID"
// @Param        min_abs    query  string  false  "|varianza| mínima (decimal)"
// @Param        direction  query  string  false  "all|positive|negative"
// @Success      200  {file}    binary
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/count-sessions/{id}/variances.xlsx [get]
func (h *CountHandler) VariancesXLSX(c *fiber.Ctx) error {
	return h.exportVariances(c, count.ReportFormatXLSX, xlsxContentType, "attachment")
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *CountHandler) exportVariances(c *fiber.Ctx, format, contentType, disposition string) error {
	minAbs, direction, err := parseVarianceQuery(c)
	if err != nil {
		return validationFailed(c, err)
	}
	sessionID := c.Params("id")
	doc, err := h.report.VarianceReport(c.Context(), format, sessionID, minAbs, direction)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`%s; filename="discrepancias-%s.%s"`, disposition, sessionID, format))
	return c.Send(doc)
}

// RequestRecount godoc
// @Summary      Pedir recuento de una línea
// @Tags         count-sessions
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "Line ID"
// @Success      200  {object}  dto.CountLineResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/count-lines/{id}/recount [post]
func (h *CountHandler) RequestRecount(c *fiber.Ctx) error {
	line, err := h.review.RequestRecount(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	out, err := h.capture.Describe(c.Context(), line)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

// Approve godoc
// @Summary      Aprobar líneas y contabilizar ajustes
// @Description  Cada línea la gana un único revisor; los ganadores se contabilizan en el libro en la misma transacción.
// @Tags         count-sessions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "Session ID"
// @Param        body  body  dto.ApproveRequest  true  "line_ids"
// @Success      200   {object}  dto.ApproveResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ConflictErrorResponse
// @Router       /api/count-sessions/{id}/approve [post]
func (h *CountHandler) Approve(c *fiber.Ctx) error {
	var in dto.ApproveRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := validateRequest(in); err != nil {
		return validationFailed(c, err)
	}
	result, err := h.review.Approve(c.Context(), c.Params("id"), GetUserID(c), in.LineIDs)
	if err != nil {
		return h.fail(c, err)
	}
	posted := make([]dto.LedgerEntryResponse, 0, len(result.PostedLines))
	for _, e := range result.PostedLines {
		posted = append(posted, count.ToLedgerEntryResponse(e))
	}
	approved := result.ApprovedLineIDs
	if approved == nil {
		approved = []string{}
	}
	return c.JSON(dto.ApproveResponse{ApprovedLineIDs: approved, PostedLines: posted})
}

// fail registra los errores internos y responde con el código mapeado.
func (h *CountHandler) fail(c *fiber.Ctx, err error) error {
	if isInternal(err) {
		h.log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("error interno")
	}
	return writeError(c, err)
}

func parseVarianceQuery(c *fiber.Ctx) (decimal.Decimal, string, error) {
	var q dto.VarianceQuery
	if err := c.QueryParser(&q); err != nil {
		return decimal.Zero, "", err
	}
	if err := validateRequest(q); err != nil {
		return decimal.Zero, "", err
	}
	minAbs := decimal.Zero
	if q.MinAbsVariance != "" {
		d, err := decimal.NewFromString(q.MinAbsVariance)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("min_abs inválido: %w", err)
		}
		minAbs = d
	}
	return minAbs, q.Direction, nil
}

// SessionScope resuelve la sucursal de la sesión :id y corta la petición si el token es de otra.
// Va después de RequireRole en toda ruta /count-sessions/:id.
func (h *CountHandler) SessionScope(c *fiber.Ctx) error {
	session, err := h.sessions.Lookup(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if !canAccessBranch(c, session.BranchID) {
		return forbiddenBranch(c)
	}
	return c.Next()
}

// LineScope igual que SessionScope, para /count-lines/:id: la sucursal sale de la sesión de la línea.
func (h *CountHandler) LineScope(c *fiber.Ctx) error {
	session, err := h.review.SessionOfLine(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if !canAccessBranch(c, session.BranchID) {
		return forbiddenBranch(c)
	}
	return c.Next()
}

// canAccessBranch: admin ve todas las sucursales; el resto solo la de su token.
func canAccessBranch(c *fiber.Ctx, branchID string) bool {
	if GetRole(c) == entity.RoleAdmin {
		return true
	}
	tokenBranch := GetBranchID(c)
	return tokenBranch == "" || tokenBranch == branchID
}
