package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/application/dto"
	"github.com/jhoicas/stockcount-api/internal/application/ops"
	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/memory"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/pdf"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/xlsx"
	apphttp "github.com/jhoicas/stockcount-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/stockcount-api/pkg/jwt"
	"github.com/jhoicas/stockcount-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// App de prueba: handlers reales sobre el store en memoria
// ──────────────────────────────────────────────────────────────────────────────

const (
	apiBranch     = "B1"
	apiSupervisor = "sup-1"
	apiCounter    = "cnt-a"
)

type apiFixture struct {
	app   *fiber.App
	store *memory.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	store.AddBranch(entity.Branch{ID: apiBranch, Name: "Centro"})
	store.AddBranch(entity.Branch{ID: "B2", Name: "Norte"})
	store.AddProduct(entity.ProductCodeVersion{ID: "P1", Code: "ANI-001", Description: "Anillo oro 14k", Location: "Vitrina A", CostCents: 1500})
	store.AddProduct(entity.ProductCodeVersion{ID: "P2", Code: "CAD-002", Description: "Cadena plata", Location: "Vitrina B", CostCents: 200})
	store.AddUser(entity.User{ID: apiSupervisor, BranchID: apiBranch, Name: "Supervisora", Role: entity.RoleSupervisor, Active: true})
	store.AddUser(entity.User{ID: apiCounter, BranchID: apiBranch, Name: "Contador", Role: entity.RoleCounter, Active: true})
	store.RecordMovement(apiBranch, "P1", decimal.NewFromInt(5), "purchase", time.Now().Add(-time.Hour))
	store.RecordMovement(apiBranch, "P2", decimal.NewFromInt(3), "purchase", time.Now().Add(-time.Hour))

	log := logger.Nop()
	metrics := count.NopMetrics{}
	snapshot := count.NewSnapshotService(store, store.Sessions(), store.Ledger(), store.Catalog(), metrics, log)
	poster := count.NewLedgerPoster(store, metrics, log)
	sessions := count.NewSessionUseCase(store, store.Sessions(), store.Catalog(), snapshot, poster, metrics, log)
	capture := count.NewCaptureUseCase(store, store.Sessions(), store.Lines(), store.Catalog(), metrics, log, 20)
	review := count.NewReviewUseCase(store, store.Sessions(), store.Lines(), store.Catalog(), snapshot, poster, metrics, log)
	report := count.NewReportUseCase(review, store.Catalog(), map[string]count.VarianceReportRenderer{
		count.ReportFormatPDF:  pdf.NewMarotoPDFGenerator(),
		count.ReportFormatXLSX: xlsx.NewVarianceSheet(),
	})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Count:     apphttp.NewCountHandler(sessions, capture, review, report, log),
		Ops:       apphttp.NewOpsHandler(ops.NewDashboardUseCase(store.Ops(), 20), log),
		JWTSecret: testJWTSecret,
	})
	return &apiFixture{app: app, store: store}
}

func tokenFor(t *testing.T, userID, branchID, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, userID, branchID, role, testIssuer, testExpMin)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *apiFixture) createSession(t *testing.T, body dto.CreateCountSessionRequest) dto.CountSessionResponse {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/count-sessions", tokenFor(t, apiSupervisor, apiBranch, "supervisor"), body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[dto.CountSessionResponse](t, resp)
}

// ──────────────────────────────────────────────────────────────────────────────
// Flujo completo
// ──────────────────────────────────────────────────────────────────────────────

func TestCountAPI_FlujoCompleto(t *testing.T) {
	f := newAPIFixture(t)
	sup := tokenFor(t, apiSupervisor, apiBranch, "supervisor")
	cnt := tokenFor(t, apiCounter, apiBranch, "counter")

	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full", Counters: []string{apiCounter}})
	assert.Equal(t, "open", session.Status)
	require.NotNil(t, session.SnapshotAt)

	resp := f.do(t, http.MethodPost, "/api/count-sessions/"+session.ID+"/captures", cnt,
		map[string]any{"product_code_version_id": "P1", "counted_qty": 7, "mode": "set"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	captured := decode[dto.CaptureResponse](t, resp)
	assert.True(t, captured.Line.CountedQty.Equal(decimal.NewFromInt(7)))
	assert.True(t, captured.Line.Variance.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "ANI-001", captured.Line.ProductCode)
	assert.False(t, captured.Session.MovementAfterSnapshot)

	time.Sleep(2 * time.Millisecond)
	resp = f.do(t, http.MethodPost, "/api/count-sessions/"+session.ID+"/captures", cnt,
		map[string]any{"product_code_version_id": "P2", "counted_qty": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/captures/recent?limit=1", cnt, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recent := decode[[]dto.CountLineResponse](t, resp)
	require.Len(t, recent, 1)
	assert.Equal(t, "P2", recent[0].ProductCodeVersionID)

	resp = f.do(t, http.MethodPatch, "/api/count-sessions/"+session.ID+"/status", sup, dto.UpdateCountSessionStatusRequest{Status: "review"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/variances?min_abs=1", sup, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	variances := decode[dto.VarianceReportResponse](t, resp)
	require.Len(t, variances.Lines, 1, "solo P1 tiene varianza distinta de cero")
	assert.Equal(t, 1, variances.Totals.VarianceCount)

	resp = f.do(t, http.MethodPost, "/api/count-sessions/"+session.ID+"/approve", sup,
		dto.ApproveRequest{LineIDs: []string{variances.Lines[0].ID}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decode[dto.ApproveResponse](t, resp)
	assert.Equal(t, []string{variances.Lines[0].ID}, approved.ApprovedLineIDs)
	require.Len(t, approved.PostedLines, 1)
	assert.True(t, approved.PostedLines[0].QtyChange.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "count_line", approved.PostedLines[0].ReferenceType)

	resp = f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID, cnt, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[dto.CountSessionResponse](t, resp)
	assert.False(t, got.MovementAfterSnapshot, "los ajustes propios no cuentan como conflicto")
}

// ──────────────────────────────────────────────────────────────────────────────
// Mapeo de errores
// ──────────────────────────────────────────────────────────────────────────────

func TestCountAPI_ContadorNoPuedeAprobar(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})

	resp := f.do(t, http.MethodPost, "/api/count-sessions/"+session.ID+"/approve",
		tokenFor(t, apiCounter, apiBranch, "counter"), dto.ApproveRequest{LineIDs: []string{"x"}})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCountAPI_CapturaInvalida(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})
	cnt := tokenFor(t, apiCounter, apiBranch, "counter")

	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{"modo desconocido", map[string]any{"product_code_version_id": "P1", "counted_qty": 1, "mode": "mul"}, "VALIDATION"},
		{"sin producto", map[string]any{"counted_qty": 1}, "VALIDATION"},
		{"set negativo", map[string]any{"product_code_version_id": "P1", "counted_qty": -1, "mode": "set"}, "INVALID_QUANTITY"},
		{"producto desconocido", map[string]any{"product_code_version_id": "NOPE", "counted_qty": 1}, "UNKNOWN_PRODUCT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/count-sessions/"+session.ID+"/captures", cnt, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[dto.ErrorResponse](t, resp)
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestCountAPI_CapturaEnSesionCancelada_409(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})
	sup := tokenFor(t, apiSupervisor, apiBranch, "supervisor")

	resp := f.do(t, http.MethodPatch, "/api/count-sessions/"+session.ID+"/status", sup, dto.UpdateCountSessionStatusRequest{Status: "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/count-sessions/"+session.ID+"/captures",
		tokenFor(t, apiCounter, apiBranch, "counter"), map[string]any{"product_code_version_id": "P1", "counted_qty": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_OPEN", decode[dto.ErrorResponse](t, resp).Code)

	resp = f.do(t, http.MethodPatch, "/api/count-sessions/"+session.ID+"/status", sup, dto.UpdateCountSessionStatusRequest{Status: "open"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ILLEGAL_TRANSITION", decode[dto.ErrorResponse](t, resp).Code)
}

func TestCountAPI_ConflictoCongelado_409ConFecha(t *testing.T) {
	f := newAPIFixture(t)
	sup := tokenFor(t, apiSupervisor, apiBranch, "supervisor")
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full", FreezeMovements: true})

	resp := f.do(t, http.MethodPatch, "/api/count-sessions/"+session.ID+"/status", sup, dto.UpdateCountSessionStatusRequest{Status: "review"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sale := f.store.RecordMovement(apiBranch, "P1", decimal.NewFromInt(-1), "sale", time.Now().Add(time.Second))

	resp = f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/variances", sup, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	variances := decode[dto.VarianceReportResponse](t, resp)
	require.NotEmpty(t, variances.Lines)
	assert.True(t, variances.MovementAfterSnapshot)

	resp = f.do(t, http.MethodPost, "/api/count-sessions/"+session.ID+"/approve", sup,
		dto.ApproveRequest{LineIDs: []string{variances.Lines[0].ID}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[dto.ConflictErrorResponse](t, resp)
	assert.Equal(t, "CONFLICT_UNRESOLVED", body.Code)
	assert.True(t, body.LastMovementAt.Equal(sale.CreatedAt), "debe informar la fecha del último movimiento")
}

func TestCountAPI_SesionInexistente_404(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodGet, "/api/count-sessions/no-existe", tokenFor(t, apiSupervisor, apiBranch, "supervisor"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode[dto.ErrorResponse](t, resp).Code)
}

func TestCountAPI_DireccionInvalida_400(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})
	resp := f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/variances?direction=arriba",
		tokenFor(t, apiSupervisor, apiBranch, "supervisor"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCountAPI_OtraSucursal_403(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})
	sup := tokenFor(t, apiSupervisor, apiBranch, "supervisor")

	resp := f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/items", sup, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[dto.CountLineListResponse](t, resp)
	require.NotEmpty(t, items.Items)
	lineID := items.Items[0].ID

	base := "/api/count-sessions/" + session.ID
	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, base, nil},
		{http.MethodPatch, base + "/status", dto.UpdateCountSessionStatusRequest{Status: "cancelled"}},
		{http.MethodPost, base + "/captures", map[string]any{"product_code_version_id": "P1", "counted_qty": 9}},
		{http.MethodGet, base + "/captures/recent", nil},
		{http.MethodGet, base + "/items", nil},
		{http.MethodGet, base + "/variances", nil},
		{http.MethodGet, base + "/variances.pdf", nil},
		{http.MethodGet, base + "/variances.xlsx", nil},
		{http.MethodPost, base + "/approve", dto.ApproveRequest{LineIDs: []string{lineID}}},
		{http.MethodPost, "/api/count-lines/" + lineID + "/recount", nil},
	}
	foreign := tokenFor(t, "sup-2", "B2", "supervisor")
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := f.do(t, tc.method, tc.path, foreign, tc.body)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, "FORBIDDEN", decode[dto.ErrorResponse](t, resp).Code)
		})
	}

	// Nada de lo anterior tocó la sesión.
	resp = f.do(t, http.MethodGet, base, sup, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "open", decode[dto.CountSessionResponse](t, resp).Status)

	resp = f.do(t, http.MethodGet, base+"/items", sup, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, line := range decode[dto.CountLineListResponse](t, resp).Items {
		assert.Nil(t, line.CapturedAt, "la captura ajena no se registró en %s", line.ProductCodeVersionID)
		assert.Equal(t, "pending", line.ReviewStatus)
	}

	resp = f.do(t, http.MethodGet, base, tokenFor(t, "root", "", "admin"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "admin ve todas las sucursales")
}

func TestCountAPI_LineaInexistente_404(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodPost, "/api/count-lines/no-existe/recount", tokenFor(t, apiSupervisor, apiBranch, "supervisor"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode[dto.ErrorResponse](t, resp).Code)
}

func TestCountAPI_AlcanceInvalido_400(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodPost, "/api/count-sessions", tokenFor(t, apiSupervisor, apiBranch, "supervisor"),
		dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "weekly"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_SCOPE", decode[dto.ErrorResponse](t, resp).Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Listados, PDF y tablero
// ──────────────────────────────────────────────────────────────────────────────

func TestCountAPI_ListadoYBusqueda(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})
	cnt := tokenFor(t, apiCounter, apiBranch, "counter")

	resp := f.do(t, http.MethodGet, "/api/count-sessions?status=open", cnt, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[dto.CountSessionListResponse](t, resp)
	require.Len(t, list.Items, 1)
	assert.Equal(t, session.ID, list.Items[0].ID)

	resp = f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/items?search=cadena", cnt, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[dto.CountLineListResponse](t, resp)
	require.Len(t, items.Items, 1)
	assert.Equal(t, "P2", items.Items[0].ProductCodeVersionID)
	assert.Equal(t, 1, items.Page.Total)
}

func TestCountAPI_ReportePDF(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})

	resp := f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/variances.pdf", tokenFor(t, apiSupervisor, apiBranch, "supervisor"), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestCountAPI_ReporteXLSX(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})

	resp := f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/variances.xlsx", tokenFor(t, apiSupervisor, apiBranch, "supervisor"), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// xlsx es un zip
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")))
}

func TestOpsAPI_Dashboard(t *testing.T) {
	f := newAPIFixture(t)
	f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})

	resp := f.do(t, http.MethodGet, "/api/ops/dashboard", tokenFor(t, apiSupervisor, apiBranch, "supervisor"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	board := decode[dto.OpsDashboardResponse](t, resp)
	assert.Equal(t, apiBranch, board.BranchID)
	assert.True(t, board.TotalValuation.Equal(decimal.NewFromInt(5*1500+3*200)))
	assert.Len(t, board.SessionHistory, 1)

	resp = f.do(t, http.MethodGet, "/api/ops/dashboard?branch_id=B2", tokenFor(t, apiSupervisor, apiBranch, "supervisor"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
