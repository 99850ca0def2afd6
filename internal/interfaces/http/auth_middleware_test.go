package http_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockcount-api/internal/application/dto"
	pkgjwt "github.com/jhoicas/stockcount-api/pkg/jwt"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testIssuer    = "stockcount-api-test"
	testExpMin    = 60
)

// ──────────────────────────────────────────────────────────────────────────────
// Autenticación: el grupo /api rechaza antes de llegar a cualquier handler
// ──────────────────────────────────────────────────────────────────────────────

func TestAuth_TokenRechazado_401(t *testing.T) {
	f := newAPIFixture(t)

	foreign, err := pkgjwt.Generate("otra-clave", apiSupervisor, apiBranch, "supervisor", testIssuer, testExpMin)
	require.NoError(t, err)
	expired, err := pkgjwt.Generate(testJWTSecret, apiSupervisor, apiBranch, "supervisor", testIssuer, -1)
	require.NoError(t, err)
	noRole, err := pkgjwt.Generate(testJWTSecret, apiSupervisor, apiBranch, "", testIssuer, testExpMin)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"sin cabecera", "", "MISSING_TOKEN"},
		{"esquema basic", "Basic c3VwLTE6eA==", "INVALID_TOKEN"},
		{"basura", "Bearer token.invalido.aqui", "INVALID_TOKEN"},
		{"firmado con otra clave", "Bearer " + foreign, "INVALID_TOKEN"},
		{"expirado", "Bearer " + expired, "INVALID_TOKEN"},
		{"sin rol", "Bearer " + noRole, "MISSING_ROLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, "/api/count-sessions", tc.header, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.code, decode[dto.ErrorResponse](t, resp).Code)
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Roles: el contador captura y consulta; revisar y aprobar es de supervisor/admin
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_PermisosPorRol(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})
	sup := tokenFor(t, apiSupervisor, apiBranch, "supervisor")

	resp := f.do(t, http.MethodGet, "/api/count-sessions/"+session.ID+"/items", sup, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[dto.CountLineListResponse](t, resp)
	require.NotEmpty(t, items.Items)

	base := "/api/count-sessions/" + session.ID
	cases := []struct {
		method      string
		path        string
		body        any
		counterOpen bool
	}{
		{http.MethodGet, "/api/count-sessions", nil, true},
		{http.MethodGet, base, nil, true},
		{http.MethodGet, base + "/items", nil, true},
		{http.MethodGet, base + "/captures/recent", nil, true},
		{http.MethodPost, base + "/captures", map[string]any{"product_code_version_id": "P1", "counted_qty": 1}, true},
		{http.MethodPost, "/api/count-sessions", dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "cycle"}, false},
		{http.MethodGet, base + "/variances", nil, false},
		{http.MethodGet, base + "/variances.pdf", nil, false},
		{http.MethodGet, base + "/variances.xlsx", nil, false},
		{http.MethodPost, base + "/approve", dto.ApproveRequest{LineIDs: []string{items.Items[0].ID}}, false},
		{http.MethodPost, "/api/count-lines/" + items.Items[0].ID + "/recount", nil, false},
		{http.MethodGet, "/api/ops/dashboard", nil, false},
		// el cambio de estado va al final: la sesión queda en review
		{http.MethodPatch, base + "/status", dto.UpdateCountSessionStatusRequest{Status: "review"}, false},
	}

	counter := tokenFor(t, apiCounter, apiBranch, "counter")
	for _, tc := range cases {
		t.Run("counter "+tc.method+" "+tc.path, func(t *testing.T) {
			resp := f.do(t, tc.method, tc.path, counter, tc.body)
			defer resp.Body.Close()
			if tc.counterOpen {
				assert.Less(t, resp.StatusCode, 300)
				return
			}
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
	for _, tc := range cases {
		t.Run("supervisor "+tc.method+" "+tc.path, func(t *testing.T) {
			resp := f.do(t, tc.method, tc.path, sup, tc.body)
			defer resp.Body.Close()
			assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
			assert.NotEqual(t, http.StatusForbidden, resp.StatusCode)
		})
	}

	resp = f.do(t, http.MethodGet, "/api/count-sessions", tokenFor(t, "aud-1", apiBranch, "auditor"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "un rol desconocido no entra a ninguna ruta")
}

// ──────────────────────────────────────────────────────────────────────────────
// Sucursal del token
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_SucursalDelToken(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})
	path := "/api/count-sessions/" + session.ID

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"misma sucursal", tokenFor(t, apiCounter, apiBranch, "counter"), http.StatusOK},
		{"otra sucursal", tokenFor(t, "cnt-b", "B2", "counter"), http.StatusForbidden},
		{"token sin sucursal", tokenFor(t, "cnt-x", "", "counter"), http.StatusOK},
		{"admin con otra sucursal", tokenFor(t, "root", "B2", "admin"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, path, tc.token, nil)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRouter_ListadoUsaSucursalDelToken(t *testing.T) {
	f := newAPIFixture(t)
	session := f.createSession(t, dto.CreateCountSessionRequest{BranchID: apiBranch, Scope: "full"})

	resp := f.do(t, http.MethodGet, "/api/count-sessions", tokenFor(t, apiCounter, apiBranch, "counter"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[dto.CountSessionListResponse](t, resp)
	require.Len(t, list.Items, 1)
	assert.Equal(t, session.ID, list.Items[0].ID)

	north := tokenFor(t, "cnt-b", "B2", "counter")
	resp = f.do(t, http.MethodGet, "/api/count-sessions", north, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[dto.CountSessionListResponse](t, resp).Items, "sin branch_id lista la sucursal del token")

	resp = f.do(t, http.MethodGet, "/api/count-sessions?branch_id="+apiBranch, north, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", decode[dto.ErrorResponse](t, resp).Code)
}
