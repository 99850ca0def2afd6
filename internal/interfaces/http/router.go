package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Count     *CountHandler
	Ops       *OpsHandler
	JWTSecret string
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	// Solo supervisores y administradores abren, cambian de estado y aprueban.
	reviewers := RequireRole(entity.RoleSupervisor, entity.RoleAdmin)
	anyRole := RequireRole(entity.RoleCounter, entity.RoleSupervisor, entity.RoleAdmin)

	sessions := api.Group("/count-sessions")
	sessions.Post("/", reviewers, deps.Count.CreateSession)
	sessions.Get("/", anyRole, deps.Count.ListSessions)

	// Rutas sobre una sesión concreta: rol y luego sucursal de la sesión.
	scoped := deps.Count.SessionScope
	sessions.Get("/:id", anyRole, scoped, deps.Count.GetSession)
	sessions.Patch("/:id/status", reviewers, scoped, deps.Count.UpdateStatus)
	sessions.Post("/:id/captures", anyRole, scoped, deps.Count.Capture)
	sessions.Get("/:id/captures/recent", anyRole, scoped, deps.Count.ListRecent)
	sessions.Get("/:id/items", anyRole, scoped, deps.Count.ListItems)
	sessions.Get("/:id/variances.pdf", reviewers, scoped, deps.Count.VariancesPDF)
	sessions.Get("/:id/variances.xlsx", reviewers, scoped, deps.Count.VariancesXLSX)
	sessions.Get("/:id/variances", reviewers, scoped, deps.Count.ListVariances)
	sessions.Post("/:id/approve", reviewers, scoped, deps.Count.Approve)

	lines := api.Group("/count-lines")
	lines.Post("/:id/recount", reviewers, deps.Count.LineScope, deps.Count.RequestRecount)

	opsGroup := api.Group("/ops")
	opsGroup.Get("/dashboard", reviewers, deps.Ops.GetDashboard)
}
