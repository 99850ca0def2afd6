package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/jhoicas/stockcount-api/docs"
	"github.com/jhoicas/stockcount-api/internal/application/count"
	"github.com/jhoicas/stockcount-api/internal/application/ops"
	"github.com/jhoicas/stockcount-api/internal/domain/repository"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/memory"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/stockcount-api/internal/infrastructure/pdf"
	"github.com/jhoicas/stockcount-api/internal/infrastructure/postgres"
	infraxlsx "github.com/jhoicas/stockcount-api/internal/infrastructure/xlsx"
	httpRouter "github.com/jhoicas/stockcount-api/internal/interfaces/http"
	"github.com/jhoicas/stockcount-api/pkg/config"
	"github.com/jhoicas/stockcount-api/pkg/logger"
)

// @title        Stockcount API
// @version      1.0
// @description  Conteo físico de inventario: sesiones, capturas, revisión de discrepancias y ajustes al libro de stock.
// @BasePath     /
// @securityDefinitions.apikey Bearer
// @in           header
// @name         Authorization

// stores repositorios según STORE_DRIVER.
type stores struct {
	tx       count.TxRunner
	sessions repository.CountSessionRepository
	lines    repository.CountLineRepository
	ledger   repository.StockLedgerRepository
	catalog  repository.CatalogRepository
	ops      repository.OpsRepository
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("almacenamiento")
	}
	defer st.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	countMetrics := metrics.NewCountMetrics(registry)

	snapshotSvc := count.NewSnapshotService(st.tx, st.sessions, st.ledger, st.catalog, countMetrics, log)
	poster := count.NewLedgerPoster(st.tx, countMetrics, log)
	sessionUC := count.NewSessionUseCase(st.tx, st.sessions, st.catalog, snapshotSvc, poster, countMetrics, log)
	captureUC := count.NewCaptureUseCase(st.tx, st.sessions, st.lines, st.catalog, countMetrics, log, cfg.Count.RecentLimit)
	reviewUC := count.NewReviewUseCase(st.tx, st.sessions, st.lines, st.catalog, snapshotSvc, poster, countMetrics, log)

	// Reporte de discrepancias: PDF imprimible y planilla para conciliación
	reportUC := count.NewReportUseCase(reviewUC, st.catalog, map[string]count.VarianceReportRenderer{
		count.ReportFormatPDF:  infrapdf.NewMarotoPDFGenerator(),
		count.ReportFormatXLSX: infraxlsx.NewVarianceSheet(),
	})
	dashboardUC := ops.NewDashboardUseCase(st.ops, cfg.Count.LowStockLimit)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Stockcount API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Count:     httpRouter.NewCountHandler(sessionUC, captureUC, reviewUC, reportUC, log),
		Ops:       httpRouter.NewOpsHandler(dashboardUC, log),
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// openStores abre PostgreSQL (primario + réplica opcional para el tablero) o el store en memoria.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		log.Warn().Msg("STORE_DRIVER=memory: los datos se pierden al reiniciar")
		mem := memory.NewStore()
		return &stores{
			tx:       mem,
			sessions: mem.Sessions(),
			lines:    mem.Lines(),
			ledger:   mem.Ledger(),
			catalog:  mem.Catalog(),
			ops:      mem.Ops(),
			close:    func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	replica, err := postgres.NewReplicaPool(ctx, cfg.DB)
	if err != nil {
		pool.Close()
		return nil, err
	}
	opsPool := pool
	if replica != nil {
		log.Info().Msg("tablero operativo sobre réplica de lectura")
		opsPool = replica
	}
	return &stores{
		tx:       postgres.NewTxRunner(pool),
		sessions: postgres.NewCountSessionRepository(pool),
		lines:    postgres.NewCountLineRepository(pool),
		ledger:   postgres.NewStockLedgerRepository(pool),
		catalog:  postgres.NewCatalogRepository(pool),
		ops:      postgres.NewOpsRepository(opsPool),
		close: func() {
			if replica != nil {
				replica.Close()
			}
			pool.Close()
		},
	}, nil
}
