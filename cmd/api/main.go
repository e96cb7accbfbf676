package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/worldbank/internal/audit"
	"github.com/sudo-init-do/worldbank/internal/config"
	"github.com/sudo-init-do/worldbank/internal/db"
	"github.com/sudo-init-do/worldbank/internal/economy"
	"github.com/sudo-init-do/worldbank/internal/ledger"
	"github.com/sudo-init-do/worldbank/internal/logger"
	appmw "github.com/sudo-init-do/worldbank/internal/middleware"
	"github.com/sudo-init-do/worldbank/internal/officer"
	"github.com/sudo-init-do/worldbank/internal/transfer"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalw("configuration invalid", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.L().Fatalw("database init failed", "err", err)
	}
	defer pool.Close()

	// Persistence sink: producer for handlers/saga, background worker to
	// drain the queue into Postgres.
	auditQueue := audit.NewQueue(cfg.RedisAddr)
	defer auditQueue.Close()
	auditWorker := audit.NewWorker(cfg.RedisAddr, pool)
	auditWorker.Start()
	defer auditWorker.Shutdown()

	ledgerClient := ledger.New(cfg.LedgerBaseURL, cfg.LedgerToken, cfg.LedgerAPIDelay, cfg.LedgerMaxRetries)

	economyStore := economy.NewStore(pool)
	officerStore := officer.NewStore(pool, cfg.OwnerUserID)

	engine := transfer.NewEngine(economyStore, ledgerClient, auditQueue, transfer.Bounds{
		MinAmount: decimal.NewFromFloat(cfg.MinTransferAmount),
		MaxAmount: decimal.NewFromFloat(cfg.MaxTransferAmount),
	})

	economyHandler := &economy.Handler{
		Store:  economyStore,
		Ledger: ledgerClient,
		Gate:   officerStore,
		Audit:  auditQueue,
		Rates: economy.RateBounds{
			Min: decimal.NewFromFloat(cfg.MinExchangeRate),
			Max: decimal.NewFromFloat(cfg.MaxExchangeRate),
		},
	}
	transferHandler := &transfer.Handler{
		Engine:  engine,
		History: transfer.NewHistory(pool),
		Audit:   auditQueue,
	}
	officerHandler := &officer.Handler{Store: officerStore, Audit: auditQueue}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "worldbank"})
	})

	// Authenticated group
	g := e.Group("")
	g.Use(appmw.JWT([]byte(cfg.JWTSecret)))

	// Economy registry
	g.POST("/economies", economyHandler.Register)
	g.GET("/economies", economyHandler.List)
	g.GET("/economies/:id", economyHandler.Lookup)
	g.POST("/economies/:id/approve", economyHandler.Approve, appmw.OfficerGuard(officerStore))
	g.POST("/economies/:id/reject", economyHandler.Reject, appmw.OfficerGuard(officerStore))
	g.DELETE("/economies/:id", economyHandler.Remove)

	// Transfers
	g.POST("/transfers", transferHandler.Create)
	g.GET("/transfers", transferHandler.List)

	// Admin routes
	adminGroup := g.Group("/admin", appmw.OfficerGuard(officerStore))
	adminGroup.POST("/transfers/cleanup", transferHandler.Cleanup)
	adminGroup.GET("/officers", officerHandler.List)
	adminGroup.POST("/officers", officerHandler.Add)
	adminGroup.DELETE("/officers/:id", officerHandler.Remove)

	go func() {
		logger.L().Infow("API server listening", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.L().Fatalw("server error", "err", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.L().Warnw("server shutdown", "err", err)
	}
}
