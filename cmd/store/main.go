package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"parking-layout/internal/common/clock"
	"parking-layout/internal/common/config"
	"parking-layout/internal/common/logging"
	"parking-layout/internal/common/middleware"
	"parking-layout/internal/gateway/handlers"
	storehandlers "parking-layout/internal/store/handlers"
	"parking-layout/internal/store/repository"
)

// ============================================================
// Store Service
// ============================================================

func main() {
	cfg := config.Load("3001")
	logging.Init("store", cfg.LogLevel)
	log := logging.Logger

	db, err := repository.OpenSQLite(cfg.StoreDBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := repository.New(db, clock.NewSystem())
	if err := repo.Init(context.Background()); err != nil {
		log.Fatalf("init db: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Parking Store",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger())

	// ============================================================
	// Routes
	// ============================================================

	app.Get("/health/live", handlers.LivenessProbe)
	storehandlers.NewStoreHandler(repo, logging.Component("store")).Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	go shutdownOnSignal(app)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Starting Store Service on %s (env: %s, db: %s)", addr, cfg.Environment, cfg.StoreDBPath)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func shutdownOnSignal(app *fiber.App) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logging.Logger.Info("Shutting down")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logging.Logger.WithError(err).Warn("shutdown")
	}
}
