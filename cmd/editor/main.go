package main

import (
	"context"
	"fmt"
	"net/http"
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
	"parking-layout/internal/editor/gateway"
	editorhandlers "parking-layout/internal/editor/handlers"
	"parking-layout/internal/editor/imageload"
	"parking-layout/internal/editor/session"
	"parking-layout/internal/gateway/handlers"
	"parking-layout/internal/plan"
	"parking-layout/internal/reservation"
)

const defaultVehicleType = "car"

// ============================================================
// Editor Service
// ============================================================

func main() {
	cfg := config.Load("3002")
	logging.Init("editor", cfg.LogLevel)
	log := logging.Logger

	storeHTTP, imageHTTP := httpClients(cfg)
	store := gateway.NewClient(cfg.StoreURL, storeHTTP, logging.Component("gateway"))
	images := imageload.NewHTTPLoader(imageHTTP)

	sessions := session.NewManager(store, images, session.ManagerConfig{
		IdleTimeout:        time.Duration(cfg.SessionIdleMinutes) * time.Minute,
		DefaultVehicleType: defaultVehicleType,
		Clock:              clock.NewSystem(),
		Log:                logging.Component("session"),
	})
	if err := sessions.StartSweeper(cfg.SessionSweepSpec); err != nil {
		log.Fatalf("session sweeper: %v", err)
	}

	res := reservation.NewService(store, images, logging.Component("reservation"))
	importer := plan.NewImporter(store, defaultVehicleType, logging.Component("import"))

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Parking Layout Editor",
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
	app.Get("/health/ready", handlers.NewReadiness(nil, map[string]string{"store": cfg.StoreURL}).Probe)
	editorhandlers.NewEditorHandler(sessions, res, importer, store, logging.Component("http")).Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	go func() {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sessions.Shutdown(shutdownCtx)
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Starting Editor Service on %s (env: %s, store: %s)", addr, cfg.Environment, cfg.StoreURL)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// httpClients returns the client for store calls and the one for plan images.
// Persistence calls run to completion; only image fetches are bounded.
func httpClients(cfg *config.Config) (store, images *http.Client) {
	return &http.Client{}, &http.Client{Timeout: time.Duration(cfg.WriteTimeout) * time.Second}
}
