package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"parking-layout/internal/common/config"
	"parking-layout/internal/common/logging"
	"parking-layout/internal/common/middleware"
	"parking-layout/internal/gateway/handlers"
	"parking-layout/internal/gateway/proxy"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg := config.Load("3000")
	logging.Init("gateway", cfg.LogLevel)
	log := logging.Logger

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "API Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.CORS(cfg.CORSOrigins))
	app.Use(middleware.Logger())

	// ============================================================
	// Health Check Routes
	// ============================================================

	readiness := handlers.NewReadiness(nil, map[string]string{
		"store":  cfg.StoreURL,
		"editor": cfg.EditorURL,
	})
	app.Get("/health/live", handlers.LivenessProbe)
	app.Get("/health/ready", readiness.Probe)
	app.Get("/health/startup", handlers.StartupProbe)

	app.Get("/docs", handlers.SwaggerUI)
	app.Get("/docs/openapi.yaml", handlers.SwaggerSpec)

	// ============================================================
	// API Routes
	// ============================================================

	api := app.Group("/api/v1")

	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Parking layout API v1",
			"status":  "ok",
		})
	})

	client := &http.Client{Timeout: time.Duration(cfg.WriteTimeout) * time.Second}
	proxy.New(client, "/api/v1", logging.Component("proxy")).Register(api, proxy.Upstreams{
		Store:  cfg.StoreURL,
		Editor: cfg.EditorURL,
	})

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Infof("Starting API Gateway on %s (env: %s)", addr, cfg.Environment)
	log.Infof("Proxying to store %s and editor %s", cfg.StoreURL, cfg.EditorURL)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
