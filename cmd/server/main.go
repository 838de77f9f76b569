// Package main is the entry point for the checkout API.
// It loads configuration, connects storage, wires the services and starts
// the HTTP server.
package main

import (
	"log"
	"time"

	"scholarpay/internal/config"
	"scholarpay/internal/handlers"
	"scholarpay/internal/middleware"
	"scholarpay/internal/repositories"
	"scholarpay/internal/routes"
	"scholarpay/internal/services"
	"scholarpay/internal/services/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	config.LoadEnv()
	settings := config.Load()

	if settings.StripeSecretKey == "" {
		log.Println("⚠️ STRIPE_SECRET_KEY is not set; checkout creation will fail")
	}

	pricing, err := config.LoadPricing(settings.PricingFile)
	if err != nil {
		log.Fatalf("Failed to load pricing: %v", err)
	}

	// Initialize databases (PostgreSQL + Redis)
	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("✅ Successfully connected to database with connection pooling")

	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("⚠️ Failed to close database connection: %v", err)
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("⚠️ Failed to close Redis connection: %v", err)
			}
		}
	}()

	collector := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
	container := services.NewContainer(repositories.DB, repositories.CacheService, settings, pricing, collector)

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     settings.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods:     "GET,POST,HEAD,OPTIONS",
		AllowCredentials: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Checkout creation hits the processor; keep a student from hammering it.
	app.Use("/api/checkout", limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Checkout: handlers.NewCheckoutHandler(container.Checkout, container.Verifier),
		Webhook:  handlers.NewWebhookHandler(container.Processor, container.Verifier),
		Health:   handlers.NewHealthHandler(repositories.DB, repositories.CacheService),
		Auth:     middleware.NewAuthMiddleware(settings.JWTSecret),
		Metrics:  adaptor.HTTPHandler(promhttp.Handler()),
	})

	log.Printf("🚀 ScholarPay listening on :%s", settings.Port)
	if err := app.Listen(":" + settings.Port); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
