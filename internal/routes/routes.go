// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"scholarpay/internal/handlers"
	"scholarpay/internal/middleware"
	"scholarpay/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Checkout *handlers.CheckoutHandler
	Webhook  *handlers.WebhookHandler
	Health   *handlers.HealthHandler
	Auth     *middleware.AuthMiddleware
	// Metrics serves the prometheus exposition format, if set.
	Metrics fiber.Handler
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "ScholarPay checkout API",
			"version": "1.0.0",
		})
	})
	app.Get("/health", h.Health.HealthCheck)
	if h.Metrics != nil {
		app.Get("/metrics", h.Metrics)
	}

	// Processor callbacks authenticate by signature, not bearer token.
	app.Post("/webhooks/stripe", h.Webhook.HandleStripe)

	api := app.Group("/api")

	setupCheckoutRoutes(api, h.Checkout, h.Auth)
	setupAdminRoutes(api, h)
}

func setupCheckoutRoutes(router fiber.Router, h *handlers.CheckoutHandler, auth *middleware.AuthMiddleware) {
	checkout := router.Group("/checkout", auth.Handler)

	checkout.Post("/:feeType/verify", middleware.HasPermission(models.PermissionCheckoutRead), h.VerifyCheckout)
	checkout.Get("/:feeType/quote", middleware.HasPermission(models.PermissionCheckoutRead), h.QuoteCheckout)
	checkout.Post("/:feeType", middleware.HasPermission(models.PermissionCheckoutWrite), h.CreateCheckout)
}

func setupAdminRoutes(api fiber.Router, h Handlers) {
	admin := api.Group("/admin", h.Auth.Handler, middleware.AdminAuthMiddleware)

	admin.Post("/settlements/verify", middleware.HasPermission(models.PermissionSettlementRun), h.Checkout.VerifyCheckout)
	admin.Get("/cache-stats", h.Health.CacheStats)
}
