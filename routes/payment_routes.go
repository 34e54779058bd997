package routes

import (
	"github.com/elimuhub/learning_platform/handlers"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Rail callbacks authenticate through their own signatures and are
	// idempotent on the gateway's event id.
	api.Post("/payments/webhook/:gateway", handlers.HandleGatewayWebhook)
}
