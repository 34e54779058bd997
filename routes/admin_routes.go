package routes

import (
	"github.com/elimuhub/learning_platform/handlers"
	"github.com/elimuhub/learning_platform/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Get("/withdrawals/queue", handlers.ListWithdrawalQueue)
	admin.Post("/withdrawals/:requestId/approve", handlers.ApproveWithdrawal)
	admin.Post("/withdrawals/:requestId/reject", handlers.RejectWithdrawal)
	admin.Post("/withdrawals/:requestId/retry", handlers.RetryWithdrawal)
	admin.Post("/withdrawals/:requestId/cancel", handlers.CancelWithdrawal)
	admin.Get("/withdrawals/:requestId/audit", handlers.GetWithdrawalAuditTrail)

	app.Use("/ws/admin/feed", middleware.Protected(), middleware.AdminRequired(), func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	app.Get("/ws/admin/feed", websocket.New(handlers.ServeQueueFeed))
}
