package routes

import (
	"github.com/elimuhub/learning_platform/handlers"
	"github.com/elimuhub/learning_platform/middleware"
	"github.com/gofiber/fiber/v2"
)

func PurchaseRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	purchases := api.Group("/purchases", middleware.Protected())
	purchases.Post("/approval-requests", handlers.CreatePurchaseApproval)

	parent := purchases.Group("", middleware.ParentRequired())
	parent.Post("/approval-requests/:requestId/decide", handlers.DecidePurchaseApproval)
	parent.Get("/approval-requests/pending", handlers.ListPendingPurchaseApprovals)
	parent.Put("/approval-settings", handlers.UpsertApprovalSetting)
}
