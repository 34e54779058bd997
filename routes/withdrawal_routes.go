package routes

import (
	"github.com/elimuhub/learning_platform/handlers"
	"github.com/elimuhub/learning_platform/middleware"
	"github.com/gofiber/fiber/v2"
)

func WithdrawalRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	withdrawals := api.Group("/withdrawals", middleware.Protected(), middleware.EarnerRequired())
	withdrawals.Post("", handlers.CreateWithdrawal)
	withdrawals.Get("/mine", handlers.GetMyWithdrawals)
}
