package handlers

import (
	"math"
	"strconv"

	"github.com/elimuhub/learning_platform/middleware"
	"github.com/elimuhub/learning_platform/models"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateWithdrawalRequest struct {
	Amount        string               `json:"amount" validate:"required"`
	Currency      string               `json:"currency" validate:"required,iso4217"`
	PayoutMethod  string               `json:"payout_method" validate:"required,oneof=mpesa_b2c bank_transfer paypal"`
	PayoutDetails models.PayoutDetails `json:"payout_details" validate:"required"`
}

func CreateWithdrawal(c *fiber.Ctx) error {
	ownerID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	var req CreateWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount"})
	}

	withdrawal, err := Withdrawals.Create(ownerID, amount, req.Currency, models.PayoutMethod(req.PayoutMethod), req.PayoutDetails)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(withdrawal)
}

func GetMyWithdrawals(c *fiber.Ctx) error {
	ownerID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	requests, total, err := Withdrawals.ListMine(ownerID, page, limit)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": requests,
		"meta": fiber.Map{
			"total_requests": total,
			"total_pages":    int(math.Ceil(float64(total) / float64(limit))),
			"current_page":   page,
		},
	})
}
