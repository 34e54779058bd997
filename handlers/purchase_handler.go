package handlers

import (
	"math"
	"strconv"

	"github.com/elimuhub/learning_platform/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UpsertSettingRequest struct {
	ChildID          string  `json:"child_id" validate:"required,uuid"`
	Mode             string  `json:"mode" validate:"required,oneof=realtime spending_limit"`
	PerPurchaseLimit *string `json:"per_purchase_limit"`
	DailyLimit       *string `json:"daily_limit"`
	MonthlyLimit     *string `json:"monthly_limit"`
}

func UpsertApprovalSetting(c *fiber.Ctx) error {
	parentID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	var req UpsertSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	childID := uuid.MustParse(req.ChildID)

	parse := func(s *string) (*decimal.Decimal, error) {
		if s == nil {
			return nil, nil
		}
		d, err := decimal.NewFromString(*s)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}

	perPurchase, err := parse(req.PerPurchaseLimit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid per_purchase_limit"})
	}
	daily, err := parse(req.DailyLimit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid daily_limit"})
	}
	monthly, err := parse(req.MonthlyLimit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid monthly_limit"})
	}

	setting, err := Purchases.UpsertSetting(parentID, childID, req.Mode, perPurchase, daily, monthly)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(setting)
}

type CreatePurchaseRequest struct {
	PurchaseType string  `json:"purchase_type" validate:"required"`
	ItemRef      string  `json:"item_ref" validate:"required"`
	Amount       string  `json:"amount" validate:"required"`
	Currency     string  `json:"currency" validate:"required,iso4217"`
	Context      *string `json:"context"`
}

// CreatePurchaseApproval is called by the purchase flow when a
// child-initiated purchase needs a decision. Auto-approved requests come
// back already approved; everything else is pending for the parent.
func CreatePurchaseApproval(c *fiber.Ctx) error {
	childID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	var req CreatePurchaseRequest
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

	request, err := Purchases.CreateRequest(childID, req.PurchaseType, req.ItemRef, amount, req.Currency, req.Context)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

type DecidePurchaseRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Reason   string `json:"reason"`
}

func DecidePurchaseApproval(c *fiber.Ctx) error {
	parentID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	requestID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request ID format"})
	}

	var req DecidePurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	request, err := Purchases.Decide(requestID, parentID, req.Decision == "approve", req.Reason)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(request)
}

func ListPendingPurchaseApprovals(c *fiber.Ctx) error {
	parentID, err := middleware.CallerID(c)
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

	requests, total, err := Purchases.PendingForParent(parentID, page, limit)
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
