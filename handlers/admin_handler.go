package handlers

import (
	"context"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/elimuhub/learning_platform/middleware"
	"github.com/elimuhub/learning_platform/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func ListWithdrawalQueue(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	status := models.WithdrawalStatus(c.Query("status", string(models.WithdrawalRequested)))

	requests, total, err := Withdrawals.Queue(status, page, limit)
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

func ApproveWithdrawal(c *fiber.Ctx) error {
	reviewerID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	requestID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request ID format"})
	}

	withdrawal, err := Withdrawals.Approve(requestID, reviewerID)
	if err != nil {
		return serviceError(c, err)
	}

	// Kick settlement immediately; the cron sweep is the safety net.
	go func(id uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := Settlements.DispatchByWithdrawal(ctx, id); err != nil {
			log.Printf("Error dispatching approved withdrawal %s: %v", id, err)
		}
	}(requestID)

	return c.JSON(withdrawal)
}

type RejectWithdrawalRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

func RejectWithdrawal(c *fiber.Ctx) error {
	reviewerID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	requestID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request ID format"})
	}

	var req RejectWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	withdrawal, err := Withdrawals.Reject(requestID, reviewerID, req.Reason)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(withdrawal)
}

func RetryWithdrawal(c *fiber.Ctx) error {
	reviewerID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	requestID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request ID format"})
	}

	withdrawal, err := Withdrawals.Retry(requestID, reviewerID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(withdrawal)
}

type CancelWithdrawalRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

func CancelWithdrawal(c *fiber.Ctx) error {
	reviewerID, err := middleware.CallerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
	}

	requestID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request ID format"})
	}

	var req CancelWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	withdrawal, err := Withdrawals.Cancel(requestID, reviewerID, req.Reason)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(withdrawal)
}

func GetWithdrawalAuditTrail(c *fiber.Ctx) error {
	requestID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request ID format"})
	}

	trail, err := Audit.Trail(models.AuditKindWithdrawal, requestID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(trail)
}
