package handlers

import (
	"errors"

	"github.com/elimuhub/learning_platform/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Wired in main before routes are registered.
var (
	Withdrawals *services.WithdrawalService
	Purchases   *services.PurchaseService
	Settlements *services.Dispatcher
	Audit       services.AuditStore
	Events      GatewayEventRecorder
)

// GatewayEventRecorder dedupes webhook deliveries on the gateway's own
// event id. Forget releases a claimed event whose outcome could not be
// applied, so the rail's redelivery gets reprocessed instead of being
// acknowledged as a duplicate.
type GatewayEventRecorder interface {
	RecordOnce(gateway, eventID, payload string) (bool, error)
	Forget(gateway, eventID string) error
}

func Setup(withdrawals *services.WithdrawalService, purchases *services.PurchaseService, settlements *services.Dispatcher, audit services.AuditStore, events GatewayEventRecorder) {
	Withdrawals = withdrawals
	Purchases = purchases
	Settlements = settlements
	Audit = audit
	Events = events
}

// serviceError maps the engine's error taxonomy onto HTTP statuses.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "operation not allowed in current state, re-fetch and retry"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "record not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
