package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Webhook payloads per rail. Every rail supplies its own event id, which we
// dedupe on before touching any state; re-deliveries are acknowledged
// without reprocessing.

type B2CResultPayload struct {
	Result struct {
		ResultType               int    `json:"ResultType"`
		ResultCode               int    `json:"ResultCode"`
		ResultDesc               string `json:"ResultDesc"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
		ConversationID           string `json:"ConversationID"`
		TransactionID            string `json:"TransactionID"`
	} `json:"Result"`
}

type BankTransferEventPayload struct {
	EventID       string `json:"event_id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type PayPalEventPayload struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		PayoutItemID string `json:"payout_item_id"`
		PayoutBatch  struct {
			BatchHeader struct {
				PayoutBatchID     string `json:"payout_batch_id"`
				SenderBatchHeader struct {
					SenderBatchID string `json:"sender_batch_id"`
				} `json:"sender_batch_header"`
			} `json:"batch_header"`
		} `json:"payout_batch"`
		SenderBatchID string `json:"sender_batch_id"`
	} `json:"resource"`
}

// releaseEvent undoes a RecordOnce claim when the outcome could not be
// applied, so the rail's redelivery is not swallowed as a duplicate.
func releaseEvent(gateway, eventID string) {
	if err := Events.Forget(gateway, eventID); err != nil {
		log.Printf("🔥 Failed to release %s event %s for redelivery: %v", gateway, eventID, err)
	}
}

func HandleGatewayWebhook(c *fiber.Ctx) error {
	gateway := c.Params("gateway")

	switch gateway {
	case "mpesa_b2c":
		return handleB2CResult(c)
	case "bank_transfer":
		return handleBankTransferEvent(c)
	case "paypal":
		return handlePayPalEvent(c)
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown gateway"})
	}
}

func handleB2CResult(c *fiber.Ctx) error {
	var payload B2CResultPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}

	result := payload.Result
	if result.ConversationID == "" || result.OriginatorConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing conversation identifiers"})
	}

	first, err := Events.RecordOnce("mpesa_b2c", result.ConversationID, string(c.Body()))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record webhook event"})
	}
	if !first {
		return c.JSON(fiber.Map{"message": "Webhook already processed"})
	}

	withdrawalID, err := uuid.Parse(result.OriginatorConversationID)
	if err != nil {
		log.Printf("B2C result with unparseable reference %q", result.OriginatorConversationID)
		return c.JSON(fiber.Map{"message": "Acknowledged"})
	}

	if result.ResultCode == 0 {
		err = Settlements.ConfirmSettlement(withdrawalID, result.TransactionID)
	} else {
		err = Settlements.FailSettlement(withdrawalID, result.ResultDesc)
	}
	if err != nil {
		log.Printf("🔥 Error applying B2C result for %s: %v", withdrawalID, err)
		releaseEvent("mpesa_b2c", result.ConversationID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
	}

	return c.JSON(fiber.Map{"message": "Webhook processed successfully"})
}

func handleBankTransferEvent(c *fiber.Ctx) error {
	var payload BankTransferEventPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}
	if payload.EventID == "" || payload.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing event_id or reference"})
	}

	first, err := Events.RecordOnce("bank_transfer", payload.EventID, string(c.Body()))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record webhook event"})
	}
	if !first {
		return c.JSON(fiber.Map{"message": "Webhook already processed"})
	}

	withdrawalID, err := uuid.Parse(payload.Reference)
	if err != nil {
		log.Printf("Bank transfer event with unparseable reference %q", payload.Reference)
		return c.JSON(fiber.Map{"message": "Acknowledged"})
	}

	switch payload.Status {
	case "SUCCESS", "COMPLETED":
		err = Settlements.ConfirmSettlement(withdrawalID, payload.TransactionID)
	case "FAILED", "REVERSED":
		reason := payload.Reason
		if reason == "" {
			reason = "transfer failed on rail"
		}
		err = Settlements.FailSettlement(withdrawalID, reason)
	default:
		return c.JSON(fiber.Map{"message": "Acknowledged"})
	}
	if err != nil {
		log.Printf("🔥 Error applying bank transfer event for %s: %v", withdrawalID, err)
		releaseEvent("bank_transfer", payload.EventID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
	}

	return c.JSON(fiber.Map{"message": "Webhook processed successfully"})
}

func handlePayPalEvent(c *fiber.Ctx) error {
	var payload PayPalEventPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}
	if payload.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing event id"})
	}

	first, err := Events.RecordOnce("paypal", payload.ID, string(c.Body()))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record webhook event"})
	}
	if !first {
		return c.JSON(fiber.Map{"message": "Webhook already processed"})
	}

	senderBatchID := payload.Resource.SenderBatchID
	if senderBatchID == "" {
		senderBatchID = payload.Resource.PayoutBatch.BatchHeader.SenderBatchHeader.SenderBatchID
	}
	withdrawalID, err := uuid.Parse(senderBatchID)
	if err != nil {
		log.Printf("PayPal event %s with unparseable sender batch id %q", payload.ID, senderBatchID)
		return c.JSON(fiber.Map{"message": "Acknowledged"})
	}

	switch payload.EventType {
	case "PAYMENT.PAYOUTS-ITEM.SUCCEEDED":
		err = Settlements.ConfirmSettlement(withdrawalID, payload.Resource.PayoutItemID)
	case "PAYMENT.PAYOUTS-ITEM.FAILED", "PAYMENT.PAYOUTS-ITEM.BLOCKED", "PAYMENT.PAYOUTS-ITEM.RETURNED":
		err = Settlements.FailSettlement(withdrawalID, payload.EventType)
	default:
		return c.JSON(fiber.Map{"message": "Acknowledged"})
	}
	if err != nil {
		log.Printf("🔥 Error applying PayPal event for %s: %v", withdrawalID, err)
		releaseEvent("paypal", payload.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
	}

	return c.JSON(fiber.Map{"message": "Webhook processed successfully"})
}
