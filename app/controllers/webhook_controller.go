package controllers

import (
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// WebhookController receives provider webhook deliveries.
type WebhookController struct {
	ingestor *billing.Ingestor
}

// NewWebhookController creates a webhook controller.
func NewWebhookController(ingestor *billing.Ingestor) *WebhookController {
	return &WebhookController{ingestor: ingestor}
}

// HandleStripeWebhook processes one delivery. A signature failure is
// the only caller-visible rejection; every other outcome acknowledges
// with 200 so the provider does not retry into duplicate side effects.
// Internal failures are recorded on the stored event and self-heal via
// the provider's redelivery.
func (ctrl *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	err := ctrl.ingestor.Process(c.Context(), rawBody, signature)
	if err == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success"})
	}

	if billing.IsCode(err, billing.CodeSignatureInvalid) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "invalid webhook signature",
		})
	}

	log.Errorf("[Webhook] processing failed: %v", err)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "error",
		"message": err.Error(),
	})
}
