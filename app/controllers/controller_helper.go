package controllers

import (
	"github.com/WarraBell/pulsescout/app/models"
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// renderBillingError maps the billing error taxonomy onto HTTP
// responses. Quota and card failures are distinguishable by the error
// field so clients can prompt an upgrade or a card update.
func renderBillingError(c *fiber.Ctx, err error) error {
	switch billing.CodeOf(err) {
	case billing.CodeNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found", "message": err.Error(),
		})
	case billing.CodeQuotaExceeded:
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "quota_exceeded", "message": err.Error(),
		})
	case billing.CodeCardDeclined:
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "card_declined", "message": err.Error(),
		})
	case billing.CodeProvider:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "billing_provider_error", "message": err.Error(),
		})
	case billing.CodeSignatureInvalid:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_signature", "message": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_server_error", "message": "Unexpected error",
		})
	}
}

// subscriptionResponse enriches the subscription entity with the
// computed remaining quota.
type subscriptionResponse struct {
	*models.Subscription
	LeadsRemaining int `json:"leads_remaining"`
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		Subscription:   sub,
		LeadsRemaining: sub.LeadsRemaining(sub.Plan),
	}
}
