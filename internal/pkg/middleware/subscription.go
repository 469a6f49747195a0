package middleware

import (
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/WarraBell/pulsescout/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// RequireActiveSubscription gates metered routes on an entitling
// subscription (active or trialing).
func RequireActiveSubscription(svc *billing.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userCtx := usercontext.GetUserContext(c)
		if !userCtx.IsLoggedIn {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
		}

		if !svc.IsActive(c.Context(), userCtx.UserID) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":   "subscription_required",
				"message": "An active subscription is required for this resource",
			})
		}
		return c.Next()
	}
}
