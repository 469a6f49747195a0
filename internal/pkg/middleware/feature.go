package middleware

import (
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/WarraBell/pulsescout/internal/pkg/entitlements"
	"github.com/WarraBell/pulsescout/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// RequirePlanFeature gates a route on a plan-level feature flag.
func RequirePlanFeature(svc *billing.Service, feature entitlements.Feature) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userCtx := usercontext.GetUserContext(c)
		if !userCtx.IsLoggedIn {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
		}

		if !svc.HasFeature(c.Context(), userCtx.UserID, feature) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "feature_not_available",
				"message": "Your plan does not include this feature",
			})
		}
		return c.Next()
	}
}
