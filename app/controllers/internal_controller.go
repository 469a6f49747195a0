package controllers

import (
	"crypto/subtle"

	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/WarraBell/pulsescout/internal/pkg/env"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// InternalController hosts operator endpoints invoked by external
// schedulers, not by customers.
type InternalController struct {
	svc *billing.Service
}

// NewInternalController creates an internal controller.
func NewInternalController(svc *billing.Service) *InternalController {
	return &InternalController{svc: svc}
}

// HandleResetUsage zeroes every subscription's usage counter. Invoked
// once per billing cycle by the external scheduler; re-running it is a
// no-op for rows already at zero.
func (ctrl *InternalController) HandleResetUsage(c *fiber.Ctx) error {
	token := c.Get("X-Internal-Token")
	expected := env.GetEnv("INTERNAL_API_TOKEN", "")
	if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid internal token"})
	}

	affected, err := ctrl.svc.ResetAllUsage(c.Context())
	if err != nil {
		log.Errorf("[Internal] usage reset failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Usage reset failed"})
	}

	log.Infof("[Internal] usage counters reset for %d subscriptions", affected)
	return c.JSON(fiber.Map{"status": "success", "subscriptions_reset": affected})
}
