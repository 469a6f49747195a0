package controllers

import (
	"encoding/json"
	"time"

	"github.com/WarraBell/pulsescout/app/repository"
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/WarraBell/pulsescout/internal/pkg/cache"
	"github.com/WarraBell/pulsescout/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const planCacheKey = "plans:catalog"
const planCacheTTL = 5 * time.Minute

// SubscriptionController exposes the caller-facing subscription API.
type SubscriptionController struct {
	svc   *billing.Service
	plans repository.PlanRepository
}

// NewSubscriptionController creates a subscription controller with
// injected dependencies.
func NewSubscriptionController(svc *billing.Service, plans repository.PlanRepository) *SubscriptionController {
	return &SubscriptionController{svc: svc, plans: plans}
}

type createSubscriptionRequest struct {
	PlanID          uint   `json:"plan_id" validate:"required"`
	PaymentMethodID string `json:"payment_method_id"`
}

type changePlanRequest struct {
	PlanID uint `json:"plan_id" validate:"required"`
}

// HandleCreateSubscription subscribes the current user to a plan.
func (ctrl *SubscriptionController) HandleCreateSubscription(c *fiber.Ctx) error {
	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	sub, err := ctrl.svc.CreateSubscription(c.Context(), usercontext.GetUserID(c), req.PlanID, req.PaymentMethodID)
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newSubscriptionResponse(sub))
}

// HandleGetSubscription returns the current user's subscription with
// the computed remaining quota.
func (ctrl *SubscriptionController) HandleGetSubscription(c *fiber.Ctx) error {
	sub, err := ctrl.svc.GetSubscription(c.Context(), usercontext.GetUserID(c))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(newSubscriptionResponse(sub))
}

// HandleChangePlan switches the current user's subscription to a new
// plan, resetting the usage counter.
func (ctrl *SubscriptionController) HandleChangePlan(c *fiber.Ctx) error {
	var req changePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	sub, err := ctrl.svc.ChangePlan(c.Context(), usercontext.GetUserID(c), req.PlanID)
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(newSubscriptionResponse(sub))
}

// HandleCancelSubscription flags the subscription for cancellation at
// the end of the current billing period.
func (ctrl *SubscriptionController) HandleCancelSubscription(c *fiber.Ctx) error {
	sub, err := ctrl.svc.CancelAtPeriodEnd(c.Context(), usercontext.GetUserID(c))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(newSubscriptionResponse(sub))
}

// HandleCancelImmediately cancels the subscription right away.
func (ctrl *SubscriptionController) HandleCancelImmediately(c *fiber.Ctx) error {
	sub, err := ctrl.svc.CancelImmediately(c.Context(), usercontext.GetUserID(c))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(newSubscriptionResponse(sub))
}

// HandleGetUsage returns a usage summary for the current cycle.
func (ctrl *SubscriptionController) HandleGetUsage(c *fiber.Ctx) error {
	sub, err := ctrl.svc.GetSubscription(c.Context(), usercontext.GetUserID(c))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{
		"leads_used_this_month": sub.LeadsUsedThisMonth,
		"leads_remaining":       sub.LeadsRemaining(sub.Plan),
		"current_period_start":  sub.CurrentPeriodStart,
		"current_period_end":    sub.CurrentPeriodEnd,
		"status":                sub.Status,
	})
}

// HandleListPlans returns the plan catalog, served from the cache when
// warm.
func (ctrl *SubscriptionController) HandleListPlans(c *fiber.Ctx) error {
	if cached, err := cache.Get(planCacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	plans, err := ctrl.plans.GetAll()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load plans"})
	}

	payload, err := json.Marshal(fiber.Map{"plans": plans})
	if err == nil {
		if cacheErr := cache.Set(planCacheKey, string(payload), planCacheTTL); cacheErr != nil {
			log.Errorf("[Plans] failed to cache catalog: %v", cacheErr)
		}
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandleGetPreview quotes the proration for a plan change without
// applying it.
func (ctrl *SubscriptionController) HandleGetPreview(c *fiber.Ctx) error {
	planID, err := c.ParamsInt("planID")
	if err != nil || planID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid plan id"})
	}

	preview, err := ctrl.svc.PreviewPlanChange(c.Context(), usercontext.GetUserID(c), uint(planID))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(preview)
}
