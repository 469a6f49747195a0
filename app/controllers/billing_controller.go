package controllers

import (
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/WarraBell/pulsescout/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// BillingController exposes payment-method and payment-history
// operations on top of the billing service.
type BillingController struct {
	svc *billing.Service
}

// NewBillingController creates a billing controller.
func NewBillingController(svc *billing.Service) *BillingController {
	return &BillingController{svc: svc}
}

type setDefaultPaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

type oneTimeChargeRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	Description string `json:"description" validate:"max=255"`
}

// HandleCreateSetupIntent prepares collection of a new payment method.
func (ctrl *BillingController) HandleCreateSetupIntent(c *fiber.Ctx) error {
	intent, err := ctrl.svc.CreateSetupIntent(c.Context(), usercontext.GetUserID(c))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{
		"setup_intent_id": intent.Ref,
		"client_secret":   intent.ClientSecret,
	})
}

// HandleListPaymentMethods returns the user's stored cards.
func (ctrl *BillingController) HandleListPaymentMethods(c *fiber.Ctx) error {
	methods, err := ctrl.svc.ListPaymentMethods(c.Context(), usercontext.GetUserID(c))
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"payment_methods": methods})
}

// HandleSetDefaultPaymentMethod attaches a card and makes it the
// default for future invoices.
func (ctrl *BillingController) HandleSetDefaultPaymentMethod(c *fiber.Ctx) error {
	var req setDefaultPaymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	if err := ctrl.svc.SetDefaultPaymentMethod(c.Context(), usercontext.GetUserID(c), req.PaymentMethodID); err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleRemovePaymentMethod detaches a stored card.
func (ctrl *BillingController) HandleRemovePaymentMethod(c *fiber.Ctx) error {
	paymentMethodID := c.Params("paymentMethodID")
	if paymentMethodID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing payment method id"})
	}

	if err := ctrl.svc.RemovePaymentMethod(c.Context(), usercontext.GetUserID(c), paymentMethodID); err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleGetPaymentHistory lists the user's ledger entries.
func (ctrl *BillingController) HandleGetPaymentHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	records, err := ctrl.svc.GetPaymentHistory(c.Context(), usercontext.GetUserID(c), limit, offset)
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.JSON(fiber.Map{"payments": records})
}

// HandleCreateOneTimeCharge charges the default payment method
// off-session.
func (ctrl *BillingController) HandleCreateOneTimeCharge(c *fiber.Ctx) error {
	var req oneTimeChargeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	record, err := ctrl.svc.CreateOneTimeCharge(c.Context(), usercontext.GetUserID(c), req.AmountCents, req.Currency, req.Description)
	if err != nil {
		return renderBillingError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}
