package controllers

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/WarraBell/pulsescout/app/repository"
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/WarraBell/pulsescout/internal/pkg/entitlements"
	"github.com/WarraBell/pulsescout/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LeadController delivers lead records. Every delivery consumes one
// unit of the subscription quota through the usage meter.
type LeadController struct {
	svc   *billing.Service
	leads repository.LeadRepository
}

// NewLeadController creates a lead controller.
func NewLeadController(svc *billing.Service, leads repository.LeadRepository) *LeadController {
	return &LeadController{svc: svc, leads: leads}
}

type pullLeadRequest struct {
	CompanyName string `json:"company_name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"max=150"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"max=50"`
	Website     string `json:"website" validate:"max=255"`
	Industry    string `json:"industry" validate:"max=100"`
}

// HandlePullLead delivers one lead to the current user, charging the
// quota first. The quota check and the increment are atomic, so two
// concurrent pulls can never jointly overshoot the plan limit.
func (ctrl *LeadController) HandlePullLead(c *fiber.Ctx) error {
	var req pullLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	userID := usercontext.GetUserID(c)
	sub, err := ctrl.svc.Consume(c.Context(), userID, 1)
	if err != nil {
		return renderBillingError(c, err)
	}

	lead := &models.Lead{
		UUID:        uuid.NewString(),
		UserID:      userID,
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Website:     req.Website,
		Industry:    req.Industry,
		Enriched:    ctrl.svc.HasFeature(c.Context(), userID, entitlements.FeatureEnrichment),
	}
	if err := ctrl.leads.Create(lead); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not store lead"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"lead":            lead,
		"leads_remaining": sub.LeadsRemaining(sub.Plan),
	})
}

// HandleListLeads returns leads already delivered to the user.
func (ctrl *LeadController) HandleListLeads(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	leads, err := ctrl.leads.GetByUserID(usercontext.GetUserID(c), offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load leads"})
	}
	return c.JSON(fiber.Map{"leads": leads})
}

const exportPageSize = 500

// HandleExportLeads downloads all delivered leads as CSV. The route
// is feature-gated in the router.
func (ctrl *LeadController) HandleExportLeads(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"uuid", "company_name", "contact_name", "email", "phone", "website", "industry", "enriched", "delivered_at"}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not export leads"})
	}

	for offset := 0; ; offset += exportPageSize {
		leads, err := ctrl.leads.GetByUserID(userID, offset, exportPageSize)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not export leads"})
		}
		for _, lead := range leads {
			record := []string{
				lead.UUID,
				lead.CompanyName,
				lead.ContactName,
				lead.Email,
				lead.Phone,
				lead.Website,
				lead.Industry,
				strconv.FormatBool(lead.Enriched),
				lead.DeliveredAt.UTC().Format(time.RFC3339),
			}
			if err := w.Write(record); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not export leads"})
			}
		}
		if len(leads) < exportPageSize {
			break
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not export leads"})
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="leads.csv"`)
	return c.Send(buf.Bytes())
}
