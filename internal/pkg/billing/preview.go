package billing

import (
	"context"
	"time"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/shopspring/decimal"
)

// InvoicePreview is a proration estimate for a plan change. Amounts
// are fixed-point decimals in major units.
type InvoicePreview struct {
	Total           decimal.Decimal `json:"total"`
	ProrationAmount decimal.Decimal `json:"proration_amount"`
	NextBillingDate time.Time       `json:"next_billing_date"`
	Currency        string          `json:"currency"`
}

// PreviewPlanChange quotes the upcoming invoice for switching the
// user's subscription to the target plan. Proration adjustment lines
// are summed separately from the total. Read-only: neither the local
// subscription nor the provider subscription is mutated.
func (s *Service) PreviewPlanChange(ctx context.Context, userID, targetPlanID uint) (*InvoicePreview, error) {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return nil, NewNotFound("no provider subscription to preview against")
	}
	plan, err := s.repo.GetPlan(targetPlanID)
	if err != nil {
		return nil, err
	}
	if plan.StripePriceID == "" {
		return nil, NewProviderError("plan has no provider price reference", nil)
	}

	quote, err := s.gateway.PreviewPlanChange(ctx, sub.StripeCustomerID, string(sub.StripeSubscriptionID), plan.StripePriceID)
	if err != nil {
		return nil, err
	}

	return &InvoicePreview{
		Total:           models.AmountFromMinorUnits(quote.TotalMinor),
		ProrationAmount: models.AmountFromMinorUnits(quote.ProrationMinor),
		NextBillingDate: quote.NextBillingAt,
		Currency:        quote.Currency,
	}, nil
}
