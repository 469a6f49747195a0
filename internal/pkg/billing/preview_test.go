package billing

import (
	"context"
	"testing"
	"time"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/shopspring/decimal"
)

func TestPreviewPlanChange(t *testing.T) {
	svc, repo, gateway := newTestService()
	repo.addSubscription(models.Subscription{
		UserID:               7,
		PlanID:               2,
		StripeCustomerID:     "cus_fake",
		StripeSubscriptionID: "sub_1",
		Status:               models.SubscriptionStatusActive,
		LeadsUsedThisMonth:   42,
	})
	nextBilling := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	gateway.preview = &UpcomingInvoice{
		TotalMinor:     5467,
		ProrationMinor: -2433,
		Currency:       "usd",
		NextBillingAt:  nextBilling,
	}

	preview, err := svc.PreviewPlanChange(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("PreviewPlanChange: %v", err)
	}
	if !preview.Total.Equal(decimal.NewFromFloat(54.67)) {
		t.Errorf("expected total 54.67, got %s", preview.Total)
	}
	if !preview.ProrationAmount.Equal(decimal.NewFromFloat(-24.33)) {
		t.Errorf("expected proration -24.33, got %s", preview.ProrationAmount)
	}
	if preview.Currency != "usd" {
		t.Errorf("unexpected currency %s", preview.Currency)
	}
	if !preview.NextBillingDate.Equal(nextBilling) {
		t.Errorf("unexpected next billing date %s", preview.NextBillingDate)
	}

	// Read-only: local state is untouched.
	sub := repo.subByUser(7)
	if sub.PlanID != 2 || sub.LeadsUsedThisMonth != 42 {
		t.Errorf("preview mutated the subscription: %+v", sub)
	}
}

func TestPreviewPlanChangeWithoutProviderSubscription(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{
		UserID: 7,
		PlanID: 1,
		Status: models.SubscriptionStatusActive,
	})

	_, err := svc.PreviewPlanChange(context.Background(), 7, 3)
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("expected not_found for trial without provider subscription, got %v", err)
	}
}

func TestPreviewPlanChangeProviderFailure(t *testing.T) {
	svc, repo, gateway := newTestService()
	repo.addSubscription(models.Subscription{
		UserID:               7,
		PlanID:               2,
		StripeSubscriptionID: "sub_1",
		Status:               models.SubscriptionStatusActive,
	})
	gateway.err = NewProviderError("upstream unavailable", nil)

	_, err := svc.PreviewPlanChange(context.Background(), 7, 3)
	if !IsCode(err, CodeProvider) {
		t.Fatalf("expected provider_error, got %v", err)
	}
}
