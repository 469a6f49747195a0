package billing

import (
	"context"
	"testing"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/shopspring/decimal"
)

func TestCreateSetupIntentCreatesCustomer(t *testing.T) {
	svc, repo, gateway := newTestService()
	repo.addSubscription(models.Subscription{
		UserID: 7,
		PlanID: 1,
		Status: models.SubscriptionStatusActive,
	})
	gateway.setupIntent = &SetupIntent{Ref: "seti_1", ClientSecret: "seti_1_secret"}

	si, err := svc.CreateSetupIntent(context.Background(), 7)
	if err != nil {
		t.Fatalf("CreateSetupIntent: %v", err)
	}
	if si.ClientSecret != "seti_1_secret" {
		t.Errorf("unexpected client secret %q", si.ClientSecret)
	}
	if got := repo.subByUser(7).StripeCustomerID; got != "cus_fake" {
		t.Errorf("customer reference not persisted on the subscription, got %q", got)
	}
}

func TestCreateSetupIntentReusesCustomer(t *testing.T) {
	svc, repo, gateway := newTestService()
	repo.addSubscription(models.Subscription{
		UserID:           7,
		PlanID:           2,
		StripeCustomerID: "cus_existing",
		Status:           models.SubscriptionStatusActive,
	})
	gateway.customerRef = "cus_should_not_be_used"
	gateway.setupIntent = &SetupIntent{Ref: "seti_1", ClientSecret: "secret"}

	if _, err := svc.CreateSetupIntent(context.Background(), 7); err != nil {
		t.Fatalf("CreateSetupIntent: %v", err)
	}
	if got := repo.subByUser(7).StripeCustomerID; got != "cus_existing" {
		t.Errorf("existing customer reference replaced with %q", got)
	}
}

func TestListPaymentMethodsWithoutCustomer(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{
		UserID: 7,
		PlanID: 1,
		Status: models.SubscriptionStatusActive,
	})

	methods, err := svc.ListPaymentMethods(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListPaymentMethods: %v", err)
	}
	if len(methods) != 0 {
		t.Errorf("expected no methods, got %d", len(methods))
	}
}

func TestSetDefaultPaymentMethod(t *testing.T) {
	svc, repo, gateway := newTestService()
	repo.addSubscription(models.Subscription{
		UserID:           7,
		PlanID:           2,
		StripeCustomerID: "cus_fake",
		Status:           models.SubscriptionStatusActive,
	})

	if err := svc.SetDefaultPaymentMethod(context.Background(), 7, "pm_new"); err != nil {
		t.Fatalf("SetDefaultPaymentMethod: %v", err)
	}
	if len(gateway.attachedMethods) != 1 || gateway.attachedMethods[0] != "pm_new" {
		t.Errorf("payment method not attached: %v", gateway.attachedMethods)
	}
	if gateway.defaultMethod != "pm_new" {
		t.Errorf("default not updated, got %q", gateway.defaultMethod)
	}
}

func TestRemovePaymentMethodRefusesDefault(t *testing.T) {
	svc, repo, gateway := newTestService()
	repo.addSubscription(models.Subscription{
		UserID:           7,
		PlanID:           2,
		StripeCustomerID: "cus_fake",
		Status:           models.SubscriptionStatusActive,
	})
	gateway.methods = []PaymentMethod{
		{Ref: "pm_default", Brand: "visa", Last4: "4242", IsDefault: true},
		{Ref: "pm_backup", Brand: "mastercard", Last4: "4444"},
	}

	err := svc.RemovePaymentMethod(context.Background(), 7, "pm_default")
	if !IsCode(err, CodeProvider) {
		t.Fatalf("expected refusal to remove the default, got %v", err)
	}
	if err := svc.RemovePaymentMethod(context.Background(), 7, "pm_backup"); err != nil {
		t.Fatalf("removing a non-default method: %v", err)
	}
}

func TestCreateOneTimeCharge(t *testing.T) {
	svc, repo, gateway := newTestService()
	repo.addSubscription(models.Subscription{
		UserID:           7,
		PlanID:           2,
		StripeCustomerID: "cus_fake",
		Status:           models.SubscriptionStatusActive,
	})
	gateway.payment = &ProviderPayment{
		Ref:         "pi_charge",
		AmountMinor: 2500,
		Currency:    "usd",
		Status:      "succeeded",
	}

	rec, err := svc.CreateOneTimeCharge(context.Background(), 7, 2500, "usd", "Lead enrichment add-on")
	if err != nil {
		t.Fatalf("CreateOneTimeCharge: %v", err)
	}
	if rec.Status != models.PaymentStatusSucceeded {
		t.Errorf("expected succeeded, got %s", rec.Status)
	}
	if !rec.Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected amount 25, got %s", rec.Amount)
	}
	if len(repo.payments) != 1 {
		t.Errorf("ledger entry not appended, got %d records", len(repo.payments))
	}
}

func TestCreateOneTimeChargeWithoutCustomer(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{
		UserID: 7,
		PlanID: 1,
		Status: models.SubscriptionStatusActive,
	})

	_, err := svc.CreateOneTimeCharge(context.Background(), 7, 2500, "usd", "x")
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("expected not_found without a billing customer, got %v", err)
	}
}

func TestGetPaymentHistoryClampsLimit(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.payments = append(repo.payments, &models.PaymentRecord{UserID: 7, StripePaymentID: "pi_1"})

	if _, err := svc.GetPaymentHistory(context.Background(), 7, -5, -1); err != nil {
		t.Fatalf("GetPaymentHistory: %v", err)
	}
	if _, err := svc.GetPaymentHistory(context.Background(), 7, 1000, 0); err != nil {
		t.Fatalf("GetPaymentHistory: %v", err)
	}
}

func TestPendingRecordsWithoutProviderRefCoexist(t *testing.T) {
	_, repo, _ := newTestService()

	for i := 0; i < 2; i++ {
		created, err := repo.CreatePaymentIfNotExists(&models.PaymentRecord{
			UserID: 7,
			Amount: models.AmountFromMinorUnits(500),
			Status: models.PaymentStatusPending,
		})
		if err != nil || !created {
			t.Fatalf("pending record %d rejected: created=%v err=%v", i, created, err)
		}
	}
	if len(repo.payments) != 2 {
		t.Errorf("expected both unconfirmed records stored, got %d", len(repo.payments))
	}
}
