package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/WarraBell/pulsescout/app/models"
)

func TestConsumeWithinQuota(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{
		UserID: 7,
		PlanID: 2,
		Status: models.SubscriptionStatusActive,
	})

	sub, err := svc.Consume(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sub.LeadsUsedThisMonth != 10 {
		t.Errorf("expected counter 10, got %d", sub.LeadsUsedThisMonth)
	}
	if sub.Plan == nil {
		t.Fatal("plan not preloaded on snapshot")
	}
	if got := sub.LeadsRemaining(sub.Plan); got != 240 {
		t.Errorf("expected 240 remaining, got %d", got)
	}
}

func TestConsumeDefaultsToOne(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{
		UserID: 7,
		PlanID: 2,
		Status: models.SubscriptionStatusActive,
	})

	sub, err := svc.Consume(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sub.LeadsUsedThisMonth != 1 {
		t.Errorf("expected counter 1, got %d", sub.LeadsUsedThisMonth)
	}
}

func TestConsumeQuotaExceeded(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{
		UserID:             7,
		PlanID:             2,
		Status:             models.SubscriptionStatusActive,
		LeadsUsedThisMonth: 249,
	})

	if _, err := svc.Consume(context.Background(), 7, 1); err != nil {
		t.Fatalf("consuming the last unit must succeed, got %v", err)
	}
	_, err := svc.Consume(context.Background(), 7, 1)
	if !IsCode(err, CodeQuotaExceeded) {
		t.Fatalf("expected quota_exceeded, got %v", err)
	}
	if got := repo.subByUser(7).LeadsUsedThisMonth; got != 250 {
		t.Errorf("rejected consume must not change the counter, got %d", got)
	}
}

func TestConsumeRejectsWholeCountOverQuota(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{
		UserID:             7,
		PlanID:             2,
		Status:             models.SubscriptionStatusActive,
		LeadsUsedThisMonth: 245,
	})

	// 245 + 10 > 250: the request fails as a whole, no partial spend.
	_, err := svc.Consume(context.Background(), 7, 10)
	if !IsCode(err, CodeQuotaExceeded) {
		t.Fatalf("expected quota_exceeded, got %v", err)
	}
	if got := repo.subByUser(7).LeadsUsedThisMonth; got != 245 {
		t.Errorf("counter must be untouched, got %d", got)
	}
}

func TestConsumeRequiresEntitlingStatus(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{
		UserID: 7,
		PlanID: 2,
		Status: models.SubscriptionStatusPastDue,
	})

	_, err := svc.Consume(context.Background(), 7, 1)
	if !IsCode(err, CodeQuotaExceeded) {
		t.Fatalf("expected quota_exceeded for past_due subscription, got %v", err)
	}
}

func TestConsumeWithoutSubscription(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Consume(context.Background(), 7, 1)
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestConsumeConcurrentNeverOverspends(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addPlan(models.Plan{ID: 9, Name: "Tiny", LeadsPerMonth: 50})
	repo.addSubscription(models.Subscription{
		UserID: 7,
		PlanID: 9,
		Status: models.SubscriptionStatusActive,
	})

	const workers = 60
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(context.Background(), 7, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case IsCode(err, CodeQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 50 {
		t.Errorf("expected exactly 50 successful consumes, got %d", succeeded)
	}
	if rejected != 10 {
		t.Errorf("expected 10 quota rejections, got %d", rejected)
	}
	if got := repo.subByUser(7).LeadsUsedThisMonth; got != 50 {
		t.Errorf("counter must equal the quota, got %d", got)
	}
}

func TestResetAllUsage(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.addSubscription(models.Subscription{UserID: 7, PlanID: 2, Status: models.SubscriptionStatusActive, LeadsUsedThisMonth: 250})
	repo.addUser(models.User{ID: 8, Email: "b@example.com"})
	repo.addSubscription(models.Subscription{UserID: 8, PlanID: 3, Status: models.SubscriptionStatusActive, LeadsUsedThisMonth: 17})
	repo.addUser(models.User{ID: 9, Email: "c@example.com"})
	repo.addSubscription(models.Subscription{UserID: 9, PlanID: 2, Status: models.SubscriptionStatusActive})

	affected, err := svc.ResetAllUsage(context.Background())
	if err != nil {
		t.Fatalf("ResetAllUsage: %v", err)
	}
	if affected != 2 {
		t.Errorf("expected 2 rows reset, got %d", affected)
	}

	// A previously exhausted subscription can consume again.
	sub, err := svc.Consume(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("Consume after reset: %v", err)
	}
	if sub.LeadsUsedThisMonth != 1 {
		t.Errorf("expected counter 1 after reset, got %d", sub.LeadsUsedThisMonth)
	}

	// Re-running the reset touches nothing new except the fresh spend.
	affected, err = svc.ResetAllUsage(context.Background())
	if err != nil {
		t.Fatalf("ResetAllUsage: %v", err)
	}
	if affected != 1 {
		t.Errorf("expected 1 row on re-run, got %d", affected)
	}
}
