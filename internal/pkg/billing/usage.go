package billing

import (
	"context"
	"fmt"

	"github.com/WarraBell/pulsescout/app/models"
)

// Consume spends count units of the monthly lead quota. The check and
// increment run under the subscription row lock, so concurrent calls
// for the same user serialize and can never jointly exceed the quota.
// Returns the updated subscription snapshot with the plan preloaded.
func (s *Service) Consume(ctx context.Context, userID uint, count int) (*models.Subscription, error) {
	if count <= 0 {
		count = 1
	}

	var result *models.Subscription
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		sub, err := tx.GetSubscriptionByUserIDForUpdate(userID)
		if err != nil {
			return err
		}
		if !sub.IsEntitling() {
			return NewQuotaExceeded("subscription is not active")
		}

		plan, err := tx.GetPlan(sub.PlanID)
		if err != nil {
			return err
		}
		if sub.LeadsUsedThisMonth+count > plan.LeadsPerMonth {
			return NewQuotaExceeded(fmt.Sprintf(
				"monthly lead limit of %d reached", plan.LeadsPerMonth))
		}

		sub.LeadsUsedThisMonth += count
		if err := tx.SaveSubscription(sub); err != nil {
			return err
		}
		sub.Plan = plan
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ResetAllUsage zeroes every subscription's usage counter in a single
// statement. It is invoked once per billing cycle by an external
// scheduler and is safe to re-run.
func (s *Service) ResetAllUsage(ctx context.Context) (int64, error) {
	var affected int64
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		n, err := tx.ResetAllUsage()
		affected = n
		return err
	})
	return affected, err
}
