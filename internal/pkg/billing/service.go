package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/WarraBell/pulsescout/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const trialPeriodDays = 30

// Service is the reconciliation engine. It is the single owner of
// subscription state transitions: whether a transition is triggered by
// a customer action or by an inbound provider event, it passes through
// here, and the provider-reported state is always adopted verbatim for
// status and period fields.
type Service struct {
	repo    Repository
	gateway Gateway
}

// NewService creates a billing service from injected dependencies.
func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{repo: repo, gateway: gateway}
}

// StartTrial creates the initial zero-cost trial subscription for a
// fresh signup: active status, trial plan, 30-day period, no provider
// subscription behind it.
func (s *Service) StartTrial(ctx context.Context, userID uint) (*models.Subscription, error) {
	plan, err := s.repo.GetTrialPlan()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	end := now.AddDate(0, 0, trialPeriodDays)
	sub := &models.Subscription{
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             models.SubscriptionStatusActive,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
		CancelAtPeriodEnd:  true,
		LeadsUsedThisMonth: 0,
	}
	if err := s.repo.CreateSubscription(sub); err != nil {
		return nil, err
	}
	sub.Plan = plan
	return sub, nil
}

// CreateSubscription subscribes a user to a paid plan. The provider
// mutation happens first; the local commit adopts the provider's
// reported state. If the local commit fails after the provider write
// succeeded, the next subscription webhook replays the same state, so
// the operation is eventually consistent rather than unrecoverable.
func (s *Service) CreateSubscription(ctx context.Context, userID, planID uint, paymentMethodRef string) (*models.Subscription, error) {
	user, err := s.repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return s.startFreePlan(ctx, userID, plan)
	}
	if plan.StripePriceID == "" {
		return nil, NewProviderError("plan has no provider price reference", nil)
	}

	existing, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil && !IsCode(err, CodeNotFound) {
		return nil, err
	}

	customerRef := ""
	if existing != nil {
		customerRef = existing.StripeCustomerID
	}
	if customerRef == "" {
		customerRef, err = s.gateway.CreateCustomer(ctx, user.Email, user.Name, userID)
		if err != nil {
			return nil, err
		}
	}

	if paymentMethodRef != "" {
		if err := s.gateway.AttachPaymentMethod(ctx, customerRef, paymentMethodRef); err != nil {
			return nil, err
		}
		if err := s.gateway.SetDefaultPaymentMethod(ctx, customerRef, paymentMethodRef); err != nil {
			return nil, err
		}
	}

	provider, err := s.gateway.CreateSubscription(ctx, CreateSubscriptionParams{
		CustomerRef:      customerRef,
		PriceRef:         plan.StripePriceID,
		PaymentMethodRef: paymentMethodRef,
		Metadata: map[string]string{
			"user_id": fmt.Sprintf("%d", userID),
			"plan_id": fmt.Sprintf("%d", planID),
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	var result *models.Subscription
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		sub, err := tx.GetSubscriptionByUserIDForUpdate(userID)
		if err != nil {
			if !IsCode(err, CodeNotFound) {
				return err
			}
			sub = &models.Subscription{UserID: userID}
		}

		sub.PlanID = plan.ID
		sub.StripeCustomerID = customerRef
		sub.StripeSubscriptionID = models.ProviderRef(provider.Ref)
		sub.Status = provider.Status
		sub.CurrentPeriodStart = timePtr(provider.CurrentPeriodStart)
		sub.CurrentPeriodEnd = timePtr(provider.CurrentPeriodEnd)
		sub.CancelAtPeriodEnd = provider.CancelAtPeriodEnd
		sub.LeadsUsedThisMonth = 0

		if sub.ID == 0 {
			if err := tx.CreateSubscription(sub); err != nil {
				return err
			}
		} else if err := tx.SaveSubscription(sub); err != nil {
			return err
		}

		if provider.LatestPayment != nil {
			if _, err := tx.CreatePaymentIfNotExists(&models.PaymentRecord{
				UserID:          userID,
				StripePaymentID: models.ProviderRef(provider.LatestPayment.Ref),
				Amount:          models.AmountFromMinorUnits(provider.LatestPayment.AmountMinor),
				Currency:        provider.LatestPayment.Currency,
				Status:          models.PaymentStatusSucceeded,
				Description:     fmt.Sprintf("Subscription to %s plan", plan.Name),
			}); err != nil {
				return err
			}
		}

		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Plan = plan
	return result, nil
}

// startFreePlan moves a user onto a zero-cost plan without touching
// the provider.
func (s *Service) startFreePlan(ctx context.Context, userID uint, plan *models.Plan) (*models.Subscription, error) {
	var result *models.Subscription
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		sub, err := tx.GetSubscriptionByUserIDForUpdate(userID)
		if err != nil {
			if !IsCode(err, CodeNotFound) {
				return err
			}
			sub = &models.Subscription{UserID: userID}
		}

		now := time.Now().UTC()
		end := now.AddDate(0, 0, trialPeriodDays)
		sub.PlanID = plan.ID
		sub.Status = models.SubscriptionStatusActive
		sub.CurrentPeriodStart = &now
		sub.CurrentPeriodEnd = &end
		sub.CancelAtPeriodEnd = true
		sub.LeadsUsedThisMonth = 0

		if sub.ID == 0 {
			if err := tx.CreateSubscription(sub); err != nil {
				return err
			}
		} else if err := tx.SaveSubscription(sub); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Plan = plan
	return result, nil
}

// ChangePlan switches an entitled subscription to a new plan. The
// usage counter resets and period bounds are recomputed from the
// provider response.
func (s *Service) ChangePlan(ctx context.Context, userID, newPlanID uint) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return nil, err
	}
	if !sub.IsEntitling() {
		return nil, NewNotFound("no active subscription to change")
	}
	if sub.StripeSubscriptionID == "" {
		return nil, NewProviderError("subscription has no provider reference", nil)
	}
	plan, err := s.repo.GetPlan(newPlanID)
	if err != nil {
		return nil, err
	}
	if plan.StripePriceID == "" {
		return nil, NewProviderError("plan has no provider price reference", nil)
	}

	provider, err := s.gateway.ChangeSubscriptionPrice(ctx, string(sub.StripeSubscriptionID), plan.StripePriceID, uuid.NewString())
	if err != nil {
		return nil, err
	}

	var result *models.Subscription
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		locked, err := tx.GetSubscriptionByUserIDForUpdate(userID)
		if err != nil {
			return err
		}
		locked.PlanID = plan.ID
		locked.Status = provider.Status
		locked.CurrentPeriodStart = timePtr(provider.CurrentPeriodStart)
		locked.CurrentPeriodEnd = timePtr(provider.CurrentPeriodEnd)
		locked.CancelAtPeriodEnd = provider.CancelAtPeriodEnd
		locked.LeadsUsedThisMonth = 0
		result = locked
		return tx.SaveSubscription(locked)
	})
	if err != nil {
		return nil, err
	}
	result.Plan = plan
	return result, nil
}

// CancelAtPeriodEnd flags the subscription for cancellation at the end
// of the current cycle. Status stays unchanged; the provider enforces
// the cancellation and reports it back through a deleted webhook.
func (s *Service) CancelAtPeriodEnd(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return nil, NewNotFound("no provider subscription to cancel")
	}

	provider, err := s.gateway.SetCancelAtPeriodEnd(ctx, string(sub.StripeSubscriptionID), true)
	if err != nil {
		return nil, err
	}

	var result *models.Subscription
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		locked, err := tx.GetSubscriptionByUserIDForUpdate(userID)
		if err != nil {
			return err
		}
		locked.Status = provider.Status
		locked.CancelAtPeriodEnd = provider.CancelAtPeriodEnd
		result = locked
		return tx.SaveSubscription(locked)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelImmediately deletes the provider subscription synchronously
// and sets the local status to canceled eagerly, without waiting for
// the deleted webhook.
func (s *Service) CancelImmediately(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return nil, err
	}

	if sub.StripeSubscriptionID != "" {
		if _, err := s.gateway.CancelSubscription(ctx, string(sub.StripeSubscriptionID)); err != nil {
			return nil, err
		}
	}

	var result *models.Subscription
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		locked, err := tx.GetSubscriptionByUserIDForUpdate(userID)
		if err != nil {
			return err
		}
		locked.Status = models.SubscriptionStatusCanceled
		locked.CancelAtPeriodEnd = false
		result = locked
		return tx.SaveSubscription(locked)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetSubscription returns the subscription with its plan preloaded.
func (s *Service) GetSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	return s.repo.GetSubscriptionByUserID(userID)
}

// ListPlans returns the plan catalog ordered by price.
func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	return s.repo.ListPlans()
}

// IsActive reports whether the user holds an entitling subscription.
func (s *Service) IsActive(ctx context.Context, userID uint) bool {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return false
	}
	return sub.IsEntitling()
}

// HasFeature reports whether the user's current plan includes the
// feature. Only entitling subscriptions grant features.
func (s *Service) HasFeature(ctx context.Context, userID uint, feature entitlements.Feature) bool {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil || !sub.IsEntitling() {
		return false
	}
	return entitlements.Has(sub.Plan, feature)
}

// ApplySubscriptionEvent reconciles an inbound provider subscription
// event into local state. It is an idempotent upsert keyed by the
// provider subscription reference: deliveries can repeat, arrive out
// of order (updated before created), or reference rows that do not
// exist yet. A row whose user already holds a different provider
// reference is never overwritten.
func (s *Service) ApplySubscriptionEvent(ctx context.Context, kind EventKind, provider *ProviderSubscription) error {
	if provider == nil || provider.Ref == "" {
		return nil
	}

	return s.repo.Transaction(ctx, func(tx Repository) error {
		existing, err := tx.GetSubscriptionByProviderRef(provider.Ref)
		if err != nil && !IsCode(err, CodeNotFound) {
			return err
		}

		switch kind {
		case EventSubscriptionDeleted:
			if existing == nil {
				return nil
			}
			if existing.Status == models.SubscriptionStatusCanceled {
				// Redelivery of an already-applied deletion.
				return nil
			}
			existing.Status = models.SubscriptionStatusCanceled
			existing.CancelAtPeriodEnd = false
			return tx.SaveSubscription(existing)

		case EventSubscriptionCreated, EventSubscriptionUpdated:
			if existing != nil {
				return s.applyProviderState(tx, existing, provider)
			}
			return s.adoptOrCreateFromEvent(tx, provider)

		default:
			return nil
		}
	})
}

// applyProviderState projects provider-reported fields onto an
// existing local row. A changed price reference moves the row to the
// mapped plan and resets the usage counter.
func (s *Service) applyProviderState(tx Repository, sub *models.Subscription, provider *ProviderSubscription) error {
	if provider.PriceRef != "" {
		plan, err := tx.GetPlanByPriceRef(provider.PriceRef)
		if err == nil && plan.ID != sub.PlanID {
			sub.PlanID = plan.ID
			sub.LeadsUsedThisMonth = 0
		} else if err != nil && !IsCode(err, CodeNotFound) {
			return err
		}
	}
	if provider.CustomerRef != "" {
		sub.StripeCustomerID = provider.CustomerRef
	}
	sub.Status = provider.Status
	sub.CurrentPeriodStart = timePtr(provider.CurrentPeriodStart)
	sub.CurrentPeriodEnd = timePtr(provider.CurrentPeriodEnd)
	sub.CancelAtPeriodEnd = provider.CancelAtPeriodEnd
	return tx.SaveSubscription(sub)
}

// adoptOrCreateFromEvent handles an event for a provider reference
// with no local row. If the event metadata maps to a valid user the
// row is created (or the user's provider-less trial row adopted);
// otherwise the event is recorded and ignored.
func (s *Service) adoptOrCreateFromEvent(tx Repository, provider *ProviderSubscription) error {
	userID := parseUintMeta(provider.Metadata, "user_id")
	if userID == 0 {
		log.Infof("[Billing] ignoring subscription event for unknown reference %s: no user mapping", provider.Ref)
		return nil
	}
	if _, err := tx.GetUser(userID); err != nil {
		if IsCode(err, CodeNotFound) {
			log.Infof("[Billing] ignoring subscription event for unknown reference %s: user %d not found", provider.Ref, userID)
			return nil
		}
		return err
	}

	planID := parseUintMeta(provider.Metadata, "plan_id")
	if provider.PriceRef != "" {
		if plan, err := tx.GetPlanByPriceRef(provider.PriceRef); err == nil {
			planID = plan.ID
		} else if !IsCode(err, CodeNotFound) {
			return err
		}
	}
	if planID == 0 {
		log.Infof("[Billing] ignoring subscription event for unknown reference %s: no plan mapping", provider.Ref)
		return nil
	}
	if _, err := tx.GetPlan(planID); err != nil {
		if IsCode(err, CodeNotFound) {
			log.Infof("[Billing] ignoring subscription event for unknown reference %s: plan %d not found", provider.Ref, planID)
			return nil
		}
		return err
	}

	current, err := tx.GetSubscriptionByUserID(userID)
	if err != nil && !IsCode(err, CodeNotFound) {
		return err
	}
	if current != nil {
		if current.StripeSubscriptionID != "" && string(current.StripeSubscriptionID) != provider.Ref {
			// The user's row is bound to a different provider
			// subscription; never overwrite it from a foreign event.
			log.Infof("[Billing] ignoring subscription event %s: user %d bound to %s", provider.Ref, userID, current.StripeSubscriptionID)
			return nil
		}
		current.StripeSubscriptionID = models.ProviderRef(provider.Ref)
		current.PlanID = planID
		current.LeadsUsedThisMonth = 0
		return s.applyProviderState(tx, current, provider)
	}

	sub := &models.Subscription{
		UserID:               userID,
		PlanID:               planID,
		StripeCustomerID:     provider.CustomerRef,
		StripeSubscriptionID: models.ProviderRef(provider.Ref),
		Status:               provider.Status,
		CurrentPeriodStart:   timePtr(provider.CurrentPeriodStart),
		CurrentPeriodEnd:     timePtr(provider.CurrentPeriodEnd),
		CancelAtPeriodEnd:    provider.CancelAtPeriodEnd,
		LeadsUsedThisMonth:   0,
	}
	return tx.UpsertSubscriptionByProviderRef(sub)
}

// ApplyPaymentEvent records a provider payment outcome. Deduplication
// is by the provider payment reference: a redelivered event finds the
// existing PaymentRecord and is a no-op.
func (s *Service) ApplyPaymentEvent(ctx context.Context, kind EventKind, payment *ProviderPayment, customerRef string, metadata map[string]string) error {
	if payment == nil || payment.Ref == "" {
		return nil
	}

	status := models.PaymentStatusSucceeded
	if kind == EventPaymentFailed {
		status = models.PaymentStatusFailed
	}

	userID := parseUintMeta(metadata, "user_id")
	if userID == 0 && customerRef != "" {
		sub, err := s.repo.GetSubscriptionByCustomerRef(customerRef)
		if err != nil {
			if !IsCode(err, CodeNotFound) {
				return err
			}
		} else {
			userID = sub.UserID
		}
	}
	if userID == 0 {
		log.Infof("[Billing] ignoring payment event %s: no local user mapping", payment.Ref)
		return nil
	}

	description := payment.Description
	if description == "" {
		description = "Payment"
	}

	created, err := s.repo.CreatePaymentIfNotExists(&models.PaymentRecord{
		UserID:          userID,
		StripePaymentID: models.ProviderRef(payment.Ref),
		Amount:          models.AmountFromMinorUnits(payment.AmountMinor),
		Currency:        payment.Currency,
		Status:          status,
		Description:     description,
	})
	if err != nil {
		return err
	}
	if !created {
		log.Infof("[Billing] payment %s already recorded, skipping", payment.Ref)
	}
	return nil
}

func parseUintMeta(metadata map[string]string, key string) uint {
	if metadata == nil {
		return 0
	}
	v, err := strconv.ParseUint(metadata[key], 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
