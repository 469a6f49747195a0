package billing

import (
	"context"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/google/uuid"
)

// CreateSetupIntent prepares the provider-side collection of a new
// payment method, creating the provider customer first if the user
// never had one.
func (s *Service) CreateSetupIntent(ctx context.Context, userID uint) (*SetupIntent, error) {
	customerRef, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.gateway.CreateSetupIntent(ctx, customerRef)
}

// ListPaymentMethods returns the user's stored cards with the default
// flagged.
func (s *Service) ListPaymentMethods(ctx context.Context, userID uint) ([]PaymentMethod, error) {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeCustomerID == "" {
		return []PaymentMethod{}, nil
	}
	return s.gateway.ListPaymentMethods(ctx, sub.StripeCustomerID)
}

// SetDefaultPaymentMethod attaches the payment method if needed and
// makes it the customer's default for future invoices.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, userID uint, paymentMethodRef string) error {
	customerRef, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.gateway.AttachPaymentMethod(ctx, customerRef, paymentMethodRef); err != nil {
		return err
	}
	return s.gateway.SetDefaultPaymentMethod(ctx, customerRef, paymentMethodRef)
}

// RemovePaymentMethod detaches a stored card. The current default
// cannot be removed.
func (s *Service) RemovePaymentMethod(ctx context.Context, userID uint, paymentMethodRef string) error {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return err
	}
	if sub.StripeCustomerID == "" {
		return NewNotFound("no payment methods on file")
	}

	methods, err := s.gateway.ListPaymentMethods(ctx, sub.StripeCustomerID)
	if err != nil {
		return err
	}
	for _, m := range methods {
		if m.Ref == paymentMethodRef && m.IsDefault {
			return NewProviderError("cannot remove the default payment method", nil)
		}
	}
	return s.gateway.DetachPaymentMethod(ctx, paymentMethodRef)
}

// CreateOneTimeCharge charges the customer's default payment method
// off-session and appends the resulting ledger entry.
func (s *Service) CreateOneTimeCharge(ctx context.Context, userID uint, amountMinor int64, currency, description string) (*models.PaymentRecord, error) {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeCustomerID == "" {
		return nil, NewNotFound("no billing customer on file")
	}

	payment, err := s.gateway.CreatePayment(ctx, CreatePaymentParams{
		CustomerRef:    sub.StripeCustomerID,
		AmountMinor:    amountMinor,
		Currency:       currency,
		Description:    description,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	status := models.PaymentStatusPending
	if payment.Status == "succeeded" {
		status = models.PaymentStatusSucceeded
	}
	record := &models.PaymentRecord{
		UserID:          userID,
		StripePaymentID: models.ProviderRef(payment.Ref),
		Amount:          models.AmountFromMinorUnits(payment.AmountMinor),
		Currency:        payment.Currency,
		Status:          status,
		Description:     description,
	}
	if _, err := s.repo.CreatePaymentIfNotExists(record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetPaymentHistory lists the user's ledger entries newest first.
func (s *Service) GetPaymentHistory(ctx context.Context, userID uint, limit, offset int) ([]models.PaymentRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListPaymentsByUser(userID, limit, offset)
}

// ensureCustomer resolves or creates the provider customer for a user
// and persists the reference on the subscription row.
func (s *Service) ensureCustomer(ctx context.Context, userID uint) (string, error) {
	sub, err := s.repo.GetSubscriptionByUserID(userID)
	if err != nil && !IsCode(err, CodeNotFound) {
		return "", err
	}
	if sub != nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	user, err := s.repo.GetUser(userID)
	if err != nil {
		return "", err
	}
	customerRef, err := s.gateway.CreateCustomer(ctx, user.Email, user.Name, userID)
	if err != nil {
		return "", err
	}

	if sub != nil {
		err = s.repo.Transaction(ctx, func(tx Repository) error {
			locked, err := tx.GetSubscriptionByUserIDForUpdate(userID)
			if err != nil {
				return err
			}
			if locked.StripeCustomerID == "" {
				locked.StripeCustomerID = customerRef
				return tx.SaveSubscription(locked)
			}
			customerRef = locked.StripeCustomerID
			return nil
		})
		if err != nil {
			return "", err
		}
	}
	return customerRef, nil
}
