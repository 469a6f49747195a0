package billing

import (
	"context"
	"time"
)

// ProviderSubscription is the provider-reported subscription state.
// After every mutating call the service adopts these fields as the
// authoritative status/period values, it never infers them locally.
type ProviderSubscription struct {
	Ref                string
	CustomerRef        string
	PriceRef           string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
	LatestPayment      *ProviderPayment
}

// ProviderPayment is a payment the provider reports, amounts in
// integer minor units.
type ProviderPayment struct {
	Ref         string
	AmountMinor int64
	Currency    string
	Status      string
	Description string
}

// PaymentMethod is a stored card as reported by the provider.
type PaymentMethod struct {
	Ref       string
	Brand     string
	Last4     string
	ExpMonth  int64
	ExpYear   int64
	IsDefault bool
}

// SetupIntent carries the client secret the frontend needs to collect
// a payment method.
type SetupIntent struct {
	Ref          string
	ClientSecret string
}

// UpcomingInvoice is the provider's quote for the next invoice after a
// hypothetical plan change. Amounts in integer minor units.
type UpcomingInvoice struct {
	TotalMinor     int64
	ProrationMinor int64
	Currency       string
	NextBillingAt  time.Time
}

// CreateSubscriptionParams describes a provider subscription create.
type CreateSubscriptionParams struct {
	CustomerRef      string
	PriceRef         string
	PaymentMethodRef string
	TrialDays        int
	Metadata         map[string]string
	IdempotencyKey   string
}

// CreatePaymentParams describes a one-time charge.
type CreatePaymentParams struct {
	CustomerRef      string
	PaymentMethodRef string
	AmountMinor      int64
	Currency         string
	Description      string
	IdempotencyKey   string
}

// Gateway is the capability surface over the external payment
// provider. Implementations translate provider failures into *Error
// values (card declines as CodeCardDeclined, everything else as
// CodeProvider) and never touch local storage.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string, userID uint) (string, error)
	AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error
	DetachPaymentMethod(ctx context.Context, paymentMethodRef string) error
	ListPaymentMethods(ctx context.Context, customerRef string) ([]PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error

	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*ProviderSubscription, error)
	GetSubscription(ctx context.Context, subscriptionRef string) (*ProviderSubscription, error)
	ChangeSubscriptionPrice(ctx context.Context, subscriptionRef, priceRef, idempotencyKey string) (*ProviderSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionRef string) (*ProviderSubscription, error)

	CreateSetupIntent(ctx context.Context, customerRef string) (*SetupIntent, error)
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*ProviderPayment, error)
	PreviewPlanChange(ctx context.Context, customerRef, subscriptionRef, priceRef string) (*UpcomingInvoice, error)
}
