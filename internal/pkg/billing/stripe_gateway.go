package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/stripe/stripe-go/v82"
)

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	client *stripe.Client
}

// NewStripeGateway creates a gateway from a Stripe secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{client: stripe.NewClient(secretKey, nil)}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string, userID uint) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
		Metadata: map[string]string{
			"user_id": fmt.Sprintf("%d", userID),
		},
	}
	customer, err := g.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", translateStripeError("failed to create customer", err)
	}
	return customer.ID, nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerRef),
	}
	if _, err := g.client.V1PaymentMethods.Attach(ctx, paymentMethodRef, params); err != nil {
		return translateStripeError("failed to attach payment method", err)
	}
	return nil
}

func (g *StripeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodRef string) error {
	if _, err := g.client.V1PaymentMethods.Detach(ctx, paymentMethodRef, &stripe.PaymentMethodDetachParams{}); err != nil {
		return translateStripeError("failed to detach payment method", err)
	}
	return nil
}

func (g *StripeGateway) ListPaymentMethods(ctx context.Context, customerRef string) ([]PaymentMethod, error) {
	defaultRef := ""
	customer, err := g.client.V1Customers.Retrieve(ctx, customerRef, nil)
	if err != nil {
		return nil, translateStripeError("failed to retrieve customer", err)
	}
	if customer.InvoiceSettings != nil && customer.InvoiceSettings.DefaultPaymentMethod != nil {
		defaultRef = customer.InvoiceSettings.DefaultPaymentMethod.ID
	}

	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerRef),
		Type:     stripe.String("card"),
	}
	var methods []PaymentMethod
	for pm, err := range g.client.V1PaymentMethods.List(ctx, params) {
		if err != nil {
			return nil, translateStripeError("failed to list payment methods", err)
		}
		m := PaymentMethod{
			Ref:       pm.ID,
			IsDefault: pm.ID == defaultRef,
		}
		if pm.Card != nil {
			m.Brand = string(pm.Card.Brand)
			m.Last4 = pm.Card.Last4
			m.ExpMonth = pm.Card.ExpMonth
			m.ExpYear = pm.Card.ExpYear
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func (g *StripeGateway) SetDefaultPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error {
	params := &stripe.CustomerUpdateParams{
		InvoiceSettings: &stripe.CustomerUpdateInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodRef),
		},
	}
	if _, err := g.client.V1Customers.Update(ctx, customerRef, params); err != nil {
		return translateStripeError("failed to set default payment method", err)
	}
	return nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, p CreateSubscriptionParams) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(p.CustomerRef),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(p.PriceRef)},
		},
		Metadata: p.Metadata,
	}
	if p.PaymentMethodRef != "" {
		params.DefaultPaymentMethod = stripe.String(p.PaymentMethodRef)
	}
	if p.TrialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(int64(p.TrialDays))
	}
	params.AddExpand("latest_invoice")
	params.AddExpand("latest_invoice.payments")
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	sub, err := g.client.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return nil, translateStripeError("failed to create subscription", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionRef string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionRetrieveParams{}
	params.AddExpand("latest_invoice")
	sub, err := g.client.V1Subscriptions.Retrieve(ctx, subscriptionRef, params)
	if err != nil {
		return nil, translateStripeError("failed to retrieve subscription", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (g *StripeGateway) ChangeSubscriptionPrice(ctx context.Context, subscriptionRef, priceRef, idempotencyKey string) (*ProviderSubscription, error) {
	current, err := g.client.V1Subscriptions.Retrieve(ctx, subscriptionRef, nil)
	if err != nil {
		return nil, translateStripeError("failed to retrieve subscription", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, NewProviderError("subscription has no line items", nil)
	}

	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(priceRef),
			},
		},
		ProrationBehavior: stripe.String("always_invoice"),
	}
	params.AddExpand("latest_invoice")
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	sub, err := g.client.V1Subscriptions.Update(ctx, subscriptionRef, params)
	if err != nil {
		return nil, translateStripeError("failed to change subscription price", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (g *StripeGateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	sub, err := g.client.V1Subscriptions.Update(ctx, subscriptionRef, params)
	if err != nil {
		return nil, translateStripeError("failed to update cancellation flag", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionRef string) (*ProviderSubscription, error) {
	sub, err := g.client.V1Subscriptions.Cancel(ctx, subscriptionRef, &stripe.SubscriptionCancelParams{})
	if err != nil {
		return nil, translateStripeError("failed to cancel subscription", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (g *StripeGateway) CreateSetupIntent(ctx context.Context, customerRef string) (*SetupIntent, error) {
	params := &stripe.SetupIntentCreateParams{
		Customer:           stripe.String(customerRef),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Usage:              stripe.String("off_session"),
	}
	si, err := g.client.V1SetupIntents.Create(ctx, params)
	if err != nil {
		return nil, translateStripeError("failed to create setup intent", err)
	}
	return &SetupIntent{Ref: si.ID, ClientSecret: si.ClientSecret}, nil
}

func (g *StripeGateway) CreatePayment(ctx context.Context, p CreatePaymentParams) (*ProviderPayment, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(p.AmountMinor),
		Currency:    stripe.String(p.Currency),
		Customer:    stripe.String(p.CustomerRef),
		Confirm:     stripe.Bool(true),
		OffSession:  stripe.Bool(true),
		Description: stripe.String(p.Description),
	}
	if p.PaymentMethodRef != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethodRef)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, translateStripeError("failed to create payment", err)
	}
	return &ProviderPayment{
		Ref:         pi.ID,
		AmountMinor: pi.Amount,
		Currency:    string(pi.Currency),
		Status:      string(pi.Status),
		Description: p.Description,
	}, nil
}

func (g *StripeGateway) PreviewPlanChange(ctx context.Context, customerRef, subscriptionRef, priceRef string) (*UpcomingInvoice, error) {
	current, err := g.client.V1Subscriptions.Retrieve(ctx, subscriptionRef, nil)
	if err != nil {
		return nil, translateStripeError("failed to retrieve subscription", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, NewProviderError("subscription has no line items", nil)
	}

	params := &stripe.InvoiceCreatePreviewParams{
		Customer:     stripe.String(customerRef),
		Subscription: stripe.String(subscriptionRef),
		SubscriptionDetails: &stripe.InvoiceCreatePreviewSubscriptionDetailsParams{
			Items: []*stripe.InvoiceCreatePreviewSubscriptionDetailsItemParams{
				{
					ID:    stripe.String(current.Items.Data[0].ID),
					Price: stripe.String(priceRef),
				},
			},
			ProrationDate: stripe.Int64(time.Now().Unix()),
		},
	}
	preview, err := g.client.V1Invoices.CreatePreview(ctx, params)
	if err != nil {
		return nil, translateStripeError("failed to preview upcoming invoice", err)
	}

	var prorationMinor int64
	if preview.Lines != nil {
		for _, line := range preview.Lines.Data {
			if isProrationLine(line) {
				prorationMinor += line.Amount
			}
		}
	}

	return &UpcomingInvoice{
		TotalMinor:     preview.Total,
		ProrationMinor: prorationMinor,
		Currency:       string(preview.Currency),
		NextBillingAt:  time.Unix(preview.PeriodEnd, 0).UTC(),
	}, nil
}

func isProrationLine(line *stripe.InvoiceLineItem) bool {
	if line == nil || line.Parent == nil {
		return false
	}
	if d := line.Parent.SubscriptionItemDetails; d != nil && d.Proration {
		return true
	}
	if d := line.Parent.InvoiceItemDetails; d != nil && d.Proration {
		return true
	}
	return false
}

func normalizeStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		Ref:               sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerRef = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceRef = item.Price.ID
		}
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}
	if inv := sub.LatestInvoice; inv != nil && inv.Status == stripe.InvoiceStatusPaid {
		payment := &ProviderPayment{
			Ref:         inv.ID,
			AmountMinor: inv.AmountPaid,
			Currency:    string(inv.Currency),
			Status:      models.PaymentStatusSucceeded,
			Description: "Subscription payment",
		}
		if inv.Payments != nil && len(inv.Payments.Data) > 0 {
			if p := inv.Payments.Data[0].Payment; p != nil && p.PaymentIntent != nil {
				payment.Ref = p.PaymentIntent.ID
			}
		}
		out.LatestPayment = payment
	}
	return out
}

// translateStripeError maps Stripe API failures into the local error
// taxonomy, keeping the provider's message so it can be surfaced.
func translateStripeError(msg string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Code == stripe.ErrorCodeCardDeclined {
			return NewCardDeclined(stripeErr.Msg, err)
		}
		return NewProviderError(stripeErr.Msg, err)
	}
	return NewProviderError(msg, err)
}
