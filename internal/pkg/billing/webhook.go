package billing

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// EventKind discriminates the webhook event union. Unknown provider
// event types map to EventIgnored and are a no-op, never a failure.
type EventKind string

const (
	EventIgnored             EventKind = "ignored"
	EventSubscriptionCreated EventKind = "subscription_created"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"
	EventPaymentSucceeded    EventKind = "payment_succeeded"
	EventPaymentFailed       EventKind = "payment_failed"
)

// Event is the parsed, strongly-typed webhook envelope. Exactly one of
// Subscription/Payment is set depending on Kind.
type Event struct {
	Kind            EventKind
	ProviderEventID string
	Type            string
	Subscription    *ProviderSubscription
	Payment         *ProviderPayment
	CustomerRef     string
	Metadata        map[string]string
}

// Ingestor verifies, deduplicates and dispatches inbound provider
// webhooks. Processing failures are recorded on the stored event for
// operator visibility; the provider's delivery retries are the
// recovery mechanism, so every dispatch target is safe to re-invoke
// with the same payload.
type Ingestor struct {
	service *Service
	repo    Repository
	secret  string
}

// NewIngestor creates a webhook ingestor bound to the reconciliation
// service and the shared webhook signing secret.
func NewIngestor(service *Service, repo Repository, secret string) *Ingestor {
	return &Ingestor{service: service, repo: repo, secret: secret}
}

// Process handles one raw webhook delivery. A signature failure is
// returned as CodeSignatureInvalid before anything is persisted; all
// other internal failures are recorded and returned for logging, with
// the expectation that the HTTP boundary still acknowledges them.
func (i *Ingestor) Process(ctx context.Context, payload []byte, signatureHeader string) error {
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signatureHeader, i.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return NewSignatureInvalid("webhook signature verification failed")
	}

	created, stored, err := i.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		StripeEventID:  stripeEvent.ID,
		EventType:      string(stripeEvent.Type),
		PayloadJSON:    string(payload),
		SignatureValid: true,
	})
	if err != nil {
		return err
	}
	if !created {
		log.Infof("[Webhook] duplicate delivery of event %s, skipping", stripeEvent.ID)
		return nil
	}

	event, parseErr := parseStripeEvent(&stripeEvent)
	if parseErr != nil {
		i.markProcessed(stored.ID, parseErr)
		return parseErr
	}

	dispatchErr := i.dispatch(ctx, event)
	i.markProcessed(stored.ID, dispatchErr)
	return dispatchErr
}

func (i *Ingestor) dispatch(ctx context.Context, event *Event) error {
	switch event.Kind {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return i.service.ApplySubscriptionEvent(ctx, event.Kind, event.Subscription)
	case EventPaymentSucceeded, EventPaymentFailed:
		return i.service.ApplyPaymentEvent(ctx, event.Kind, event.Payment, event.CustomerRef, event.Metadata)
	default:
		log.Infof("[Webhook] ignoring event type %s", event.Type)
		return nil
	}
}

func (i *Ingestor) markProcessed(eventID uint, processingErr error) {
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	if err := i.repo.MarkWebhookProcessed(eventID, errMsg); err != nil {
		log.Errorf("[Webhook] failed to mark event %d processed: %v", eventID, err)
	}
}

// parseStripeEvent maps the dynamic provider envelope onto the typed
// event union.
func parseStripeEvent(stripeEvent *stripe.Event) (*Event, error) {
	event := &Event{
		Kind:            EventIgnored,
		ProviderEventID: stripeEvent.ID,
		Type:            string(stripeEvent.Type),
	}

	switch {
	case strings.HasPrefix(string(stripeEvent.Type), "customer.subscription."):
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, NewProviderError("malformed subscription event payload", err)
		}
		event.Subscription = normalizeStripeSubscription(&sub)
		switch stripeEvent.Type {
		case "customer.subscription.created":
			event.Kind = EventSubscriptionCreated
		case "customer.subscription.updated":
			event.Kind = EventSubscriptionUpdated
		case "customer.subscription.deleted":
			event.Kind = EventSubscriptionDeleted
		}

	case strings.HasPrefix(string(stripeEvent.Type), "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(stripeEvent.Data.Raw, &pi); err != nil {
			return nil, NewProviderError("malformed payment event payload", err)
		}
		event.Payment = &ProviderPayment{
			Ref:         pi.ID,
			AmountMinor: pi.Amount,
			Currency:    string(pi.Currency),
			Status:      string(pi.Status),
			Description: pi.Description,
		}
		if pi.Customer != nil {
			event.CustomerRef = pi.Customer.ID
		}
		event.Metadata = pi.Metadata
		switch stripeEvent.Type {
		case "payment_intent.succeeded":
			event.Kind = EventPaymentSucceeded
		case "payment_intent.payment_failed":
			event.Kind = EventPaymentFailed
		}
	}

	return event, nil
}
