package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/WarraBell/pulsescout/app/models"
)

// fakeRepo is an in-memory Repository. Transaction takes a single
// lock, giving the same serialization guarantee the row lock provides
// in MySQL.
type fakeRepo struct {
	mu sync.Mutex

	plans    map[uint]*models.Plan
	users    map[uint]*models.User
	subs     map[uint]*models.Subscription
	payments []*models.PaymentRecord
	events   map[string]*models.WebhookEvent

	nextSubID     uint
	nextEventID   uint
	nextPaymentID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		plans:  make(map[uint]*models.Plan),
		users:  make(map[uint]*models.User),
		subs:   make(map[uint]*models.Subscription),
		events: make(map[string]*models.WebhookEvent),
	}
}

func (r *fakeRepo) addPlan(p models.Plan) *models.Plan {
	cp := p
	r.plans[cp.ID] = &cp
	return &cp
}

func (r *fakeRepo) addUser(u models.User) *models.User {
	cp := u
	r.users[cp.ID] = &cp
	return &cp
}

func (r *fakeRepo) addSubscription(s models.Subscription) *models.Subscription {
	cp := s
	if cp.ID == 0 {
		r.nextSubID++
		cp.ID = r.nextSubID
	} else if cp.ID > r.nextSubID {
		r.nextSubID = cp.ID
	}
	cp.Plan = nil
	r.subs[cp.ID] = &cp
	return &cp
}

func (r *fakeRepo) subByUser(userID uint) *models.Subscription {
	for _, s := range r.subs {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

func cloneSub(s *models.Subscription) *models.Subscription {
	cp := *s
	return &cp
}

func (r *fakeRepo) Transaction(ctx context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r)
}

func (r *fakeRepo) GetPlan(id uint) (*models.Plan, error) {
	p, ok := r.plans[id]
	if !ok {
		return nil, NewNotFound("plan not found")
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetPlanByPriceRef(priceRef string) (*models.Plan, error) {
	if priceRef == "" {
		return nil, NewNotFound("plan not found for price reference")
	}
	for _, p := range r.plans {
		if p.StripePriceID == priceRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, NewNotFound("plan not found for price reference")
}

func (r *fakeRepo) GetTrialPlan() (*models.Plan, error) {
	var best *models.Plan
	for _, p := range r.plans {
		if !p.IsFree() {
			continue
		}
		if best == nil || p.ID < best.ID {
			best = p
		}
	}
	if best == nil {
		return nil, NewNotFound("trial plan not found")
	}
	cp := *best
	return &cp, nil
}

func (r *fakeRepo) ListPlans() ([]models.Plan, error) {
	var out []models.Plan
	for _, p := range r.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeRepo) GetUser(id uint) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, NewNotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepo) GetSubscriptionByUserID(userID uint) (*models.Subscription, error) {
	s := r.subByUser(userID)
	if s == nil {
		return nil, NewNotFound("subscription not found")
	}
	cp := cloneSub(s)
	if p, ok := r.plans[cp.PlanID]; ok {
		pc := *p
		cp.Plan = &pc
	}
	return cp, nil
}

func (r *fakeRepo) GetSubscriptionByUserIDForUpdate(userID uint) (*models.Subscription, error) {
	s := r.subByUser(userID)
	if s == nil {
		return nil, NewNotFound("subscription not found")
	}
	return cloneSub(s), nil
}

func (r *fakeRepo) GetSubscriptionByProviderRef(ref string) (*models.Subscription, error) {
	if ref == "" {
		return nil, NewNotFound("subscription not found for provider reference")
	}
	for _, s := range r.subs {
		if string(s.StripeSubscriptionID) == ref {
			return cloneSub(s), nil
		}
	}
	return nil, NewNotFound("subscription not found for provider reference")
}

func (r *fakeRepo) GetSubscriptionByCustomerRef(ref string) (*models.Subscription, error) {
	if ref == "" {
		return nil, NewNotFound("subscription not found for customer reference")
	}
	for _, s := range r.subs {
		if s.StripeCustomerID == ref {
			return cloneSub(s), nil
		}
	}
	return nil, NewNotFound("subscription not found for customer reference")
}

func (r *fakeRepo) CreateSubscription(sub *models.Subscription) error {
	// Mirror the unique index on stripe_subscription_id: empty refs
	// persist as NULL and never collide.
	if sub.StripeSubscriptionID != "" {
		for _, s := range r.subs {
			if s.StripeSubscriptionID == sub.StripeSubscriptionID {
				return errors.New("duplicate provider subscription reference")
			}
		}
	}
	r.nextSubID++
	sub.ID = r.nextSubID
	stored := cloneSub(sub)
	stored.Plan = nil
	r.subs[stored.ID] = stored
	return nil
}

func (r *fakeRepo) SaveSubscription(sub *models.Subscription) error {
	stored := cloneSub(sub)
	stored.Plan = nil
	r.subs[stored.ID] = stored
	return nil
}

func (r *fakeRepo) UpsertSubscriptionByProviderRef(sub *models.Subscription) error {
	for _, s := range r.subs {
		if s.StripeSubscriptionID == sub.StripeSubscriptionID {
			sub.ID = s.ID
			return r.SaveSubscription(sub)
		}
	}
	return r.CreateSubscription(sub)
}

func (r *fakeRepo) ResetAllUsage() (int64, error) {
	var affected int64
	for _, s := range r.subs {
		if s.LeadsUsedThisMonth != 0 {
			s.LeadsUsedThisMonth = 0
			affected++
		}
	}
	return affected, nil
}

func (r *fakeRepo) CreatePaymentIfNotExists(rec *models.PaymentRecord) (bool, error) {
	if rec.StripePaymentID != "" {
		for _, p := range r.payments {
			if p.StripePaymentID == rec.StripePaymentID {
				return false, nil
			}
		}
	}
	r.nextPaymentID++
	rec.ID = r.nextPaymentID
	cp := *rec
	r.payments = append(r.payments, &cp)
	return true, nil
}

func (r *fakeRepo) ListPaymentsByUser(userID uint, limit, offset int) ([]models.PaymentRecord, error) {
	var out []models.PaymentRecord
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if existing, ok := r.events[event.StripeEventID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	cp := *event
	r.events[event.StripeEventID] = &cp
	out := cp
	return true, &out, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now().UTC()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return NewNotFound("webhook event not found")
}

// fakeGateway returns canned provider responses and records calls.
type fakeGateway struct {
	mu sync.Mutex

	customerRef string
	createSub   *ProviderSubscription
	changeSub   *ProviderSubscription
	cancelFlag  *ProviderSubscription
	canceledSub *ProviderSubscription
	setupIntent *SetupIntent
	payment     *ProviderPayment
	preview     *UpcomingInvoice
	methods     []PaymentMethod

	err error

	attachedMethods []string
	defaultMethod   string
	canceledRefs    []string
	createCalls     int
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name string, userID uint) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if g.customerRef == "" {
		g.customerRef = "cus_fake"
	}
	return g.customerRef, nil
}

func (g *fakeGateway) AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error {
	if g.err != nil {
		return g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attachedMethods = append(g.attachedMethods, paymentMethodRef)
	return nil
}

func (g *fakeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodRef string) error {
	return g.err
}

func (g *fakeGateway) ListPaymentMethods(ctx context.Context, customerRef string) ([]PaymentMethod, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.methods, nil
}

func (g *fakeGateway) SetDefaultPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error {
	if g.err != nil {
		return g.err
	}
	g.defaultMethod = paymentMethodRef
	return nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*ProviderSubscription, error) {
	g.mu.Lock()
	g.createCalls++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.createSub, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, subscriptionRef string) (*ProviderSubscription, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.createSub, nil
}

func (g *fakeGateway) ChangeSubscriptionPrice(ctx context.Context, subscriptionRef, priceRef, idempotencyKey string) (*ProviderSubscription, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.changeSub, nil
}

func (g *fakeGateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) (*ProviderSubscription, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.cancelFlag, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, subscriptionRef string) (*ProviderSubscription, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.mu.Lock()
	g.canceledRefs = append(g.canceledRefs, subscriptionRef)
	g.mu.Unlock()
	if g.canceledSub != nil {
		return g.canceledSub, nil
	}
	return &ProviderSubscription{Ref: subscriptionRef, Status: models.SubscriptionStatusCanceled}, nil
}

func (g *fakeGateway) CreateSetupIntent(ctx context.Context, customerRef string) (*SetupIntent, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.setupIntent, nil
}

func (g *fakeGateway) CreatePayment(ctx context.Context, params CreatePaymentParams) (*ProviderPayment, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.payment, nil
}

func (g *fakeGateway) PreviewPlanChange(ctx context.Context, customerRef, subscriptionRef, priceRef string) (*UpcomingInvoice, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.preview, nil
}
