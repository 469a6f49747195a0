package billing

import (
	"context"
	"errors"
	"time"

	"github.com/WarraBell/pulsescout/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the Ledger Store operations used by the billing
// service. All subscription read-modify-write sequences must run
// inside Transaction with the ForUpdate variant so that the usage
// meter and the reconciliation engine serialize on the same row lock.
type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error

	GetPlan(id uint) (*models.Plan, error)
	GetPlanByPriceRef(priceRef string) (*models.Plan, error)
	GetTrialPlan() (*models.Plan, error)
	ListPlans() ([]models.Plan, error)

	GetUser(id uint) (*models.User, error)

	GetSubscriptionByUserID(userID uint) (*models.Subscription, error)
	GetSubscriptionByUserIDForUpdate(userID uint) (*models.Subscription, error)
	GetSubscriptionByProviderRef(ref string) (*models.Subscription, error)
	GetSubscriptionByCustomerRef(ref string) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	UpsertSubscriptionByProviderRef(sub *models.Subscription) error
	ResetAllUsage() (int64, error)

	CreatePaymentIfNotExists(rec *models.PaymentRecord) (bool, error)
	ListPaymentsByUser(userID uint, limit, offset int) ([]models.PaymentRecord, error)

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetPlan(id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, id).Error; err != nil {
		return nil, translateNotFound(err, "plan not found")
	}
	return &plan, nil
}

func (r *gormRepository) GetPlanByPriceRef(priceRef string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.Where("stripe_price_id = ?", priceRef).First(&plan).Error; err != nil {
		return nil, translateNotFound(err, "plan not found for price reference")
	}
	return &plan, nil
}

func (r *gormRepository) GetTrialPlan() (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.Where("price = 0").Order("id asc").First(&plan).Error; err != nil {
		return nil, translateNotFound(err, "trial plan not found")
	}
	return &plan, nil
}

func (r *gormRepository) ListPlans() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Order("price asc").Find(&plans).Error
	return plans, err
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, translateNotFound(err, "user not found")
	}
	return &user, nil
}

func (r *gormRepository) GetSubscriptionByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Preload("Plan").Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, translateNotFound(err, "subscription not found")
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByUserIDForUpdate(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&sub).Error
	if err != nil {
		return nil, translateNotFound(err, "subscription not found")
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByProviderRef(ref string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("stripe_subscription_id = ?", ref).First(&sub).Error; err != nil {
		return nil, translateNotFound(err, "subscription not found for provider reference")
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByCustomerRef(ref string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("stripe_customer_id = ?", ref).First(&sub).Error; err != nil {
		return nil, translateNotFound(err, "subscription not found for customer reference")
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) UpsertSubscriptionByProviderRef(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id",
			"stripe_customer_id",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"leads_used_this_month",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("stripe_subscription_id = ?", sub.StripeSubscriptionID).
		First(sub).Error
}

// ResetAllUsage zeroes every usage counter in one statement. Re-running
// it is a no-op for rows already at zero.
func (r *gormRepository) ResetAllUsage() (int64, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("leads_used_this_month <> 0").
		Update("leads_used_this_month", 0)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) CreatePaymentIfNotExists(rec *models.PaymentRecord) (bool, error) {
	if rec.StripePaymentID == "" {
		return true, r.db.Create(rec).Error
	}
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_payment_id"}},
		DoNothing: true,
	}).Create(rec)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListPaymentsByUser(userID uint, limit, offset int) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	return records, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("stripe_event_id = ?", event.StripeEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func translateNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFound(msg)
	}
	return err
}
