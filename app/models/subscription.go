package models

import "time"

const (
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription mirrors the provider subscription for exactly one user.
// Local status/plan/period fields are a projection of the last applied
// provider state; they are mutated only by the billing service. Rows
// are never hard-deleted, cancellation is a status value.
type Subscription struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	UserID               uint        `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanID               uint        `gorm:"not null;index" json:"plan_id"`
	Plan                 *Plan       `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	StripeCustomerID     string      `gorm:"type:varchar(191);index" json:"stripe_customer_id"`
	StripeSubscriptionID ProviderRef `gorm:"type:varchar(191);default:null;index:ux_subscriptions_stripe_sub,unique" json:"stripe_subscription_id"`
	Status               string      `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart   *time.Time  `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time  `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool        `gorm:"default:false" json:"cancel_at_period_end"`
	LeadsUsedThisMonth   int         `gorm:"not null;default:0" json:"leads_used_this_month"`
	CreatedAt            time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the subscription currently grants access
// to metered resources.
func (s *Subscription) IsEntitling() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// LeadsRemaining computes the unused quota against the given plan.
func (s *Subscription) LeadsRemaining(plan *Plan) int {
	if plan == nil {
		return 0
	}
	remaining := plan.LeadsPerMonth - s.LeadsUsedThisMonth
	if remaining < 0 {
		return 0
	}
	return remaining
}
