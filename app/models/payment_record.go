package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusPending   = "pending"
)

// PaymentRecord is an append-only ledger entry. StripePaymentID is
// empty for locally-initiated records still awaiting provider
// confirmation; when set it is unique so webhook redeliveries can
// never create duplicates.
type PaymentRecord struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	StripePaymentID ProviderRef     `gorm:"type:varchar(191);default:null;index:ux_payment_records_stripe_payment,unique" json:"stripe_payment_id,omitempty"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(8);not null;default:'usd'" json:"currency"`
	Status          string          `gorm:"type:varchar(32);not null" json:"status"`
	Description     string          `gorm:"type:varchar(255)" json:"description"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// AmountFromMinorUnits converts integer minor units (cents) into the
// fixed-point decimal persisted on a PaymentRecord. Monetary amounts
// cross the provider boundary as integers and become decimals only
// here, at the persistence boundary.
func AmountFromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}
