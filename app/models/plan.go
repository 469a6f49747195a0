package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BillingIntervalMonth = "month"
	BillingIntervalYear  = "year"
)

// Plan is a catalog entry. Plans are seeded administratively, updated
// rarely and never deleted while a live subscription references them.
type Plan struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Name             string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Price            decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	BillingInterval  string          `gorm:"type:varchar(16);not null;default:'month'" json:"billing_interval"`
	StripePriceID    string          `gorm:"type:varchar(191);index" json:"stripe_price_id"`
	LeadsPerMonth    int             `gorm:"not null;default:0" json:"leads_per_month"`
	AllowsCSVExport  bool            `gorm:"default:false" json:"allows_csv_export"`
	AllowsCRMSync    bool            `gorm:"default:false" json:"allows_crm_sync"`
	AllowsTeams      bool            `gorm:"default:false" json:"allows_teams"`
	AllowsAPI        bool            `gorm:"default:false" json:"allows_api"`
	AllowsWhiteLabel bool            `gorm:"default:false" json:"allows_white_label"`
	AllowsEnrichment bool            `gorm:"default:false" json:"allows_enrichment"`
	MaxTeamMembers   int             `gorm:"not null;default:1" json:"max_team_members"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFree reports whether the plan carries no recurring charge.
func (p *Plan) IsFree() bool {
	return p.Price.IsZero()
}
