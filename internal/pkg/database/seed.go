package database

import (
	"github.com/WarraBell/pulsescout/app/models"
	"github.com/WarraBell/pulsescout/internal/pkg/env"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedPlans installs the plan catalog. Seeding is idempotent: existing
// plans are matched by name and left untouched except for their Stripe
// price reference, which follows the environment configuration.
func SeedPlans(db *gorm.DB) error {
	plans := []models.Plan{
		{
			Name:            "Free Trial",
			Price:           decimal.Zero,
			BillingInterval: models.BillingIntervalMonth,
			LeadsPerMonth:   25,
			MaxTeamMembers:  1,
		},
		{
			Name:            "Starter",
			Price:           decimal.NewFromInt(39),
			BillingInterval: models.BillingIntervalMonth,
			StripePriceID:   env.GetEnv("STRIPE_PRICE_STARTER", ""),
			LeadsPerMonth:   250,
			AllowsCSVExport: true,
			MaxTeamMembers:  1,
		},
		{
			Name:             "Growth",
			Price:            decimal.NewFromInt(79),
			BillingInterval:  models.BillingIntervalMonth,
			StripePriceID:    env.GetEnv("STRIPE_PRICE_GROWTH", ""),
			LeadsPerMonth:    1000,
			AllowsCSVExport:  true,
			AllowsCRMSync:    true,
			AllowsEnrichment: true,
			MaxTeamMembers:   1,
		},
		{
			Name:             "Scale",
			Price:            decimal.NewFromInt(169),
			BillingInterval:  models.BillingIntervalMonth,
			StripePriceID:    env.GetEnv("STRIPE_PRICE_SCALE", ""),
			LeadsPerMonth:    5000,
			AllowsCSVExport:  true,
			AllowsCRMSync:    true,
			AllowsTeams:      true,
			AllowsAPI:        true,
			AllowsEnrichment: true,
			MaxTeamMembers:   2,
		},
		{
			Name:             "Pro+",
			Price:            decimal.NewFromInt(399),
			BillingInterval:  models.BillingIntervalMonth,
			StripePriceID:    env.GetEnv("STRIPE_PRICE_PRO_PLUS", ""),
			LeadsPerMonth:    20000,
			AllowsCSVExport:  true,
			AllowsCRMSync:    true,
			AllowsTeams:      true,
			AllowsAPI:        true,
			AllowsWhiteLabel: true,
			AllowsEnrichment: true,
			MaxTeamMembers:   999,
		},
	}

	for i := range plans {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"stripe_price_id", "updated_at"}),
		}).Create(&plans[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
