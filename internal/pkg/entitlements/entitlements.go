package entitlements

import "github.com/WarraBell/pulsescout/app/models"

// Feature is a plan-gated capability.
type Feature string

const (
	FeatureCSVExport  Feature = "csv_export"
	FeatureCRMSync    Feature = "crm_sync"
	FeatureTeams      Feature = "teams"
	FeatureAPI        Feature = "api"
	FeatureWhiteLabel Feature = "white_label"
	FeatureEnrichment Feature = "enrichment"
)

// Has reports whether the plan includes the given feature.
func Has(plan *models.Plan, feature Feature) bool {
	if plan == nil {
		return false
	}
	switch feature {
	case FeatureCSVExport:
		return plan.AllowsCSVExport
	case FeatureCRMSync:
		return plan.AllowsCRMSync
	case FeatureTeams:
		return plan.AllowsTeams
	case FeatureAPI:
		return plan.AllowsAPI
	case FeatureWhiteLabel:
		return plan.AllowsWhiteLabel
	case FeatureEnrichment:
		return plan.AllowsEnrichment
	default:
		return false
	}
}

// MaxTeamMembers returns the seat limit for a plan, minimum one seat.
func MaxTeamMembers(plan *models.Plan) int {
	if plan == nil || plan.MaxTeamMembers < 1 {
		return 1
	}
	return plan.MaxTeamMembers
}
