package repository

import (
	"gorm.io/gorm"
)

// Repositories bundles all repository instances
type Repositories struct {
	User UserRepository
	Plan PlanRepository
	Lead LeadRepository
}

// NewRepositories creates all repositories from one DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Plan: NewPlanRepository(db),
		Lead: NewLeadRepository(db),
	}
}
