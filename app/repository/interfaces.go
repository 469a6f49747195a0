package repository

import (
	"github.com/WarraBell/pulsescout/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// PlanRepository defines the interface for plan catalog operations
type PlanRepository interface {
	GetByID(id uint) (*models.Plan, error)
	GetByName(name string) (*models.Plan, error)
	GetAll() ([]models.Plan, error)
}

// LeadRepository defines the interface for lead-related database operations
type LeadRepository interface {
	Create(lead *models.Lead) error
	GetByUUID(uuid string) (*models.Lead, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Lead, error)
	CountByUserID(userID uint) (int64, error)
}
