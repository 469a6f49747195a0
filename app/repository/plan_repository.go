package repository

import (
	"github.com/WarraBell/pulsescout/app/models"
	"gorm.io/gorm"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// GetByID retrieves a plan by its ID
func (r *planRepository) GetByID(id uint) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByName retrieves a plan by its catalog name
func (r *planRepository) GetByName(name string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("name = ?", name).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetAll retrieves the catalog ordered by price
func (r *planRepository) GetAll() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Order("price asc").Find(&plans).Error
	return plans, err
}
