package repository

import (
	"github.com/WarraBell/pulsescout/app/models"
	"gorm.io/gorm"
)

// leadRepository implements the LeadRepository interface
type leadRepository struct {
	db *gorm.DB
}

// NewLeadRepository creates a new lead repository instance
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{db: db}
}

// Create stores a delivered lead
func (r *leadRepository) Create(lead *models.Lead) error {
	return r.db.Create(lead).Error
}

// GetByUUID retrieves a lead by its UUID
func (r *leadRepository) GetByUUID(uuid string) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.Where("uuid = ?", uuid).First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetByUserID retrieves leads delivered to a user, newest first
func (r *leadRepository) GetByUserID(userID uint, offset, limit int) ([]models.Lead, error) {
	var leads []models.Lead
	err := r.db.Where("user_id = ?", userID).
		Order("delivered_at desc").
		Offset(offset).
		Limit(limit).
		Find(&leads).Error
	return leads, err
}

// CountByUserID returns the number of leads delivered to a user
func (r *leadRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Lead{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
