package models

import "time"

// Lead is the metered resource. Delivery of a lead to a customer
// consumes one unit of the subscription quota.
type Lead struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	CompanyName string    `gorm:"type:varchar(200);not null" json:"company_name"`
	ContactName string    `gorm:"type:varchar(150)" json:"contact_name"`
	Email       string    `gorm:"type:varchar(200)" json:"email"`
	Phone       string    `gorm:"type:varchar(50)" json:"phone"`
	Website     string    `gorm:"type:varchar(255)" json:"website"`
	Industry    string    `gorm:"type:varchar(100);index" json:"industry"`
	Enriched    bool      `gorm:"default:false" json:"enriched"`
	DeliveredAt time.Time `gorm:"autoCreateTime;index" json:"delivered_at"`
}
