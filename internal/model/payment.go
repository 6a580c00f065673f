package model

import (
	"time"
)

// Payment represents a rent payment for a tenant.
// ReminderKey is set only on payments created by the billing reminder job:
// the unique index makes a second run for the same tenant and lease end date
// a no-op instead of a duplicate row.
type Payment struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	TenantID    uint       `json:"tenant_id" gorm:"index;not null"`
	RoomID      uint       `json:"room_id" gorm:"index"`
	PropertyID  uint       `json:"property_id" gorm:"index;not null"`
	Amount      float64    `json:"amount"`
	DueDate     time.Time  `json:"due_date"`
	PaidDate    *time.Time `json:"paid_date,omitempty"`
	Status      string     `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Method      string     `json:"payment_method" gorm:"type:varchar(30)"`
	Notes       string     `json:"notes" gorm:"type:text"`
	ReminderKey *string    `json:"-" gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
