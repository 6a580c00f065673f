package model

import (
	"time"
)

// Tenant lifecycle states.
const (
	TenantActive   = "active"
	TenantInactive = "inactive"
)

// Tenant payment states (shared with Payment).
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
	PaymentOverdue = "overdue"
)

// Tenant represents a person renting a room in a property.
type Tenant struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	PropertyID    uint       `json:"property_id" gorm:"index;not null"`
	RoomID        *uint      `json:"room_id,omitempty" gorm:"index"`
	Name          string     `json:"name" gorm:"type:varchar(100);not null"`
	Email         string     `json:"email" gorm:"type:varchar(100);index"`
	Phone         string     `json:"phone" gorm:"type:varchar(30)"`
	Status        string     `json:"status" gorm:"type:varchar(20);default:'active'"`
	PaymentStatus string     `json:"payment_status" gorm:"type:varchar(20);default:'pending'"`
	LeaseStart    *time.Time `json:"lease_start_date,omitempty"`
	LeaseEnd      *time.Time `json:"lease_end_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
