package model

import (
	"time"
)

// Maintenance request priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Maintenance request states.
const (
	MaintenancePending    = "pending"
	MaintenanceInProgress = "in-progress"
	MaintenanceCompleted  = "completed"
)

// MaintenanceRequest represents a repair or maintenance task for a room.
type MaintenanceRequest struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	PropertyID  uint      `json:"property_id" gorm:"index;not null"`
	RoomID      uint      `json:"room_id" gorm:"index;not null"`
	TenantID    *uint     `json:"tenant_id,omitempty" gorm:"index"`
	Title       string    `json:"title" gorm:"type:varchar(150);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Priority    string    `json:"priority" gorm:"type:varchar(10);default:'medium'"`
	Status      string    `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
