package model

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription lifecycle states.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// SubscriptionPlan defines the numeric caps and the feature map that gate
// capabilities for subscribed owners. Feature values are either booleans or
// tier strings (e.g. financial_reports: "basic" | "advanced" | "predictive").
type SubscriptionPlan struct {
	ID                 uint              `json:"id" gorm:"primaryKey"`
	Name               string            `json:"name" gorm:"type:varchar(50);uniqueIndex"`
	Price              float64           `json:"price"`
	MaxProperties      int               `json:"max_properties" gorm:"default:1"`
	MaxRoomsPerProperty int              `json:"max_rooms_per_property" gorm:"default:1"`
	Features           datatypes.JSONMap `json:"features"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Subscription links a user to a plan.
type Subscription struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"index;not null"`
	PlanID    uint       `json:"plan_id" gorm:"index;not null"`
	Status    string     `json:"status" gorm:"type:varchar(20);default:'active';index"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Plan SubscriptionPlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}
