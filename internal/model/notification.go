package model

import (
	"time"
)

// Notification types.
const (
	NotifySystem   = "system"
	NotifyUser     = "user"
	NotifyProperty = "property"
	NotifyPayment  = "payment"
)

// Notification read states.
const (
	NotificationUnread = "unread"
	NotificationRead   = "read"
)

// Notification represents an in-app notification, optionally targeted at a
// user or a property.
type Notification struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     *uint     `json:"user_id,omitempty" gorm:"index"`
	PropertyID *uint     `json:"property_id,omitempty" gorm:"index"`
	Title      string    `json:"title" gorm:"type:varchar(150);not null"`
	Message    string    `json:"message" gorm:"type:text"`
	Type       string    `json:"type" gorm:"type:varchar(20);default:'system'"`
	Status     string    `json:"status" gorm:"type:varchar(10);default:'unread';index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
