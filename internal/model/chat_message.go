package model

import (
	"time"
)

// ChatMessage represents a message in a property's chat room.
// SenderName is denormalized so listings do not need a join.
type ChatMessage struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PropertyID uint      `json:"property_id" gorm:"index;not null"`
	SenderID   uint      `json:"sender_id" gorm:"index;not null"`
	SenderName string    `json:"sender_name" gorm:"type:varchar(100)"`
	Body       string    `json:"body" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
