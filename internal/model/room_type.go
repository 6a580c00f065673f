package model

import (
	"time"

	"gorm.io/datatypes"
)

// RoomType is a named price/facility template scoped to a property.
// Rooms reference it by name.
type RoomType struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	PropertyID uint           `json:"property_id" gorm:"index;not null"`
	Name       string         `json:"name" gorm:"type:varchar(100);not null"`
	Price      float64        `json:"price"`
	Facilities datatypes.JSON `json:"facilities"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
