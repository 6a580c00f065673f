package model

import (
	"time"

	"gorm.io/datatypes"
)

// Room occupancy states.
const (
	RoomVacant      = "vacant"
	RoomOccupied    = "occupied"
	RoomMaintenance = "maintenance"
)

// Room represents a rentable room inside a property.
// Type holds the name of a RoomType; it is a plain string, not a foreign key,
// so renaming a room type must be cascaded explicitly (see room type handler).
type Room struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	PropertyID  uint           `json:"property_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"type:varchar(50);not null"`
	Floor       int            `json:"floor"`
	Type        string         `json:"type" gorm:"type:varchar(100);index"`
	Price       float64        `json:"price"`
	DailyPrice  *float64       `json:"daily_price,omitempty"`
	WeeklyPrice *float64       `json:"weekly_price,omitempty"`
	YearlyPrice *float64       `json:"yearly_price,omitempty"`
	Status      string         `json:"status" gorm:"type:varchar(20);default:'vacant'"`
	TenantID    *uint          `json:"tenant_id,omitempty" gorm:"index"`
	Facilities  datatypes.JSON `json:"facilities"`
	Photos      datatypes.JSON `json:"photos"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
