package model

import (
	"time"

	"gorm.io/datatypes"
)

// Marketplace listing states for a property.
const (
	MarketplaceDraft     = "draft"
	MarketplacePublished = "published"
)

// Property represents a boarding house owned by a user.
// Amenities, rules and photos are stored as JSON arrays of strings.
type Property struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	OwnerID            uint           `json:"owner_id" gorm:"index;not null"`
	Name               string         `json:"name" gorm:"type:varchar(150);not null"`
	Address            string         `json:"address" gorm:"type:text"`
	City               string         `json:"city" gorm:"type:varchar(100);index"`
	Phone              string         `json:"phone" gorm:"type:varchar(30)"`
	MarketplaceEnabled bool           `json:"marketplace_enabled" gorm:"default:false"`
	MarketplaceStatus  string         `json:"marketplace_status" gorm:"type:varchar(20);default:'draft'"`
	Amenities          datatypes.JSON `json:"amenities"`
	Rules              datatypes.JSON `json:"rules"`
	Photos             datatypes.JSON `json:"photos"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
