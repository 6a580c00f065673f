package subscription

import (
	"gorm.io/gorm"

	"kost-service/internal/model"
)

// Caps without an active subscription.
const (
	DefaultMaxProperties       = 1
	DefaultMaxRoomsPerProperty = 1
)

// Limits are the numeric caps of an owner's active plan.
type Limits struct {
	MaxProperties       int
	MaxRoomsPerProperty int
}

// LimitChecker compares current entity counts against plan caps. Checks are
// re-run inside the create transaction so two rapid create requests cannot
// both pass the same cap.
type LimitChecker struct {
	db *gorm.DB
}

// NewLimitChecker creates a limit checker backed by the given database
func NewLimitChecker(db *gorm.DB) *LimitChecker {
	return &LimitChecker{db: db}
}

// LimitsFor returns the caps of the user's active plan, or the defaults when
// no active subscription exists or the lookup fails.
func (lc *LimitChecker) LimitsFor(tx *gorm.DB, userID uint) Limits {
	defaults := Limits{
		MaxProperties:       DefaultMaxProperties,
		MaxRoomsPerProperty: DefaultMaxRoomsPerProperty,
	}

	var sub model.Subscription
	err := tx.Preload("Plan").
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return defaults
	}

	limits := Limits{
		MaxProperties:       sub.Plan.MaxProperties,
		MaxRoomsPerProperty: sub.Plan.MaxRoomsPerProperty,
	}
	if limits.MaxProperties <= 0 {
		limits.MaxProperties = defaults.MaxProperties
	}
	if limits.MaxRoomsPerProperty <= 0 {
		limits.MaxRoomsPerProperty = defaults.MaxRoomsPerProperty
	}
	return limits
}

// CanAddProperty reports whether the user may create one more property.
// Pass the transaction the create runs in so the count is enforced under it.
func (lc *LimitChecker) CanAddProperty(tx *gorm.DB, userID uint) (bool, Limits, error) {
	if tx == nil {
		tx = lc.db
	}
	limits := lc.LimitsFor(tx, userID)

	var count int64
	if err := tx.Model(&model.Property{}).Where("owner_id = ?", userID).Count(&count).Error; err != nil {
		return false, limits, err
	}
	return count < int64(limits.MaxProperties), limits, nil
}

// CanAddRoom reports whether one more room fits under the per-property cap
func (lc *LimitChecker) CanAddRoom(tx *gorm.DB, userID, propertyID uint) (bool, Limits, error) {
	if tx == nil {
		tx = lc.db
	}
	limits := lc.LimitsFor(tx, userID)

	var count int64
	if err := tx.Model(&model.Room{}).Where("property_id = ?", propertyID).Count(&count).Error; err != nil {
		return false, limits, err
	}
	return count < int64(limits.MaxRoomsPerProperty), limits, nil
}
