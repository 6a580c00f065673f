package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	"kost-service/internal/model"
)

func TestLimitsDefaultWithoutSubscription(t *testing.T) {
	db := setupTestDB(t)
	checker := NewLimitChecker(db)

	limits := checker.LimitsFor(db, 1)
	assert.Equal(t, DefaultMaxProperties, limits.MaxProperties)
	assert.Equal(t, DefaultMaxRoomsPerProperty, limits.MaxRoomsPerProperty)
}

func TestCanAddPropertyEnforcesDefaultCap(t *testing.T) {
	db := setupTestDB(t)
	checker := NewLimitChecker(db)

	ok, limits, err := checker.CanAddProperty(db, 1)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, limits.MaxProperties)

	assert.NoError(t, db.Create(&model.Property{OwnerID: 1, Name: "Kost Melati"}).Error)

	ok, _, err = checker.CanAddProperty(db, 1)
	assert.NoError(t, err)
	assert.False(t, ok, "second property must be rejected on the default plan")
}

func TestCanAddPropertyUsesPlanCap(t *testing.T) {
	db := setupTestDB(t)
	checker := NewLimitChecker(db)

	plan := createPlan(t, db, "standard", 3, 30, datatypes.JSONMap{})
	subscribe(t, db, 1, plan.ID, model.SubscriptionActive)

	for i := 0; i < 3; i++ {
		ok, _, err := checker.CanAddProperty(db, 1)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, db.Create(&model.Property{OwnerID: 1, Name: "Kost"}).Error)
	}

	ok, limits, err := checker.CanAddProperty(db, 1)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, limits.MaxProperties)
}

func TestCanAddRoomEnforcesPerPropertyCap(t *testing.T) {
	db := setupTestDB(t)
	checker := NewLimitChecker(db)

	plan := createPlan(t, db, "small", 2, 2, datatypes.JSONMap{})
	subscribe(t, db, 1, plan.ID, model.SubscriptionActive)

	property := model.Property{OwnerID: 1, Name: "Kost Anggrek"}
	assert.NoError(t, db.Create(&property).Error)

	for i := 0; i < 2; i++ {
		ok, _, err := checker.CanAddRoom(db, 1, property.ID)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, db.Create(&model.Room{PropertyID: property.ID, Name: "A"}).Error)
	}

	ok, _, err := checker.CanAddRoom(db, 1, property.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLimitsFallBackWhenPlanCapsUnset(t *testing.T) {
	db := setupTestDB(t)
	checker := NewLimitChecker(db)

	plan := model.SubscriptionPlan{Name: "broken", MaxProperties: 0, MaxRoomsPerProperty: 0}
	assert.NoError(t, db.Create(&plan).Error)
	subscribe(t, db, 1, plan.ID, model.SubscriptionActive)

	limits := checker.LimitsFor(db, 1)
	assert.Equal(t, DefaultMaxProperties, limits.MaxProperties)
	assert.Equal(t, DefaultMaxRoomsPerProperty, limits.MaxRoomsPerProperty)
}
