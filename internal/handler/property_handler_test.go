package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/realtime"
	"kost-service/internal/subscription"
)

func newPropertyHandler(db *gorm.DB) *PropertyHandler {
	return NewPropertyHandler(db,
		subscription.NewLimitChecker(db),
		subscription.NewResolver(db),
		realtime.NewHub())
}

func activatePlan(t *testing.T, db *gorm.DB, userID uint, maxProps, maxRooms int, features datatypes.JSONMap) {
	plan := model.SubscriptionPlan{
		Name:                "test-plan",
		MaxProperties:       maxProps,
		MaxRoomsPerProperty: maxRooms,
		Features:            features,
	}
	assert.NoError(t, db.Create(&plan).Error)
	sub := model.Subscription{UserID: userID, PlanID: plan.ID, Status: model.SubscriptionActive}
	assert.NoError(t, db.Create(&sub).Error)
}

func TestPropertyCreateEnforcesDefaultLimit(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	h := newPropertyHandler(db)

	c, rec := newAuthedContext(t, http.MethodPost, "/api/properties",
		map[string]interface{}{"name": "Kost Melati"}, owner.ID)
	assert.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	// No subscription means a single property
	c, rec = newAuthedContext(t, http.MethodPost, "/api/properties",
		map[string]interface{}{"name": "Kost Anggrek"}, owner.ID)
	assert.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var count int64
	db.Model(&model.Property{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestPropertyCreateUsesPlanLimit(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	activatePlan(t, db, owner.ID, 2, 10, datatypes.JSONMap{})
	h := newPropertyHandler(db)

	for _, name := range []string{"Kost Melati", "Kost Anggrek"} {
		c, rec := newAuthedContext(t, http.MethodPost, "/api/properties",
			map[string]interface{}{"name": name}, owner.ID)
		assert.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	c, rec := newAuthedContext(t, http.MethodPost, "/api/properties",
		map[string]interface{}{"name": "Kost Mawar"}, owner.ID)
	assert.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarketplacePublishGatedByFeature(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	h := newPropertyHandler(db)

	c, rec := newAuthedContext(t, http.MethodPut, "/api/properties/1/marketplace",
		map[string]interface{}{"enabled": true}, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.SetMarketplace(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var unchanged model.Property
	assert.NoError(t, db.First(&unchanged, property.ID).Error)
	assert.False(t, unchanged.MarketplaceEnabled)
	assert.Equal(t, model.MarketplaceDraft, unchanged.MarketplaceStatus)
}

func TestMarketplacePublishWithFeature(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	activatePlan(t, db, owner.ID, 3, 30, datatypes.JSONMap{
		subscription.FeatureMarketplaceListing: true,
	})
	h := newPropertyHandler(db)

	c, rec := newAuthedContext(t, http.MethodPut, "/api/properties/1/marketplace",
		map[string]interface{}{"enabled": true}, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.SetMarketplace(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var published model.Property
	assert.NoError(t, db.First(&published, property.ID).Error)
	assert.True(t, published.MarketplaceEnabled)
	assert.Equal(t, model.MarketplacePublished, published.MarketplaceStatus)
}

func TestMarketplaceUnpublishNeedsNoFeature(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	assert.NoError(t, db.Model(&property).Updates(map[string]interface{}{
		"marketplace_enabled": true,
		"marketplace_status":  model.MarketplacePublished,
	}).Error)
	h := newPropertyHandler(db)

	c, rec := newAuthedContext(t, http.MethodPut, "/api/properties/1/marketplace",
		map[string]interface{}{"enabled": false}, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.SetMarketplace(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var unpublished model.Property
	assert.NoError(t, db.First(&unpublished, property.ID).Error)
	assert.False(t, unpublished.MarketplaceEnabled)
	assert.Equal(t, model.MarketplaceDraft, unpublished.MarketplaceStatus)
}

func TestPropertyDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	seedOccupancy(t, db, property.ID)
	h := newPropertyHandler(db)

	c, rec := newAuthedContext(t, http.MethodDelete, "/api/properties/1", nil, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, check := range []struct {
		name  string
		model interface{}
	}{
		{"properties", &model.Property{}},
		{"rooms", &model.Room{}},
		{"tenants", &model.Tenant{}},
		{"payments", &model.Payment{}},
		{"maintenance", &model.MaintenanceRequest{}},
	} {
		var count int64
		db.Model(check.model).Count(&count)
		assert.Equal(t, int64(0), count, "expected no %s left", check.name)
	}
}
