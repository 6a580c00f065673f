package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"kost-service/internal/model"
)

func publishProperty(t *testing.T, db *gorm.DB, property *model.Property) {
	assert.NoError(t, db.Model(property).Updates(map[string]interface{}{
		"marketplace_enabled": true,
		"marketplace_status":  model.MarketplacePublished,
	}).Error)
}

func TestMarketplaceListShowsOnlyPublished(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)

	published := createTestProperty(t, db, owner.ID)
	publishProperty(t, db, &published)

	draft := model.Property{OwnerID: owner.ID, Name: "Kost Tersembunyi", City: "Bandung"}
	assert.NoError(t, db.Create(&draft).Error)

	h := NewMarketplaceHandler(db)
	c, rec := newAuthedContext(t, http.MethodGet, "/marketplace/properties", nil, 0)

	assert.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var listings []map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	assert.Len(t, listings, 1)
	assert.Equal(t, "Kost Melati", listings[0]["name"])
}

func TestMarketplaceListFiltersByCity(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)

	bandung := createTestProperty(t, db, owner.ID)
	publishProperty(t, db, &bandung)

	jakarta := model.Property{OwnerID: owner.ID, Name: "Kost Jakarta", City: "Jakarta"}
	assert.NoError(t, db.Create(&jakarta).Error)
	publishProperty(t, db, &jakarta)

	h := NewMarketplaceHandler(db)
	c, rec := newAuthedContext(t, http.MethodGet, "/marketplace/properties?city=jakarta", nil, 0)

	assert.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var listings []map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	assert.Len(t, listings, 1)
	assert.Equal(t, "Kost Jakarta", listings[0]["name"])
}

func TestMarketplaceGetHidesDrafts(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	draft := createTestProperty(t, db, owner.ID)

	h := NewMarketplaceHandler(db)
	c, rec := newAuthedContext(t, http.MethodGet, "/marketplace/properties/1", nil, 0)
	setParamID(c, draft.ID)

	assert.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketplaceGetListsOnlyVacantRooms(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	publishProperty(t, db, &property)

	// One occupied room with a tenant, one vacant
	seedOccupancy(t, db, property.ID)
	vacant := model.Room{PropertyID: property.ID, Name: "B2", Price: 1200000, Status: model.RoomVacant}
	assert.NoError(t, db.Create(&vacant).Error)

	h := NewMarketplaceHandler(db)
	c, rec := newAuthedContext(t, http.MethodGet, "/marketplace/properties/1", nil, 0)
	setParamID(c, property.ID)

	assert.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	rooms, ok := body["rooms"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, rooms, 1)

	room := rooms[0].(map[string]interface{})
	assert.Equal(t, "B2", room["name"])
	_, hasTenant := room["tenant_id"]
	assert.False(t, hasTenant, "listing rooms must not expose tenancy")

	summary := body["property"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["total_rooms"])
	assert.Equal(t, float64(1), summary["vacant_rooms"])
}
