package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"kost-service/internal/model"
)

func seedRoomType(t *testing.T, db *gorm.DB, propertyID uint, name string) model.RoomType {
	roomType := model.RoomType{PropertyID: propertyID, Name: name, Price: 1200000}
	assert.NoError(t, db.Create(&roomType).Error)
	return roomType
}

func seedRoomOfType(t *testing.T, db *gorm.DB, propertyID uint, name, typeName string) model.Room {
	room := model.Room{PropertyID: propertyID, Name: name, Type: typeName, Price: 1200000}
	assert.NoError(t, db.Create(&room).Error)
	return room
}

func TestRoomTypeRenameBlockedWhileReferenced(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	roomType := seedRoomType(t, db, property.ID, "Standard")
	seedRoomOfType(t, db, property.ID, "B2", "Standard")
	seedRoomOfType(t, db, property.ID, "A1", "Standard")
	seedRoomOfType(t, db, property.ID, "C3", "Deluxe") // different type, must not appear

	h := NewRoomTypeHandler(db)
	c, rec := newAuthedContext(t, http.MethodPut, "/api/room-types/1",
		map[string]interface{}{"name": "Superior", "price": 1200000.0}, owner.ID)
	setParamID(c, roomType.ID)

	assert.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	affected, ok := body["affected_rooms"].([]interface{})
	assert.True(t, ok, "conflict response must carry the affected room list")
	assert.Equal(t, []interface{}{"A1", "B2"}, affected)

	// Nothing changed
	var unchanged model.RoomType
	assert.NoError(t, db.First(&unchanged, roomType.ID).Error)
	assert.Equal(t, "Standard", unchanged.Name)
}

func TestRoomTypeRenameCascades(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	roomType := seedRoomType(t, db, property.ID, "Standard")
	seedRoomOfType(t, db, property.ID, "A1", "Standard")
	seedRoomOfType(t, db, property.ID, "B2", "Standard")
	other := seedRoomOfType(t, db, property.ID, "C3", "Deluxe")

	h := NewRoomTypeHandler(db)
	c, rec := newAuthedContext(t, http.MethodPut, "/api/room-types/1",
		map[string]interface{}{"name": "Superior", "price": 1500000.0, "cascade": true}, owner.ID)
	setParamID(c, roomType.ID)

	assert.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var renamed int64
	db.Model(&model.Room{}).
		Where("property_id = ? AND type = ?", property.ID, "Superior").
		Count(&renamed)
	assert.Equal(t, int64(2), renamed)

	var untouched model.Room
	assert.NoError(t, db.First(&untouched, other.ID).Error)
	assert.Equal(t, "Deluxe", untouched.Type)

	var updated model.RoomType
	assert.NoError(t, db.First(&updated, roomType.ID).Error)
	assert.Equal(t, "Superior", updated.Name)
	assert.Equal(t, float64(1500000), updated.Price)
}

func TestRoomTypeRenameAllowedWhenUnreferenced(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	roomType := seedRoomType(t, db, property.ID, "Standard")

	h := NewRoomTypeHandler(db)
	c, rec := newAuthedContext(t, http.MethodPut, "/api/room-types/1",
		map[string]interface{}{"name": "Superior", "price": 1200000.0}, owner.ID)
	setParamID(c, roomType.ID)

	assert.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoomTypeDeleteBlockedWhileReferenced(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	roomType := seedRoomType(t, db, property.ID, "Standard")
	seedRoomOfType(t, db, property.ID, "A1", "Standard")

	h := NewRoomTypeHandler(db)
	c, rec := newAuthedContext(t, http.MethodDelete, "/api/room-types/1", nil, owner.ID)
	setParamID(c, roomType.ID)

	assert.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var count int64
	db.Model(&model.RoomType{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRoomTypeUpdateDeniedForNonOwner(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	roomType := seedRoomType(t, db, property.ID, "Standard")

	intruder := model.User{Name: "Lain", Email: "other@example.com"}
	assert.NoError(t, db.Create(&intruder).Error)

	h := NewRoomTypeHandler(db)
	c, rec := newAuthedContext(t, http.MethodPut, "/api/room-types/1",
		map[string]interface{}{"name": "Hijacked"}, intruder.ID)
	setParamID(c, roomType.ID)

	assert.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
