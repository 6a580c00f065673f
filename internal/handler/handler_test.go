package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"kost-service/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	err = db.AutoMigrate(
		&model.User{},
		&model.Property{},
		&model.Room{},
		&model.RoomType{},
		&model.Tenant{},
		&model.Payment{},
		&model.MaintenanceRequest{},
		&model.Notification{},
		&model.SubscriptionPlan{},
		&model.Subscription{},
		&model.UserSettings{},
		&model.ChatMessage{},
	)
	assert.NoError(t, err)
	return db
}

// newAuthedContext builds an echo context with a JSON body and the context
// keys AuthMiddleware would have set.
func newAuthedContext(t *testing.T, method, path string, body interface{}, userID uint) (echo.Context, *httptest.ResponseRecorder) {
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	e := echo.New()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("email", "owner@example.com")
	return c, rec
}

func setParamID(c echo.Context, id uint) {
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(id), 10))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func createTestOwner(t *testing.T, db *gorm.DB) model.User {
	owner := model.User{Name: "Ibu Sari", Email: "owner@example.com", Password: "hashed"}
	assert.NoError(t, db.Create(&owner).Error)
	return owner
}

func createTestProperty(t *testing.T, db *gorm.DB, ownerID uint) model.Property {
	property := model.Property{OwnerID: ownerID, Name: "Kost Melati", City: "Bandung"}
	assert.NoError(t, db.Create(&property).Error)
	return property
}
