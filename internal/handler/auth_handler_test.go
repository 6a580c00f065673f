package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"kost-service/internal/model"
	"kost-service/pkg/config"
	"kost-service/pkg/jwtutil"
)

func init() {
	jwtutil.Initialize(&config.JWTConfig{
		SigningKey:      "test-signing-key",
		ExpirationHours: 1,
	})
}

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	h := NewAuthHandler(db)

	c, rec := newAuthedContext(t, http.MethodPost, "/auth/register", map[string]interface{}{
		"name":     "Ibu Sari",
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	}, 0)
	assert.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["token"])

	// Password hash never leaves the server
	user, ok := body["user"].(map[string]interface{})
	assert.True(t, ok)
	_, leaked := user["password"]
	assert.False(t, leaked)

	c, rec = newAuthedContext(t, http.MethodPost, "/auth/login", map[string]interface{}{
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	}, 0)
	assert.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["token"])
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	db := setupTestDB(t)
	h := NewAuthHandler(db)

	c, rec := newAuthedContext(t, http.MethodPost, "/auth/register", map[string]interface{}{
		"email":    "sari@example.com",
		"password": "pendek",
	}, 0)
	assert.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	h := NewAuthHandler(db)

	payload := map[string]interface{}{
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	}
	c, rec := newAuthedContext(t, http.MethodPost, "/auth/register", payload, 0)
	assert.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newAuthedContext(t, http.MethodPost, "/auth/register", payload, 0)
	assert.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var count int64
	db.Model(&model.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	h := NewAuthHandler(db)

	c, _ := newAuthedContext(t, http.MethodPost, "/auth/register", map[string]interface{}{
		"email":    "sari@example.com",
		"password": "rahasia-sekali",
	}, 0)
	assert.NoError(t, h.Register(c))

	c, rec := newAuthedContext(t, http.MethodPost, "/auth/login", map[string]interface{}{
		"email":    "sari@example.com",
		"password": "salah-semua",
	}, 0)
	assert.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
