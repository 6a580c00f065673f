package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/pkg/logger"
	"kost-service/prometheus"
)

// SettingsHandler manages per-user preferences
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler creates a settings handler
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns the caller's settings, creating the default row on first access
func (h *SettingsHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("settings", "get")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	settings, err := h.loadOrCreate(userID)
	if err != nil {
		log.Error("Failed to load settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve settings"})
	}
	return c.JSON(http.StatusOK, settings)
}

// Update applies partial changes to the caller's settings
func (h *SettingsHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("settings", "update")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		NotifyEmail         *bool   `json:"notify_email"`
		NotifyPayment       *bool   `json:"notify_payment"`
		NotifyMaintenance   *bool   `json:"notify_maintenance"`
		Currency            *string `json:"currency"`
		DateFormat          *string `json:"date_format"`
		PaymentReminderDays *int    `json:"payment_reminder_days"`
		SessionTimeoutMins  *int    `json:"session_timeout_minutes"`
		TwoFactorEnabled    *bool   `json:"two_factor_enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request format"})
	}
	if req.PaymentReminderDays != nil && (*req.PaymentReminderDays < 1 || *req.PaymentReminderDays > 30) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_reminder_days must be between 1 and 30"})
	}
	if req.SessionTimeoutMins != nil && *req.SessionTimeoutMins < 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_timeout_minutes must be at least 5"})
	}

	settings, err := h.loadOrCreate(userID)
	if err != nil {
		log.Error("Failed to load settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve settings"})
	}

	if req.NotifyEmail != nil {
		settings.NotifyEmail = *req.NotifyEmail
	}
	if req.NotifyPayment != nil {
		settings.NotifyPayment = *req.NotifyPayment
	}
	if req.NotifyMaintenance != nil {
		settings.NotifyMaintenance = *req.NotifyMaintenance
	}
	if req.Currency != nil {
		settings.Currency = *req.Currency
	}
	if req.DateFormat != nil {
		settings.DateFormat = *req.DateFormat
	}
	if req.PaymentReminderDays != nil {
		settings.PaymentReminderDays = *req.PaymentReminderDays
	}
	if req.SessionTimeoutMins != nil {
		settings.SessionTimeoutMins = *req.SessionTimeoutMins
	}
	if req.TwoFactorEnabled != nil {
		settings.TwoFactorEnabled = *req.TwoFactorEnabled
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(settings).Error; err != nil {
		log.Error("Failed to update settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) loadOrCreate(userID uint) (*model.UserSettings, error) {
	var settings model.UserSettings
	err := h.db.Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	settings = model.UserSettings{
		UserID:              userID,
		NotifyEmail:         true,
		NotifyPayment:       true,
		NotifyMaintenance:   true,
		Currency:            "IDR",
		DateFormat:          "DD/MM/YYYY",
		PaymentReminderDays: 5,
		SessionTimeoutMins:  60,
	}
	if err := h.db.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}
