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

// NotificationHandler lists and manages a user's notifications: the ones
// addressed to them plus the ones addressed to their properties.
type NotificationHandler struct {
	db *gorm.DB
}

// NewNotificationHandler creates a notification handler
func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{db: db}
}

// List returns the caller's notifications, newest first
func (h *NotificationHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("notification", "list")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	propertyIDs := h.db.Model(&model.Property{}).Select("id").Where("owner_id = ?", userID)

	var notifications []model.Notification
	err := h.db.
		Where("user_id = ? OR property_id IN (?)", userID, propertyIDs).
		Order("created_at DESC").
		Limit(200).
		Find(&notifications).Error
	if err != nil {
		log.Error("Failed to list notifications", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve notifications"})
	}

	var unread int64
	h.db.Model(&model.Notification{}).
		Where("(user_id = ? OR property_id IN (?)) AND status = ?", userID, propertyIDs, model.NotificationUnread).
		Count(&unread)

	return c.JSON(http.StatusOK, echo.Map{
		"notifications": notifications,
		"unread":        unread,
	})
}

// MarkRead marks a single notification as read
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("notification", "mark_read")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification ID"})
	}

	notification, err := h.visibleNotification(id, userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Model(notification).Update("status", model.NotificationRead).Error; err != nil {
		log.Error("Failed to mark notification read", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, notification)
}

// MarkAllRead marks every visible unread notification as read
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("notification", "mark_all_read")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	propertyIDs := h.db.Model(&model.Property{}).Select("id").Where("owner_id = ?", userID)
	result := h.db.Model(&model.Notification{}).
		Where("(user_id = ? OR property_id IN (?)) AND status = ?", userID, propertyIDs, model.NotificationUnread).
		Update("status", model.NotificationRead)
	if result.Error != nil {
		log.Error("Failed to mark notifications read", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"updated": result.RowsAffected})
}

// Delete removes a notification
func (h *NotificationHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("notification", "delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification ID"})
	}

	if _, err := h.visibleNotification(id, userID); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&model.Notification{}, id).Error; err != nil {
		log.Error("Failed to delete notification", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deletion failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "notification deleted"})
}

// visibleNotification loads a notification the user is allowed to see
func (h *NotificationHandler) visibleNotification(id, userID uint) (*model.Notification, error) {
	var notification model.Notification
	if err := h.db.First(&notification, id).Error; err != nil {
		return nil, err
	}

	if notification.UserID != nil && *notification.UserID == userID {
		return &notification, nil
	}
	if notification.PropertyID != nil {
		if _, err := ownedProperty(h.db, *notification.PropertyID, userID); err == nil {
			return &notification, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
