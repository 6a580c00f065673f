package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/realtime"
	"kost-service/pkg/logger"
	"kost-service/prometheus"
)

// MaintenanceHandler handles maintenance request CRUD.
type MaintenanceHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewMaintenanceHandler creates a maintenance handler
func NewMaintenanceHandler(db *gorm.DB, hub *realtime.Hub) *MaintenanceHandler {
	return &MaintenanceHandler{db: db, hub: hub}
}

type maintenanceRequest struct {
	RoomID      uint   `json:"room_id"`
	TenantID    *uint  `json:"tenant_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

func validPriority(p string) bool {
	return p == model.PriorityLow || p == model.PriorityMedium || p == model.PriorityHigh
}

func validMaintenanceStatus(s string) bool {
	return s == model.MaintenancePending || s == model.MaintenanceInProgress || s == model.MaintenanceCompleted
}

// ListByProperty returns the maintenance requests of an owned property
func (h *MaintenanceHandler) ListByProperty(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("maintenance", "list")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	propertyID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property ID"})
	}
	if _, err := ownedProperty(h.db, propertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var requests []model.MaintenanceRequest
	if err := h.db.Where("property_id = ?", propertyID).Order("created_at DESC").Find(&requests).Error; err != nil {
		log.Error("Failed to list maintenance requests", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve maintenance requests"})
	}
	return c.JSON(http.StatusOK, requests)
}

// Create files a maintenance request; high priority also notifies the owner
func (h *MaintenanceHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("maintenance", "create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req maintenanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.RoomID == 0 || req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room_id and title are required"})
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !validPriority(req.Priority) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "priority must be low, medium or high"})
	}

	var room model.Room
	if err := h.db.First(&room, req.RoomID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	property, err := ownedProperty(h.db, room.PropertyID, userID)
	if err != nil {
		return respondOwnership(c, err)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	request := model.MaintenanceRequest{
		PropertyID:  room.PropertyID,
		RoomID:      room.ID,
		TenantID:    req.TenantID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      model.MaintenancePending,
	}

	var notification *model.Notification
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&request).Error; err != nil {
			return err
		}
		if request.Priority == model.PriorityHigh {
			notification = &model.Notification{
				UserID:     &property.OwnerID,
				PropertyID: &property.ID,
				Title:      "High priority maintenance",
				Message:    "Room " + room.Name + ": " + request.Title,
				Type:       model.NotifyProperty,
				Status:     model.NotificationUnread,
			}
			return tx.Create(notification).Error
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create maintenance request", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "maintenance request creation failed"})
	}

	if notification != nil {
		h.hub.Publish(realtime.TopicNotifications, realtime.ActionInsert, notification)
	}
	log.Info("Maintenance request created",
		zap.Uint("id", request.ID), zap.String("priority", request.Priority))
	return c.JSON(http.StatusCreated, request)
}

// Update modifies a maintenance request's fields or advances its status
func (h *MaintenanceHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("maintenance", "update")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid maintenance request ID"})
	}

	var request model.MaintenanceRequest
	if err := h.db.First(&request, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "maintenance request not found"})
	}
	if _, err := ownedProperty(h.db, request.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	var req maintenanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Priority != "" && !validPriority(req.Priority) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "priority must be low, medium or high"})
	}
	if req.Status != "" && !validMaintenanceStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be pending, in-progress or completed"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if req.Title != "" {
		request.Title = req.Title
	}
	if req.Description != "" {
		request.Description = req.Description
	}
	if req.Priority != "" {
		request.Priority = req.Priority
	}
	if req.Status != "" {
		request.Status = req.Status
	}

	if err := h.db.Save(&request).Error; err != nil {
		log.Error("Failed to update maintenance request", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "maintenance request update failed"})
	}
	return c.JSON(http.StatusOK, request)
}

// Delete removes a maintenance request
func (h *MaintenanceHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("maintenance", "delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid maintenance request ID"})
	}

	var request model.MaintenanceRequest
	if err := h.db.First(&request, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "maintenance request not found"})
	}
	if _, err := ownedProperty(h.db, request.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&model.MaintenanceRequest{}, id).Error; err != nil {
		log.Error("Failed to delete maintenance request", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "maintenance request deletion failed"})
	}

	log.Info("Maintenance request deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "maintenance request deleted"})
}
