package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/realtime"
	"kost-service/internal/subscription"
	"kost-service/pkg/logger"
	"kost-service/prometheus"
)

// RoomHandler handles room CRUD.
type RoomHandler struct {
	db     *gorm.DB
	limits *subscription.LimitChecker
	hub    *realtime.Hub
}

// NewRoomHandler creates a room handler
func NewRoomHandler(db *gorm.DB, limits *subscription.LimitChecker, hub *realtime.Hub) *RoomHandler {
	return &RoomHandler{db: db, limits: limits, hub: hub}
}

type roomRequest struct {
	PropertyID  uint           `json:"property_id"`
	Name        string         `json:"name"`
	Floor       int            `json:"floor"`
	Type        string         `json:"type"`
	Price       float64        `json:"price"`
	DailyPrice  *float64       `json:"daily_price"`
	WeeklyPrice *float64       `json:"weekly_price"`
	YearlyPrice *float64       `json:"yearly_price"`
	Facilities  datatypes.JSON `json:"facilities"`
	Photos      datatypes.JSON `json:"photos"`
}

// ListByProperty returns all rooms of an owned property
func (h *RoomHandler) ListByProperty(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room", "list")

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
	var rooms []model.Room
	if err := h.db.Where("property_id = ?", propertyID).Order("floor, name").Find(&rooms).Error; err != nil {
		log.Error("Failed to list rooms", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve rooms"})
	}

	return c.JSON(http.StatusOK, rooms)
}

// Create adds a room, enforcing the plan's room cap inside the transaction
func (h *RoomHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room", "create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req roomRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse room request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.PropertyID == 0 || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "property_id and name are required"})
	}

	if _, err := ownedProperty(h.db, req.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var room model.Room
	var limitErr string
	err := h.db.Transaction(func(tx *gorm.DB) error {
		allowed, limits, err := h.limits.CanAddRoom(tx, userID, req.PropertyID)
		if err != nil {
			return err
		}
		if !allowed {
			limitErr = fmt.Sprintf("room limit reached (max %d per property); upgrade your plan to add more", limits.MaxRoomsPerProperty)
			return errLimitReached
		}

		room = model.Room{
			PropertyID:  req.PropertyID,
			Name:        req.Name,
			Floor:       req.Floor,
			Type:        req.Type,
			Price:       req.Price,
			DailyPrice:  req.DailyPrice,
			WeeklyPrice: req.WeeklyPrice,
			YearlyPrice: req.YearlyPrice,
			Status:      model.RoomVacant,
			Facilities:  req.Facilities,
			Photos:      req.Photos,
		}
		return tx.Create(&room).Error
	})
	if err != nil {
		if limitErr != "" {
			log.Warn("Room limit reached",
				zap.Uint("user_id", userID), zap.Uint("property_id", req.PropertyID))
			prometheus.RecordRuleViolation("subscription_limit")
			return c.JSON(http.StatusForbidden, echo.Map{"error": limitErr})
		}
		log.Error("Failed to create room", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "room creation failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionUpdate, room)
	log.Info("Room created", zap.Uint("id", room.ID), zap.Uint("property_id", room.PropertyID))
	return c.JSON(http.StatusCreated, room)
}

// Update modifies a room
func (h *RoomHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room", "update")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room ID"})
	}

	var room model.Room
	if err := h.db.First(&room, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	if _, err := ownedProperty(h.db, room.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	var req roomRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	room.Name = req.Name
	room.Floor = req.Floor
	room.Type = req.Type
	room.Price = req.Price
	room.DailyPrice = req.DailyPrice
	room.WeeklyPrice = req.WeeklyPrice
	room.YearlyPrice = req.YearlyPrice
	room.Facilities = req.Facilities
	room.Photos = req.Photos

	if err := h.db.Save(&room).Error; err != nil {
		log.Error("Failed to update room", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "room update failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionUpdate, room)
	return c.JSON(http.StatusOK, room)
}

// SetStatus switches a room between vacant and maintenance. Occupied is
// managed through tenant assignment, not directly.
func (h *RoomHandler) SetStatus(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room", "status")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room ID"})
	}

	var room model.Room
	if err := h.db.First(&room, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	if _, err := ownedProperty(h.db, room.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Status != model.RoomVacant && req.Status != model.RoomMaintenance {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be vacant or maintenance"})
	}
	if room.Status == model.RoomOccupied {
		prometheus.RecordRuleViolation("room_occupied")
		return c.JSON(http.StatusConflict, echo.Map{"error": "room is occupied; reassign or remove the tenant first"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Model(&room).Update("status", req.Status).Error; err != nil {
		log.Error("Failed to update room status", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "room update failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionUpdate, room)
	return c.JSON(http.StatusOK, room)
}

// Delete removes a vacant room
func (h *RoomHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room", "delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room ID"})
	}

	var room model.Room
	if err := h.db.First(&room, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	if _, err := ownedProperty(h.db, room.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	if room.Status == model.RoomOccupied || room.TenantID != nil {
		prometheus.RecordRuleViolation("room_occupied")
		return c.JSON(http.StatusConflict, echo.Map{"error": "room is occupied; remove the tenant first"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&model.MaintenanceRequest{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Room{}, id).Error
	})
	if err != nil {
		log.Error("Failed to delete room", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "room deletion failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionDelete, room)
	log.Info("Room deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "room deleted"})
}
