package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/pkg/logger"
	"kost-service/prometheus"
)

// RoomTypeHandler handles room type templates. Rooms reference a type by
// name, so renames must either be blocked while referenced or cascaded.
type RoomTypeHandler struct {
	db *gorm.DB
}

// NewRoomTypeHandler creates a room type handler
func NewRoomTypeHandler(db *gorm.DB) *RoomTypeHandler {
	return &RoomTypeHandler{db: db}
}

type roomTypeRequest struct {
	PropertyID uint           `json:"property_id"`
	Name       string         `json:"name"`
	Price      float64        `json:"price"`
	Facilities datatypes.JSON `json:"facilities"`
	// Cascade renames all rooms of the old type instead of blocking
	Cascade bool `json:"cascade"`
}

// ListByProperty returns the room types of an owned property
func (h *RoomTypeHandler) ListByProperty(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room_type", "list")

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
	var types []model.RoomType
	if err := h.db.Where("property_id = ?", propertyID).Order("name").Find(&types).Error; err != nil {
		log.Error("Failed to list room types", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve room types"})
	}
	return c.JSON(http.StatusOK, types)
}

// Create adds a room type to an owned property
func (h *RoomTypeHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room_type", "create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req roomTypeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.PropertyID == 0 || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "property_id and name are required"})
	}
	if _, err := ownedProperty(h.db, req.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	var existing model.RoomType
	if err := h.db.Where("property_id = ? AND name = ?", req.PropertyID, req.Name).First(&existing).Error; err == nil {
		prometheus.RecordRuleViolation("duplicate_room_type")
		return c.JSON(http.StatusConflict, echo.Map{"error": "a room type with this name already exists"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	roomType := model.RoomType{
		PropertyID: req.PropertyID,
		Name:       req.Name,
		Price:      req.Price,
		Facilities: req.Facilities,
	}
	if err := h.db.Create(&roomType).Error; err != nil {
		log.Error("Failed to create room type", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "room type creation failed"})
	}

	log.Info("Room type created", zap.Uint("id", roomType.ID), zap.String("name", roomType.Name))
	return c.JSON(http.StatusCreated, roomType)
}

// Update modifies a room type. A rename while rooms still reference the old
// name is blocked with the exact list of affected rooms, unless the caller
// asks for a cascade, in which case rooms are renamed in the same transaction.
func (h *RoomTypeHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room_type", "update")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room type ID"})
	}

	var roomType model.RoomType
	if err := h.db.First(&roomType, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room type not found"})
	}
	if _, err := ownedProperty(h.db, roomType.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	var req roomTypeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	renamed := req.Name != roomType.Name
	oldName := roomType.Name

	if renamed && !req.Cascade {
		var affected []string
		err := h.db.Model(&model.Room{}).
			Where("property_id = ? AND type = ?", roomType.PropertyID, oldName).
			Order("name").
			Pluck("name", &affected).Error
		if err != nil {
			log.Error("Failed to check referencing rooms", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if len(affected) > 0 {
			log.Warn("Room type rename blocked",
				zap.String("name", oldName), zap.Int("rooms", len(affected)))
			prometheus.RecordRuleViolation("room_type_referenced")
			return c.JSON(http.StatusConflict, echo.Map{
				"error":          "room type is still referenced by rooms; rename them first or pass cascade",
				"affected_rooms": affected,
			})
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		roomType.Name = req.Name
		roomType.Price = req.Price
		roomType.Facilities = req.Facilities
		if err := tx.Save(&roomType).Error; err != nil {
			return err
		}
		if renamed && req.Cascade {
			return tx.Model(&model.Room{}).
				Where("property_id = ? AND type = ?", roomType.PropertyID, oldName).
				Update("type", req.Name).Error
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to update room type", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "room type update failed"})
	}

	return c.JSON(http.StatusOK, roomType)
}

// Delete removes an unreferenced room type
func (h *RoomTypeHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("room_type", "delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room type ID"})
	}

	var roomType model.RoomType
	if err := h.db.First(&roomType, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room type not found"})
	}
	if _, err := ownedProperty(h.db, roomType.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	var referencing int64
	if err := h.db.Model(&model.Room{}).
		Where("property_id = ? AND type = ?", roomType.PropertyID, roomType.Name).
		Count(&referencing).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if referencing > 0 {
		prometheus.RecordRuleViolation("room_type_referenced")
		return c.JSON(http.StatusConflict, echo.Map{"error": "room type is still referenced by rooms"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&model.RoomType{}, id).Error; err != nil {
		log.Error("Failed to delete room type", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "room type deletion failed"})
	}

	log.Info("Room type deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "room type deleted"})
}
