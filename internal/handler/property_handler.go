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

// PropertyHandler handles property CRUD and marketplace publishing.
type PropertyHandler struct {
	db       *gorm.DB
	limits   *subscription.LimitChecker
	features *subscription.Resolver
	hub      *realtime.Hub
}

// NewPropertyHandler creates a property handler
func NewPropertyHandler(db *gorm.DB, limits *subscription.LimitChecker, features *subscription.Resolver, hub *realtime.Hub) *PropertyHandler {
	return &PropertyHandler{db: db, limits: limits, features: features, hub: hub}
}

type propertyRequest struct {
	Name      string         `json:"name"`
	Address   string         `json:"address"`
	City      string         `json:"city"`
	Phone     string         `json:"phone"`
	Amenities datatypes.JSON `json:"amenities"`
	Rules     datatypes.JSON `json:"rules"`
	Photos    datatypes.JSON `json:"photos"`
}

// List returns all properties owned by the authenticated user
func (h *PropertyHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("property", "list")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var properties []model.Property
	if err := h.db.Where("owner_id = ?", userID).Order("created_at DESC").Find(&properties).Error; err != nil {
		log.Error("Failed to list properties", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve properties"})
	}

	return c.JSON(http.StatusOK, properties)
}

// Get returns one owned property with its room summary
func (h *PropertyHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("property", "get")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property ID"})
	}

	property, err := ownedProperty(h.db, id, userID)
	if err != nil {
		return respondOwnership(c, err)
	}

	var total, occupied int64
	if err := h.db.Model(&model.Room{}).Where("property_id = ?", id).Count(&total).Error; err != nil {
		log.Error("Failed to count rooms", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	h.db.Model(&model.Room{}).Where("property_id = ? AND status = ?", id, model.RoomOccupied).Count(&occupied)

	return c.JSON(http.StatusOK, echo.Map{
		"property":       property,
		"total_rooms":    total,
		"occupied_rooms": occupied,
	})
}

// Create adds a property, enforcing the plan's property cap inside the
// create transaction so concurrent creates cannot both pass the check
func (h *PropertyHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("property", "create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req propertyRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse property request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var property model.Property
	var limitErr string
	err := h.db.Transaction(func(tx *gorm.DB) error {
		allowed, limits, err := h.limits.CanAddProperty(tx, userID)
		if err != nil {
			return err
		}
		if !allowed {
			limitErr = fmt.Sprintf("property limit reached (max %d); upgrade your plan to add more", limits.MaxProperties)
			return errLimitReached
		}

		property = model.Property{
			OwnerID:           userID,
			Name:              req.Name,
			Address:           req.Address,
			City:              req.City,
			Phone:             req.Phone,
			MarketplaceStatus: model.MarketplaceDraft,
			Amenities:         req.Amenities,
			Rules:             req.Rules,
			Photos:            req.Photos,
		}
		return tx.Create(&property).Error
	})
	if err != nil {
		if limitErr != "" {
			log.Warn("Property limit reached", zap.Uint("user_id", userID))
			prometheus.RecordRuleViolation("subscription_limit")
			return c.JSON(http.StatusForbidden, echo.Map{"error": limitErr})
		}
		log.Error("Failed to create property", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "property creation failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionInsert, property)
	log.Info("Property created", zap.Uint("id", property.ID), zap.String("name", property.Name))
	return c.JSON(http.StatusCreated, property)
}

// Update modifies an owned property
func (h *PropertyHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("property", "update")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property ID"})
	}

	property, err := ownedProperty(h.db, id, userID)
	if err != nil {
		return respondOwnership(c, err)
	}

	var req propertyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	property.Name = req.Name
	property.Address = req.Address
	property.City = req.City
	property.Phone = req.Phone
	property.Amenities = req.Amenities
	property.Rules = req.Rules
	property.Photos = req.Photos

	if err := h.db.Save(property).Error; err != nil {
		log.Error("Failed to update property", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "property update failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionUpdate, property)
	return c.JSON(http.StatusOK, property)
}

// Delete removes a property and everything scoped to it in one transaction
func (h *PropertyHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("property", "delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property ID"})
	}

	property, err := ownedProperty(h.db, id, userID)
	if err != nil {
		return respondOwnership(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	err = h.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&model.Payment{}, &model.MaintenanceRequest{}, &model.Tenant{},
			&model.Room{}, &model.RoomType{}, &model.ChatMessage{},
		} {
			if err := tx.Where("property_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("property_id = ?", id).Delete(&model.Notification{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Property{}, id).Error
	})
	if err != nil {
		log.Error("Failed to delete property", zap.Uint("id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "property deletion failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionDelete, property)
	log.Info("Property deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "property deleted"})
}

// SetMarketplace publishes or unpublishes a property on the marketplace.
// Publishing is gated by the marketplace_listing feature.
func (h *PropertyHandler) SetMarketplace(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("property", "marketplace")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property ID"})
	}

	property, err := ownedProperty(h.db, id, userID)
	if err != nil {
		return respondOwnership(c, err)
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Enabled {
		features, _ := h.features.Features(userID)
		if !features.Has(subscription.FeatureMarketplaceListing) {
			log.Warn("Marketplace publish without feature", zap.Uint("user_id", userID))
			prometheus.RecordRuleViolation("feature_gate")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "marketplace listing is not included in your plan"})
		}
	}

	status := model.MarketplaceDraft
	if req.Enabled {
		status = model.MarketplacePublished
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	updates := map[string]interface{}{
		"marketplace_enabled": req.Enabled,
		"marketplace_status":  status,
	}
	if err := h.db.Model(property).Updates(updates).Error; err != nil {
		log.Error("Failed to update marketplace status", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "marketplace update failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionUpdate, property)
	log.Info("Marketplace status changed",
		zap.Uint("property_id", id), zap.Bool("enabled", req.Enabled))
	return c.JSON(http.StatusOK, property)
}
