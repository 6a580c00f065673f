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

// MarketplaceHandler serves the public, unauthenticated listing endpoints.
// Only properties that are enabled and published are visible, and responses
// never include tenant data or owner contact beyond the listing phone.
type MarketplaceHandler struct {
	db *gorm.DB
}

// NewMarketplaceHandler creates a marketplace handler
func NewMarketplaceHandler(db *gorm.DB) *MarketplaceHandler {
	return &MarketplaceHandler{db: db}
}

type marketplaceListing struct {
	model.Property
	TotalRooms  int64    `json:"total_rooms"`
	VacantRooms int64    `json:"vacant_rooms"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
}

// List returns all published properties, optionally filtered by city
func (h *MarketplaceHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("marketplace", "list")

	defer prometheus.TrackDBOperation("query")(time.Now())

	query := h.db.Where("marketplace_enabled = ? AND marketplace_status = ?",
		true, model.MarketplacePublished)
	if city := c.QueryParam("city"); city != "" {
		query = query.Where("LOWER(city) = LOWER(?)", city)
	}

	var properties []model.Property
	if err := query.Order("updated_at DESC").Find(&properties).Error; err != nil {
		log.Error("Failed to list marketplace properties", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve listings"})
	}

	listings := make([]marketplaceListing, 0, len(properties))
	for _, property := range properties {
		listings = append(listings, h.summarize(property))
	}
	return c.JSON(http.StatusOK, listings)
}

// Get returns a single published listing with its vacant rooms
func (h *MarketplaceHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("marketplace", "get")

	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var property model.Property
	err = h.db.Where("id = ? AND marketplace_enabled = ? AND marketplace_status = ?",
		id, true, model.MarketplacePublished).First(&property).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		log.Error("Failed to load listing", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve listing"})
	}

	// Vacant rooms only; occupied rooms would leak tenancy information.
	var rooms []model.Room
	if err := h.db.
		Select("id", "property_id", "name", "floor", "type", "price",
			"daily_price", "weekly_price", "yearly_price", "facilities", "photos").
		Where("property_id = ? AND status = ?", property.ID, model.RoomVacant).
		Order("name ASC").
		Find(&rooms).Error; err != nil {
		log.Error("Failed to load listing rooms", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve listing"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"property": h.summarize(property),
		"rooms":    rooms,
	})
}

func (h *MarketplaceHandler) summarize(property model.Property) marketplaceListing {
	listing := marketplaceListing{Property: property}

	h.db.Model(&model.Room{}).
		Where("property_id = ?", property.ID).
		Count(&listing.TotalRooms)
	h.db.Model(&model.Room{}).
		Where("property_id = ? AND status = ?", property.ID, model.RoomVacant).
		Count(&listing.VacantRooms)

	var bounds struct {
		Min *float64
		Max *float64
	}
	h.db.Model(&model.Room{}).
		Select("MIN(price) AS min, MAX(price) AS max").
		Where("property_id = ? AND status = ?", property.ID, model.RoomVacant).
		Scan(&bounds)
	listing.MinPrice = bounds.Min
	listing.MaxPrice = bounds.Max

	return listing
}
