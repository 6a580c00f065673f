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

// TenantHandler handles tenant CRUD, room assignment and the deletion
// cascade. Room/tenant cross-updates run in single transactions so a failed
// step cannot leave the pair inconsistent.
type TenantHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewTenantHandler creates a tenant handler
func NewTenantHandler(db *gorm.DB, hub *realtime.Hub) *TenantHandler {
	return &TenantHandler{db: db, hub: hub}
}

type tenantRequest struct {
	PropertyID uint       `json:"property_id"`
	RoomID     *uint      `json:"room_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Status     string     `json:"status"`
	LeaseStart *time.Time `json:"lease_start_date"`
	LeaseEnd   *time.Time `json:"lease_end_date"`
}

// ListByProperty returns the tenants of an owned property
func (h *TenantHandler) ListByProperty(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("tenant", "list")

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
	var tenants []model.Tenant
	if err := h.db.Where("property_id = ?", propertyID).Order("name").Find(&tenants).Error; err != nil {
		log.Error("Failed to list tenants", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve tenants"})
	}
	return c.JSON(http.StatusOK, tenants)
}

// Create adds a tenant; optional room assignment happens in the same
// transaction and marks the room occupied.
func (h *TenantHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("tenant", "create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req tenantRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.PropertyID == 0 || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "property_id and name are required"})
	}

	if _, err := ownedProperty(h.db, req.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	// Duplicate tenant email within the same property is rejected
	if req.Email != "" {
		var existing int64
		h.db.Model(&model.Tenant{}).
			Where("property_id = ? AND email = ?", req.PropertyID, req.Email).
			Count(&existing)
		if existing > 0 {
			prometheus.RecordRuleViolation("duplicate_tenant_email")
			return c.JSON(http.StatusConflict, echo.Map{"error": "a tenant with this email already exists in this property"})
		}
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	tenant := model.Tenant{
		PropertyID:    req.PropertyID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Status:        model.TenantActive,
		PaymentStatus: model.PaymentPending,
		LeaseStart:    leaseDate(req.LeaseStart),
		LeaseEnd:      leaseDate(req.LeaseEnd),
	}

	var conflict string
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		if req.RoomID != nil {
			if msg, err := assignRoom(tx, &tenant, *req.RoomID); err != nil {
				conflict = msg
				return err
			}
			return tx.Save(&tenant).Error
		}
		return nil
	})
	if err != nil {
		if conflict != "" {
			prometheus.RecordRuleViolation("room_unavailable")
			return c.JSON(http.StatusConflict, echo.Map{"error": conflict})
		}
		log.Error("Failed to create tenant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant creation failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionUpdate, tenant)
	log.Info("Tenant created", zap.Uint("id", tenant.ID), zap.Uint("property_id", tenant.PropertyID))
	return c.JSON(http.StatusCreated, tenant)
}

// Update modifies a tenant; a changed room_id reassigns rooms atomically:
// the old room is freed and the new one occupied in one transaction.
func (h *TenantHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("tenant", "update")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	var tenant model.Tenant
	if err := h.db.First(&tenant, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}
	if _, err := ownedProperty(h.db, tenant.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	var req tenantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if req.Status != "" && req.Status != model.TenantActive && req.Status != model.TenantInactive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be active or inactive"})
	}

	if req.Email != "" && req.Email != tenant.Email {
		var existing int64
		h.db.Model(&model.Tenant{}).
			Where("property_id = ? AND email = ? AND id <> ?", tenant.PropertyID, req.Email, tenant.ID).
			Count(&existing)
		if existing > 0 {
			prometheus.RecordRuleViolation("duplicate_tenant_email")
			return c.JSON(http.StatusConflict, echo.Map{"error": "a tenant with this email already exists in this property"})
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	roomChanged := !uintPtrEqual(req.RoomID, tenant.RoomID)

	var conflict string
	err = h.db.Transaction(func(tx *gorm.DB) error {
		tenant.Name = req.Name
		tenant.Email = req.Email
		tenant.Phone = req.Phone
		if req.Status != "" {
			tenant.Status = req.Status
		}
		tenant.LeaseStart = leaseDate(req.LeaseStart)
		tenant.LeaseEnd = leaseDate(req.LeaseEnd)

		if roomChanged {
			if tenant.RoomID != nil {
				if err := releaseRoom(tx, *tenant.RoomID); err != nil {
					return err
				}
				tenant.RoomID = nil
			}
			if req.RoomID != nil {
				if msg, err := assignRoom(tx, &tenant, *req.RoomID); err != nil {
					conflict = msg
					return err
				}
			}
		}

		return tx.Save(&tenant).Error
	})
	if err != nil {
		if conflict != "" {
			prometheus.RecordRuleViolation("room_unavailable")
			return c.JSON(http.StatusConflict, echo.Map{"error": conflict})
		}
		log.Error("Failed to update tenant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant update failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionUpdate, tenant)
	return c.JSON(http.StatusOK, tenant)
}

// Delete removes a tenant with its full cascade in one transaction: the
// assigned room is freed, the tenant's payments are removed and maintenance
// requests keep their history with the tenant reference cleared.
func (h *TenantHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("tenant", "delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	var tenant model.Tenant
	if err := h.db.First(&tenant, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}
	if _, err := ownedProperty(h.db, tenant.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if tenant.RoomID != nil {
			if err := releaseRoom(tx, *tenant.RoomID); err != nil {
				return err
			}
		}
		if err := tx.Where("tenant_id = ?", tenant.ID).Delete(&model.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.MaintenanceRequest{}).
			Where("tenant_id = ?", tenant.ID).
			Update("tenant_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Tenant{}, tenant.ID).Error
	})
	if err != nil {
		log.Error("Failed to delete tenant", zap.Uint("id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant deletion failed"})
	}

	h.hub.Publish(realtime.TopicProperties, realtime.ActionDelete, tenant)
	log.Info("Tenant deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "tenant deleted"})
}

// assignRoom occupies a room for a tenant inside an open transaction.
// Returns a human-readable conflict message when the room cannot be used.
func assignRoom(tx *gorm.DB, tenant *model.Tenant, roomID uint) (string, error) {
	var room model.Room
	if err := tx.First(&room, roomID).Error; err != nil {
		return "room not found", err
	}
	if room.PropertyID != tenant.PropertyID {
		return "room belongs to a different property", errNotOwner
	}
	if room.Status == model.RoomOccupied && (room.TenantID == nil || *room.TenantID != tenant.ID) {
		return "room is already occupied", errRoomUnavailable
	}
	if room.Status == model.RoomMaintenance {
		return "room is under maintenance", errRoomUnavailable
	}

	updates := map[string]interface{}{
		"status":    model.RoomOccupied,
		"tenant_id": tenant.ID,
	}
	if err := tx.Model(&model.Room{}).Where("id = ?", roomID).Updates(updates).Error; err != nil {
		return "", err
	}
	tenant.RoomID = &roomID
	return "", nil
}

// releaseRoom frees a room inside an open transaction
func releaseRoom(tx *gorm.DB, roomID uint) error {
	return tx.Model(&model.Room{}).Where("id = ?", roomID).Updates(map[string]interface{}{
		"status":    model.RoomVacant,
		"tenant_id": nil,
	}).Error
}

// leaseDate pins a lease timestamp to its calendar date at UTC midnight.
// Clients may submit dates with any zone offset; storing the wall-clock date
// keeps the billing reminder window on the day the owner picked.
func leaseDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
