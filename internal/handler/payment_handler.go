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

// PaymentHandler handles payment CRUD and the mark-paid flow.
type PaymentHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewPaymentHandler creates a payment handler
func NewPaymentHandler(db *gorm.DB, hub *realtime.Hub) *PaymentHandler {
	return &PaymentHandler{db: db, hub: hub}
}

type paymentRequest struct {
	TenantID uint       `json:"tenant_id"`
	RoomID   uint       `json:"room_id"`
	Amount   float64    `json:"amount"`
	DueDate  *time.Time `json:"due_date"`
	Method   string     `json:"payment_method"`
	Notes    string     `json:"notes"`
}

// ListByProperty returns the payments of an owned property. Pending
// payments past their due date are rolled to overdue before the response.
func (h *PaymentHandler) ListByProperty(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("payment", "list")

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

	// Roll pending past-due payments into overdue
	now := time.Now()
	if err := h.db.Model(&model.Payment{}).
		Where("property_id = ? AND status = ? AND due_date < ?", propertyID, model.PaymentPending, now).
		Update("status", model.PaymentOverdue).Error; err != nil {
		log.Warn("Failed to roll overdue payments", zap.Error(err))
	}
	h.db.Model(&model.Tenant{}).
		Where("property_id = ? AND payment_status = ? AND id IN (?)",
			propertyID, model.PaymentPending,
			h.db.Model(&model.Payment{}).Select("tenant_id").
				Where("property_id = ? AND status = ?", propertyID, model.PaymentOverdue)).
		Update("payment_status", model.PaymentOverdue)

	var payments []model.Payment
	if err := h.db.Where("property_id = ?", propertyID).Order("due_date DESC").Find(&payments).Error; err != nil {
		log.Error("Failed to list payments", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve payments"})
	}
	return c.JSON(http.StatusOK, payments)
}

// Create records a manual payment for a tenant
func (h *PaymentHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("payment", "create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.TenantID == 0 || req.Amount <= 0 || req.DueDate == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id, amount and due_date are required"})
	}

	var tenant model.Tenant
	if err := h.db.First(&tenant, req.TenantID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}
	if _, err := ownedProperty(h.db, tenant.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	roomID := req.RoomID
	if roomID == 0 && tenant.RoomID != nil {
		roomID = *tenant.RoomID
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	payment := model.Payment{
		TenantID:   tenant.ID,
		RoomID:     roomID,
		PropertyID: tenant.PropertyID,
		Amount:     req.Amount,
		DueDate:    *req.DueDate,
		Status:     model.PaymentPending,
		Method:     req.Method,
		Notes:      req.Notes,
	}
	if err := h.db.Create(&payment).Error; err != nil {
		log.Error("Failed to create payment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment creation failed"})
	}

	log.Info("Payment created", zap.Uint("id", payment.ID), zap.Uint("tenant_id", tenant.ID))
	return c.JSON(http.StatusCreated, payment)
}

// MarkPaid settles a payment and syncs the tenant's payment status in the
// same transaction
func (h *PaymentHandler) MarkPaid(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("payment", "mark_paid")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment ID"})
	}

	var payment model.Payment
	if err := h.db.First(&payment, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	}
	if _, err := ownedProperty(h.db, payment.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}
	if payment.Status == model.PaymentPaid {
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment is already settled"})
	}

	var req struct {
		Method string `json:"payment_method"`
		Notes  string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	now := time.Now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		payment.Status = model.PaymentPaid
		payment.PaidDate = &now
		if req.Method != "" {
			payment.Method = req.Method
		}
		if req.Notes != "" {
			payment.Notes = req.Notes
		}
		if err := tx.Save(&payment).Error; err != nil {
			return err
		}

		// Tenant is paid-up when no other unsettled payments remain
		var unsettled int64
		if err := tx.Model(&model.Payment{}).
			Where("tenant_id = ? AND status <> ? AND id <> ?", payment.TenantID, model.PaymentPaid, payment.ID).
			Count(&unsettled).Error; err != nil {
			return err
		}
		status := model.PaymentPaid
		if unsettled > 0 {
			status = model.PaymentPending
		}
		return tx.Model(&model.Tenant{}).
			Where("id = ?", payment.TenantID).
			Update("payment_status", status).Error
	})
	if err != nil {
		log.Error("Failed to mark payment paid", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment update failed"})
	}

	h.hub.Publish(realtime.TopicNotifications, realtime.ActionUpdate, payment)
	log.Info("Payment settled", zap.Uint("id", payment.ID))
	return c.JSON(http.StatusOK, payment)
}

// Update modifies an unsettled payment
func (h *PaymentHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("payment", "update")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment ID"})
	}

	var payment model.Payment
	if err := h.db.First(&payment, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	}
	if _, err := ownedProperty(h.db, payment.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}
	if payment.Status == model.PaymentPaid {
		return c.JSON(http.StatusConflict, echo.Map{"error": "settled payments cannot be edited"})
	}

	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if req.Amount > 0 {
		payment.Amount = req.Amount
	}
	if req.DueDate != nil {
		payment.DueDate = *req.DueDate
	}
	payment.Method = req.Method
	payment.Notes = req.Notes

	if err := h.db.Save(&payment).Error; err != nil {
		log.Error("Failed to update payment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment update failed"})
	}
	return c.JSON(http.StatusOK, payment)
}

// Delete removes a payment
func (h *PaymentHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("payment", "delete")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment ID"})
	}

	var payment model.Payment
	if err := h.db.First(&payment, id).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	}
	if _, err := ownedProperty(h.db, payment.PropertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&model.Payment{}, id).Error; err != nil {
		log.Error("Failed to delete payment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment deletion failed"})
	}

	log.Info("Payment deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "payment deleted"})
}
