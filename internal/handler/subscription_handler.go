package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/subscription"
	"kost-service/pkg/logger"
	"kost-service/prometheus"
)

// SubscriptionHandler exposes plans, the caller's current subscription and
// the resolved feature set.
type SubscriptionHandler struct {
	db       *gorm.DB
	features *subscription.Resolver
}

// NewSubscriptionHandler creates a subscription handler
func NewSubscriptionHandler(db *gorm.DB, features *subscription.Resolver) *SubscriptionHandler {
	return &SubscriptionHandler{db: db, features: features}
}

// ListPlans returns all available plans ordered by price
func (h *SubscriptionHandler) ListPlans(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("plan", "list")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var plans []model.SubscriptionPlan
	if err := h.db.Order("price ASC").Find(&plans).Error; err != nil {
		log.Error("Failed to list plans", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve plans"})
	}
	return c.JSON(http.StatusOK, plans)
}

// Current returns the caller's active subscription (if any) plus the
// resolved feature set and limits actually in effect.
func (h *SubscriptionHandler) Current(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("subscription", "get")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	features, err := h.features.Features(userID)
	if err != nil {
		log.Warn("Feature resolution degraded to defaults", zap.Error(err))
	}

	response := echo.Map{
		"subscription": nil,
		"features":     features,
		"limits": echo.Map{
			"max_properties":         subscription.DefaultMaxProperties,
			"max_rooms_per_property": subscription.DefaultMaxRoomsPerProperty,
		},
	}

	var sub model.Subscription
	err = h.db.Preload("Plan").
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Order("created_at DESC").
		First(&sub).Error
	if err == nil {
		response["subscription"] = sub
		response["limits"] = echo.Map{
			"max_properties":         sub.Plan.MaxProperties,
			"max_rooms_per_property": sub.Plan.MaxRoomsPerProperty,
		}
	} else if err != gorm.ErrRecordNotFound {
		log.Error("Failed to load subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve subscription"})
	}

	return c.JSON(http.StatusOK, response)
}

// Subscribe switches the caller to a plan. Any previous active subscription
// is cancelled in the same transaction.
func (h *SubscriptionHandler) Subscribe(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("subscription", "create")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		PlanID uint `json:"plan_id"`
	}
	if err := c.Bind(&req); err != nil || req.PlanID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plan_id is required"})
	}

	var plan model.SubscriptionPlan
	if err := h.db.First(&plan, req.PlanID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "plan not found"})
		}
		log.Error("Failed to load plan", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve plan"})
	}

	defer prometheus.TrackDBOperation("create")(time.Now())

	expires := time.Now().AddDate(0, 1, 0)
	sub := model.Subscription{
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    model.SubscriptionActive,
		ExpiresAt: &expires,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Subscription{}).
			Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
			Update("status", model.SubscriptionCancelled).Error; err != nil {
			return err
		}
		return tx.Create(&sub).Error
	})
	if err != nil {
		log.Error("Failed to create subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "subscription failed"})
	}

	sub.Plan = plan
	log.Info("Subscription created",
		zap.Uint("user_id", userID),
		zap.String("plan", plan.Name))
	return c.JSON(http.StatusCreated, sub)
}

// Cancel cancels the caller's active subscription; limits fall back to the
// free defaults immediately.
func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("subscription", "cancel")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.Model(&model.Subscription{}).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Update("status", model.SubscriptionCancelled)
	if result.Error != nil {
		log.Error("Failed to cancel subscription", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active subscription"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "subscription cancelled"})
}
