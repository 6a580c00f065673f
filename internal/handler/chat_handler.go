package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/realtime"
	"kost-service/pkg/logger"
	"kost-service/prometheus"
)

// ChatHandler serves a property's chat room. Messages are persisted and also
// published to the realtime hub so connected clients see them immediately.
type ChatHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewChatHandler creates a chat handler
func NewChatHandler(db *gorm.DB, hub *realtime.Hub) *ChatHandler {
	return &ChatHandler{db: db, hub: hub}
}

// List returns the most recent messages for a property, oldest first
func (h *ChatHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("chat", "list")

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
	var messages []model.ChatMessage
	if err := h.db.
		Where("property_id = ?", propertyID).
		Order("created_at DESC").
		Limit(100).
		Find(&messages).Error; err != nil {
		log.Error("Failed to list chat messages", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve messages"})
	}

	// Reverse into chronological order for display
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return c.JSON(http.StatusOK, messages)
}

// Send persists a message and broadcasts it
func (h *ChatHandler) Send(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("chat", "create")

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

	var req struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request format"})
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message body is required"})
	}
	if len(req.Body) > 2000 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message exceeds 2000 characters"})
	}

	var sender model.User
	if err := h.db.First(&sender, userID).Error; err != nil {
		log.Error("Failed to load sender", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send message"})
	}

	message := model.ChatMessage{
		PropertyID: propertyID,
		SenderID:   userID,
		SenderName: sender.Name,
		Body:       req.Body,
	}

	defer prometheus.TrackDBOperation("create")(time.Now())
	if err := h.db.Create(&message).Error; err != nil {
		log.Error("Failed to save chat message", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send message"})
	}

	h.hub.Publish(realtime.TopicChat, realtime.ActionInsert, message)
	return c.JSON(http.StatusCreated, message)
}
