package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kost-service/internal/model"
)

// errNotOwner marks a property access attempt by a non-owner.
var errNotOwner = errors.New("property not owned by user")

// errLimitReached aborts a create transaction when a plan cap is hit.
var errLimitReached = errors.New("subscription limit reached")

// errRoomUnavailable aborts a room assignment when the room is taken.
var errRoomUnavailable = errors.New("room unavailable")

// currentUserID reads the authenticated user ID set by AuthMiddleware
func currentUserID(c echo.Context) (uint, bool) {
	userID, ok := c.Get("user_id").(uint)
	return userID, ok
}

// paramID parses a numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// ownedProperty loads a property and verifies the caller owns it. Ownership
// is enforced here, server-side, for every property-scoped operation.
func ownedProperty(tx *gorm.DB, propertyID, userID uint) (*model.Property, error) {
	var property model.Property
	if err := tx.First(&property, propertyID).Error; err != nil {
		return nil, err
	}
	if property.OwnerID != userID {
		return nil, errNotOwner
	}
	return &property, nil
}

// respondOwnership converts ownedProperty errors into the uniform responses
func respondOwnership(c echo.Context, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
	}
	if errors.Is(err, errNotOwner) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
