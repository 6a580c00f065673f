package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"kost-service/pkg/logger"
	"kost-service/pkg/storage"
	"kost-service/prometheus"
)

const maxUploadBytes = 5 << 20 // 5 MiB

// UploadHandler accepts image uploads and forwards them to object storage
type UploadHandler struct {
	storage *storage.Client
}

// NewUploadHandler creates an upload handler
func NewUploadHandler(client *storage.Client) *UploadHandler {
	return &UploadHandler{storage: client}
}

// Upload accepts a multipart image and returns its public URL.
// The optional "category" form field becomes a storage folder segment.
func (h *UploadHandler) Upload(c echo.Context) error {
	log := logger.FromContext(c)

	if _, ok := currentUserID(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if !h.storage.Configured() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "image uploads are not configured"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	if fileHeader.Size > maxUploadBytes {
		prometheus.RecordUpload("upload", "rejected")
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file exceeds the 5MB limit"})
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		prometheus.RecordUpload("upload", "rejected")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "only image files are accepted"})
	}

	category := c.FormValue("category")
	switch category {
	case "", "property", "room", "profile":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}
	defer src.Close()

	url, err := h.storage.Upload(src, fileHeader.Filename, category)
	if err != nil {
		prometheus.RecordUpload("upload", "error")
		log.Error("Image upload failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "upload failed"})
	}

	prometheus.RecordUpload("upload", "success")
	log.Info("Image uploaded", zap.String("category", category))
	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}

// Delete removes a previously uploaded image by its public URL
func (h *UploadHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)

	if _, ok := currentUserID(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if !h.storage.Configured() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "image uploads are not configured"})
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "url is required"})
	}

	if err := h.storage.Delete(req.URL); err != nil {
		prometheus.RecordUpload("delete", "error")
		log.Error("Image deletion failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "deletion failed"})
	}
	prometheus.RecordUpload("delete", "success")
	return c.JSON(http.StatusOK, echo.Map{"message": "image deleted"})
}
