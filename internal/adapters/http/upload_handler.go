package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/ports"
)

// UploadHandler handles multipart file uploads
type UploadHandler struct {
	uploadService ports.UploadService
	logger        *logger.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService ports.UploadService, logger *logger.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		logger:        logger,
	}
}

// Upload stores the "file" form field. An existing target yields 409 with an empty body.
func (h *UploadHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing file field")
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unreadable file").SetInternal(err)
	}
	defer src.Close()

	path, err := h.uploadService.Save(c.Request().Context(), fh.Filename, src)
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrFileExists):
			return c.NoContent(http.StatusConflict)
		case errors.Is(err, entities.ErrInvalidFilename):
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid filename")
		case errors.Is(err, entities.ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Upload failed").SetInternal(err)
	}

	return c.Render(http.StatusOK, "upload.html", map[string]string{"Path": path})
}
