package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusbook/booking-api/internal/service"
	"github.com/campusbook/booking-api/pkg/response"
)

// DirectoryHandler serves the faculty and resource pickers.
type DirectoryHandler struct {
	service *service.DirectoryService
}

// NewDirectoryHandler creates a new handler.
func NewDirectoryHandler(svc *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: svc}
}

// Faculty godoc
// @Summary List faculty directory
// @Description Returns every active faculty account for the booking form
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /directory/faculty [get]
func (h *DirectoryHandler) Faculty(c *gin.Context) {
	entries, err := h.service.Faculty(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Resources godoc
// @Summary List reservable resources
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /directory/resources [get]
func (h *DirectoryHandler) Resources(c *gin.Context) {
	resources, err := h.service.Resources(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resources, nil)
}
