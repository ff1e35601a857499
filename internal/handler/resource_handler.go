package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusbook/booking-api/internal/models"
	"github.com/campusbook/booking-api/internal/service"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
	"github.com/campusbook/booking-api/pkg/response"
)

// ResourceHandler wires HTTP endpoints to the resource block service.
type ResourceHandler struct {
	service *service.ResourceService
}

// NewResourceHandler creates a new handler.
func NewResourceHandler(svc *service.ResourceService) *ResourceHandler {
	return &ResourceHandler{service: svc}
}

// CreateBlock godoc
// @Summary Request a resource block
// @Description Reserves a shared resource for a time window
// @Tags Resources
// @Accept json
// @Produce json
// @Param payload body models.CreateResourceBlockRequest true "Resource block payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /resource-blocks [post]
func (h *ResourceHandler) CreateBlock(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateResourceBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource block payload"))
		return
	}

	block, err := h.service.CreateBlock(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, block)
}

// ListBlocks godoc
// @Summary List resource block requests
// @Tags Resources
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /resource-blocks [get]
func (h *ResourceHandler) ListBlocks(c *gin.Context) {
	filter := models.ResourceBlockFilter{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.RequestStatus(raw)
		filter.Status = &status
	}

	blocks, total, err := h.service.ListBlocks(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, blocks, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}
