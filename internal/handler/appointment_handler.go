package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campusbook/booking-api/internal/models"
	"github.com/campusbook/booking-api/internal/service"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
	"github.com/campusbook/booking-api/pkg/response"
)

// AppointmentHandler wires HTTP endpoints to the appointment service.
type AppointmentHandler struct {
	service *service.AppointmentService
	metrics *service.MetricsService
}

// NewAppointmentHandler creates a new handler.
func NewAppointmentHandler(svc *service.AppointmentService, metrics *service.MetricsService) *AppointmentHandler {
	return &AppointmentHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary File an appointment request
// @Description Student books a meeting slot with a faculty member
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body models.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}

	appointment, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordAppointmentCreated()
	response.Created(c, appointment)
}

// List godoc
// @Summary List appointment requests
// @Description Faculty see their own inbox; admins see all requests
// @Tags Appointments
// @Produce json
// @Param status query string false "Filter by status (pending, approved, rejected)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.AppointmentFilter{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.RequestStatus(raw)
		filter.Status = &status
	}

	requests, total, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get an appointment request
// @Tags Appointments
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	appointment, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appointment, nil)
}

// Approve godoc
// @Summary Approve a pending appointment request
// @Description Moves the request to approved and materializes the approved copy
// @Tags Appointments
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/approve [post]
func (h *AppointmentHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	approved, err := h.service.Approve(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		h.recordTransitionError(err)
		response.Error(c, err)
		return
	}

	h.metrics.RecordTransition("approved")
	response.JSON(c, http.StatusOK, approved, nil)
}

// Reject godoc
// @Summary Reject a pending appointment request
// @Tags Appointments
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/reject [post]
func (h *AppointmentHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rejected, err := h.service.Reject(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		h.recordTransitionError(err)
		response.Error(c, err)
		return
	}

	h.metrics.RecordTransition("rejected")
	response.JSON(c, http.StatusOK, rejected, nil)
}

// Calendar godoc
// @Summary Download the calendar invite
// @Description Renders the ICS artifact from the persisted approved copy
// @Tags Appointments
// @Produce text/calendar
// @Param id path string true "Request ID"
// @Success 200 {string} string "ICS document"
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id}/calendar [get]
func (h *AppointmentHandler) Calendar(c *gin.Context) {
	filename, data, err := h.service.Calendar(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordCalendarDownload()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/calendar", data)
}

func (h *AppointmentHandler) recordTransitionError(err error) {
	if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrFinalized.Code {
		h.metrics.RecordTransition("conflict")
	}
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
