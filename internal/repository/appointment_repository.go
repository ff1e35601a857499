package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusbook/booking-api/internal/models"
)

// AppointmentRepository provides database access for appointment
// requests and their approved copies.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new instance of AppointmentRepository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts a new appointment request with status pending.
func (r *AppointmentRepository) Create(ctx context.Context, req *models.AppointmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	req.Status = models.StatusPending

	const query = `INSERT INTO appointment_requests (id, student_name, faculty, date, time, duration_minutes, reason, status, created_at, updated_at) VALUES (:id, :student_name, :faculty, :date, :time, :duration_minutes, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create appointment request: %w", err)
	}
	return nil
}

// FindByID returns an appointment request by identifier.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.AppointmentRequest, error) {
	const query = `SELECT id, student_name, faculty, date, time, duration_minutes, reason, status, created_at, updated_at FROM appointment_requests WHERE id = $1 LIMIT 1`
	var req models.AppointmentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment request: %w", err)
	}
	return &req, nil
}

// List returns appointment requests based on filters with total count.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error) {
	baseQuery := `FROM appointment_requests WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Faculty != "" {
		conditions = append(conditions, fmt.Sprintf("faculty = $%d", len(args)+1))
		args = append(args, filter.Faculty)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, student_name, faculty, date, time, duration_minutes, reason, status, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var requests []models.AppointmentRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointment requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointment requests: %w", err)
	}

	return requests, total, nil
}

// UpdateStatusIfPending transitions a request out of pending. The UPDATE
// is conditional on the current status so concurrent transitions race
// safely: exactly one caller observes true, everyone else false.
func (r *AppointmentRepository) UpdateStatusIfPending(ctx context.Context, id string, status models.RequestStatus, updatedAt time.Time) (bool, error) {
	const query = `UPDATE appointment_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, id, status, updatedAt)
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update appointment status rows: %w", err)
	}
	return affected == 1, nil
}

// CreateApproved materializes the denormalized approved copy of a request.
func (r *AppointmentRepository) CreateApproved(ctx context.Context, appt *models.ApprovedAppointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}
	appt.Status = models.StatusApproved

	const query = `INSERT INTO approved_appointments (id, request_id, student_name, faculty, date, time, duration_minutes, reason, status, created_at) VALUES (:id, :request_id, :student_name, :faculty, :date, :time, :duration_minutes, :reason, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appt); err != nil {
		return fmt.Errorf("create approved appointment: %w", err)
	}
	return nil
}

// FindApprovedByRequestID returns the approved copy for a request.
func (r *AppointmentRepository) FindApprovedByRequestID(ctx context.Context, requestID string) (*models.ApprovedAppointment, error) {
	const query = `SELECT id, request_id, student_name, faculty, date, time, duration_minutes, reason, status, created_at FROM approved_appointments WHERE request_id = $1 LIMIT 1`
	var appt models.ApprovedAppointment
	if err := r.db.GetContext(ctx, &appt, query, requestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find approved appointment: %w", err)
	}
	return &appt, nil
}

// ListApproved returns all approved appointments, newest first. Used by
// report exports.
func (r *AppointmentRepository) ListApproved(ctx context.Context) ([]models.ApprovedAppointment, error) {
	const query = `SELECT id, request_id, student_name, faculty, date, time, duration_minutes, reason, status, created_at FROM approved_appointments ORDER BY created_at DESC`
	var appts []models.ApprovedAppointment
	if err := r.db.SelectContext(ctx, &appts, query); err != nil {
		return nil, fmt.Errorf("list approved appointments: %w", err)
	}
	return appts, nil
}
