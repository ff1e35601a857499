package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusbook/booking-api/internal/models"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
	"github.com/campusbook/booking-api/pkg/ics"
)

type appointmentRepository interface {
	Create(ctx context.Context, req *models.AppointmentRequest) error
	FindByID(ctx context.Context, id string) (*models.AppointmentRequest, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error)
	UpdateStatusIfPending(ctx context.Context, id string, status models.RequestStatus, updatedAt time.Time) (bool, error)
	CreateApproved(ctx context.Context, appt *models.ApprovedAppointment) error
	FindApprovedByRequestID(ctx context.Context, requestID string) (*models.ApprovedAppointment, error)
	ListApproved(ctx context.Context) ([]models.ApprovedAppointment, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const defaultAppointmentDuration = 30

// AppointmentService implements the booking lifecycle: students file
// requests, faculty resolve them, and approved requests yield calendar
// invites rendered on demand from the persisted approved copy.
type AppointmentService struct {
	repo      appointmentRepository
	auditor   auditRecorder
	calendar  *ics.Generator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAppointmentService constructs an AppointmentService instance.
func NewAppointmentService(repo appointmentRepository, auditor auditRecorder, calendar *ics.Generator, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AppointmentService{repo: repo, auditor: auditor, calendar: calendar, validator: validate, logger: logger}
}

// Create files a new pending request on behalf of the authenticated
// student. The student name is always taken from the verified identity,
// never from the payload.
func (s *AppointmentService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateAppointmentRequest) (*models.AppointmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = defaultAppointmentDuration
	}

	now := time.Now().UTC()
	appointment := &models.AppointmentRequest{
		ID:              uuid.NewString(),
		StudentName:     actor.FullName,
		Faculty:         req.Faculty,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: duration,
		Reason:          req.Reason,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, appointment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment request")
	}

	s.recordAudit(ctx, actor, models.AuditActionAppointmentCreate, appointment.ID,
		fmt.Sprintf(`{"faculty":%q,"date":%q}`, appointment.Faculty, appointment.Date))

	s.logger.Info("appointment request created",
		zap.String("id", appointment.ID),
		zap.String("faculty", appointment.Faculty),
		zap.String("date", appointment.Date))

	return appointment, nil
}

// List returns appointment requests. Faculty callers are always scoped
// to their own inbox; the scope comes from the verified identity and
// cannot be widened by query parameters.
func (s *AppointmentService) List(ctx context.Context, actor *models.JWTClaims, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error) {
	if actor.Role == models.RoleFaculty {
		filter.Faculty = actor.FullName
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}

	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointment requests")
	}
	return requests, total, nil
}

// Get returns a single appointment request by id.
func (s *AppointmentService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.AppointmentRequest, error) {
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch appointment request")
	}
	if actor.Role == models.RoleFaculty && appointment.Faculty != actor.FullName {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to another inbox")
	}
	return appointment, nil
}

// Approve moves a pending request to approved and materializes the
// approved copy exactly once. A request already in a terminal state is
// rejected with a conflict; the transition is never silently replayed.
func (s *AppointmentService) Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.ApprovedAppointment, error) {
	appointment, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	moved, err := s.repo.UpdateStatusIfPending(ctx, id, models.StatusApproved, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment status")
	}
	if !moved {
		return nil, appErrors.Clone(appErrors.ErrFinalized, fmt.Sprintf("appointment request %s is already finalized", id))
	}

	approved := &models.ApprovedAppointment{
		ID:              uuid.NewString(),
		RequestID:       appointment.ID,
		StudentName:     appointment.StudentName,
		Faculty:         appointment.Faculty,
		Date:            appointment.Date,
		Time:            appointment.Time,
		DurationMinutes: appointment.DurationMinutes,
		Reason:          appointment.Reason,
		Status:          models.StatusApproved,
		CreatedAt:       now,
	}

	if err := s.repo.CreateApproved(ctx, approved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist approved appointment")
	}

	s.recordAudit(ctx, actor, models.AuditActionAppointmentApprove, appointment.ID,
		fmt.Sprintf(`{"student":%q,"date":%q}`, appointment.StudentName, appointment.Date))

	s.logger.Info("appointment approved",
		zap.String("request_id", appointment.ID),
		zap.String("approved_id", approved.ID))

	return approved, nil
}

// Reject moves a pending request to rejected. No approved copy is
// written and no calendar artifact will ever exist for it.
func (s *AppointmentService) Reject(ctx context.Context, actor *models.JWTClaims, id string) (*models.AppointmentRequest, error) {
	appointment, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	moved, err := s.repo.UpdateStatusIfPending(ctx, id, models.StatusRejected, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment status")
	}
	if !moved {
		return nil, appErrors.Clone(appErrors.ErrFinalized, fmt.Sprintf("appointment request %s is already finalized", id))
	}

	appointment.Status = models.StatusRejected
	appointment.UpdatedAt = now

	s.recordAudit(ctx, actor, models.AuditActionAppointmentReject, appointment.ID,
		fmt.Sprintf(`{"student":%q,"date":%q}`, appointment.StudentName, appointment.Date))

	s.logger.Info("appointment rejected", zap.String("request_id", appointment.ID))

	return appointment, nil
}

// Calendar renders the ICS invite for an approved request. The artifact
// is produced on every read from the persisted approved copy, so a
// download can never observe a half-finished approval.
func (s *AppointmentService) Calendar(ctx context.Context, requestID string) (string, []byte, error) {
	approved, err := s.repo.FindApprovedByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, appErrors.Clone(appErrors.ErrNotApproved, "no approved appointment for this request")
		}
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch approved appointment")
	}

	data, err := s.calendar.Render(ics.Invite{
		UID:             approved.ID,
		Faculty:         approved.Faculty,
		Date:            approved.Date,
		Time:            approved.Time,
		DurationMinutes: approved.DurationMinutes,
		Reason:          approved.Reason,
	})
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar invite")
	}

	return ics.Filename(approved.StudentName), data, nil
}

// ListApproved returns every approved appointment, newest first.
func (s *AppointmentService) ListApproved(ctx context.Context) ([]models.ApprovedAppointment, error) {
	approved, err := s.repo.ListApproved(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved appointments")
	}
	return approved, nil
}

func (s *AppointmentService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, newValues string) {
	if s.auditor == nil {
		return
	}
	userID := actor.UserID
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "appointments",
		ResourceID: &resourceID,
		NewValues:  []byte(newValues),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
