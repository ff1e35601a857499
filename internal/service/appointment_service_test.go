package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusbook/booking-api/internal/models"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
	"github.com/campusbook/booking-api/pkg/ics"
)

type mockAppointmentRepo struct {
	requests map[string]*models.AppointmentRequest
	approved map[string]*models.ApprovedAppointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{
		requests: make(map[string]*models.AppointmentRequest),
		approved: make(map[string]*models.ApprovedAppointment),
	}
}

func (m *mockAppointmentRepo) Create(ctx context.Context, req *models.AppointmentRequest) error {
	copied := *req
	m.requests[req.ID] = &copied
	return nil
}

func (m *mockAppointmentRepo) FindByID(ctx context.Context, id string) (*models.AppointmentRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (m *mockAppointmentRepo) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentRequest, int, error) {
	var out []models.AppointmentRequest
	for _, req := range m.requests {
		if filter.Faculty != "" && req.Faculty != filter.Faculty {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		out = append(out, *req)
	}
	return out, len(out), nil
}

func (m *mockAppointmentRepo) UpdateStatusIfPending(ctx context.Context, id string, status models.RequestStatus, updatedAt time.Time) (bool, error) {
	req, ok := m.requests[id]
	if !ok || req.Status != models.StatusPending {
		return false, nil
	}
	req.Status = status
	req.UpdatedAt = updatedAt
	return true, nil
}

func (m *mockAppointmentRepo) CreateApproved(ctx context.Context, appt *models.ApprovedAppointment) error {
	copied := *appt
	m.approved[appt.RequestID] = &copied
	return nil
}

func (m *mockAppointmentRepo) FindApprovedByRequestID(ctx context.Context, requestID string) (*models.ApprovedAppointment, error) {
	appt, ok := m.approved[requestID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *appt
	return &copied, nil
}

func (m *mockAppointmentRepo) ListApproved(ctx context.Context) ([]models.ApprovedAppointment, error) {
	var out []models.ApprovedAppointment
	for _, appt := range m.approved {
		out = append(out, *appt)
	}
	return out, nil
}

type mockAuditor struct {
	logs []*models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newTestAppointmentService(repo *mockAppointmentRepo) (*AppointmentService, *mockAuditor) {
	auditor := &mockAuditor{}
	gen := ics.NewGenerator("Manipal University Jaipur", "-//Campus Booking//Appointments//EN", "No reason provided")
	return NewAppointmentService(repo, auditor, gen, validator.New(), zap.NewNop()), auditor
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "s1", FullName: "Rohan Mehta", Role: models.RoleStudent}
}

func facultyClaims(name string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "f1", FullName: name, Role: models.RoleFaculty}
}

func TestAppointmentServiceCreateStartsPending(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, auditor := newTestAppointmentService(repo)

	appt, err := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Asha Rao",
		Date:    "2025-03-10",
		Time:    "14:00",
		Reason:  "thesis advising",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, "Rohan Mehta", appt.StudentName, "student name comes from the verified identity")
	assert.Equal(t, 30, appt.DurationMinutes, "duration defaults when omitted")
	assert.Len(t, auditor.logs, 1)
}

func TestAppointmentServiceCreateRejectsBadDate(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	_, err := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Asha Rao",
		Date:    "10-03-2025",
		Time:    "14:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.requests)
}

func TestAppointmentServiceApproveCreatesSingleCopy(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	appt, err := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty:         "Dr. Asha Rao",
		Date:            "2025-03-10",
		Time:            "14:00",
		DurationMinutes: 30,
		Reason:          "advising",
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), facultyClaims("Dr. Asha Rao"), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, approved.RequestID)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, "Rohan Mehta", approved.StudentName)
	assert.Len(t, repo.approved, 1)
	assert.Equal(t, models.StatusApproved, repo.requests[appt.ID].Status)
}

func TestAppointmentServiceApproveTwiceConflicts(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	appt, _ := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Asha Rao",
		Date:    "2025-03-10",
		Time:    "14:00",
	})

	_, err := svc.Approve(context.Background(), facultyClaims("Dr. Asha Rao"), appt.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), facultyClaims("Dr. Asha Rao"), appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.approved, 1, "no second approved copy may appear")
}

func TestAppointmentServiceRejectAfterApproveConflicts(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	appt, _ := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Asha Rao",
		Date:    "2025-03-10",
		Time:    "14:00",
	})

	_, err := svc.Approve(context.Background(), facultyClaims("Dr. Asha Rao"), appt.ID)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), facultyClaims("Dr. Asha Rao"), appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFinalized.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusApproved, repo.requests[appt.ID].Status)
}

func TestAppointmentServiceRejectWritesNoApprovedCopy(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	appt, _ := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Asha Rao",
		Date:    "2025-03-10",
		Time:    "14:00",
	})

	rejected, err := svc.Reject(context.Background(), facultyClaims("Dr. Asha Rao"), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Empty(t, repo.approved)

	_, _, err = svc.Calendar(context.Background(), appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotApproved.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceApproveForeignInboxForbidden(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	appt, _ := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Asha Rao",
		Date:    "2025-03-10",
		Time:    "14:00",
	})

	_, err := svc.Approve(context.Background(), facultyClaims("Dr. Someone Else"), appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusPending, repo.requests[appt.ID].Status)
}

func TestAppointmentServiceListScopesFacultyInbox(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	_, err := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Asha Rao", Date: "2025-03-10", Time: "14:00",
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Someone Else", Date: "2025-03-11", Time: "10:00",
	})
	require.NoError(t, err)

	// faculty only see their own inbox even with an empty filter
	requests, total, err := svc.List(context.Background(), facultyClaims("Dr. Asha Rao"), models.AppointmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, requests, 1)
	assert.Equal(t, "Dr. Asha Rao", requests[0].Faculty)

	// admins see everything
	admin := &models.JWTClaims{UserID: "a1", FullName: "Admin", Role: models.RoleAdmin}
	_, total, err = svc.List(context.Background(), admin, models.AppointmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestAppointmentServiceCalendarRendersFromApprovedCopy(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	appt, _ := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty:         "Dr. Asha Rao",
		Date:            "2025-03-10",
		Time:            "14:00",
		DurationMinutes: 30,
		Reason:          "advising",
	})

	_, err := svc.Approve(context.Background(), facultyClaims("Dr. Asha Rao"), appt.ID)
	require.NoError(t, err)

	filename, data, err := svc.Calendar(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rohan Mehta_appointment.ics", filename)

	body := string(data)
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Appointment with Dr. Asha Rao")
	assert.Contains(t, body, "DTSTART:20250310T140000")
	assert.Contains(t, body, "DTEND:20250310T143000")
	assert.Contains(t, body, "LOCATION:Manipal University Jaipur")
	assert.Contains(t, body, "DESCRIPTION:advising")

	// repeated reads yield the same artifact
	_, again, err := svc.Calendar(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(body), strings.TrimSpace(string(again)))
}

func TestAppointmentServiceCalendarPendingNotAvailable(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	appt, _ := svc.Create(context.Background(), studentClaims(), models.CreateAppointmentRequest{
		Faculty: "Dr. Asha Rao", Date: "2025-03-10", Time: "14:00",
	})

	_, _, err := svc.Calendar(context.Background(), appt.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotApproved.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceGetNotFound(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc, _ := newTestAppointmentService(repo)

	_, err := svc.Get(context.Background(), facultyClaims("Dr. Asha Rao"), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
