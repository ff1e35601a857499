package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campusbook/booking-api/internal/models"
)

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAppointmentRepositoryCreateForcesPending(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointment_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.AppointmentRequest{
		StudentName:     "Rohan Mehta",
		Faculty:         "Dr. Asha Rao",
		Date:            "2025-03-10",
		Time:            "14:00",
		DurationMinutes: 30,
		Status:          models.StatusApproved, // must be overridden
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.Equal(t, models.StatusPending, req.Status)
	require.NotEmpty(t, req.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_name", "faculty", "date", "time", "duration_minutes", "reason", "status", "created_at", "updated_at"}).
		AddRow("req-1", "Rohan Mehta", "Dr. Asha Rao", "2025-03-10", "14:00", 30, "advising", "pending", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_name, faculty")).
		WithArgs("req-1").
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, "Dr. Asha Rao", found.Faculty)
	require.Equal(t, models.StatusPending, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryFindByIDNoRows(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_name, faculty")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAppointmentRepositoryUpdateStatusIfPending(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointment_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'")).
		WithArgs("req-1", models.StatusApproved, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := repo.UpdateStatusIfPending(context.Background(), "req-1", models.StatusApproved, now)
	require.NoError(t, err)
	require.True(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUpdateStatusAlreadyFinal(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	now := time.Now().UTC()

	// the guarded UPDATE matches no rows once the request left pending
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointment_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'")).
		WithArgs("req-1", models.StatusRejected, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := repo.UpdateStatusIfPending(context.Background(), "req-1", models.StatusRejected, now)
	require.NoError(t, err)
	require.False(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCreateApproved(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approved_appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appt := &models.ApprovedAppointment{
		RequestID:       "req-1",
		StudentName:     "Rohan Mehta",
		Faculty:         "Dr. Asha Rao",
		Date:            "2025-03-10",
		Time:            "14:00",
		DurationMinutes: 30,
	}
	require.NoError(t, repo.CreateApproved(context.Background(), appt))
	require.Equal(t, models.StatusApproved, appt.Status)
	require.NotEmpty(t, appt.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "student_name", "faculty", "date", "time", "duration_minutes", "reason", "status", "created_at", "updated_at"}).
		AddRow("req-1", "Rohan Mehta", "Dr. Asha Rao", "2025-03-10", "14:00", 30, "advising", "pending", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_name, faculty")).
		WithArgs("Dr. Asha Rao", models.StatusPending).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("Dr. Asha Rao", models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	pending := models.StatusPending
	requests, total, err := repo.List(context.Background(), models.AppointmentFilter{
		Faculty: "Dr. Asha Rao",
		Status:  &pending,
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryFindApprovedByRequestID(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "request_id", "student_name", "faculty", "date", "time", "duration_minutes", "reason", "status", "created_at"}).
		AddRow("ap-1", "req-1", "Rohan Mehta", "Dr. Asha Rao", "2025-03-10", "14:00", 30, "advising", "approved", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, request_id, student_name")).
		WithArgs("req-1").
		WillReturnRows(rows)

	appt, err := repo.FindApprovedByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, "ap-1", appt.ID)
	require.Equal(t, models.StatusApproved, appt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
