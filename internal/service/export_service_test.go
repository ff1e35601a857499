package service

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusbook/booking-api/internal/models"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
	"github.com/campusbook/booking-api/pkg/storage"
)

type mockApprovedLister struct {
	approved []models.ApprovedAppointment
}

func (m *mockApprovedLister) ListApproved(ctx context.Context) ([]models.ApprovedAppointment, error) {
	return m.approved, nil
}

func newTestExportService(t *testing.T, lister *mockApprovedLister) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(lister, &mockAuditor{}, store, signer, ExportQueueConfig{Workers: 1}, zap.NewNop())
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitForExport(t *testing.T, svc *ExportService, id string) *models.ExportJob {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := svc.Get(id)
		return err == nil && job.Status == models.ExportStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	job, err := svc.Get(id)
	require.NoError(t, err)
	return job
}

func TestExportServiceQueueInvalidFormat(t *testing.T) {
	svc := newTestExportService(t, &mockApprovedLister{})

	_, err := svc.Queue(context.Background(), &models.JWTClaims{UserID: "a1"}, models.CreateExportRequest{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceCSVLifecycle(t *testing.T) {
	lister := &mockApprovedLister{approved: []models.ApprovedAppointment{
		{
			ID:              "ap1",
			RequestID:       "req1",
			StudentName:     "Rohan Mehta",
			Faculty:         "Dr. Asha Rao",
			Date:            "2025-03-10",
			Time:            "14:00",
			DurationMinutes: 30,
			Reason:          "advising",
		},
	}}
	svc := newTestExportService(t, lister)

	job, err := svc.Queue(context.Background(), &models.JWTClaims{UserID: "a1"}, models.CreateExportRequest{Format: models.ExportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)

	done := waitForExport(t, svc, job.ID)
	assert.NotEmpty(t, done.DownloadToken)
	require.NotNil(t, done.ExpiresAt)

	file, filename, err := svc.ResolveDownload(done.DownloadToken)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, done.Filename, filename)

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	body := string(content)
	assert.True(t, strings.HasPrefix(body, "student,faculty,date,time,duration,reason"))
	assert.Contains(t, body, "Rohan Mehta,Dr. Asha Rao,2025-03-10,14:00,30,advising")
}

func TestExportServicePDFLifecycle(t *testing.T) {
	lister := &mockApprovedLister{approved: []models.ApprovedAppointment{
		{ID: "ap1", RequestID: "req1", StudentName: "Rohan Mehta", Faculty: "Dr. Asha Rao", Date: "2025-03-10", Time: "14:00", DurationMinutes: 30},
	}}
	svc := newTestExportService(t, lister)

	job, err := svc.Queue(context.Background(), &models.JWTClaims{UserID: "a1"}, models.CreateExportRequest{Format: models.ExportFormatPDF})
	require.NoError(t, err)

	done := waitForExport(t, svc, job.ID)
	assert.True(t, strings.HasSuffix(done.Filename, ".pdf"))
}

func TestExportServiceDownloadTamperedToken(t *testing.T) {
	svc := newTestExportService(t, &mockApprovedLister{})

	_, _, err := svc.ResolveDownload("not-a-valid-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestExportServiceGetUnknownJob(t *testing.T) {
	svc := newTestExportService(t, &mockApprovedLister{})

	_, err := svc.Get("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceCleanupRemovesExpiredFiles(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = store.Save("stale.csv", []byte("student,faculty\n"))
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("stale.csv"), old, old))

	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(&mockApprovedLister{}, &mockAuditor{}, store, signer, ExportQueueConfig{
		Workers:         1,
		CleanupInterval: 20 * time.Millisecond,
		RetainFor:       time.Hour,
	}, zap.NewNop())
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	require.Eventually(t, func() bool {
		_, err := os.Stat(store.Path("stale.csv"))
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}
