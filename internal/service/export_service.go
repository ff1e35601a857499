package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusbook/booking-api/internal/models"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
	"github.com/campusbook/booking-api/pkg/export"
	"github.com/campusbook/booking-api/pkg/jobs"
	"github.com/campusbook/booking-api/pkg/storage"
)

type approvedLister interface {
	ListApproved(ctx context.Context) ([]models.ApprovedAppointment, error)
}

// ExportService renders reports of approved appointments in the
// background and hands out expiring signed download links.
type ExportService struct {
	appointments approvedLister
	auditor      auditRecorder
	storage      *storage.LocalStorage
	signer       *storage.SignedURLSigner
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	logger       *zap.Logger

	queue *jobs.Queue

	cleanupInterval time.Duration
	retainFor       time.Duration
	janitorCancel   context.CancelFunc
	janitorDone     chan struct{}

	mu     sync.RWMutex
	status map[string]*models.ExportJob
}

// ExportQueueConfig sizes the background worker pool and the cleanup
// sweep that removes generated files once their download links expire.
type ExportQueueConfig struct {
	Workers         int
	MaxRetries      int
	RetryDelay      time.Duration
	CleanupInterval time.Duration
	RetainFor       time.Duration
}

// NewExportService constructs an ExportService instance.
func NewExportService(appointments approvedLister, auditor auditRecorder, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg ExportQueueConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	retainFor := cfg.RetainFor
	if retainFor <= 0 {
		retainFor = 24 * time.Hour
	}
	s := &ExportService{
		appointments:    appointments,
		auditor:         auditor,
		storage:         store,
		signer:          signer,
		csv:             export.NewCSVExporter(),
		pdf:             export.NewPDFExporter(),
		logger:          logger,
		cleanupInterval: cfg.CleanupInterval,
		retainFor:       retainFor,
		status:          make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers and, when a cleanup interval is
// configured, the sweep that deletes expired export files.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cleanupInterval > 0 {
		var janitorCtx context.Context
		janitorCtx, s.janitorCancel = context.WithCancel(ctx)
		s.janitorDone = make(chan struct{})
		go s.janitor(janitorCtx)
	}
}

// Stop drains and stops the export workers and the cleanup sweep.
func (s *ExportService) Stop() {
	if s.janitorCancel != nil {
		s.janitorCancel()
		<-s.janitorDone
		s.janitorCancel = nil
	}
	s.queue.Stop()
}

func (s *ExportService) janitor(ctx context.Context) {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.storage.CleanupOlderThan(s.retainFor)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("expired export files removed", zap.Int("count", len(deleted)))
			}
		}
	}
}

// Queue enqueues a report of all approved appointments in the requested
// format and returns the tracking record immediately.
func (s *ExportService) Queue(ctx context.Context, actor *models.JWTClaims, req models.CreateExportRequest) (*models.ExportJob, error) {
	if !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		Format:    req.Format,
		Status:    models.ExportStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.status[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(req.Format), Enqueued: job.CreatedAt}); err != nil {
		s.mu.Lock()
		delete(s.status, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	if s.auditor != nil && actor != nil {
		userID := actor.UserID
		if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionExportQueue,
			Resource:   "exports",
			ResourceID: &job.ID,
			NewValues:  []byte(fmt.Sprintf(`{"format":%q}`, req.Format)),
		}); err != nil {
			s.logger.Warn("failed to record export audit log", zap.Error(err))
		}
	}

	return s.snapshot(job.ID), nil
}

// Get returns the current state of an export job.
func (s *ExportService) Get(id string) (*models.ExportJob, error) {
	job := s.snapshot(id)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the stored file.
// The caller owns the returned handle.
func (s *ExportService) ResolveDownload(token string) (*os.File, string, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}

	job := s.snapshot(exportID)
	if job == nil || job.Status != models.ExportStatusCompleted {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export is not available")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file no longer exists")
	}
	return file, job.Filename, nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	s.setStatus(job.ID, models.ExportStatusProcessing, nil)

	approved, err := s.appointments.ListApproved(ctx)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	dataset := approvedDataset(approved)
	format := models.ExportFormat(job.Type)

	var data []byte
	var filename string
	switch format {
	case models.ExportFormatCSV:
		data, err = s.csv.Render(dataset)
		filename = fmt.Sprintf("approved_appointments_%s.csv", job.ID)
	case models.ExportFormatPDF:
		data, err = s.pdf.Render(dataset, "Approved Appointments")
		filename = fmt.Sprintf("approved_appointments_%s.pdf", job.ID)
	default:
		err = fmt.Errorf("unsupported export format %q", job.Type)
	}
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	relPath, err := s.storage.Save(filename, data)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if rec, ok := s.status[job.ID]; ok {
		rec.Status = models.ExportStatusCompleted
		rec.Filename = filename
		rec.DownloadToken = token
		rec.ExpiresAt = &expiresAt
		rec.CompletedAt = &now
		rec.Error = ""
	}
	s.mu.Unlock()

	s.logger.Info("export completed",
		zap.String("export_id", job.ID),
		zap.String("format", job.Type),
		zap.Int("rows", len(approved)))
	return nil
}

func (s *ExportService) fail(id string, err error) {
	msg := err.Error()
	s.setStatus(id, models.ExportStatusFailed, &msg)
	s.logger.Error("export failed", zap.String("export_id", id), zap.Error(err))
}

func (s *ExportService) setStatus(id string, status models.ExportStatus, errMsg *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.status[id]; ok {
		rec.Status = status
		if errMsg != nil {
			rec.Error = *errMsg
		}
	}
}

func (s *ExportService) snapshot(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.status[id]
	if !ok {
		return nil
	}
	copied := *rec
	return &copied
}

func approvedDataset(approved []models.ApprovedAppointment) export.Dataset {
	rows := make([]map[string]string, 0, len(approved))
	for _, a := range approved {
		rows = append(rows, map[string]string{
			"student":  a.StudentName,
			"faculty":  a.Faculty,
			"date":     a.Date,
			"time":     a.Time,
			"duration": fmt.Sprintf("%d", a.DurationMinutes),
			"reason":   a.Reason,
		})
	}
	return export.Dataset{
		Headers: []string{"student", "faculty", "date", "time", "duration", "reason"},
		Rows:    rows,
	}
}
