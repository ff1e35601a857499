package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusbook/booking-api/internal/models"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
)

type resourceRepository interface {
	CreateBlockRequest(ctx context.Context, req *models.ResourceBlockRequest) error
	ListBlockRequests(ctx context.Context, filter models.ResourceBlockFilter) ([]models.ResourceBlockRequest, int, error)
}

// ResourceService handles blocking of shared resources. Block requests
// live on their own track and never touch the appointment tables.
type ResourceService struct {
	repo      resourceRepository
	auditor   auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService constructs a ResourceService instance.
func NewResourceService(repo resourceRepository, auditor auditRecorder, validate *validator.Validate, logger *zap.Logger) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResourceService{repo: repo, auditor: auditor, validator: validate, logger: logger}
}

// CreateBlock files a pending resource block request. The end time must
// fall strictly after the start time; an equal or earlier end is
// rejected before anything is written.
func (s *ResourceService) CreateBlock(ctx context.Context, actor *models.JWTClaims, req models.CreateResourceBlockRequest) (*models.ResourceBlockRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource block payload")
	}

	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start time")
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end time")
	}
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	block := &models.ResourceBlockRequest{
		ID:           uuid.NewString(),
		ResourceType: req.ResourceType,
		Location:     req.Location,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Purpose:      req.Purpose,
		Status:       models.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateBlockRequest(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resource block request")
	}

	if s.auditor != nil {
		userID := actor.UserID
		if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionResourceBlock,
			Resource:   "resource_blocks",
			ResourceID: &block.ID,
			NewValues:  []byte(fmt.Sprintf(`{"resource_type":%q,"date":%q}`, block.ResourceType, block.Date)),
		}); err != nil {
			s.logger.Warn("failed to record resource block audit log", zap.Error(err))
		}
	}

	s.logger.Info("resource block request created",
		zap.String("id", block.ID),
		zap.String("resource_type", block.ResourceType),
		zap.String("date", block.Date))

	return block, nil
}

// ListBlocks returns resource block requests, newest first.
func (s *ResourceService) ListBlocks(ctx context.Context, filter models.ResourceBlockFilter) ([]models.ResourceBlockRequest, int, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	blocks, total, err := s.repo.ListBlockRequests(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resource block requests")
	}
	return blocks, total, nil
}
