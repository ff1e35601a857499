package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusbook/booking-api/internal/models"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
)

type mockResourceRepo struct {
	blocks []*models.ResourceBlockRequest
}

func (m *mockResourceRepo) CreateBlockRequest(ctx context.Context, req *models.ResourceBlockRequest) error {
	copied := *req
	m.blocks = append(m.blocks, &copied)
	return nil
}

func (m *mockResourceRepo) ListBlockRequests(ctx context.Context, filter models.ResourceBlockFilter) ([]models.ResourceBlockRequest, int, error) {
	var out []models.ResourceBlockRequest
	for _, block := range m.blocks {
		if filter.Status != nil && block.Status != *filter.Status {
			continue
		}
		out = append(out, *block)
	}
	return out, len(out), nil
}

func newTestResourceService(repo *mockResourceRepo) *ResourceService {
	return NewResourceService(repo, &mockAuditor{}, validator.New(), zap.NewNop())
}

func TestResourceServiceCreateBlock(t *testing.T) {
	repo := &mockResourceRepo{}
	svc := newTestResourceService(repo)

	block, err := svc.CreateBlock(context.Background(), facultyClaims("Dr. Asha Rao"), models.CreateResourceBlockRequest{
		ResourceType: "Auditorium",
		Location:     "Block A",
		Date:         "2025-03-12",
		StartTime:    "09:00",
		EndTime:      "11:00",
		Purpose:      "guest lecture",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, block.Status)
	assert.Len(t, repo.blocks, 1)
}

func TestResourceServiceCreateBlockEndBeforeStart(t *testing.T) {
	repo := &mockResourceRepo{}
	svc := newTestResourceService(repo)

	_, err := svc.CreateBlock(context.Background(), facultyClaims("Dr. Asha Rao"), models.CreateResourceBlockRequest{
		ResourceType: "Auditorium",
		Location:     "Block A",
		Date:         "2025-03-12",
		StartTime:    "11:00",
		EndTime:      "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.blocks, "nothing may be persisted when the window is invalid")
}

func TestResourceServiceCreateBlockEqualTimes(t *testing.T) {
	repo := &mockResourceRepo{}
	svc := newTestResourceService(repo)

	_, err := svc.CreateBlock(context.Background(), facultyClaims("Dr. Asha Rao"), models.CreateResourceBlockRequest{
		ResourceType: "Board Room",
		Location:     "Block B",
		Date:         "2025-03-12",
		StartTime:    "10:00",
		EndTime:      "10:00",
	})
	require.Error(t, err)
	assert.Empty(t, repo.blocks)
}

func TestResourceServiceListBlocksStatusFilter(t *testing.T) {
	repo := &mockResourceRepo{}
	svc := newTestResourceService(repo)

	_, err := svc.CreateBlock(context.Background(), facultyClaims("Dr. Asha Rao"), models.CreateResourceBlockRequest{
		ResourceType: "Classroom",
		Location:     "Block C",
		Date:         "2025-03-12",
		StartTime:    "13:00",
		EndTime:      "14:00",
	})
	require.NoError(t, err)

	pending := models.StatusPending
	blocks, total, err := svc.ListBlocks(context.Background(), models.ResourceBlockFilter{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, blocks, 1)

	bogus := models.RequestStatus("bogus")
	_, _, err = svc.ListBlocks(context.Background(), models.ResourceBlockFilter{Status: &bogus})
	require.Error(t, err)
}
