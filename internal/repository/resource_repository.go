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

// ResourceRepository provides database access for the resource
// directory and resource block requests.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository creates a new instance of ResourceRepository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// ListResources returns all reservable resources.
func (r *ResourceRepository) ListResources(ctx context.Context) ([]models.Resource, error) {
	const query = `SELECT id, resource_type, location, created_at FROM resources`
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

// CreateBlockRequest inserts a new resource block request with status pending.
func (r *ResourceRepository) CreateBlockRequest(ctx context.Context, req *models.ResourceBlockRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Status = models.StatusPending

	const query = `INSERT INTO resource_block_requests (id, resource_type, location, date, start_time, end_time, purpose, status, created_at) VALUES (:id, :resource_type, :location, :date, :start_time, :end_time, :purpose, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create resource block request: %w", err)
	}
	return nil
}

// FindBlockRequestByID returns a resource block request by identifier.
func (r *ResourceRepository) FindBlockRequestByID(ctx context.Context, id string) (*models.ResourceBlockRequest, error) {
	const query = `SELECT id, resource_type, location, date, start_time, end_time, purpose, status, created_at FROM resource_block_requests WHERE id = $1 LIMIT 1`
	var req models.ResourceBlockRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find resource block request: %w", err)
	}
	return &req, nil
}

// ListBlockRequests returns resource block requests with total count.
func (r *ResourceRepository) ListBlockRequests(ctx context.Context, filter models.ResourceBlockFilter) ([]models.ResourceBlockRequest, int, error) {
	baseQuery := `FROM resource_block_requests WHERE 1=1`
	var conditions []string
	var args []interface{}

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

	listQuery := fmt.Sprintf("SELECT id, resource_type, location, date, start_time, end_time, purpose, status, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var requests []models.ResourceBlockRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list resource block requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count resource block requests: %w", err)
	}

	return requests, total, nil
}
