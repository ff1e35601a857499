package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/campusbook/booking-api/internal/models"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
)

type directoryUserRepository interface {
	ListByRole(ctx context.Context, role models.UserRole) ([]models.DirectoryEntry, error)
}

type directoryResourceRepository interface {
	ListResources(ctx context.Context) ([]models.Resource, error)
}

type directoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const (
	facultyDirectoryCacheKey  = "directory:faculty"
	resourceDirectoryCacheKey = "directory:resources"
)

// DirectoryService serves the read-only pickers the booking forms are
// populated from: the faculty roster and the reservable resources.
type DirectoryService struct {
	users     directoryUserRepository
	resources directoryResourceRepository
	cache     directoryCache
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewDirectoryService constructs a DirectoryService instance.
func NewDirectoryService(users directoryUserRepository, resources directoryResourceRepository, cache directoryCache, cacheTTL time.Duration, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{users: users, resources: resources, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Faculty returns every active faculty account. Results are served from
// cache when fresh; a cache failure falls through to the database.
func (s *DirectoryService) Faculty(ctx context.Context) ([]models.DirectoryEntry, error) {
	if s.cache != nil {
		var cached []models.DirectoryEntry
		if err := s.cache.Get(ctx, facultyDirectoryCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("faculty directory cache read failed", zap.Error(err))
		}
	}

	entries, err := s.users.ListByRole(ctx, models.RoleFaculty)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty directory")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, facultyDirectoryCacheKey, entries, s.cacheTTL); err != nil {
			s.logger.Warn("faculty directory cache write failed", zap.Error(err))
		}
	}

	return entries, nil
}

// Resources returns the reservable resource catalog.
func (s *DirectoryService) Resources(ctx context.Context) ([]models.Resource, error) {
	if s.cache != nil {
		var cached []models.Resource
		if err := s.cache.Get(ctx, resourceDirectoryCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("resource directory cache read failed", zap.Error(err))
		}
	}

	resources, err := s.resources.ListResources(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, resourceDirectoryCacheKey, resources, s.cacheTTL); err != nil {
			s.logger.Warn("resource directory cache write failed", zap.Error(err))
		}
	}

	return resources, nil
}
