package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusbook/booking-api/internal/models"
	appErrors "github.com/campusbook/booking-api/pkg/errors"
)

type mockDirectoryUsers struct {
	entries []models.DirectoryEntry
	calls   int
}

func (m *mockDirectoryUsers) ListByRole(ctx context.Context, role models.UserRole) ([]models.DirectoryEntry, error) {
	m.calls++
	return m.entries, nil
}

type mockDirectoryResources struct {
	resources []models.Resource
	calls     int
}

func (m *mockDirectoryResources) ListResources(ctx context.Context) ([]models.Resource, error) {
	m.calls++
	return m.resources, nil
}

type memoryCache struct {
	values map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func TestDirectoryServiceFacultyCachesResults(t *testing.T) {
	users := &mockDirectoryUsers{entries: []models.DirectoryEntry{
		{ID: "f1", FullName: "Dr. Asha Rao", Email: "asha.rao@jaipur.manipal.edu", Role: models.RoleFaculty},
	}}
	cache := newMemoryCache()
	svc := NewDirectoryService(users, &mockDirectoryResources{}, cache, time.Minute, zap.NewNop())

	first, err := svc.Faculty(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, users.calls)

	second, err := svc.Faculty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, users.calls, "second read must come from cache")
}

func TestDirectoryServiceFacultyWithoutCache(t *testing.T) {
	users := &mockDirectoryUsers{entries: []models.DirectoryEntry{
		{ID: "f1", FullName: "Dr. Asha Rao", Role: models.RoleFaculty},
	}}
	svc := NewDirectoryService(users, &mockDirectoryResources{}, nil, time.Minute, zap.NewNop())

	_, err := svc.Faculty(context.Background())
	require.NoError(t, err)
	_, err = svc.Faculty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, users.calls)
}

func TestDirectoryServiceResources(t *testing.T) {
	resources := &mockDirectoryResources{resources: []models.Resource{
		{ID: "r1", ResourceType: "Auditorium", Location: "Block A"},
	}}
	cache := newMemoryCache()
	svc := NewDirectoryService(&mockDirectoryUsers{}, resources, cache, time.Minute, zap.NewNop())

	out, err := svc.Resources(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Auditorium", out[0].ResourceType)

	_, err = svc.Resources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resources.calls)
}
