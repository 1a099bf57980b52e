package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/dto"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type mockDashboardRepo struct {
	children int
	classes  int
	teachers int
	areas    int
	assigned int
	trend    []dto.TrendPoint
	stats    []dto.ClassStat
	activity []dto.ActivityItem
	calls    int

	activityLimit int
}

func (m *mockDashboardRepo) CountChildren(ctx context.Context, scope authz.Scope) (int, error) {
	m.calls++
	return m.children, nil
}

func (m *mockDashboardRepo) CountClasses(ctx context.Context, scope authz.Scope) (int, error) {
	return m.classes, nil
}

func (m *mockDashboardRepo) CountTeachers(ctx context.Context, scope authz.Scope) (int, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	return m.teachers, nil
}

func (m *mockDashboardRepo) CountAreas(ctx context.Context, scope authz.Scope) (int, error) {
	return m.areas, nil
}

func (m *mockDashboardRepo) CountAssignedOnDate(ctx context.Context, scope authz.Scope, date time.Time) (int, error) {
	return m.assigned, nil
}

func (m *mockDashboardRepo) Trend(ctx context.Context, scope authz.Scope, from, to time.Time) ([]dto.TrendPoint, error) {
	return m.trend, nil
}

func (m *mockDashboardRepo) ClassStats(ctx context.Context, scope authz.Scope, date time.Time) ([]dto.ClassStat, error) {
	return m.stats, nil
}

func (m *mockDashboardRepo) RecentActivity(ctx context.Context, scope authz.Scope, limit int) ([]dto.ActivityItem, error) {
	m.activityLimit = limit
	return m.activity, nil
}

type mockDashboardCache struct {
	entries map[string][]byte
}

func newMockDashboardCache() *mockDashboardCache {
	return &mockDashboardCache{entries: make(map[string][]byte)}
}

func (m *mockDashboardCache) GetDashboard(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.Clone(appErrors.ErrCacheMiss, "")
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockDashboardCache) SetDashboard(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func TestDashboardServiceStats(t *testing.T) {
	repo := &mockDashboardRepo{
		children: 42,
		classes:  3,
		teachers: 6,
		areas:    12,
		assigned: 30,
		trend:    []dto.TrendPoint{},
		stats:    []dto.ClassStat{{ClassID: "class-1", ClassName: "Sunflower", ChildCount: 15, AssignedCount: 12}},
	}
	svc := NewDashboardService(repo, newMockDashboardCache(), zap.NewNop(), time.Minute, 7)

	stats, err := svc.Stats(context.Background(), principalOwner(), 7)
	require.NoError(t, err)
	assert.Equal(t, 42, stats.TotalChildren)
	assert.Equal(t, 30, stats.AssignedChildren)
	assert.Equal(t, 12, stats.UnassignedChildren)
	assert.Len(t, stats.SelectionTrend, 7)
	assert.Len(t, stats.ClassStatistics, 1)
}

func TestDashboardServiceStatsCached(t *testing.T) {
	repo := &mockDashboardRepo{children: 10}
	cache := newMockDashboardCache()
	svc := NewDashboardService(repo, cache, zap.NewNop(), time.Minute, 7)
	p := principalOwner()

	_, err := svc.Stats(context.Background(), p, 7)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	// Second hit for the same scope and window comes from the cache.
	stats, err := svc.Stats(context.Background(), p, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 10, stats.TotalChildren)
}

func TestDashboardServiceUnassignedClamped(t *testing.T) {
	// Assigned can momentarily exceed the active headcount when a child is
	// withdrawn after the morning assignment. Never report a negative.
	repo := &mockDashboardRepo{children: 5, assigned: 8}
	svc := NewDashboardService(repo, nil, zap.NewNop(), time.Minute, 7)

	stats, err := svc.Stats(context.Background(), principalOwner(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.UnassignedChildren)
}

func TestDashboardServiceEmptyScope(t *testing.T) {
	repo := &mockDashboardRepo{children: 42}
	svc := NewDashboardService(repo, nil, zap.NewNop(), time.Minute, 7)

	inconsistent := authz.Principal{UserID: "u", Role: authz.RoleTeacher}
	stats, err := svc.Stats(context.Background(), inconsistent, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalChildren)
	assert.Empty(t, stats.SelectionTrend)
	assert.Zero(t, repo.calls)
}

func TestDashboardServiceRecentActivity(t *testing.T) {
	repo := &mockDashboardRepo{activity: []dto.ActivityItem{
		{RecordID: "rec-1", ChildName: "Mia", AreaName: "Building Blocks", Action: "assigned"},
	}}
	svc := NewDashboardService(repo, nil, zap.NewNop(), time.Minute, 7)

	items, err := svc.RecentActivity(context.Background(), principalOwner(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Mia", items[0].ChildName)
	assert.Equal(t, 20, repo.activityLimit)

	// The limit is capped, not rejected.
	_, err = svc.RecentActivity(context.Background(), principalOwner(), 5000)
	require.NoError(t, err)
	assert.Equal(t, maxActivityItems, repo.activityLimit)
}

func TestDashboardServiceRecentActivityEmptyScope(t *testing.T) {
	repo := &mockDashboardRepo{activity: []dto.ActivityItem{{RecordID: "rec-1"}}}
	svc := NewDashboardService(repo, nil, zap.NewNop(), time.Minute, 7)

	inconsistent := authz.Principal{UserID: "u", Role: authz.RoleTeacher}
	items, err := svc.RecentActivity(context.Background(), inconsistent, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, repo.activityLimit)
}

func TestFillTrendDensifiesWindow(t *testing.T) {
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	sparse := []dto.TrendPoint{
		{Date: "2026-03-03", Count: 5},
		{Date: "2026-03-05", Count: 2},
	}

	out := fillTrend(sparse, from, 5)
	require.Len(t, out, 5)
	assert.Equal(t, dto.TrendPoint{Date: "2026-03-02", Count: 0}, out[0])
	assert.Equal(t, dto.TrendPoint{Date: "2026-03-03", Count: 5}, out[1])
	assert.Equal(t, dto.TrendPoint{Date: "2026-03-05", Count: 2}, out[3])
	assert.Equal(t, dto.TrendPoint{Date: "2026-03-06", Count: 0}, out[4])
}
