package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/dto"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type dashboardRepository interface {
	CountChildren(ctx context.Context, scope authz.Scope) (int, error)
	CountClasses(ctx context.Context, scope authz.Scope) (int, error)
	CountTeachers(ctx context.Context, scope authz.Scope) (int, error)
	CountAreas(ctx context.Context, scope authz.Scope) (int, error)
	CountAssignedOnDate(ctx context.Context, scope authz.Scope, date time.Time) (int, error)
	Trend(ctx context.Context, scope authz.Scope, from, to time.Time) ([]dto.TrendPoint, error)
	ClassStats(ctx context.Context, scope authz.Scope, date time.Time) ([]dto.ClassStat, error)
	RecentActivity(ctx context.Context, scope authz.Scope, limit int) ([]dto.ActivityItem, error)
}

type dashboardCache interface {
	GetDashboard(ctx context.Context, key string, dest interface{}) error
	SetDashboard(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const maxTrendDays = 90

// DashboardService aggregates the scoped counters for the landing page.
// Payloads are cached per visibility scope, not per user, so two teachers of
// the same classes share an entry.
type DashboardService struct {
	repo      dashboardRepository
	cache     dashboardCache
	logger    *zap.Logger
	cacheTTL  time.Duration
	trendDays int
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(repo dashboardRepository, cache dashboardCache, logger *zap.Logger, cacheTTL time.Duration, trendDays int) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if trendDays <= 0 {
		trendDays = 7
	}
	if trendDays > maxTrendDays {
		trendDays = maxTrendDays
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, cacheTTL: cacheTTL, trendDays: trendDays}
}

// Stats computes the dashboard payload for the principal's scope. Days is
// the trend window; zero falls back to the configured default and the window
// is capped.
func (s *DashboardService) Stats(ctx context.Context, p authz.Principal, days int) (*dto.DashboardStats, error) {
	scope := authz.SelectionScope(p)
	if scope.IsEmpty() {
		return &dto.DashboardStats{
			SelectionTrend:  []dto.TrendPoint{},
			ClassStatistics: []dto.ClassStat{},
		}, nil
	}

	if days <= 0 {
		days = s.trendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	today := startOfDay(time.Now().UTC())
	key := fmt.Sprintf("%s:%d:%s", scopeCacheKey(scope), days, today.Format("2006-01-02"))

	if s.cache != nil {
		var cached dto.DashboardStats
		if err := s.cache.GetDashboard(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	stats := &dto.DashboardStats{}
	var err error
	if stats.TotalChildren, err = s.repo.CountChildren(ctx, scope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count children")
	}
	if stats.TotalClasses, err = s.repo.CountClasses(ctx, scope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	if stats.TotalTeachers, err = s.repo.CountTeachers(ctx, authz.TeacherScope(p)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	if stats.TotalSelectionAreas, err = s.repo.CountAreas(ctx, scope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count selection areas")
	}
	if stats.AssignedChildren, err = s.repo.CountAssignedOnDate(ctx, scope, today); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
	}
	stats.UnassignedChildren = stats.TotalChildren - stats.AssignedChildren
	if stats.UnassignedChildren < 0 {
		stats.UnassignedChildren = 0
	}

	from := today.AddDate(0, 0, -(days - 1))
	points, err := s.repo.Trend(ctx, scope, from, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute trend")
	}
	stats.SelectionTrend = fillTrend(points, from, days)

	if stats.ClassStatistics, err = s.repo.ClassStats(ctx, scope, today); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute class statistics")
	}
	if stats.ClassStatistics == nil {
		stats.ClassStatistics = []dto.ClassStat{}
	}

	if s.cache != nil {
		if err := s.cache.SetDashboard(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard", zap.Error(err))
		}
	}
	return stats, nil
}

const maxActivityItems = 100

// RecentActivity lists the latest assignments and endings visible to the
// principal, newest first. Not cached; the feed should move as soon as a
// record changes.
func (s *DashboardService) RecentActivity(ctx context.Context, p authz.Principal, limit int) ([]dto.ActivityItem, error) {
	scope := authz.SelectionScope(p)
	if scope.IsEmpty() {
		return []dto.ActivityItem{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > maxActivityItems {
		limit = maxActivityItems
	}
	items, err := s.repo.RecentActivity(ctx, scope, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity feed")
	}
	if items == nil {
		items = []dto.ActivityItem{}
	}
	return items, nil
}

// fillTrend expands the sparse day counts into a dense window with zeros.
func fillTrend(points []dto.TrendPoint, from time.Time, days int) []dto.TrendPoint {
	byDate := make(map[string]int, len(points))
	for _, pt := range points {
		byDate[pt.Date] = pt.Count
	}
	out := make([]dto.TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, dto.TrendPoint{Date: d, Count: byDate[d]})
	}
	return out
}

func scopeCacheKey(scope authz.Scope) string {
	switch scope.Kind {
	case authz.ScopeAll:
		return "all"
	case authz.ScopeOrg:
		return "org:" + scope.OrgID
	case authz.ScopeClasses:
		ids := append([]string(nil), scope.ClassIDs...)
		sort.Strings(ids)
		return "classes:" + strings.Join(ids, ",")
	}
	return "none"
}
