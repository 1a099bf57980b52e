package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/dto"
)

// DashboardRepository computes the aggregate counts backing the dashboard.
// Every query carries the caller's scope so the numbers never leak outside
// the visible classes.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountChildren returns the number of active children in scope.
func (r *DashboardRepository) CountChildren(ctx context.Context, scope authz.Scope) (int, error) {
	query := "SELECT COUNT(*) FROM children ch WHERE ch.active = TRUE"
	var args []interface{}
	if cond, arg, ok := classScopeCondition(scope, "ch.class_id", len(args)+1); cond != "" {
		query += " AND " + cond
		if ok {
			args = append(args, arg)
		}
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return count, nil
}

// CountClasses returns the number of classes in scope.
func (r *DashboardRepository) CountClasses(ctx context.Context, scope authz.Scope) (int, error) {
	query := "SELECT COUNT(*) FROM classes c WHERE 1=1"
	var args []interface{}
	if cond, arg, ok := classScopeCondition(scope, "c.id", len(args)+1); cond != "" {
		query += " AND " + cond
		if ok {
			args = append(args, arg)
		}
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}

// CountTeachers returns the number of active teachers in scope.
func (r *DashboardRepository) CountTeachers(ctx context.Context, scope authz.Scope) (int, error) {
	query := "SELECT COUNT(*) FROM teachers t WHERE t.active = TRUE"
	var args []interface{}
	if cond, arg, ok := orgScopeCondition(scope, "t.organization_id", len(args)+1); cond != "" {
		query += " AND " + cond
		if ok {
			args = append(args, arg)
		}
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count teachers: %w", err)
	}
	return count, nil
}

// CountAreas returns the number of selection areas in scope.
func (r *DashboardRepository) CountAreas(ctx context.Context, scope authz.Scope) (int, error) {
	query := "SELECT COUNT(*) FROM selection_areas a WHERE 1=1"
	var args []interface{}
	if cond, arg, ok := classScopeCondition(scope, "a.class_id", len(args)+1); cond != "" {
		query += " AND " + cond
		if ok {
			args = append(args, arg)
		}
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count selection areas: %w", err)
	}
	return count, nil
}

// CountAssignedOnDate returns how many in-scope children hold an active
// selection on the given day.
func (r *DashboardRepository) CountAssignedOnDate(ctx context.Context, scope authz.Scope, date time.Time) (int, error) {
	query := `SELECT COUNT(DISTINCT sr.child_id) FROM selection_records sr
        JOIN children ch ON ch.id = sr.child_id
        WHERE sr.date = $1 AND sr.active = TRUE AND ch.active = TRUE`
	args := []interface{}{date}
	if cond, arg, ok := classScopeCondition(scope, "ch.class_id", len(args)+1); cond != "" {
		query += " AND " + cond
		if ok {
			args = append(args, arg)
		}
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count assigned children: %w", err)
	}
	return count, nil
}

// Trend returns the per-day assignment counts for the window [from, to].
// Days with no records are absent from the result; the service fills zeros.
func (r *DashboardRepository) Trend(ctx context.Context, scope authz.Scope, from, to time.Time) ([]dto.TrendPoint, error) {
	query := `SELECT sr.date AS date, COUNT(DISTINCT sr.child_id) AS count FROM selection_records sr
        JOIN children ch ON ch.id = sr.child_id
        WHERE sr.date >= $1 AND sr.date <= $2 AND sr.active = TRUE`
	args := []interface{}{from, to}
	if cond, arg, ok := classScopeCondition(scope, "ch.class_id", len(args)+1); cond != "" {
		query += " AND " + cond
		if ok {
			args = append(args, arg)
		}
	}
	query += " GROUP BY sr.date ORDER BY sr.date"

	var rows []trendRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("selection trend: %w", err)
	}
	points := make([]dto.TrendPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, dto.TrendPoint{Date: row.Date.Format("2006-01-02"), Count: row.Count})
	}
	return points, nil
}

type trendRow struct {
	Date  time.Time `db:"date"`
	Count int       `db:"count"`
}

// RecentActivity returns the latest selection record changes in scope,
// newest first. An update to a record moves it to the top of the feed.
func (r *DashboardRepository) RecentActivity(ctx context.Context, scope authz.Scope, limit int) ([]dto.ActivityItem, error) {
	query := `SELECT sr.id AS record_id, sr.date, sr.active, sr.updated_at,
        ch.name AS child_name, c.name AS class_name, a.name AS area_name
        FROM selection_records sr
        JOIN children ch ON ch.id = sr.child_id
        JOIN selection_areas a ON a.id = sr.area_id
        JOIN classes c ON c.id = a.class_id
        WHERE 1=1`
	var args []interface{}
	if cond, arg, ok := classScopeCondition(scope, "a.class_id", len(args)+1); cond != "" {
		query += " AND " + cond
		if ok {
			args = append(args, arg)
		}
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY sr.updated_at DESC LIMIT $%d", len(args))

	var rows []activityRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	items := make([]dto.ActivityItem, 0, len(rows))
	for _, row := range rows {
		action := "assigned"
		if !row.Active {
			action = "ended"
		}
		items = append(items, dto.ActivityItem{
			RecordID:   row.RecordID,
			ChildName:  row.ChildName,
			ClassName:  row.ClassName,
			AreaName:   row.AreaName,
			Date:       row.Date.Format("2006-01-02"),
			Action:     action,
			OccurredAt: row.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items, nil
}

type activityRow struct {
	RecordID  string    `db:"record_id"`
	Date      time.Time `db:"date"`
	Active    bool      `db:"active"`
	UpdatedAt time.Time `db:"updated_at"`
	ChildName string    `db:"child_name"`
	ClassName string    `db:"class_name"`
	AreaName  string    `db:"area_name"`
}

// ClassStats returns per-class child and assignment counts for the day.
func (r *DashboardRepository) ClassStats(ctx context.Context, scope authz.Scope, date time.Time) ([]dto.ClassStat, error) {
	query := `SELECT c.id AS class_id, c.name AS class_name,
        COUNT(DISTINCT ch.id) FILTER (WHERE ch.active = TRUE) AS child_count,
        COUNT(DISTINCT sr.child_id) FILTER (WHERE sr.active = TRUE) AS assigned_count
        FROM classes c
        LEFT JOIN children ch ON ch.class_id = c.id
        LEFT JOIN selection_records sr ON sr.child_id = ch.id AND sr.date = $1
        WHERE 1=1`
	args := []interface{}{date}
	if cond, arg, ok := classScopeCondition(scope, "c.id", len(args)+1); cond != "" {
		query += " AND " + cond
		if ok {
			args = append(args, arg)
		}
	}
	query += " GROUP BY c.id, c.name ORDER BY c.name"

	var stats []dto.ClassStat
	if err := r.db.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("class statistics: %w", err)
	}
	return stats, nil
}
