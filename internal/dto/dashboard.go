package dto

// TrendPoint is one day of the selection trend series. Date is formatted
// as YYYY-MM-DD.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ClassStat carries per-class headcounts for the dashboard.
type ClassStat struct {
	ClassID       string `db:"class_id" json:"class_id"`
	ClassName     string `db:"class_name" json:"class_name"`
	ChildCount    int    `db:"child_count" json:"child_count"`
	AssignedCount int    `db:"assigned_count" json:"assigned_count"`
}

// ActivityItem is one entry of the recent activity feed. Action is
// "assigned" while the record is active and "ended" after it closes.
type ActivityItem struct {
	RecordID   string `json:"record_id"`
	ChildName  string `json:"child_name"`
	ClassName  string `json:"class_name"`
	AreaName   string `json:"area_name"`
	Date       string `json:"date"`
	Action     string `json:"action"`
	OccurredAt string `json:"occurred_at"`
}

// DashboardStats aggregates counts scoped to the requesting principal.
// AssignedChildren counts children holding an active selection today;
// UnassignedChildren is the remainder, never negative.
type DashboardStats struct {
	TotalChildren       int          `json:"total_children"`
	TotalSelectionAreas int          `json:"total_selection_areas"`
	AssignedChildren    int          `json:"assigned_children"`
	UnassignedChildren  int          `json:"unassigned_children"`
	TotalClasses        int          `json:"total_classes"`
	TotalTeachers       int          `json:"total_teachers"`
	SelectionTrend      []TrendPoint `json:"selection_trend"`
	ClassStatistics     []ClassStat  `json:"class_statistics"`
}
