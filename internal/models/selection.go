package models

import "time"

// SelectionArea is a named activity zone inside a class. The (class, name)
// pair is unique.
type SelectionArea struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	ImagePath   *string   `db:"image_path" json:"image_path,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SelectionAreaDetail adds joined naming context and today's occupancy.
type SelectionAreaDetail struct {
	SelectionArea
	ClassName         string `db:"class_name" json:"class_name"`
	OrganizationID    string `db:"organization_id" json:"organization_id"`
	OrganizationName  string `db:"organization_name" json:"organization_name"`
	CurrentSelections int    `db:"current_selections" json:"current_selections"`
}

// SelectionAreaFilter defines filter criteria for listing areas.
type SelectionAreaFilter struct {
	ClassID   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SelectionRecord is the daily child-to-area assignment fact. The
// (child, date) pair is unique: one record per child per calendar day,
// whichever area it currently points at. Active false marks an ended
// selection kept as history.
type SelectionRecord struct {
	ID         string    `db:"id" json:"id"`
	ChildID    string    `db:"child_id" json:"child_id"`
	AreaID     string    `db:"area_id" json:"area_id"`
	Date       time.Time `db:"date" json:"date"`
	SelectTime time.Time `db:"select_time" json:"select_time"`
	OperatedBy *string   `db:"operated_by" json:"operated_by,omitempty"`
	Active     bool      `db:"active" json:"active"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SelectionRecordDetail joins names for list responses and exports.
type SelectionRecordDetail struct {
	SelectionRecord
	ChildName        string  `db:"child_name" json:"child_name"`
	ChildGender      string  `db:"child_gender" json:"child_gender"`
	AreaName         string  `db:"area_name" json:"area_name"`
	ClassID          string  `db:"class_id" json:"class_id"`
	ClassName        string  `db:"class_name" json:"class_name"`
	OrganizationID   string  `db:"organization_id" json:"organization_id"`
	OrganizationName string  `db:"organization_name" json:"organization_name"`
	OperatorName     *string `db:"operator_name" json:"operator_name,omitempty"`
}

// SelectionRecordFilter covers the record listing and export filters.
type SelectionRecordFilter struct {
	ClassID        string
	OrganizationID string
	ChildID        string
	ChildName      string
	AreaID         string
	OperatedBy     string
	Active         *bool
	DateFrom       *time.Time
	DateTo         *time.Time
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
