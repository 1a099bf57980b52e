package models

import "time"

// Class types mirror the age bands a kindergarten runs.
const (
	ClassTypeNursery   = "nursery"
	ClassTypeSmall     = "small"
	ClassTypeMiddle    = "middle"
	ClassTypeLarge     = "large"
	ClassTypePreSchool = "pre_school"
)

// Class represents a class room inside one organization. The (organization,
// name) pair is unique.
type Class struct {
	ID                string    `db:"id" json:"id"`
	OrganizationID    string    `db:"organization_id" json:"organization_id"`
	Name              string    `db:"name" json:"name"`
	ClassType         string    `db:"class_type" json:"class_type"`
	ClassroomLocation *string   `db:"classroom_location" json:"classroom_location,omitempty"`
	Description       *string   `db:"description" json:"description,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with joined context for responses.
type ClassDetail struct {
	Class
	OrganizationName string `db:"organization_name" json:"organization_name"`
	ChildCount       int    `db:"child_count" json:"child_count"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	OrganizationID string
	ClassType      string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
