package models

import "time"

// Child represents an enrolled kid. ClassID is nullable: a child may be
// declassed (class deleted or pending placement) without losing the record.
// StudentID is unique when present.
type Child struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Gender        string     `db:"gender" json:"gender"`
	BirthDate     *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	ClassID       *string    `db:"class_id" json:"class_id,omitempty"`
	StudentID     *string    `db:"student_id" json:"student_id,omitempty"`
	AdmissionDate *time.Time `db:"admission_date" json:"admission_date,omitempty"`
	ParentName    *string    `db:"parent_name" json:"parent_name,omitempty"`
	ParentPhone   *string    `db:"parent_phone" json:"parent_phone,omitempty"`
	ParentEmail   *string    `db:"parent_email" json:"parent_email,omitempty"`
	HomeAddress   *string    `db:"home_address" json:"home_address,omitempty"`
	AvatarPath    *string    `db:"avatar_path" json:"avatar_path,omitempty"`
	HealthNotes   *string    `db:"health_notes" json:"health_notes,omitempty"`
	Active        bool       `db:"active" json:"active"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Age derives the child's age in whole years at the reference date.
// Age is never stored; it is computed at query time.
func (c Child) Age(at time.Time) *int {
	if c.BirthDate == nil {
		return nil
	}
	b := *c.BirthDate
	age := at.Year() - b.Year()
	if at.Month() < b.Month() || (at.Month() == b.Month() && at.Day() < b.Day()) {
		age--
	}
	return &age
}

// ChildDetail adds joined class and organization context plus the derived age.
type ChildDetail struct {
	Child
	ClassName        *string `db:"class_name" json:"class_name,omitempty"`
	OrganizationID   *string `db:"organization_id" json:"organization_id,omitempty"`
	OrganizationName *string `db:"organization_name" json:"organization_name,omitempty"`
	AgeYears         *int    `db:"-" json:"age,omitempty"`
}

// ChildFilter encapsulates allowed search parameters for listing children.
type ChildFilter struct {
	Search    string
	ClassID   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
