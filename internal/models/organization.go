package models

import "time"

// OrganizationType enumerates the ownership models of a kindergarten.
const (
	OrgTypePublic  = "public"
	OrgTypePrivate = "private"
	OrgTypeChain   = "chain"
)

// Organization represents a kindergarten institution, the top of the
// hierarchy. Name is unique across the system.
type Organization struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	OrgType       string    `db:"org_type" json:"org_type"`
	Address       *string   `db:"address" json:"address,omitempty"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	PrincipalName *string   `db:"principal_name" json:"principal_name,omitempty"`
	Region        *string   `db:"region" json:"region,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// OrganizationStats carries derived counts, never stored on the row.
type OrganizationStats struct {
	Organization
	ClassCount   int `db:"class_count" json:"class_count"`
	ChildCount   int `db:"child_count" json:"child_count"`
	TeacherCount int `db:"teacher_count" json:"teacher_count"`
}

// OrganizationFilter defines filter criteria for listing organizations.
type OrganizationFilter struct {
	OrgType   string
	Region    string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
