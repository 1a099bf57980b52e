package models

import (
	"time"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
)

// User represents an application account stored in the users table.
// OrganizationID links principals (and teachers) to their organization;
// TeacherID links a teacher account to its roster record.
type User struct {
	ID             string     `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Role           authz.Role `db:"role" json:"role"`
	OrganizationID *string    `db:"organization_id" json:"organization_id,omitempty"`
	TeacherID      *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	AvatarPath     *string    `db:"avatar_path" json:"avatar_path,omitempty"`
	Active         bool       `db:"active" json:"active"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *authz.Role
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
