package models

import (
	"strings"
	"time"
)

// Teacher positions.
const (
	PositionHeadmaster       = "headmaster"
	PositionDeputyHeadmaster = "deputy_headmaster"
	PositionHeadTeacher      = "head_teacher"
	PositionAssistantTeacher = "assistant_teacher"
	PositionLifeTeacher      = "life_teacher"
)

// Teacher represents a staff record. Phone and IDCard are unique when
// present; empty strings are normalized to NULL so that two teachers without
// a phone never collide on the constraint.
type Teacher struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	Name           string     `db:"name" json:"name"`
	Gender         string     `db:"gender" json:"gender"`
	Position       string     `db:"position" json:"position"`
	EmployeeID     *string    `db:"employee_id" json:"employee_id,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Email          *string    `db:"email" json:"email,omitempty"`
	IDCard         *string    `db:"id_card" json:"id_card,omitempty"`
	HireDate       *time.Time `db:"hire_date" json:"hire_date,omitempty"`
	PhotoPath      *string    `db:"photo_path" json:"photo_path,omitempty"`
	Active         bool       `db:"active" json:"active"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// NormalizeIdentifiers maps empty-string phone and id-card to NULL before
// persistence so the unique constraints only apply to real values.
func (t *Teacher) NormalizeIdentifiers() {
	t.Phone = normalizeOptional(t.Phone)
	t.IDCard = normalizeOptional(t.IDCard)
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// TeacherDetail adds the teaching-class set and organization name.
type TeacherDetail struct {
	Teacher
	OrganizationName string   `db:"organization_name" json:"organization_name"`
	ClassIDs         []string `db:"-" json:"class_ids"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	OrganizationID string
	Position       string
	Active         *bool
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
